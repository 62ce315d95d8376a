package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/order"
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/leorit/backend/internal/infrastructure/logger"
	"github.com/leorit/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// OrderService runs order lifecycle operations. Every mutating operation
// loads the order, applies one domain operation and saves with a
// compare-and-set; a lost race is retried from a fresh read.
type OrderService struct {
	repo          order.Repository
	manufacturers order.ManufacturerDirectory
	policy        shared.PolicyProvider
	logger        *zap.Logger
	retry         RetryPolicy

	media   order.MediaStorage
	metrics *telemetry.LifecycleMetrics
}

// NewOrderService creates a new OrderService
func NewOrderService(
	repo order.Repository,
	manufacturers order.ManufacturerDirectory,
	policy shared.PolicyProvider,
	logger *zap.Logger,
) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		repo:          repo,
		manufacturers: manufacturers,
		policy:        policy,
		logger:        logger,
		retry:         DefaultRetryPolicy(),
	}
}

// SetRetryPolicy overrides the compare-and-set retry policy
func (s *OrderService) SetRetryPolicy(p RetryPolicy) {
	s.retry = p
}

// SetMediaStorage sets the storage used for QC media uploads
func (s *OrderService) SetMediaStorage(media order.MediaStorage) {
	s.media = media
}

// SetLifecycleMetrics sets the lifecycle metrics recorder
func (s *OrderService) SetLifecycleMetrics(m *telemetry.LifecycleMetrics) {
	s.metrics = m
}

// authorize checks the actor against the injected policy
func (s *OrderService) authorize(ctx context.Context, actor shared.Actor, action shared.Action) error {
	if !actor.Role.IsValid() || actor.ID == uuid.Nil {
		return shared.NewDomainError(shared.CodeUnauthorized, "Unknown actor")
	}
	if s.policy != nil && !s.policy.IsAuthorized(ctx, actor.Role, actor.ID, action) {
		return shared.NewDomainError(shared.CodeUnauthorized,
			fmt.Sprintf("Role %s may not perform %s", actor.Role, action))
	}
	return nil
}

// mutate is the load, apply, compare-and-set loop shared by every command
func (s *OrderService) mutate(
	ctx context.Context,
	op string,
	action shared.Action,
	actor shared.Actor,
	orderID uuid.UUID,
	apply func(ctx context.Context, o *order.Order) error,
) (*order.Order, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order", op)
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrderID, orderID.String(),
		telemetry.SpanAttrActorID, actor.ID.String(),
		telemetry.SpanAttrActorRole, string(actor.Role),
	)
	start := time.Now()

	if err := s.authorize(ctx, actor, action); err != nil {
		s.record(ctx, op, err, start)
		telemetry.RecordError(span, err)
		return nil, err
	}

	var (
		result *order.Order
		err    error
	)
	labels := telemetry.OperationLabels(op, map[string]string{
		telemetry.ProfilingLabelActorRole: string(actor.Role),
	})
	telemetry.WithProfilingLabels(ctx, labels, func(ctx context.Context) {
		err = s.applyWithRetry(ctx, span, op, orderID, apply, &result)
	})

	s.record(ctx, op, err, start)
	if err != nil {
		telemetry.RecordError(span, err)
		if shared.IsRetryable(err) {
			logger.For(ctx, s.logger).Warn("Order operation gave up after retries",
				zap.String("operation", op),
				zap.String("order_id", orderID.String()),
				zap.Int("max_retries", s.retry.MaxRetries),
			)
		}
		return nil, err
	}
	telemetry.SetOK(span)
	return result, nil
}

// applyWithRetry loads, applies and saves until the compare-and-set wins
func (s *OrderService) applyWithRetry(
	ctx context.Context,
	span trace.Span,
	op string,
	orderID uuid.UUID,
	apply func(ctx context.Context, o *order.Order) error,
	out **order.Order,
) error {
	return s.retry.Do(ctx, func(attempt int) error {
		o, err := s.repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		fromState, fromPayment := o.State, o.PaymentState
		if err := apply(ctx, o); err != nil {
			return err
		}
		if err := s.repo.Save(ctx, o); err != nil {
			return err
		}
		*out = o
		telemetry.SetAttributes(span,
			telemetry.SpanAttrOrderNumber, o.OrderNumber,
			telemetry.SpanAttrOrderState, string(o.State),
			telemetry.SpanAttrAttempt, attempt,
		)
		if fromPayment != o.PaymentState && s.metrics != nil {
			s.metrics.RecordPaymentState(ctx, string(o.PaymentState))
		}
		logger.For(ctx, s.logger).Debug("Order operation applied",
			zap.String("operation", op),
			zap.String("order_number", o.OrderNumber),
			zap.String("from_state", string(fromState)),
			zap.String("to_state", string(o.State)),
			zap.Int("attempt", attempt),
		)
		return nil
	}, func(attempt int, err error) {
		if s.metrics != nil {
			s.metrics.RecordRetry(ctx, op)
		}
		logger.For(ctx, s.logger).Info("Retrying order operation after concurrent modification",
			zap.String("operation", op),
			zap.String("order_id", orderID.String()),
			zap.Int("attempt", attempt),
		)
	})
}

func (s *OrderService) record(ctx context.Context, op string, err error, start time.Time) {
	if s.metrics == nil {
		return
	}
	code := shared.ErrorCode(err)
	result := telemetry.ResultOK
	switch {
	case err == nil:
	case code == shared.CodeConcurrentModification:
		result = telemetry.ResultConflict
	case code != "":
		result = telemetry.ResultRejected
	default:
		result = telemetry.ResultError
	}
	s.metrics.RecordOperation(ctx, op, result, code, time.Since(start))
}

func (s *OrderService) respond(o *order.Order, err error) (*OrderResponse, error) {
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(o)
	return &resp, nil
}

// CreateOrder creates a draft order
func (s *OrderService) CreateOrder(ctx context.Context, actor shared.Actor, req CreateOrderRequest) (*OrderResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order", "create")
	defer span.End()
	start := time.Now()

	o, err := s.createOrder(ctx, actor, req)
	s.record(ctx, "create", err, start)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrderID, o.ID.String(),
		telemetry.SpanAttrOrderNumber, o.OrderNumber,
		telemetry.SpanAttrIntent, string(o.Intent),
	)
	telemetry.SetOK(span)
	return s.respond(o, nil)
}

func (s *OrderService) createOrder(ctx context.Context, actor shared.Actor, req CreateOrderRequest) (*order.Order, error) {
	if err := s.authorize(ctx, actor, shared.ActionCreateOrder); err != nil {
		return nil, err
	}
	intent, err := order.ParseIntent(req.Intent)
	if err != nil {
		return nil, err
	}
	buyerID := actor.ID
	if req.BuyerID != nil {
		if !actor.IsAdmin() && *req.BuyerID != actor.ID {
			return nil, shared.NewDomainError(shared.CodeUnauthorized, "Buyers can only create orders for themselves")
		}
		buyerID = *req.BuyerID
	}
	if actor.Role == shared.RoleManufacturer {
		return nil, shared.NewDomainError(shared.CodeUnauthorized, "Manufacturers cannot create orders")
	}
	number, err := s.repo.NextOrderNumber(ctx)
	if err != nil {
		return nil, err
	}
	o, err := order.NewOrder(number, buyerID, intent, req.details(), actor)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateDraft replaces the details of a draft order
func (s *OrderService) UpdateDraft(ctx context.Context, actor shared.Actor, id uuid.UUID, req UpdateDraftRequest) (*OrderResponse, error) {
	return s.respond(s.mutate(ctx, "update_draft", shared.ActionUpdateDraft, actor, id,
		func(_ context.Context, o *order.Order) error {
			return o.UpdateDraft(req.details(), actor)
		}))
}

// Submit submits a draft for review
func (s *OrderService) Submit(ctx context.Context, actor shared.Actor, id uuid.UUID) (*OrderResponse, error) {
	return s.respond(s.mutate(ctx, "submit", shared.ActionSubmit, actor, id,
		func(_ context.Context, o *order.Order) error {
			return o.Submit(actor)
		}))
}

// Approve approves a submitted order
func (s *OrderService) Approve(ctx context.Context, actor shared.Actor, id uuid.UUID) (*OrderResponse, error) {
	return s.respond(s.mutate(ctx, "admin_approve", shared.ActionAdminApprove, actor, id,
		func(_ context.Context, o *order.Order) error {
			return o.Approve(actor)
		}))
}

// AssignManufacturer assigns, or after a decline reassigns, a manufacturer
func (s *OrderService) AssignManufacturer(ctx context.Context, actor shared.Actor, id uuid.UUID, req AssignManufacturerRequest) (*OrderResponse, error) {
	return s.respond(s.mutate(ctx, "assign_manufacturer", shared.ActionAssignManufacturer, actor, id,
		func(ctx context.Context, o *order.Order) error {
			ref, err := s.manufacturers.Lookup(ctx, req.ManufacturerID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return shared.NewDomainError(shared.CodeNotFound,
						fmt.Sprintf("Manufacturer %s does not exist", req.ManufacturerID))
				}
				return err
			}
			return o.AssignManufacturer(ref, actor)
		}))
}

// DeclineAssignment lets the assigned manufacturer decline the order
func (s *OrderService) DeclineAssignment(ctx context.Context, actor shared.Actor, id uuid.UUID, req DeclineAssignmentRequest) (*OrderResponse, error) {
	return s.respond(s.mutate(ctx, "decline_assignment", shared.ActionDeclineAssignment, actor, id,
		func(_ context.Context, o *order.Order) error {
			return o.DeclineAssignment(req.Reason, actor)
		}))
}

// RequestPayment asks the buyer to pay into escrow
func (s *OrderService) RequestPayment(ctx context.Context, actor shared.Actor, id uuid.UUID) (*OrderResponse, error) {
	return s.respond(s.mutate(ctx, "request_payment", shared.ActionRequestPayment, actor, id,
		func(_ context.Context, o *order.Order) error {
			return o.RequestPayment(actor)
		}))
}

// ConfirmPayment records funds as held
func (s *OrderService) ConfirmPayment(ctx context.Context, actor shared.Actor, id uuid.UUID) (*OrderResponse, error) {
	return s.respond(s.mutate(ctx, "confirm_payment", shared.ActionConfirmPayment, actor, id,
		func(_ context.Context, o *order.Order) error {
			return o.ConfirmPayment(actor)
		}))
}

// StartProduction starts the first production stage of the intent
func (s *OrderService) StartProduction(ctx context.Context, actor shared.Actor, id uuid.UUID) (*OrderResponse, error) {
	return s.respond(s.mutate(ctx, "start_production", shared.ActionStartProduction, actor, id,
		func(_ context.Context, o *order.Order) error {
			return o.StartProduction(actor)
		}))
}

// UploadQC opens a QC round for the stage in production
func (s *OrderService) UploadQC(ctx context.Context, actor shared.Actor, id uuid.UUID, req UploadQCRequest) (*QCResultResponse, error) {
	var rec *order.QCRecord
	o, err := s.mutate(ctx, "upload_qc", shared.ActionUploadQC, actor, id,
		func(_ context.Context, o *order.Order) error {
			var err error
			rec, err = o.UploadQC(order.QCSubmission{
				Stage:      order.Stage(req.Stage),
				Decision:   order.SubmitterDecision(req.Decision),
				DefectType: order.DefectType(req.DefectType),
				Severity:   req.DefectSeverity,
				MediaRefs:  req.MediaRefs,
				Notes:      req.Notes,
			}, actor)
			return err
		})
	if err != nil {
		return nil, err
	}
	return &QCResultResponse{Order: ToOrderResponse(o), QCRecord: ToQCRecordResponse(rec)}, nil
}

// DecideQC applies an admin decision to a pending QC round
func (s *OrderService) DecideQC(ctx context.Context, actor shared.Actor, id, qcID uuid.UUID, req DecideQCRequest) (*QCResultResponse, error) {
	var rec *order.QCRecord
	o, err := s.mutate(ctx, "decide_qc", shared.ActionDecideQC, actor, id,
		func(_ context.Context, o *order.Order) error {
			var err error
			rec, err = o.DecideQC(order.QCDecision{
				QCRecordID: qcID,
				Decision:   order.AdminDecision(req.Decision),
				DefectType: order.DefectType(req.DefectType),
				Severity:   req.DefectSeverity,
				Notes:      req.Notes,
			}, actor)
			return err
		})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordQCDecision(ctx, string(rec.Stage), string(rec.AdminDecision))
	}
	return &QCResultResponse{Order: ToOrderResponse(o), QCRecord: ToQCRecordResponse(rec)}, nil
}

// UnlockBulk unlocks bulk production after an approved sample
func (s *OrderService) UnlockBulk(ctx context.Context, actor shared.Actor, id uuid.UUID) (*OrderResponse, error) {
	return s.respond(s.mutate(ctx, "unlock_bulk", shared.ActionUnlockBulk, actor, id,
		func(_ context.Context, o *order.Order) error {
			return o.UnlockBulk(actor)
		}))
}

// StartBulk starts bulk production
func (s *OrderService) StartBulk(ctx context.Context, actor shared.Actor, id uuid.UUID) (*OrderResponse, error) {
	return s.respond(s.mutate(ctx, "start_bulk", shared.ActionStartBulk, actor, id,
		func(_ context.Context, o *order.Order) error {
			return o.StartBulk(actor)
		}))
}

// Dispatch ships the order
func (s *OrderService) Dispatch(ctx context.Context, actor shared.Actor, id uuid.UUID, req DispatchRequest) (*OrderResponse, error) {
	return s.respond(s.mutate(ctx, "pack_and_dispatch", shared.ActionDispatch, actor, id,
		func(_ context.Context, o *order.Order) error {
			return o.Dispatch(req.TrackingID, req.Carrier, actor)
		}))
}

// ConfirmDelivery records delivery to the buyer
func (s *OrderService) ConfirmDelivery(ctx context.Context, actor shared.Actor, id uuid.UUID) (*OrderResponse, error) {
	return s.respond(s.mutate(ctx, "confirm_delivery", shared.ActionConfirmDelivery, actor, id,
		func(_ context.Context, o *order.Order) error {
			return o.ConfirmDelivery(actor)
		}))
}

// MarkPaymentReleasable makes held funds releasable
func (s *OrderService) MarkPaymentReleasable(ctx context.Context, actor shared.Actor, id uuid.UUID) (*OrderResponse, error) {
	return s.respond(s.mutate(ctx, "mark_payment_releasable", shared.ActionMarkPaymentReleasable, actor, id,
		func(_ context.Context, o *order.Order) error {
			return o.MarkPaymentReleasable(actor)
		}))
}

// ReleaseFinalPayment releases escrow and completes the order
func (s *OrderService) ReleaseFinalPayment(ctx context.Context, actor shared.Actor, id uuid.UUID) (*OrderResponse, error) {
	return s.respond(s.mutate(ctx, "release_final_payment", shared.ActionReleaseFinalPayment, actor, id,
		func(_ context.Context, o *order.Order) error {
			return o.ReleaseFinalPayment(actor)
		}))
}

// RefundPayment refunds escrow and halts the lifecycle
func (s *OrderService) RefundPayment(ctx context.Context, actor shared.Actor, id uuid.UUID, req RefundRequest) (*OrderResponse, error) {
	return s.respond(s.mutate(ctx, "refund_payment", shared.ActionRefundPayment, actor, id,
		func(_ context.Context, o *order.Order) error {
			return o.RefundPayment(req.Reason, actor)
		}))
}

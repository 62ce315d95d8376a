package order

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/order"
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/leorit/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// loadVisible loads an order the actor is allowed to see
func (s *OrderService) loadVisible(ctx context.Context, actor shared.Actor, id uuid.UUID) (*order.Order, error) {
	if err := s.authorize(ctx, actor, shared.ActionViewOrder); err != nil {
		return nil, err
	}
	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.CanView(actor) {
		return nil, shared.NewDomainError(shared.CodeUnauthorized,
			fmt.Sprintf("Not allowed to view order %s", o.OrderNumber))
	}
	return o, nil
}

// GetOrder returns an order with its QC records
func (s *OrderService) GetOrder(ctx context.Context, actor shared.Actor, id uuid.UUID) (*OrderResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order", "get")
	defer span.End()

	o, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return s.respond(o, nil)
}

// GetOrderByNumber returns an order by its order number
func (s *OrderService) GetOrderByNumber(ctx context.Context, actor shared.Actor, orderNumber string) (*OrderResponse, error) {
	if err := s.authorize(ctx, actor, shared.ActionViewOrder); err != nil {
		return nil, err
	}
	o, err := s.repo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if !o.CanView(actor) {
		return nil, shared.NewDomainError(shared.CodeUnauthorized,
			fmt.Sprintf("Not allowed to view order %s", o.OrderNumber))
	}
	return s.respond(o, nil)
}

// ListOrders lists orders. Buyers only see their own orders and
// manufacturers only the orders assigned to them.
func (s *OrderService) ListOrders(ctx context.Context, actor shared.Actor, req ListOrdersRequest) (*shared.Paginated[OrderListItemResponse], error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order", "list")
	defer span.End()

	if err := s.authorize(ctx, actor, shared.ActionListOrders); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	filter, err := s.listFilter(actor, req)
	if err != nil {
		return nil, err
	}

	orders, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	page := shared.NewPaginated(ToOrderListItemResponses(orders), total, filter.Page, filter.PageSize)
	return &page, nil
}

func (s *OrderService) listFilter(actor shared.Actor, req ListOrdersRequest) (order.ListFilter, error) {
	filter := order.ListFilter{Filter: shared.NewFilter(req.Page, req.PageSize, req.OrderBy, req.OrderDir)}
	filter.Search = strings.TrimSpace(req.Search)
	filter.State = order.LifecycleState(req.State)
	filter.Intent = order.Intent(req.Intent)
	filter.PaymentState = order.PaymentState(req.PaymentState)

	if req.BuyerID != "" {
		id, err := uuid.Parse(req.BuyerID)
		if err != nil {
			return filter, shared.NewDomainError(shared.CodeValidation, "Invalid buyer_id")
		}
		filter.BuyerID = &id
	}
	if req.ManufacturerID != "" {
		id, err := uuid.Parse(req.ManufacturerID)
		if err != nil {
			return filter, shared.NewDomainError(shared.CodeValidation, "Invalid manufacturer_id")
		}
		filter.ManufacturerID = &id
	}

	switch actor.Role {
	case shared.RoleBuyer:
		id := actor.ID
		filter.BuyerID = &id
	case shared.RoleManufacturer:
		id := actor.ID
		filter.ManufacturerID = &id
	}
	return filter, nil
}

// History returns the audit trail of an order together with the replayed
// path and its consistency with the intent and the milestone timestamps
func (s *OrderService) History(ctx context.Context, actor shared.Actor, id uuid.UUID) (*HistoryResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order", "history")
	defer span.End()

	o, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	events, err := s.repo.History(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	order.SortAuditEvents(events)

	visited := order.ReconstructPath(events)
	resp := &HistoryResponse{
		OrderID:       o.ID,
		Events:        ToAuditEventResponses(events),
		Path:          statesToStrings(visited),
		Consistent:    true,
		Discrepancies: order.ReconcileMilestones(o, events),
	}
	if resp.Discrepancies == nil {
		resp.Discrepancies = []order.MilestoneDiscrepancy{}
	}
	if err := order.ValidatePath(o.Intent, visited); err != nil {
		resp.Consistent = false
		resp.PathError = err.Error()
	}
	if len(resp.Discrepancies) > 0 {
		resp.Consistent = false
	}
	if !resp.Consistent {
		s.logger.Warn("Order history is inconsistent",
			zap.String("order_number", o.OrderNumber),
			zap.String("path_error", resp.PathError),
			zap.Int("milestone_discrepancies", len(resp.Discrepancies)),
		)
	}
	return resp, nil
}

// ListQCRecords returns an order's QC rounds, optionally for one stage
func (s *OrderService) ListQCRecords(ctx context.Context, actor shared.Actor, id uuid.UUID, stage string) ([]QCRecordResponse, error) {
	var st order.Stage
	if stage != "" {
		parsed, err := order.ParseStage(stage)
		if err != nil {
			return nil, err
		}
		st = parsed
	}
	if _, err := s.loadVisible(ctx, actor, id); err != nil {
		return nil, err
	}
	records, err := s.repo.QCRecords(ctx, id, st)
	if err != nil {
		return nil, err
	}
	out := make([]QCRecordResponse, len(records))
	for i := range records {
		out[i] = ToQCRecordResponse(&records[i])
	}
	return out, nil
}

// AllowedPath returns the ordered states an intent may visit
func (s *OrderService) AllowedPath(intent string) (*IntentPathResponse, error) {
	i, err := order.ParseIntent(intent)
	if err != nil {
		return nil, err
	}
	return &IntentPathResponse{Intent: string(i), Path: statesToStrings(order.AllowedPath(i))}, nil
}

// CreateQCUploadURL issues a pre-signed upload location for QC media.
// Only the manufacturer assigned to the order may upload.
func (s *OrderService) CreateQCUploadURL(ctx context.Context, actor shared.Actor, id uuid.UUID, req QCUploadURLRequest) (*order.UploadURL, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order", "qc_upload_url")
	defer span.End()

	if s.media == nil {
		return nil, shared.NewDomainError(shared.CodeGuardFailed, "Media storage is not configured")
	}
	stage, err := order.ParseStage(req.Stage)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, shared.ActionUploadQC); err != nil {
		return nil, err
	}
	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := o.RequireAssignedManufacturer(actor); err != nil {
		return nil, err
	}

	url, err := s.media.GenerateUploadURL(ctx, o.ID, stage, path.Base(req.FileName), req.ContentType)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Failed to generate QC upload URL",
			zap.String("order_number", o.OrderNumber),
			zap.Error(err),
		)
		return nil, err
	}
	return url, nil
}

package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/order"
	"github.com/shopspring/decimal"
)

// ==================== Requests ====================

// CreateOrderRequest represents a request to create a draft order
type CreateOrderRequest struct {
	// BuyerID lets an admin create an order on a buyer's behalf. Buyers
	// always create orders for themselves.
	BuyerID        *uuid.UUID      `json:"buyer_id"`
	Intent         string          `json:"intent" binding:"required,intent"`
	ProductName    string          `json:"product_name" binding:"max=200"`
	Fabric         string          `json:"fabric" binding:"max=200"`
	Colour         string          `json:"colour" binding:"max=100"`
	SizeBreakdown  string          `json:"size_breakdown" binding:"max=500"`
	Notes          string          `json:"notes" binding:"max=2000"`
	SampleQuantity int             `json:"sample_quantity" binding:"min=0"`
	BulkQuantity   int             `json:"bulk_quantity" binding:"min=0"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Currency       string          `json:"currency" binding:"omitempty,len=3"`
}

func (r CreateOrderRequest) details() order.Details {
	return order.Details{
		ProductName:    r.ProductName,
		Fabric:         r.Fabric,
		Colour:         r.Colour,
		SizeBreakdown:  r.SizeBreakdown,
		Notes:          r.Notes,
		SampleQuantity: r.SampleQuantity,
		BulkQuantity:   r.BulkQuantity,
		UnitPrice:      r.UnitPrice,
		Currency:       r.Currency,
	}
}

// UpdateDraftRequest replaces the descriptive fields of a draft
type UpdateDraftRequest struct {
	ProductName    string          `json:"product_name" binding:"max=200"`
	Fabric         string          `json:"fabric" binding:"max=200"`
	Colour         string          `json:"colour" binding:"max=100"`
	SizeBreakdown  string          `json:"size_breakdown" binding:"max=500"`
	Notes          string          `json:"notes" binding:"max=2000"`
	SampleQuantity int             `json:"sample_quantity" binding:"min=0"`
	BulkQuantity   int             `json:"bulk_quantity" binding:"min=0"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Currency       string          `json:"currency" binding:"omitempty,len=3"`
}

func (r UpdateDraftRequest) details() order.Details {
	return order.Details{
		ProductName:    r.ProductName,
		Fabric:         r.Fabric,
		Colour:         r.Colour,
		SizeBreakdown:  r.SizeBreakdown,
		Notes:          r.Notes,
		SampleQuantity: r.SampleQuantity,
		BulkQuantity:   r.BulkQuantity,
		UnitPrice:      r.UnitPrice,
		Currency:       r.Currency,
	}
}

// AssignManufacturerRequest assigns a manufacturer to an approved order
type AssignManufacturerRequest struct {
	ManufacturerID uuid.UUID `json:"manufacturer_id" binding:"required"`
}

// DeclineAssignmentRequest is the manufacturer's reason for declining
type DeclineAssignmentRequest struct {
	Reason string `json:"reason" binding:"max=1000"`
}

// UploadQCRequest opens a QC round
type UploadQCRequest struct {
	Stage          string   `json:"stage" binding:"omitempty,stage"`
	Decision       string   `json:"decision" binding:"omitempty,oneof=approve reject"`
	DefectType     string   `json:"defect_type" binding:"omitempty,defect_type"`
	DefectSeverity int      `json:"defect_severity"`
	MediaRefs      []string `json:"media_refs" binding:"max=50,dive,min=1,max=500"`
	Notes          string   `json:"notes" binding:"max=2000"`
}

// DecideQCRequest is the admin's verdict on a QC round
type DecideQCRequest struct {
	Decision       string `json:"decision" binding:"required,oneof=approved rejected"`
	DefectType     string `json:"defect_type" binding:"omitempty,defect_type"`
	DefectSeverity int    `json:"defect_severity"`
	Notes          string `json:"notes" binding:"max=2000"`
}

// DispatchRequest records shipment details
type DispatchRequest struct {
	TrackingID string `json:"tracking_id" binding:"required,max=100"`
	Carrier    string `json:"carrier" binding:"max=100"`
}

// RefundRequest refunds escrow
type RefundRequest struct {
	Reason string `json:"reason" binding:"required,max=1000"`
}

// QCUploadURLRequest asks for a pre-signed media upload location
type QCUploadURLRequest struct {
	Stage       string `json:"stage" binding:"required,stage"`
	FileName    string `json:"file_name" binding:"required,max=255"`
	ContentType string `json:"content_type" binding:"required,max=100"`
}

// ListOrdersRequest filters order listings
type ListOrdersRequest struct {
	Page           int    `form:"page" binding:"omitempty,min=1"`
	PageSize       int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy        string `form:"order_by" binding:"omitempty,oneof=created_at updated_at order_number lifecycle_state total_amount"`
	OrderDir       string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search         string `form:"search" binding:"max=100"`
	State          string `form:"state" binding:"omitempty,lifecycle_state"`
	Intent         string `form:"intent" binding:"omitempty,intent"`
	PaymentState   string `form:"payment_state" binding:"omitempty,oneof=initiated held releasable released refunded"`
	BuyerID        string `form:"buyer_id" binding:"omitempty,uuid"`
	ManufacturerID string `form:"manufacturer_id" binding:"omitempty,uuid"`
}

// ==================== Responses ====================

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID             uuid.UUID       `json:"id"`
	OrderNumber    string          `json:"order_number"`
	BuyerID        uuid.UUID       `json:"buyer_id"`
	ManufacturerID *uuid.UUID      `json:"manufacturer_id,omitempty"`
	Intent         string          `json:"intent"`
	LifecycleState string          `json:"lifecycle_state"`
	PaymentState   string          `json:"payment_state"`
	ProductName    string          `json:"product_name"`
	Fabric         string          `json:"fabric"`
	Colour         string          `json:"colour,omitempty"`
	SizeBreakdown  string          `json:"size_breakdown,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	SampleQuantity int             `json:"sample_quantity"`
	BulkQuantity   int             `json:"bulk_quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Currency       string          `json:"currency"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	UpfrontAmount  decimal.Decimal `json:"upfront_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	TrackingID     string          `json:"tracking_id,omitempty"`
	Carrier        string          `json:"carrier,omitempty"`
	RefundReason   string          `json:"refund_reason,omitempty"`
	Milestones     MilestonesDTO   `json:"milestones"`
	Version        int             `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	QCRecords []QCRecordResponse `json:"qc_records,omitempty"`
}

// MilestonesDTO carries the per-state timestamps
type MilestonesDTO struct {
	SubmittedAt            *time.Time `json:"submitted_at,omitempty"`
	AdminApprovedAt        *time.Time `json:"admin_approved_at,omitempty"`
	ManufacturerAssignedAt *time.Time `json:"manufacturer_assigned_at,omitempty"`
	PaymentRequestedAt     *time.Time `json:"payment_requested_at,omitempty"`
	PaymentConfirmedAt     *time.Time `json:"payment_confirmed_at,omitempty"`
	SampleStartedAt        *time.Time `json:"sample_started_at,omitempty"`
	SampleQCUploadedAt     *time.Time `json:"sample_qc_uploaded_at,omitempty"`
	SampleApprovedAt       *time.Time `json:"sample_approved_at,omitempty"`
	BulkUnlockedAt         *time.Time `json:"bulk_unlocked_at,omitempty"`
	BulkStartedAt          *time.Time `json:"bulk_started_at,omitempty"`
	BulkQCUploadedAt       *time.Time `json:"bulk_qc_uploaded_at,omitempty"`
	ReadyForDispatchAt     *time.Time `json:"ready_for_dispatch_at,omitempty"`
	DispatchedAt           *time.Time `json:"dispatched_at,omitempty"`
	DeliveredAt            *time.Time `json:"delivered_at,omitempty"`
	CompletedAt            *time.Time `json:"completed_at,omitempty"`
	PaymentHeldAt          *time.Time `json:"payment_held_at,omitempty"`
	PaymentReleasableAt    *time.Time `json:"payment_releasable_at,omitempty"`
	PaymentReleasedAt      *time.Time `json:"payment_released_at,omitempty"`
	PaymentRefundedAt      *time.Time `json:"payment_refunded_at,omitempty"`
}

// OrderListItemResponse represents an order in list responses (less detail)
type OrderListItemResponse struct {
	ID             uuid.UUID       `json:"id"`
	OrderNumber    string          `json:"order_number"`
	BuyerID        uuid.UUID       `json:"buyer_id"`
	ManufacturerID *uuid.UUID      `json:"manufacturer_id,omitempty"`
	Intent         string          `json:"intent"`
	LifecycleState string          `json:"lifecycle_state"`
	PaymentState   string          `json:"payment_state"`
	ProductName    string          `json:"product_name"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// QCRecordResponse represents a QC round in API responses
type QCRecordResponse struct {
	ID                uuid.UUID  `json:"id"`
	OrderID           uuid.UUID  `json:"order_id"`
	Stage             string     `json:"stage"`
	Round             int        `json:"round"`
	SubmitterDecision string     `json:"submitter_decision"`
	DefectType        string     `json:"defect_type"`
	DefectSeverity    *int       `json:"defect_severity,omitempty"`
	AdminDecision     string     `json:"admin_decision"`
	AdminNotes        string     `json:"admin_notes,omitempty"`
	SubmitterNotes    string     `json:"submitter_notes,omitempty"`
	MediaRefs         []string   `json:"media_refs"`
	SubmittedBy       uuid.UUID  `json:"submitted_by"`
	SubmittedAt       time.Time  `json:"submitted_at"`
	DecidedBy         *uuid.UUID `json:"decided_by,omitempty"`
	DecidedAt         *time.Time `json:"decided_at,omitempty"`
}

// QCResultResponse is returned by QC upload and decision
type QCResultResponse struct {
	Order    OrderResponse    `json:"order"`
	QCRecord QCRecordResponse `json:"qc_record"`
}

// AuditEventResponse represents a history entry
type AuditEventResponse struct {
	ID         uuid.UUID      `json:"id"`
	Sequence   int64          `json:"sequence"`
	EventType  string         `json:"event_type"`
	FromState  string         `json:"from_state,omitempty"`
	ToState    string         `json:"to_state,omitempty"`
	ActorID    uuid.UUID      `json:"actor_id"`
	ActorRole  string         `json:"actor_role"`
	OccurredAt time.Time      `json:"occurred_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// HistoryResponse is the audit trail of an order with its consistency check
type HistoryResponse struct {
	OrderID       uuid.UUID                    `json:"order_id"`
	Events        []AuditEventResponse         `json:"events"`
	Path          []string                     `json:"path"`
	Consistent    bool                         `json:"consistent"`
	PathError     string                       `json:"path_error,omitempty"`
	Discrepancies []order.MilestoneDiscrepancy `json:"discrepancies"`
}

// IntentPathResponse lists the states an intent may visit
type IntentPathResponse struct {
	Intent string   `json:"intent"`
	Path   []string `json:"path"`
}

// ==================== Converters ====================

// ToOrderResponse converts a domain Order to its response DTO
func ToOrderResponse(o *order.Order) OrderResponse {
	resp := OrderResponse{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		BuyerID:        o.BuyerID,
		ManufacturerID: o.ManufacturerID,
		Intent:         string(o.Intent),
		LifecycleState: string(o.State),
		PaymentState:   string(o.PaymentState),
		ProductName:    o.ProductName,
		Fabric:         o.Fabric,
		Colour:         o.Colour,
		SizeBreakdown:  o.SizeBreakdown,
		Notes:          o.Notes,
		SampleQuantity: o.SampleQuantity,
		BulkQuantity:   o.BulkQuantity,
		UnitPrice:      o.UnitPrice,
		Currency:       o.Currency,
		TotalAmount:    o.TotalAmount,
		UpfrontAmount:  o.UpfrontAmount,
		FinalAmount:    o.FinalAmount,
		TrackingID:     o.TrackingID,
		Carrier:        o.Carrier,
		RefundReason:   o.RefundReason,
		Milestones: MilestonesDTO{
			SubmittedAt:            o.SubmittedAt,
			AdminApprovedAt:        o.AdminApprovedAt,
			ManufacturerAssignedAt: o.ManufacturerAssignedAt,
			PaymentRequestedAt:     o.PaymentRequestedAt,
			PaymentConfirmedAt:     o.PaymentConfirmedAt,
			SampleStartedAt:        o.SampleStartedAt,
			SampleQCUploadedAt:     o.SampleQCUploadedAt,
			SampleApprovedAt:       o.SampleApprovedAt,
			BulkUnlockedAt:         o.BulkUnlockedAt,
			BulkStartedAt:          o.BulkStartedAt,
			BulkQCUploadedAt:       o.BulkQCUploadedAt,
			ReadyForDispatchAt:     o.ReadyForDispatchAt,
			DispatchedAt:           o.DispatchedAt,
			DeliveredAt:            o.DeliveredAt,
			CompletedAt:            o.CompletedAt,
			PaymentHeldAt:          o.PaymentHeldAt,
			PaymentReleasableAt:    o.PaymentReleasableAt,
			PaymentReleasedAt:      o.PaymentReleasedAt,
			PaymentRefundedAt:      o.PaymentRefundedAt,
		},
		Version:   o.Version,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	if len(o.QCRecords) > 0 {
		resp.QCRecords = make([]QCRecordResponse, len(o.QCRecords))
		for i, r := range o.QCRecords {
			resp.QCRecords[i] = ToQCRecordResponse(r)
		}
	}
	return resp
}

// ToOrderListItemResponses converts domain orders to list item DTOs
func ToOrderListItemResponses(orders []*order.Order) []OrderListItemResponse {
	out := make([]OrderListItemResponse, len(orders))
	for i, o := range orders {
		out[i] = OrderListItemResponse{
			ID:             o.ID,
			OrderNumber:    o.OrderNumber,
			BuyerID:        o.BuyerID,
			ManufacturerID: o.ManufacturerID,
			Intent:         string(o.Intent),
			LifecycleState: string(o.State),
			PaymentState:   string(o.PaymentState),
			ProductName:    o.ProductName,
			TotalAmount:    o.TotalAmount,
			Currency:       o.Currency,
			CreatedAt:      o.CreatedAt,
			UpdatedAt:      o.UpdatedAt,
		}
	}
	return out
}

// ToQCRecordResponse converts a domain QCRecord to its response DTO
func ToQCRecordResponse(r *order.QCRecord) QCRecordResponse {
	resp := QCRecordResponse{
		ID:                r.ID,
		OrderID:           r.OrderID,
		Stage:             string(r.Stage),
		Round:             r.Round,
		SubmitterDecision: string(r.Decision),
		DefectType:        string(r.DefectType),
		AdminDecision:     string(r.AdminDecision),
		AdminNotes:        r.AdminNotes,
		SubmitterNotes:    r.SubmitterNotes,
		MediaRefs:         r.MediaRefs,
		SubmittedBy:       r.SubmittedBy,
		SubmittedAt:       r.SubmittedAt,
		DecidedBy:         r.DecidedBy,
		DecidedAt:         r.DecidedAt,
	}
	if resp.MediaRefs == nil {
		resp.MediaRefs = []string{}
	}
	if r.DefectSeverity > 0 {
		sev := r.DefectSeverity
		resp.DefectSeverity = &sev
	}
	return resp
}

// ToAuditEventResponses converts audit entries to response DTOs
func ToAuditEventResponses(events []order.AuditEvent) []AuditEventResponse {
	out := make([]AuditEventResponse, len(events))
	for i, e := range events {
		out[i] = AuditEventResponse{
			ID:         e.ID,
			Sequence:   e.Sequence,
			EventType:  e.EventType,
			FromState:  string(e.FromState),
			ToState:    string(e.ToState),
			ActorID:    e.ActorID,
			ActorRole:  string(e.ActorRole),
			OccurredAt: e.OccurredAt,
			Metadata:   e.Metadata,
		}
	}
	return out
}

func statesToStrings(states []order.LifecycleState) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}

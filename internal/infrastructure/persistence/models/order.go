package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/order"
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model for the Order aggregate root.
// lifecycle_state and version together form the compare-and-set key of
// every write after creation.
type OrderModel struct {
	AggregateModel
	OrderNumber    string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	BuyerID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	ManufacturerID *uuid.UUID      `gorm:"type:uuid;index"`
	Intent         string          `gorm:"type:varchar(30);not null"`
	LifecycleState string          `gorm:"column:lifecycle_state;type:varchar(40);not null;index"`
	PaymentState   string          `gorm:"type:varchar(20);not null;index"`
	ProductName    string          `gorm:"type:varchar(200)"`
	Fabric         string          `gorm:"type:varchar(200)"`
	Colour         string          `gorm:"type:varchar(100)"`
	SizeBreakdown  string          `gorm:"type:text"`
	Notes          string          `gorm:"type:text"`
	SampleQuantity int             `gorm:"not null;default:0"`
	BulkQuantity   int             `gorm:"not null;default:0"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Currency       string          `gorm:"type:varchar(3);not null;default:'INR'"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	UpfrontAmount  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	FinalAmount    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	TrackingID     string          `gorm:"type:varchar(100)"`
	Carrier        string          `gorm:"type:varchar(100)"`
	RefundReason   string          `gorm:"type:text"`
	EventSeq       int64           `gorm:"not null;default:0"`

	PaymentHeldAt       *time.Time
	PaymentReleasableAt *time.Time
	PaymentReleasedAt   *time.Time
	PaymentRefundedAt   *time.Time

	SubmittedAt            *time.Time
	AdminApprovedAt        *time.Time
	ManufacturerAssignedAt *time.Time
	PaymentRequestedAt     *time.Time
	PaymentConfirmedAt     *time.Time
	SampleStartedAt        *time.Time
	SampleQCUploadedAt     *time.Time
	SampleApprovedAt       *time.Time
	BulkUnlockedAt         *time.Time
	BulkStartedAt          *time.Time
	BulkQCUploadedAt       *time.Time
	ReadyForDispatchAt     *time.Time
	DispatchedAt           *time.Time
	DeliveredAt            *time.Time
	CompletedAt            *time.Time
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order. The result is
// marked persisted; QC records are attached by the caller.
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		BaseAggregateRoot: m.Root(),
		Details: order.Details{
			ProductName:    m.ProductName,
			Fabric:         m.Fabric,
			Colour:         m.Colour,
			SizeBreakdown:  m.SizeBreakdown,
			Notes:          m.Notes,
			SampleQuantity: m.SampleQuantity,
			BulkQuantity:   m.BulkQuantity,
			UnitPrice:      m.UnitPrice,
			Currency:       m.Currency,
		},
		Milestones: order.Milestones{
			SubmittedAt:            m.SubmittedAt,
			AdminApprovedAt:        m.AdminApprovedAt,
			ManufacturerAssignedAt: m.ManufacturerAssignedAt,
			PaymentRequestedAt:     m.PaymentRequestedAt,
			PaymentConfirmedAt:     m.PaymentConfirmedAt,
			SampleStartedAt:        m.SampleStartedAt,
			SampleQCUploadedAt:     m.SampleQCUploadedAt,
			SampleApprovedAt:       m.SampleApprovedAt,
			BulkUnlockedAt:         m.BulkUnlockedAt,
			BulkStartedAt:          m.BulkStartedAt,
			BulkQCUploadedAt:       m.BulkQCUploadedAt,
			ReadyForDispatchAt:     m.ReadyForDispatchAt,
			DispatchedAt:           m.DispatchedAt,
			DeliveredAt:            m.DeliveredAt,
			CompletedAt:            m.CompletedAt,
		},
		OrderNumber:         m.OrderNumber,
		BuyerID:             m.BuyerID,
		ManufacturerID:      m.ManufacturerID,
		Intent:              order.Intent(m.Intent),
		State:               order.LifecycleState(m.LifecycleState),
		PaymentState:        order.PaymentState(m.PaymentState),
		TotalAmount:         m.TotalAmount,
		UpfrontAmount:       m.UpfrontAmount,
		FinalAmount:         m.FinalAmount,
		TrackingID:          m.TrackingID,
		Carrier:             m.Carrier,
		RefundReason:        m.RefundReason,
		EventSeq:            m.EventSeq,
		PaymentHeldAt:       m.PaymentHeldAt,
		PaymentReleasableAt: m.PaymentReleasableAt,
		PaymentReleasedAt:   m.PaymentReleasedAt,
		PaymentRefundedAt:   m.PaymentRefundedAt,
	}
	o.MarkPersisted()
	return o
}

// FromDomain populates the persistence model from a domain Order
func (m *OrderModel) FromDomain(o *order.Order) {
	m.AggregateModel = aggregateFrom(o.BaseAggregateRoot)
	m.OrderNumber = o.OrderNumber
	m.BuyerID = o.BuyerID
	m.ManufacturerID = o.ManufacturerID
	m.Intent = string(o.Intent)
	m.LifecycleState = string(o.State)
	m.PaymentState = string(o.PaymentState)
	m.ProductName = o.ProductName
	m.Fabric = o.Fabric
	m.Colour = o.Colour
	m.SizeBreakdown = o.SizeBreakdown
	m.Notes = o.Notes
	m.SampleQuantity = o.SampleQuantity
	m.BulkQuantity = o.BulkQuantity
	m.UnitPrice = o.UnitPrice
	m.Currency = o.Currency
	m.TotalAmount = o.TotalAmount
	m.UpfrontAmount = o.UpfrontAmount
	m.FinalAmount = o.FinalAmount
	m.TrackingID = o.TrackingID
	m.Carrier = o.Carrier
	m.RefundReason = o.RefundReason
	m.EventSeq = o.EventSeq
	m.PaymentHeldAt = o.PaymentHeldAt
	m.PaymentReleasableAt = o.PaymentReleasableAt
	m.PaymentReleasedAt = o.PaymentReleasedAt
	m.PaymentRefundedAt = o.PaymentRefundedAt

	ms := o.Milestones
	m.SubmittedAt = ms.SubmittedAt
	m.AdminApprovedAt = ms.AdminApprovedAt
	m.ManufacturerAssignedAt = ms.ManufacturerAssignedAt
	m.PaymentRequestedAt = ms.PaymentRequestedAt
	m.PaymentConfirmedAt = ms.PaymentConfirmedAt
	m.SampleStartedAt = ms.SampleStartedAt
	m.SampleQCUploadedAt = ms.SampleQCUploadedAt
	m.SampleApprovedAt = ms.SampleApprovedAt
	m.BulkUnlockedAt = ms.BulkUnlockedAt
	m.BulkStartedAt = ms.BulkStartedAt
	m.BulkQCUploadedAt = ms.BulkQCUploadedAt
	m.ReadyForDispatchAt = ms.ReadyForDispatchAt
	m.DispatchedAt = ms.DispatchedAt
	m.DeliveredAt = ms.DeliveredAt
	m.CompletedAt = ms.CompletedAt
}

// UpdateColumns returns the mutable columns written by a compare-and-set
// update. Identity, buyer and creation time never change.
func (m *OrderModel) UpdateColumns() map[string]any {
	return map[string]any{
		"manufacturer_id":          m.ManufacturerID,
		"lifecycle_state":          m.LifecycleState,
		"payment_state":            m.PaymentState,
		"product_name":             m.ProductName,
		"fabric":                   m.Fabric,
		"colour":                   m.Colour,
		"size_breakdown":           m.SizeBreakdown,
		"notes":                    m.Notes,
		"sample_quantity":          m.SampleQuantity,
		"bulk_quantity":            m.BulkQuantity,
		"unit_price":               m.UnitPrice,
		"currency":                 m.Currency,
		"total_amount":             m.TotalAmount,
		"upfront_amount":           m.UpfrontAmount,
		"final_amount":             m.FinalAmount,
		"tracking_id":              m.TrackingID,
		"carrier":                  m.Carrier,
		"refund_reason":            m.RefundReason,
		"event_seq":                m.EventSeq,
		"payment_held_at":          m.PaymentHeldAt,
		"payment_releasable_at":    m.PaymentReleasableAt,
		"payment_released_at":      m.PaymentReleasedAt,
		"payment_refunded_at":      m.PaymentRefundedAt,
		"submitted_at":             m.SubmittedAt,
		"admin_approved_at":        m.AdminApprovedAt,
		"manufacturer_assigned_at": m.ManufacturerAssignedAt,
		"payment_requested_at":     m.PaymentRequestedAt,
		"payment_confirmed_at":     m.PaymentConfirmedAt,
		"sample_started_at":        m.SampleStartedAt,
		"sample_qc_uploaded_at":    m.SampleQCUploadedAt,
		"sample_approved_at":       m.SampleApprovedAt,
		"bulk_unlocked_at":         m.BulkUnlockedAt,
		"bulk_started_at":          m.BulkStartedAt,
		"bulk_qc_uploaded_at":      m.BulkQCUploadedAt,
		"ready_for_dispatch_at":    m.ReadyForDispatchAt,
		"dispatched_at":            m.DispatchedAt,
		"delivered_at":             m.DeliveredAt,
		"completed_at":             m.CompletedAt,
		"version":                  m.Version,
		"updated_at":               m.UpdatedAt,
	}
}

// QCRecordModel is the persistence model for a QC round. At most one round
// per order and stage may be pending; the migration enforces it with a
// partial unique index.
type QCRecordModel struct {
	BaseModel
	OrderID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_qc_order_stage_round,priority:1"`
	Stage          string     `gorm:"type:varchar(10);not null;uniqueIndex:idx_qc_order_stage_round,priority:2"`
	Round          int        `gorm:"not null;uniqueIndex:idx_qc_order_stage_round,priority:3"`
	Decision       string     `gorm:"type:varchar(10);not null"`
	DefectType     string     `gorm:"type:varchar(30);not null;default:'none'"`
	DefectSeverity int        `gorm:"not null;default:0"`
	AdminDecision  string     `gorm:"type:varchar(10);not null;default:'pending'"`
	AdminNotes     string     `gorm:"type:text"`
	SubmitterNotes string     `gorm:"type:text"`
	MediaRefs      string     `gorm:"type:jsonb;not null;default:'[]'"`
	SubmittedBy    uuid.UUID  `gorm:"type:uuid;not null"`
	SubmittedAt    time.Time  `gorm:"not null"`
	DecidedBy      *uuid.UUID `gorm:"type:uuid"`
	DecidedAt      *time.Time
}

// TableName returns the table name for GORM
func (QCRecordModel) TableName() string {
	return "qc_records"
}

// ToDomain converts the persistence model to a domain QCRecord
func (m *QCRecordModel) ToDomain() *order.QCRecord {
	var refs []string
	if m.MediaRefs != "" {
		_ = json.Unmarshal([]byte(m.MediaRefs), &refs)
	}
	return &order.QCRecord{
		ID:             m.ID,
		OrderID:        m.OrderID,
		Stage:          order.Stage(m.Stage),
		Round:          m.Round,
		Decision:       order.SubmitterDecision(m.Decision),
		DefectType:     order.DefectType(m.DefectType),
		DefectSeverity: m.DefectSeverity,
		AdminDecision:  order.AdminDecision(m.AdminDecision),
		AdminNotes:     m.AdminNotes,
		SubmitterNotes: m.SubmitterNotes,
		MediaRefs:      refs,
		SubmittedBy:    m.SubmittedBy,
		SubmittedAt:    m.SubmittedAt,
		DecidedBy:      m.DecidedBy,
		DecidedAt:      m.DecidedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// QCRecordModelFromDomain creates a persistence model from a domain QCRecord
func QCRecordModelFromDomain(r *order.QCRecord) (*QCRecordModel, error) {
	refs := r.MediaRefs
	if refs == nil {
		refs = []string{}
	}
	raw, err := json.Marshal(refs)
	if err != nil {
		return nil, err
	}
	return &QCRecordModel{
		BaseModel:      BaseModel{ID: r.ID, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		OrderID:        r.OrderID,
		Stage:          string(r.Stage),
		Round:          r.Round,
		Decision:       string(r.Decision),
		DefectType:     string(r.DefectType),
		DefectSeverity: r.DefectSeverity,
		AdminDecision:  string(r.AdminDecision),
		AdminNotes:     r.AdminNotes,
		SubmitterNotes: r.SubmitterNotes,
		MediaRefs:      string(raw),
		SubmittedBy:    r.SubmittedBy,
		SubmittedAt:    r.SubmittedAt,
		DecidedBy:      r.DecidedBy,
		DecidedAt:      r.DecidedAt,
	}, nil
}

// AuditEventModel is one append-only row of an order's history
type AuditEventModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_audit_order_seq,priority:1;index:idx_audit_order_time,priority:1"`
	Sequence   int64     `gorm:"not null;uniqueIndex:idx_audit_order_seq,priority:2"`
	EventType  string    `gorm:"type:varchar(50);not null"`
	FromState  string    `gorm:"type:varchar(40)"`
	ToState    string    `gorm:"type:varchar(40)"`
	ActorID    uuid.UUID `gorm:"type:uuid;not null"`
	ActorRole  string    `gorm:"type:varchar(20);not null"`
	OccurredAt time.Time `gorm:"not null;index:idx_audit_order_time,priority:2"`
	Metadata   string    `gorm:"type:jsonb;not null;default:'{}'"`
}

// TableName returns the table name for GORM
func (AuditEventModel) TableName() string {
	return "order_audit_events"
}

// ToDomain converts the persistence model to a domain AuditEvent
func (m *AuditEventModel) ToDomain() order.AuditEvent {
	meta := map[string]any{}
	if m.Metadata != "" {
		_ = json.Unmarshal([]byte(m.Metadata), &meta)
	}
	return order.AuditEvent{
		ID:         m.ID,
		OrderID:    m.OrderID,
		Sequence:   m.Sequence,
		EventType:  m.EventType,
		FromState:  order.LifecycleState(m.FromState),
		ToState:    order.LifecycleState(m.ToState),
		ActorID:    m.ActorID,
		ActorRole:  shared.Role(m.ActorRole),
		OccurredAt: m.OccurredAt,
		Metadata:   meta,
	}
}

// AuditEventModelFromDomain creates a persistence model from a domain AuditEvent
func AuditEventModelFromDomain(e *order.AuditEvent) (*AuditEventModel, error) {
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return &AuditEventModel{
		ID:         e.ID,
		OrderID:    e.OrderID,
		Sequence:   e.Sequence,
		EventType:  e.EventType,
		FromState:  string(e.FromState),
		ToState:    string(e.ToState),
		ActorID:    e.ActorID,
		ActorRole:  string(e.ActorRole),
		OccurredAt: e.OccurredAt,
		Metadata:   string(raw),
	}, nil
}

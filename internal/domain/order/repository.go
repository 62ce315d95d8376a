package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/shared"
)

// ListFilter narrows order listings. Zero values mean no restriction.
type ListFilter struct {
	shared.Filter
	BuyerID        *uuid.UUID
	ManufacturerID *uuid.UUID
	State          LifecycleState
	Intent         Intent
	PaymentState   PaymentState
}

// Repository defines the interface for order persistence
type Repository interface {
	// FindByID loads an order with its QC records
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByOrderNumber loads an order by its human-readable number
	FindByOrderNumber(ctx context.Context, orderNumber string) (*Order, error)

	// FindAll lists orders matching the filter, without QC records
	FindAll(ctx context.Context, filter ListFilter) ([]*Order, error)

	// Count counts orders matching the filter
	Count(ctx context.Context, filter ListFilter) (int64, error)

	// Create inserts a new order together with its pending audit entries and
	// domain events
	Create(ctx context.Context, o *Order) error

	// Save writes the order, its new and decided QC records, its pending audit
	// entries and domain events atomically. The order row is updated only if
	// the stored state and version still match what was loaded; otherwise
	// ErrConcurrentModification is returned and nothing is written.
	Save(ctx context.Context, o *Order) error

	// History returns the order's audit entries in canonical order
	History(ctx context.Context, orderID uuid.UUID) ([]AuditEvent, error)

	// QCRecords returns the order's QC rounds for a stage, or all stages if
	// stage is empty, ordered by stage then round
	QCRecords(ctx context.Context, orderID uuid.UUID, stage Stage) ([]QCRecord, error)

	// NextOrderNumber generates a unique order number
	NextOrderNumber(ctx context.Context) (string, error)
}

// ManufacturerDirectory resolves manufacturers for assignment
type ManufacturerDirectory interface {
	Lookup(ctx context.Context, id uuid.UUID) (ManufacturerRef, error)
}

// UploadURL is a pre-signed location a manufacturer uploads QC media to
type UploadURL struct {
	URL       string    `json:"url"`
	MediaRef  string    `json:"media_ref"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MediaStorage issues upload locations for QC media
type MediaStorage interface {
	GenerateUploadURL(ctx context.Context, orderID uuid.UUID, stage Stage, fileName, contentType string) (*UploadURL, error)
}

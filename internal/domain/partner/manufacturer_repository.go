package partner

import (
	"context"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/shared"
)

// ManufacturerRepository defines the interface for manufacturer persistence
type ManufacturerRepository interface {
	// FindByID finds a manufacturer by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Manufacturer, error)

	// FindByCode finds a manufacturer by its code
	FindByCode(ctx context.Context, code string) (*Manufacturer, error)

	// FindAll finds manufacturers matching the filter. Filters supports
	// "verified" and "active" booleans.
	FindAll(ctx context.Context, filter shared.Filter) ([]Manufacturer, error)

	// Count counts manufacturers matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// Save creates or updates a manufacturer
	Save(ctx context.Context, m *Manufacturer) error

	// ExistsByCode checks if a code is taken
	ExistsByCode(ctx context.Context, code string) (bool, error)
}

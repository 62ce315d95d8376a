package order

import (
	"context"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/order"
	"github.com/leorit/backend/internal/domain/partner"
)

// PartnerDirectory resolves manufacturers from the partner context
type PartnerDirectory struct {
	repo partner.ManufacturerRepository
}

// NewPartnerDirectory creates a ManufacturerDirectory backed by the
// manufacturer repository
func NewPartnerDirectory(repo partner.ManufacturerRepository) *PartnerDirectory {
	return &PartnerDirectory{repo: repo}
}

// Lookup returns what the lifecycle needs to know about a manufacturer
func (d *PartnerDirectory) Lookup(ctx context.Context, id uuid.UUID) (order.ManufacturerRef, error) {
	m, err := d.repo.FindByID(ctx, id)
	if err != nil {
		return order.ManufacturerRef{}, err
	}
	return order.ManufacturerRef{ID: m.ID, Verified: m.Verified, Active: m.Active}, nil
}

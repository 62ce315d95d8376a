package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormOrderStateProvider implements OrderStateProvider using GORM.
// It aggregates the orders table directly.
type GormOrderStateProvider struct {
	db *gorm.DB
}

// NewGormOrderStateProvider creates a new GormOrderStateProvider.
func NewGormOrderStateProvider(db *gorm.DB) *GormOrderStateProvider {
	return &GormOrderStateProvider{db: db}
}

// CountByState returns the number of orders per lifecycle state.
func (p *GormOrderStateProvider) CountByState(ctx context.Context) (map[string]int64, error) {
	type result struct {
		State string `gorm:"column:lifecycle_state"`
		Count int64  `gorm:"column:count"`
	}

	var results []result
	err := p.db.WithContext(ctx).
		Table("orders").
		Select("lifecycle_state, COUNT(*) as count").
		Group("lifecycle_state").
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	m := make(map[string]int64, len(results))
	for _, r := range results {
		m[r.State] = r.Count
	}
	return m, nil
}

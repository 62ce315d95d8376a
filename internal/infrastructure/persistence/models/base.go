package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/shared"
)

// BaseModel holds the id and row timestamps
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// AggregateModel adds the version column that repositories compare on save
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// Root rebuilds the embedded aggregate root. Buffered events are not stored
// and come back empty.
func (m *AggregateModel) Root() shared.BaseAggregateRoot {
	return shared.BaseAggregateRoot{
		BaseEntity: shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		Version:    m.Version,
	}
}

func aggregateFrom(a shared.BaseAggregateRoot) AggregateModel {
	return AggregateModel{
		BaseModel: BaseModel{ID: a.ID, CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt},
		Version:   a.Version,
	}
}

package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/partner"
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/leorit/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormManufacturerRepository implements partner.ManufacturerRepository using GORM
type GormManufacturerRepository struct {
	db     *gorm.DB
	outbox shared.OutboxEventSaver
}

// NewGormManufacturerRepository creates a new GormManufacturerRepository
func NewGormManufacturerRepository(db *gorm.DB, outbox shared.OutboxEventSaver) *GormManufacturerRepository {
	return &GormManufacturerRepository{db: db, outbox: outbox}
}

// FindByID finds a manufacturer by its ID
func (r *GormManufacturerRepository) FindByID(ctx context.Context, id uuid.UUID) (*partner.Manufacturer, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByCode finds a manufacturer by its code
func (r *GormManufacturerRepository) FindByCode(ctx context.Context, code string) (*partner.Manufacturer, error) {
	return r.findOne(ctx, "code = ?", strings.ToUpper(strings.TrimSpace(code)))
}

func (r *GormManufacturerRepository) findOne(ctx context.Context, query string, arg any) (*partner.Manufacturer, error) {
	var model models.ManufacturerModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds manufacturers matching the filter
func (r *GormManufacturerRepository) FindAll(ctx context.Context, filter shared.Filter) ([]partner.Manufacturer, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.ManufacturerModel{}), filter)

	query = query.Order(orderClause(filter.OrderBy, filter.OrderDir, ManufacturerSortFields))
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.ManufacturerModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]partner.Manufacturer, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, nil
}

// Count counts manufacturers matching the filter
func (r *GormManufacturerRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	err := r.applyFilter(r.db.WithContext(ctx).Model(&models.ManufacturerModel{}), filter).Count(&count).Error
	return count, err
}

func (r *GormManufacturerRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + strings.ToLower(s) + "%"
		query = query.Where("LOWER(code) LIKE ? OR LOWER(name) LIKE ? OR LOWER(city) LIKE ?", pattern, pattern, pattern)
	}
	for key, value := range filter.Filters {
		switch key {
		case "verified", "active":
			if b, ok := value.(bool); ok {
				query = query.Where(key+" = ?", b)
			}
		case "city":
			query = query.Where("LOWER(city) = ?", strings.ToLower(fmt.Sprint(value)))
		}
	}
	return query
}

// Save creates or updates a manufacturer. Updates are guarded by version.
func (r *GormManufacturerRepository) Save(ctx context.Context, mf *partner.Manufacturer) error {
	model, err := models.ManufacturerModelFromDomain(mf)
	if err != nil {
		return fmt.Errorf("encode manufacturer: %w", err)
	}
	expectedVersion := mf.Version
	inserted := false

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.ManufacturerModel{}).
			Where("id = ? AND version = ?", mf.ID, expectedVersion).
			Updates(map[string]any{
				"name":         model.Name,
				"email":        model.Email,
				"phone":        model.Phone,
				"city":         model.City,
				"capabilities": model.Capabilities,
				"verified":     model.Verified,
				"verified_at":  model.VerifiedAt,
				"active":       model.Active,
				"version":      expectedVersion + 1,
				"updated_at":   model.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var exists int64
			if err := tx.Model(&models.ManufacturerModel{}).Where("id = ?", mf.ID).Count(&exists).Error; err != nil {
				return err
			}
			if exists > 0 {
				return shared.ErrConcurrentModification
			}
			if err := tx.Create(model).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return shared.NewDomainError(shared.CodeAlreadyExists,
						fmt.Sprintf("Manufacturer code %s is already taken", mf.Code))
				}
				return err
			}
			inserted = true
		}

		if r.outbox != nil {
			if events := mf.PendingEvents(); len(events) > 0 {
				return r.outbox.SaveEvents(ctx, tx, events...)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !inserted {
		mf.Version = expectedVersion + 1
	}
	mf.ClearEvents()
	return nil
}

// ExistsByCode checks if a code is taken
func (r *GormManufacturerRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ManufacturerModel{}).
		Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

var _ partner.ManufacturerRepository = (*GormManufacturerRepository)(nil)

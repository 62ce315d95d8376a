package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/order"
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/leorit/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

const orderNumberPrefix = "ORD"

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db     *gorm.DB
	outbox shared.OutboxEventSaver
}

// NewGormOrderRepository creates a new GormOrderRepository. Domain events
// are written through outbox in the same transaction as the order; a nil
// outbox drops them.
func NewGormOrderRepository(db *gorm.DB, outbox shared.OutboxEventSaver) *GormOrderRepository {
	return &GormOrderRepository{db: db, outbox: outbox}
}

// FindByID loads an order with its QC records
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByOrderNumber loads an order by its human-readable number
func (r *GormOrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*order.Order, error) {
	return r.findOne(ctx, "order_number = ?", orderNumber)
}

func (r *GormOrderRepository) findOne(ctx context.Context, query string, arg any) (*order.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	o := model.ToDomain()
	records, err := r.QCRecords(ctx, o.ID, "")
	if err != nil {
		return nil, err
	}
	o.QCRecords = make([]*order.QCRecord, len(records))
	for i := range records {
		o.QCRecords[i] = &records[i]
	}
	return o, nil
}

// FindAll lists orders matching the filter, without QC records
func (r *GormOrderRepository) FindAll(ctx context.Context, filter order.ListFilter) ([]*order.Order, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.OrderModel{}), filter)

	query = query.Order(orderClause(filter.OrderBy, filter.OrderDir, OrderSortFields))
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.OrderModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	orders := make([]*order.Order, len(rows))
	for i := range rows {
		orders[i] = rows[i].ToDomain()
	}
	return orders, nil
}

// Count counts orders matching the filter
func (r *GormOrderRepository) Count(ctx context.Context, filter order.ListFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.db.WithContext(ctx).Model(&models.OrderModel{}), filter).Count(&count).Error
	return count, err
}

func (r *GormOrderRepository) applyFilter(query *gorm.DB, filter order.ListFilter) *gorm.DB {
	if filter.BuyerID != nil {
		query = query.Where("buyer_id = ?", *filter.BuyerID)
	}
	if filter.ManufacturerID != nil {
		query = query.Where("manufacturer_id = ?", *filter.ManufacturerID)
	}
	if filter.State != "" {
		query = query.Where("lifecycle_state = ?", string(filter.State))
	}
	if filter.Intent != "" {
		query = query.Where("intent = ?", string(filter.Intent))
	}
	if filter.PaymentState != "" {
		query = query.Where("payment_state = ?", string(filter.PaymentState))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + strings.ToLower(s) + "%"
		query = query.Where("LOWER(order_number) LIKE ? OR LOWER(product_name) LIKE ?", pattern, pattern)
	}
	return query
}

// Create inserts a new order together with its pending audit entries and
// domain events
func (r *GormOrderRepository) Create(ctx context.Context, o *order.Order) error {
	var model models.OrderModel
	model.FromDomain(o)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.NewDomainError(shared.CodeAlreadyExists,
					fmt.Sprintf("Order %s already exists", o.OrderNumber))
			}
			return err
		}
		return r.writeChildren(ctx, tx, o)
	})
	if err != nil {
		return err
	}
	o.MarkPersisted()
	return nil
}

// Save writes the order with a compare-and-set on the lifecycle state and
// version it was loaded with. Child rows and outbox entries are written in
// the same transaction, so a lost race leaves no trace.
func (r *GormOrderRepository) Save(ctx context.Context, o *order.Order) error {
	if o.IsNew() {
		return r.Create(ctx, o)
	}

	expectedVersion := o.Version
	var model models.OrderModel
	model.FromDomain(o)
	model.Version = expectedVersion + 1

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.OrderModel{}).
			Where("id = ? AND lifecycle_state = ? AND version = ?", o.ID, string(o.PersistedState()), expectedVersion).
			Updates(model.UpdateColumns())
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrentModification
		}

		for _, rec := range o.DecidedQCRecords() {
			if err := r.decideQCRecord(tx, rec); err != nil {
				return err
			}
		}
		return r.writeChildren(ctx, tx, o)
	})
	if err != nil {
		return err
	}

	o.Version = expectedVersion + 1
	o.MarkPersisted()
	return nil
}

// writeChildren inserts new QC rounds, audit entries and outbox entries
func (r *GormOrderRepository) writeChildren(ctx context.Context, tx *gorm.DB, o *order.Order) error {
	for _, rec := range o.NewQCRecords() {
		row, err := models.QCRecordModelFromDomain(rec)
		if err != nil {
			return fmt.Errorf("encode qc record: %w", err)
		}
		if err := tx.Create(row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.ErrDuplicateOpenRound
			}
			return err
		}
	}

	if pending := o.PendingAuditEvents(); len(pending) > 0 {
		rows := make([]*models.AuditEventModel, 0, len(pending))
		for _, e := range pending {
			row, err := models.AuditEventModelFromDomain(e)
			if err != nil {
				return fmt.Errorf("encode audit event: %w", err)
			}
			rows = append(rows, row)
		}
		if err := tx.Create(rows).Error; err != nil {
			return err
		}
	}

	if r.outbox != nil {
		if events := o.PendingEvents(); len(events) > 0 {
			if err := r.outbox.SaveEvents(ctx, tx, events...); err != nil {
				return fmt.Errorf("write outbox: %w", err)
			}
		}
	}
	return nil
}

// decideQCRecord finalizes a round only while it is still pending
func (r *GormOrderRepository) decideQCRecord(tx *gorm.DB, rec *order.QCRecord) error {
	result := tx.Model(&models.QCRecordModel{}).
		Where("id = ? AND admin_decision = ?", rec.ID, string(order.AdminPending)).
		Updates(map[string]any{
			"admin_decision":  string(rec.AdminDecision),
			"admin_notes":     rec.AdminNotes,
			"defect_type":     string(rec.DefectType),
			"defect_severity": rec.DefectSeverity,
			"decided_by":      rec.DecidedBy,
			"decided_at":      rec.DecidedAt,
			"updated_at":      rec.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrAlreadyDecided
	}
	return nil
}

// History returns the order's audit entries in canonical order
func (r *GormOrderRepository) History(ctx context.Context, orderID uuid.UUID) ([]order.AuditEvent, error) {
	var rows []models.AuditEventModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("occurred_at ASC, sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	events := make([]order.AuditEvent, len(rows))
	for i := range rows {
		events[i] = rows[i].ToDomain()
	}
	return events, nil
}

// QCRecords returns the order's QC rounds for a stage, or all stages if
// stage is empty
func (r *GormOrderRepository) QCRecords(ctx context.Context, orderID uuid.UUID, stage order.Stage) ([]order.QCRecord, error) {
	query := r.db.WithContext(ctx).Where("order_id = ?", orderID)
	if stage != "" {
		query = query.Where("stage = ?", string(stage))
	}

	var rows []models.QCRecordModel
	// "bulk" sorts before "sample"; production order is sample first.
	if err := query.Order("CASE stage WHEN 'sample' THEN 0 ELSE 1 END, round ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]order.QCRecord, len(rows))
	for i := range rows {
		records[i] = *rows[i].ToDomain()
	}
	return records, nil
}

// NextOrderNumber returns the next free number of the form
// ORD-YYYYMMDD-NNNN for today's date
func (r *GormOrderRepository) NextOrderNumber(ctx context.Context) (string, error) {
	prefix := fmt.Sprintf("%s-%s-", orderNumberPrefix, time.Now().UTC().Format("20060102"))

	var last []string
	err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("order_number LIKE ?", prefix+"%").
		Order("order_number DESC").
		Limit(1).
		Pluck("order_number", &last).Error
	if err != nil {
		return "", err
	}

	next := 1
	if len(last) > 0 {
		var n int
		if _, err := fmt.Sscanf(strings.TrimPrefix(last[0], prefix), "%d", &n); err == nil {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, next), nil
}

var _ order.Repository = (*GormOrderRepository)(nil)

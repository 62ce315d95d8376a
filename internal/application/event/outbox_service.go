package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Error codes specific to outbox administration
const (
	CodeOutboxInternal      = "OUTBOX_INTERNAL_ERROR"
	CodeOutboxInvalidStatus = "OUTBOX_INVALID_STATUS"
)

const requeueBatch = 100

// OutboxService lets admins see which lifecycle notifications were never
// delivered and send them again
type OutboxService struct {
	repo   shared.OutboxRepository
	logger *zap.Logger
}

// NewOutboxService creates a new outbox service
func NewOutboxService(repo shared.OutboxRepository, logger *zap.Logger) *OutboxService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxService{repo: repo, logger: logger}
}

// OutboxEntryDTO is an outbox entry as shown to admins, without its payload
type OutboxEntryDTO struct {
	ID            uuid.UUID  `json:"id"`
	EventID       uuid.UUID  `json:"event_id"`
	EventType     string     `json:"event_type"`
	AggregateID   uuid.UUID  `json:"aggregate_id"`
	AggregateType string     `json:"aggregate_type"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
	LastError     string     `json:"last_error,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// DeadLetterFilter narrows dead entries to one order or manufacturer and
// one event type
type DeadLetterFilter struct {
	AggregateID string `form:"aggregate_id" binding:"omitempty,uuid"`
	EventType   string `form:"event_type" binding:"omitempty,max=100"`
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

func (f DeadLetterFilter) query() shared.DeadLetterQuery {
	page := shared.NewFilter(f.Page, f.PageSize, "", "")
	q := shared.DeadLetterQuery{EventType: f.EventType, Page: page.Page, PageSize: page.PageSize}
	if id, err := uuid.Parse(f.AggregateID); err == nil {
		q.AggregateID = id
	}
	return q
}

// OutboxStatsDTO counts entries per status
type OutboxStatsDTO struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

// ListDead returns matching dead entries, most recently failed first
func (s *OutboxService) ListDead(ctx context.Context, filter DeadLetterFilter) (*shared.Paginated[OutboxEntryDTO], error) {
	q := filter.query()
	entries, total, err := s.repo.FindDead(ctx, q)
	if err != nil {
		return nil, s.internal("List dead outbox entries failed", err)
	}
	items := make([]OutboxEntryDTO, 0, len(entries))
	for _, e := range entries {
		items = append(items, toOutboxEntryDTO(e))
	}
	page := shared.NewPaginated(items, total, q.Page, q.PageSize)
	return &page, nil
}

// GetEntry returns a single outbox entry
func (s *OutboxService) GetEntry(ctx context.Context, id uuid.UUID) (*OutboxEntryDTO, error) {
	entry, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toOutboxEntryDTO(entry)
	return &dto, nil
}

// RetryDeadEntry hands one dead entry back to the relay
func (s *OutboxService) RetryDeadEntry(ctx context.Context, id uuid.UUID) (*OutboxEntryDTO, error) {
	entry, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := entry.ResetForRetry(); err != nil {
		return nil, shared.NewDomainError(CodeOutboxInvalidStatus, err.Error())
	}
	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, s.internal("Requeue outbox entry failed", err, zap.Stringer("id", id))
	}
	s.logger.Info("Outbox entry requeued",
		zap.Stringer("id", id),
		zap.String("event_type", entry.EventType),
		zap.Stringer("aggregate_id", entry.AggregateID),
	)
	dto := toOutboxEntryDTO(entry)
	return &dto, nil
}

// RequeueDead hands every dead entry matching filter back to the relay and
// returns how many were requeued. Paging fields are ignored.
func (s *OutboxService) RequeueDead(ctx context.Context, filter DeadLetterFilter) (int64, error) {
	q := filter.query()
	q.Page, q.PageSize = 1, requeueBatch

	var requeued int64
	for {
		// Requeued entries leave the dead set, so page one is always the next batch.
		entries, _, err := s.repo.FindDead(ctx, q)
		if err != nil {
			return requeued, s.internal("List dead outbox entries failed", err)
		}
		n := s.requeue(ctx, entries)
		requeued += int64(n)
		if n == 0 || len(entries) < q.PageSize {
			break
		}
	}
	s.logger.Info("Dead outbox entries requeued",
		zap.Int64("count", requeued),
		zap.String("aggregate_id", filter.AggregateID),
		zap.String("event_type", filter.EventType),
	)
	return requeued, nil
}

func (s *OutboxService) requeue(ctx context.Context, entries []*shared.OutboxEntry) int {
	n := 0
	for _, entry := range entries {
		if entry.ResetForRetry() != nil {
			continue
		}
		if err := s.repo.Update(ctx, entry); err != nil {
			s.logger.Error("Requeue outbox entry failed", zap.Stringer("id", entry.ID), zap.Error(err))
			continue
		}
		n++
	}
	return n
}

// GetStats counts entries per status
func (s *OutboxService) GetStats(ctx context.Context) (*OutboxStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, s.internal("Count outbox entries failed", err)
	}
	var stats OutboxStatsDTO
	for status, n := range counts {
		stats.Total += n
		switch status {
		case shared.OutboxStatusPending:
			stats.Pending = n
		case shared.OutboxStatusProcessing:
			stats.Processing = n
		case shared.OutboxStatusSent:
			stats.Sent = n
		case shared.OutboxStatusFailed:
			stats.Failed = n
		case shared.OutboxStatusDead:
			stats.Dead = n
		}
	}
	return &stats, nil
}

func (s *OutboxService) find(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.internal("Find outbox entry failed", err, zap.Stringer("id", id))
	}
	if entry == nil {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Outbox entry not found")
	}
	return entry, nil
}

// internal logs err and returns the error shown to callers
func (s *OutboxService) internal(msg string, err error, fields ...zap.Field) error {
	s.logger.Error(msg, append(fields, zap.Error(err))...)
	return shared.NewDomainError(CodeOutboxInternal, msg)
}

func toOutboxEntryDTO(e *shared.OutboxEntry) OutboxEntryDTO {
	return OutboxEntryDTO{
		ID:            e.ID,
		EventID:       e.EventID,
		EventType:     e.EventType,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		Status:        string(e.Status),
		RetryCount:    e.RetryCount,
		MaxRetries:    e.MaxRetries,
		LastError:     e.LastError,
		NextRetryAt:   e.NextRetryAt,
		ProcessedAt:   e.ProcessedAt,
		CreatedAt:     e.CreatedAt,
	}
}

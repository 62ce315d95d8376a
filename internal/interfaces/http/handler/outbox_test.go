package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	eventapp "github.com/leorit/backend/internal/application/event"
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// killPending drives up to n pending entries through their retry budget
func (e *apiEnv) killPending(n int) []*shared.OutboxEntry {
	e.t.Helper()
	ctx := context.Background()
	entries, err := e.outbox.FindPending(ctx, n)
	require.NoError(e.t, err)
	for _, entry := range entries {
		for !entry.IsDead() {
			entry.MarkFailed("kafka: broker unavailable", time.Now())
		}
		require.NoError(e.t, e.outbox.Update(ctx, entry))
	}
	return entries
}

func TestOutboxHandler_Stats(t *testing.T) {
	env := newAPIEnv(t)
	env.verifiedManufacturer("STAT01")

	var stats eventapp.OutboxStatsDTO
	env.ok(env.do(env.admin, http.MethodGet, "/api/v1/admin/outbox/stats", nil), &stats)
	assert.Positive(t, stats.Pending)
	assert.Equal(t, stats.Pending, stats.Total)
	assert.Zero(t, stats.Dead)
}

func TestOutboxHandler_DeadEntries(t *testing.T) {
	env := newAPIEnv(t)
	env.verifiedManufacturer("DEAD01")
	env.verifiedManufacturer("DEAD02")
	dead := env.killPending(3)
	require.Len(t, dead, 3)

	var listed []eventapp.OutboxEntryDTO
	env.ok(env.do(env.admin, http.MethodGet, "/api/v1/admin/outbox/dead?page_size=10", nil), &listed)
	require.Len(t, listed, 3)
	assert.Equal(t, "DEAD", listed[0].Status)
	assert.Equal(t, "kafka: broker unavailable", listed[0].LastError)

	entryPath := "/api/v1/admin/outbox/" + dead[0].ID.String()
	var entry eventapp.OutboxEntryDTO
	env.ok(env.do(env.admin, http.MethodGet, entryPath, nil), &entry)
	assert.Equal(t, dead[0].EventType, entry.EventType)

	env.ok(env.do(env.admin, http.MethodPost, entryPath+"/retry", nil), &entry)
	assert.Equal(t, "PENDING", entry.Status)
	assert.Zero(t, entry.RetryCount)

	env.fail(env.do(env.admin, http.MethodPost, entryPath+"/retry", nil),
		http.StatusUnprocessableEntity, eventapp.CodeOutboxInvalidStatus)

	var listed2 []eventapp.OutboxEntryDTO
	aggregate := dead[1].AggregateID.String()
	env.ok(env.do(env.admin, http.MethodGet, "/api/v1/admin/outbox/dead?aggregate_id="+aggregate, nil), &listed2)
	require.NotEmpty(t, listed2)
	for _, e := range listed2 {
		assert.Equal(t, dead[1].AggregateID, e.AggregateID)
	}

	var retried RetryAllResponse
	env.ok(env.do(env.admin, http.MethodPost, "/api/v1/admin/outbox/dead/retry-all?aggregate_id="+aggregate, nil), &retried)
	assert.Equal(t, int64(len(listed2)), retried.Count)

	env.ok(env.do(env.admin, http.MethodPost, "/api/v1/admin/outbox/dead/retry-all", nil), &retried)
	assert.Equal(t, int64(2)-int64(len(listed2)), retried.Count)

	var stats eventapp.OutboxStatsDTO
	env.ok(env.do(env.admin, http.MethodGet, "/api/v1/admin/outbox/stats", nil), &stats)
	assert.Zero(t, stats.Dead)
}

func TestOutboxHandler_Errors(t *testing.T) {
	env := newAPIEnv(t)

	env.fail(env.do(env.admin, http.MethodGet, "/api/v1/admin/outbox/"+uuid.NewString(), nil),
		http.StatusNotFound, shared.CodeNotFound)
	env.fail(env.do(env.admin, http.MethodPost, "/api/v1/admin/outbox/nope/retry", nil),
		http.StatusBadRequest, "ERR_BAD_REQUEST")
	env.fail(env.do(env.admin, http.MethodGet, "/api/v1/admin/outbox/dead?aggregate_id=order-7", nil),
		http.StatusBadRequest, "ERR_VALIDATION")
}

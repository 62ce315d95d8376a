package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/leorit/backend/internal/application/event"
)

// OutboxHandler serves the admin view of undelivered lifecycle notifications
type OutboxHandler struct {
	BaseHandler
	svc *event.OutboxService
}

// NewOutboxHandler creates a new outbox handler
func NewOutboxHandler(svc *event.OutboxService) *OutboxHandler {
	return &OutboxHandler{svc: svc}
}

// RetryAllResponse reports how many dead entries were requeued
type RetryAllResponse struct {
	Count int64 `json:"count"`
}

// ListDead godoc
// @Summary      List dead letter entries
// @Tags         outbox
// @Produce      json
// @Param        aggregate_id query string false "Order or manufacturer ID" format(uuid)
// @Param        event_type query string false "Event type"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]event.OutboxEntryDTO]
// @Failure      403 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/outbox/dead [get]
func (h *OutboxHandler) ListDead(c *gin.Context) {
	var filter event.DeadLetterFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	page, err := h.svc.ListDead(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// GetEntry godoc
// @Summary      Get an outbox entry
// @Tags         outbox
// @Produce      json
// @Param        id path string true "Outbox entry ID" format(uuid)
// @Success      200 {object} APIResponse[event.OutboxEntryDTO]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/outbox/{id} [get]
func (h *OutboxHandler) GetEntry(c *gin.Context) {
	if id, ok := h.pathUUID(c, "id", "entry ID"); ok {
		entry, err := h.svc.GetEntry(c.Request.Context(), id)
		h.reply(c, http.StatusOK, entry, err)
	}
}

// RetryDeadEntry godoc
// @Summary      Requeue a dead letter entry
// @Tags         outbox
// @Produce      json
// @Param        id path string true "Outbox entry ID" format(uuid)
// @Success      200 {object} APIResponse[event.OutboxEntryDTO]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/outbox/{id}/retry [post]
func (h *OutboxHandler) RetryDeadEntry(c *gin.Context) {
	if id, ok := h.pathUUID(c, "id", "entry ID"); ok {
		entry, err := h.svc.RetryDeadEntry(c.Request.Context(), id)
		h.reply(c, http.StatusOK, entry, err)
	}
}

// RetryAllDeadEntries godoc
// @Summary      Requeue dead letter entries, optionally for one aggregate or event type
// @Tags         outbox
// @Produce      json
// @Param        aggregate_id query string false "Order or manufacturer ID" format(uuid)
// @Param        event_type query string false "Event type"
// @Success      200 {object} APIResponse[RetryAllResponse]
// @Security     BearerAuth
// @Router       /admin/outbox/dead/retry-all [post]
func (h *OutboxHandler) RetryAllDeadEntries(c *gin.Context) {
	var filter event.DeadLetterFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	n, err := h.svc.RequeueDead(c.Request.Context(), filter)
	h.reply(c, http.StatusOK, RetryAllResponse{Count: n}, err)
}

// GetStats godoc
// @Summary      Outbox entry counts per status
// @Tags         outbox
// @Produce      json
// @Success      200 {object} APIResponse[event.OutboxStatsDTO]
// @Security     BearerAuth
// @Router       /admin/outbox/stats [get]
func (h *OutboxHandler) GetStats(c *gin.Context) {
	stats, err := h.svc.GetStats(c.Request.Context())
	h.reply(c, http.StatusOK, stats, err)
}

package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	orderapp "github.com/leorit/backend/internal/application/order"
	"github.com/leorit/backend/internal/domain/shared"
)

// OrderHandler handles order lifecycle API endpoints
type OrderHandler struct {
	BaseHandler
	orderService *orderapp.OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService *orderapp.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

type transitionFunc func(ctx context.Context, actor shared.Actor, id uuid.UUID) (*orderapp.OrderResponse, error)

// transition runs a body-less lifecycle operation against the order in the path
func (h *OrderHandler) transition(c *gin.Context, fn transitionFunc) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id", "order ID")
	if !ok {
		return
	}

	resp, err := fn(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Create godoc
// @Summary      Create a draft order
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        request body orderapp.CreateOrderRequest true "Order creation request"
// @Success      201 {object} APIResponse[orderapp.OrderResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders [post]
func (h *OrderHandler) Create(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req orderapp.CreateOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.orderService.CreateOrder(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// UpdateDraft godoc
// @Summary      Update the descriptive fields of a draft order
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Param        request body orderapp.UpdateDraftRequest true "Draft fields"
// @Success      200 {object} APIResponse[orderapp.OrderResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id} [put]
func (h *OrderHandler) UpdateDraft(c *gin.Context) {
	var req orderapp.UpdateDraftRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, actor shared.Actor, id uuid.UUID) (*orderapp.OrderResponse, error) {
		return h.orderService.UpdateDraft(ctx, actor, id, req)
	})
}

// List godoc
// @Summary      List orders visible to the caller
// @Tags         orders
// @Produce      json
// @Param        state query string false "Lifecycle state"
// @Param        intent query string false "Order intent"
// @Param        payment_state query string false "Payment state"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]orderapp.OrderListItemResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req orderapp.ListOrdersRequest
	if !h.bindQuery(c, &req) {
		return
	}

	page, err := h.orderService.ListOrders(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// GetByID godoc
// @Summary      Get an order with its QC rounds
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} APIResponse[orderapp.OrderResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id} [get]
func (h *OrderHandler) GetByID(c *gin.Context) {
	h.transition(c, h.orderService.GetOrder)
}

// GetByOrderNumber godoc
// @Summary      Get an order by its human-readable number
// @Tags         orders
// @Produce      json
// @Param        number path string true "Order number"
// @Success      200 {object} APIResponse[orderapp.OrderResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/by-number/{number} [get]
func (h *OrderHandler) GetByOrderNumber(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	number := c.Param("number")
	if number == "" {
		h.BadRequest(c, "Order number is required")
		return
	}

	resp, err := h.orderService.GetOrderByNumber(c.Request.Context(), actor, number)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// History godoc
// @Summary      Audit history of an order with milestone reconciliation
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} APIResponse[orderapp.HistoryResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/history [get]
func (h *OrderHandler) History(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id", "order ID")
	if !ok {
		return
	}

	resp, err := h.orderService.History(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ListQCRecords godoc
// @Summary      List QC rounds of an order
// @Tags         qc
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Param        stage query string false "sample or bulk"
// @Success      200 {object} APIResponse[[]orderapp.QCRecordResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/qc [get]
func (h *OrderHandler) ListQCRecords(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id", "order ID")
	if !ok {
		return
	}

	records, err := h.orderService.ListQCRecords(c.Request.Context(), actor, id, c.Query("stage"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, records)
}

// AllowedPath godoc
// @Summary      States an order intent may visit, in order
// @Tags         orders
// @Produce      json
// @Param        intent path string true "sample_only, sample_then_bulk or direct_bulk"
// @Success      200 {object} APIResponse[orderapp.IntentPathResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/intents/{intent}/path [get]
func (h *OrderHandler) AllowedPath(c *gin.Context) {
	resp, err := h.orderService.AllowedPath(c.Param("intent"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Submit godoc
// @Summary      Submit a draft for admin review
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} APIResponse[orderapp.OrderResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/submit [post]
func (h *OrderHandler) Submit(c *gin.Context) {
	h.transition(c, h.orderService.Submit)
}

// Approve godoc
// @Summary      Admin approval of a submitted order
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} APIResponse[orderapp.OrderResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/approve [post]
func (h *OrderHandler) Approve(c *gin.Context) {
	h.transition(c, h.orderService.Approve)
}

// AssignManufacturer godoc
// @Summary      Assign or reassign a manufacturer
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Param        request body orderapp.AssignManufacturerRequest true "Manufacturer"
// @Success      200 {object} APIResponse[orderapp.OrderResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/assign [post]
func (h *OrderHandler) AssignManufacturer(c *gin.Context) {
	var req orderapp.AssignManufacturerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, actor shared.Actor, id uuid.UUID) (*orderapp.OrderResponse, error) {
		return h.orderService.AssignManufacturer(ctx, actor, id, req)
	})
}

// DeclineAssignment godoc
// @Summary      Manufacturer declines an assignment
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Param        request body orderapp.DeclineAssignmentRequest false "Reason"
// @Success      200 {object} APIResponse[orderapp.OrderResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/decline [post]
func (h *OrderHandler) DeclineAssignment(c *gin.Context) {
	var req orderapp.DeclineAssignmentRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, actor shared.Actor, id uuid.UUID) (*orderapp.OrderResponse, error) {
		return h.orderService.DeclineAssignment(ctx, actor, id, req)
	})
}

// RequestPayment godoc
// @Summary      Request upfront payment from the buyer
// @Tags         payments
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} APIResponse[orderapp.OrderResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/payment/request [post]
func (h *OrderHandler) RequestPayment(c *gin.Context) {
	h.transition(c, h.orderService.RequestPayment)
}

// ConfirmPayment godoc
// @Summary      Confirm the upfront payment is held in escrow
// @Tags         payments
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} APIResponse[orderapp.OrderResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/payment/confirm [post]
func (h *OrderHandler) ConfirmPayment(c *gin.Context) {
	h.transition(c, h.orderService.ConfirmPayment)
}

// MarkPaymentReleasable godoc
// @Summary      Mark held funds as releasable
// @Tags         payments
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} APIResponse[orderapp.OrderResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/payment/releasable [post]
func (h *OrderHandler) MarkPaymentReleasable(c *gin.Context) {
	h.transition(c, h.orderService.MarkPaymentReleasable)
}

// ReleaseFinalPayment godoc
// @Summary      Release escrow and complete a delivered order
// @Tags         payments
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} APIResponse[orderapp.OrderResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/payment/release [post]
func (h *OrderHandler) ReleaseFinalPayment(c *gin.Context) {
	h.transition(c, h.orderService.ReleaseFinalPayment)
}

// RefundPayment godoc
// @Summary      Refund held funds and halt the order
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Param        request body orderapp.RefundRequest true "Refund reason"
// @Success      200 {object} APIResponse[orderapp.OrderResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/payment/refund [post]
func (h *OrderHandler) RefundPayment(c *gin.Context) {
	var req orderapp.RefundRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, actor shared.Actor, id uuid.UUID) (*orderapp.OrderResponse, error) {
		return h.orderService.RefundPayment(ctx, actor, id, req)
	})
}

// StartProduction godoc
// @Summary      Manufacturer starts sample or direct bulk production
// @Tags         production
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} APIResponse[orderapp.OrderResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/production/start [post]
func (h *OrderHandler) StartProduction(c *gin.Context) {
	h.transition(c, h.orderService.StartProduction)
}

// UnlockBulk godoc
// @Summary      Unlock bulk production after sample approval
// @Tags         production
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} APIResponse[orderapp.OrderResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/bulk/unlock [post]
func (h *OrderHandler) UnlockBulk(c *gin.Context) {
	h.transition(c, h.orderService.UnlockBulk)
}

// StartBulk godoc
// @Summary      Manufacturer starts bulk production
// @Tags         production
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} APIResponse[orderapp.OrderResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/bulk/start [post]
func (h *OrderHandler) StartBulk(c *gin.Context) {
	h.transition(c, h.orderService.StartBulk)
}

// CreateQCUploadURL godoc
// @Summary      Pre-signed upload location for QC media
// @Tags         qc
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Param        request body orderapp.QCUploadURLRequest true "File description"
// @Success      201 {object} APIResponse[order.UploadURL]
// @Failure      403 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/qc/upload-url [post]
func (h *OrderHandler) CreateQCUploadURL(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id", "order ID")
	if !ok {
		return
	}
	var req orderapp.QCUploadURLRequest
	if !h.bindJSON(c, &req) {
		return
	}

	url, err := h.orderService.CreateQCUploadURL(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, url)
}

// UploadQC godoc
// @Summary      Manufacturer opens a QC round
// @Tags         qc
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Param        request body orderapp.UploadQCRequest true "QC submission"
// @Success      201 {object} APIResponse[orderapp.QCResultResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/qc [post]
func (h *OrderHandler) UploadQC(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id", "order ID")
	if !ok {
		return
	}
	var req orderapp.UploadQCRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.orderService.UploadQC(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// DecideQC godoc
// @Summary      Admin decision on a QC round
// @Tags         qc
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Param        qcId path string true "QC record ID" format(uuid)
// @Param        request body orderapp.DecideQCRequest true "Decision"
// @Success      200 {object} APIResponse[orderapp.QCResultResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/qc/{qcId}/decision [post]
func (h *OrderHandler) DecideQC(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id", "order ID")
	if !ok {
		return
	}
	qcID, ok := h.pathUUID(c, "qcId", "QC record ID")
	if !ok {
		return
	}
	var req orderapp.DecideQCRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.orderService.DecideQC(c.Request.Context(), actor, id, qcID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Dispatch godoc
// @Summary      Pack and dispatch the order
// @Tags         fulfilment
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Param        request body orderapp.DispatchRequest true "Shipment"
// @Success      200 {object} APIResponse[orderapp.OrderResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/dispatch [post]
func (h *OrderHandler) Dispatch(c *gin.Context) {
	var req orderapp.DispatchRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, actor shared.Actor, id uuid.UUID) (*orderapp.OrderResponse, error) {
		return h.orderService.Dispatch(ctx, actor, id, req)
	})
}

// ConfirmDelivery godoc
// @Summary      Confirm delivery to the buyer
// @Tags         fulfilment
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} APIResponse[orderapp.OrderResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/delivery [post]
func (h *OrderHandler) ConfirmDelivery(c *gin.Context) {
	h.transition(c, h.orderService.ConfirmDelivery)
}

package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	partnerapp "github.com/leorit/backend/internal/application/partner"
)

// ManufacturerHandler handles manufacturer directory endpoints. Write
// routes are guarded by RequirePermission in the router.
type ManufacturerHandler struct {
	BaseHandler
	manufacturerService *partnerapp.ManufacturerService
}

// NewManufacturerHandler creates a new ManufacturerHandler
func NewManufacturerHandler(manufacturerService *partnerapp.ManufacturerService) *ManufacturerHandler {
	return &ManufacturerHandler{
		manufacturerService: manufacturerService,
	}
}

// Create godoc
// @Summary      Register a manufacturer
// @Tags         manufacturers
// @Accept       json
// @Produce      json
// @Param        request body partnerapp.CreateManufacturerRequest true "Manufacturer"
// @Success      201 {object} APIResponse[partnerapp.ManufacturerResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /manufacturers [post]
func (h *ManufacturerHandler) Create(c *gin.Context) {
	var req partnerapp.CreateManufacturerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.manufacturerService.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// List godoc
// @Summary      List manufacturers
// @Tags         manufacturers
// @Produce      json
// @Param        search query string false "Code or name"
// @Param        verified query bool false "Verified only"
// @Param        active query bool false "Active only"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]partnerapp.ManufacturerResponse]
// @Security     BearerAuth
// @Router       /manufacturers [get]
func (h *ManufacturerHandler) List(c *gin.Context) {
	var filter partnerapp.ManufacturerListFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	page, err := h.manufacturerService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// GetByID godoc
// @Summary      Get a manufacturer
// @Tags         manufacturers
// @Produce      json
// @Param        id path string true "Manufacturer ID" format(uuid)
// @Success      200 {object} APIResponse[partnerapp.ManufacturerResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /manufacturers/{id} [get]
func (h *ManufacturerHandler) GetByID(c *gin.Context) {
	h.byID(c, h.manufacturerService.GetByID)
}

// Update godoc
// @Summary      Update a manufacturer profile
// @Tags         manufacturers
// @Accept       json
// @Produce      json
// @Param        id path string true "Manufacturer ID" format(uuid)
// @Param        request body partnerapp.UpdateManufacturerRequest true "Profile fields"
// @Success      200 {object} APIResponse[partnerapp.ManufacturerResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /manufacturers/{id} [put]
func (h *ManufacturerHandler) Update(c *gin.Context) {
	var req partnerapp.UpdateManufacturerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.byID(c, func(ctx context.Context, id uuid.UUID) (*partnerapp.ManufacturerResponse, error) {
		return h.manufacturerService.Update(ctx, id, req)
	})
}

// Verify godoc
// @Summary      Mark a manufacturer as verified
// @Tags         manufacturers
// @Produce      json
// @Param        id path string true "Manufacturer ID" format(uuid)
// @Success      200 {object} APIResponse[partnerapp.ManufacturerResponse]
// @Security     BearerAuth
// @Router       /manufacturers/{id}/verify [post]
func (h *ManufacturerHandler) Verify(c *gin.Context) {
	h.byID(c, h.manufacturerService.Verify)
}

// Activate godoc
// @Summary      Re-activate a manufacturer
// @Tags         manufacturers
// @Produce      json
// @Param        id path string true "Manufacturer ID" format(uuid)
// @Success      200 {object} APIResponse[partnerapp.ManufacturerResponse]
// @Security     BearerAuth
// @Router       /manufacturers/{id}/activate [post]
func (h *ManufacturerHandler) Activate(c *gin.Context) {
	h.byID(c, h.manufacturerService.Activate)
}

// Deactivate godoc
// @Summary      Deactivate a manufacturer; it can no longer be assigned
// @Tags         manufacturers
// @Produce      json
// @Param        id path string true "Manufacturer ID" format(uuid)
// @Success      200 {object} APIResponse[partnerapp.ManufacturerResponse]
// @Security     BearerAuth
// @Router       /manufacturers/{id}/deactivate [post]
func (h *ManufacturerHandler) Deactivate(c *gin.Context) {
	h.byID(c, h.manufacturerService.Deactivate)
}

func (h *ManufacturerHandler) byID(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) (*partnerapp.ManufacturerResponse, error)) {
	id, ok := h.pathUUID(c, "id", "manufacturer ID")
	if !ok {
		return
	}
	resp, err := fn(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

package partner

import (
	"time"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/partner"
)

// =============================================================================
// Manufacturer DTOs
// =============================================================================

// CreateManufacturerRequest represents a request to register a manufacturer
type CreateManufacturerRequest struct {
	Code         string   `json:"code" binding:"required,min=2,max=50"`
	Name         string   `json:"name" binding:"required,min=1,max=200"`
	Email        string   `json:"email" binding:"omitempty,email,max=200"`
	Phone        string   `json:"phone" binding:"max=50"`
	City         string   `json:"city" binding:"max=100"`
	Capabilities []string `json:"capabilities" binding:"max=30,dive,max=50"`
}

// UpdateManufacturerRequest represents a profile update. Nil fields are
// left unchanged.
type UpdateManufacturerRequest struct {
	Name         *string  `json:"name" binding:"omitempty,min=1,max=200"`
	Email        *string  `json:"email" binding:"omitempty,email,max=200"`
	Phone        *string  `json:"phone" binding:"omitempty,max=50"`
	City         *string  `json:"city" binding:"omitempty,max=100"`
	Capabilities []string `json:"capabilities" binding:"omitempty,max=30,dive,max=50"`
}

// ManufacturerListFilter represents filter options for listing manufacturers
type ManufacturerListFilter struct {
	Search   string `form:"search" binding:"max=100"`
	Verified *bool  `form:"verified"`
	Active   *bool  `form:"active"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by" binding:"omitempty,oneof=code name created_at updated_at"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ManufacturerResponse represents a manufacturer in API responses
type ManufacturerResponse struct {
	ID           uuid.UUID  `json:"id"`
	Code         string     `json:"code"`
	Name         string     `json:"name"`
	Email        string     `json:"email,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	City         string     `json:"city,omitempty"`
	Capabilities []string   `json:"capabilities"`
	Verified     bool       `json:"verified"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
	Active       bool       `json:"active"`
	Assignable   bool       `json:"assignable"`
	Version      int        `json:"version"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ToManufacturerResponse converts a domain Manufacturer to its response DTO
func ToManufacturerResponse(m *partner.Manufacturer) ManufacturerResponse {
	caps := m.Capabilities
	if caps == nil {
		caps = []string{}
	}
	return ManufacturerResponse{
		ID:           m.ID,
		Code:         m.Code,
		Name:         m.Name,
		Email:        m.Email,
		Phone:        m.Phone,
		City:         m.City,
		Capabilities: caps,
		Verified:     m.Verified,
		VerifiedAt:   m.VerifiedAt,
		Active:       m.Active,
		Assignable:   m.IsAssignable(),
		Version:      m.Version,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// ToManufacturerResponses converts a slice of manufacturers
func ToManufacturerResponses(ms []partner.Manufacturer) []ManufacturerResponse {
	out := make([]ManufacturerResponse, len(ms))
	for i := range ms {
		out[i] = ToManufacturerResponse(&ms[i])
	}
	return out
}

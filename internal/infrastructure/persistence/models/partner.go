package models

import (
	"encoding/json"
	"time"

	"github.com/leorit/backend/internal/domain/partner"
)

// ManufacturerModel is the persistence model for the Manufacturer aggregate
type ManufacturerModel struct {
	AggregateModel
	Code         string `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name         string `gorm:"type:varchar(200);not null"`
	Email        string `gorm:"type:varchar(200)"`
	Phone        string `gorm:"type:varchar(50)"`
	City         string `gorm:"type:varchar(100)"`
	Capabilities string `gorm:"type:jsonb;not null;default:'[]'"`
	Verified     bool   `gorm:"not null;default:false;index:idx_manufacturer_assignable,priority:1"`
	VerifiedAt   *time.Time
	Active       bool `gorm:"not null;index:idx_manufacturer_assignable,priority:2"`
}

// TableName returns the table name for GORM
func (ManufacturerModel) TableName() string {
	return "manufacturers"
}

// ToDomain converts the persistence model to a domain Manufacturer
func (m *ManufacturerModel) ToDomain() *partner.Manufacturer {
	var caps []string
	if m.Capabilities != "" {
		_ = json.Unmarshal([]byte(m.Capabilities), &caps)
	}
	return &partner.Manufacturer{
		BaseAggregateRoot: m.Root(),
		Code:         m.Code,
		Name:         m.Name,
		Email:        m.Email,
		Phone:        m.Phone,
		City:         m.City,
		Capabilities: caps,
		Verified:     m.Verified,
		VerifiedAt:   m.VerifiedAt,
		Active:       m.Active,
	}
}

// ManufacturerModelFromDomain creates a persistence model from a domain Manufacturer
func ManufacturerModelFromDomain(mf *partner.Manufacturer) (*ManufacturerModel, error) {
	caps := mf.Capabilities
	if caps == nil {
		caps = []string{}
	}
	raw, err := json.Marshal(caps)
	if err != nil {
		return nil, err
	}
	return &ManufacturerModel{
		AggregateModel: aggregateFrom(mf.BaseAggregateRoot),
		Code:           mf.Code,
		Name:           mf.Name,
		Email:          mf.Email,
		Phone:          mf.Phone,
		City:           mf.City,
		Capabilities:   string(raw),
		Verified:       mf.Verified,
		VerifiedAt:     mf.VerifiedAt,
		Active:         mf.Active,
	}, nil
}

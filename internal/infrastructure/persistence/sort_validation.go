package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes dir to ASC or DESC, defaulting to DESC
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField when it is whitelisted, otherwise
// defaultField. Column names are interpolated into ORDER BY, so nothing
// outside the whitelist may pass.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// orderClause builds an ORDER BY clause with an id tiebreaker so paging is
// stable when the sort column repeats
func orderClause(field, dir string, allowed map[string]bool) string {
	return ValidateSortField(field, allowed, "created_at") + " " + ValidateSortOrder(dir) + ", id"
}

// OrderSortFields contains allowed sort fields for orders
var OrderSortFields = map[string]bool{
	"id":              true,
	"created_at":      true,
	"updated_at":      true,
	"order_number":    true,
	"lifecycle_state": true,
	"payment_state":   true,
	"total_amount":    true,
	"submitted_at":    true,
	"dispatched_at":   true,
}

// ManufacturerSortFields contains allowed sort fields for manufacturers
var ManufacturerSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"updated_at":  true,
	"code":        true,
	"name":        true,
	"city":        true,
	"verified_at": true,
}

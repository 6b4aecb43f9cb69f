package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed
// fields. Returns the defaultField if the input is empty or not in the
// whitelist; caller-supplied field names never reach the SQL verbatim.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// ItemSortFields contains allowed sort fields for ledger rows
var ItemSortFields = map[string]bool{
	"id":              true,
	"created_at":      true,
	"updated_at":      true,
	"variant_id":      true,
	"location_id":     true,
	"on_hand":         true,
	"reserved":        true,
	"safety_stock":    true,
	"unit_cost":       true,
	"last_counted_at": true,
}

// MovementSortFields contains allowed sort fields for stock movements
var MovementSortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"variant_id":     true,
	"location_id":    true,
	"type":           true,
	"quantity_delta": true,
	"reference":      true,
	"actor":          true,
}

// TransferSortFields contains allowed sort fields for transfers
var TransferSortFields = map[string]bool{
	"id":               true,
	"created_at":       true,
	"updated_at":       true,
	"variant_id":       true,
	"from_location_id": true,
	"to_location_id":   true,
	"quantity":         true,
	"status":           true,
	"completed_at":     true,
	"cancelled_at":     true,
}

package inventory

import (
	"fmt"

	"github.com/google/uuid"
)

// InsufficientInventoryError is returned when a mutation would drive a
// ledger row's counters out of their invariant range: on-hand below zero
// or reserved above on-hand.
type InsufficientInventoryError struct {
	VariantID  uuid.UUID
	LocationID uuid.UUID
	Requested  int64
	Available  int64
}

// Error implements the error interface
func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory for variant %s at location %s: requested %d, available %d",
		e.VariantID, e.LocationID, e.Requested, e.Available)
}

// NewInsufficientInventoryError creates an insufficient inventory error
func NewInsufficientInventoryError(variantID, locationID uuid.UUID, requested, available int64) *InsufficientInventoryError {
	return &InsufficientInventoryError{
		VariantID:  variantID,
		LocationID: locationID,
		Requested:  requested,
		Available:  available,
	}
}

// InvalidTransferError is returned when a transfer request is malformed,
// such as identical source and destination locations or a non-positive
// quantity.
type InvalidTransferError struct {
	Reason string
}

// Error implements the error interface
func (e *InvalidTransferError) Error() string {
	return "invalid transfer: " + e.Reason
}

// NewInvalidTransferError creates an invalid transfer error
func NewInvalidTransferError(reason string) *InvalidTransferError {
	return &InvalidTransferError{Reason: reason}
}

// InvalidStateTransitionError is returned when a lifecycle operation is
// attempted on a reservation or transfer that is not in a state allowing it.
type InvalidStateTransitionError struct {
	Entity string
	From   string
	To     string
}

// Error implements the error interface
func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("%s cannot transition from %s to %s", e.Entity, e.From, e.To)
}

// NewInvalidStateTransitionError creates an invalid state transition error
func NewInvalidStateTransitionError(entity, from, to string) *InvalidStateTransitionError {
	return &InvalidStateTransitionError{Entity: entity, From: from, To: to}
}

// ValidationError is returned when an input fails structural validation
// before any state is touched.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

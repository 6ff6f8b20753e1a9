/*
errors.go - Invoice lifecycle error taxonomy

PURPOSE:
  Every pre-mutation check failure maps to one of these. All checks run
  before anything is written, so a returned error always means "nothing
  changed". Once the mutation pass has begun, failures roll back through
  the store transaction instead of surfacing partial state.
*/
package invoice

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvoiceNotFound is returned for unknown invoice IDs.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrValidation covers missing required fields and invalid enum values.
	ErrValidation = errors.New("validation failed")

	// ErrEditNotAllowed is returned for purchase monetary edits and any
	// edit of a return invoice.
	ErrEditNotAllowed = errors.New("edit not allowed")

	// ErrDeleteNotAllowed is returned for return invoices and invoices
	// that have returns against them.
	ErrDeleteNotAllowed = errors.New("delete not allowed")

	// ErrReturnQuantityExceeded is returned when a return asks for more
	// than the remaining returnable quantity of any line.
	ErrReturnQuantityExceeded = errors.New("return quantity exceeds returnable")

	// ErrOverpayment is returned when a payment exceeds the outstanding amount.
	ErrOverpayment = errors.New("payment exceeds outstanding amount")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type EditNotAllowedError struct {
	InvoiceID string
	Reason    string
}

func (e *EditNotAllowedError) Error() string {
	return fmt.Sprintf("invoice %s cannot be edited: %s", e.InvoiceID, e.Reason)
}

func (e *EditNotAllowedError) Unwrap() error { return ErrEditNotAllowed }

type ReturnQuantityError struct {
	ItemID     string
	Name       string
	Requested  decimal.Decimal
	Returnable decimal.Decimal
}

func (e *ReturnQuantityError) Error() string {
	return fmt.Sprintf("return of %q exceeds returnable quantity: requested %s, returnable %s",
		e.Name, e.Requested.String(), e.Returnable.String())
}

func (e *ReturnQuantityError) Unwrap() error { return ErrReturnQuantityExceeded }

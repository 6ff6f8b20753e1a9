package inventory

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrItemNotFound is returned when an invoice line references an
	// unknown inventory item. Raised before any mutation.
	ErrItemNotFound = errors.New("inventory item not found")

	// ErrInsufficientStock blocks sales creation/edit when on-hand
	// quantity cannot cover the requested amount.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInsufficientStockToReverse blocks purchase deletion when the
	// purchased quantity has since been sold down.
	ErrInsufficientStockToReverse = errors.New("insufficient stock to reverse purchase")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

type ItemNotFoundError struct {
	ItemID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("inventory item %q not found", e.ItemID)
}

func (e *ItemNotFoundError) Unwrap() error { return ErrItemNotFound }

type InsufficientStockError struct {
	ItemID    string
	Name      string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: available %s, requested %s",
		e.Name, e.Available.String(), e.Requested.String())
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

type StockReversalError struct {
	ItemID   string
	Name     string
	OnHand   decimal.Decimal
	Required decimal.Decimal
}

func (e *StockReversalError) Error() string {
	return fmt.Sprintf("cannot reverse purchase of %q: on hand %s, required %s",
		e.Name, e.OnHand.String(), e.Required.String())
}

func (e *StockReversalError) Unwrap() error { return ErrInsufficientStockToReverse }

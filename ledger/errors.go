/*
errors.go - Ledger error types

PURPOSE:
  Sentinel errors for errors.Is checks plus structured errors carrying
  posting context. An unbalanced entry is an internal invariant violation:
  callers should treat it as fatal and log it, never coerce it.
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnbalancedEntry is returned when an entry's debits do not equal
	// its credits. This indicates a bug in the posting code, not bad input.
	ErrUnbalancedEntry = errors.New("unbalanced journal entry")

	// ErrInvalidLine is returned when a line has both or neither of
	// debit/credit set.
	ErrInvalidLine = errors.New("journal line must carry exactly one of debit or credit")

	// ErrNegativeLine is returned when a line carries a negative amount.
	ErrNegativeLine = errors.New("journal line amounts must be non-negative")

	// ErrEmptyEntry is returned when an entry has no lines.
	ErrEmptyEntry = errors.New("journal entry has no lines")

	// ErrAccountNotFound is returned when a line references an unknown account.
	ErrAccountNotFound = errors.New("account not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// UnbalancedEntryError carries the totals that failed to balance.
type UnbalancedEntryError struct {
	Reference string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("entry %q unbalanced: debits %s != credits %s",
		e.Reference, e.Debit.StringFixed(3), e.Credit.StringFixed(3))
}

func (e *UnbalancedEntryError) Unwrap() error { return ErrUnbalancedEntry }

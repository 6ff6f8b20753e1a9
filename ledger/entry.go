/*
entry.go - Journal entries, lines and idempotency keys

PURPOSE:
  A journal entry is a balanced set of debit/credit lines recording one
  business event. Entries are immutable once posted; corrections are made
  by posting a reversal entry, never by editing in place.

CRITICAL INVARIANTS:
  1. BALANCED: sum(debits) == sum(credits) for every entry
  2. ONE-SIDED LINES: each line carries exactly one of debit or credit
  3. IMMUTABLE: entries are append-only, reversals negate them

IDEMPOTENCY KEYS:
  Payment and balance-deduction postings are guarded against double
  application. The guard key is structured (operation + invoice + attempt)
  rather than encoded into the reference string, but the reference is still
  carried for the audit trail and for reversal matching.

SEE ALSO:
  - ledger.go: Post, PostGuarded, Reverse
  - errors.go: UnbalancedEntryError
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENTRY TYPES
// =============================================================================

type EntryType string

const (
	EntryNormal   EntryType = "normal"
	EntryPayment  EntryType = "payment"
	EntryReversal EntryType = "reversal"
)

// =============================================================================
// IDEMPOTENCY KEY - Structured duplicate-posting guard
// =============================================================================

type Operation string

const (
	OpInvoice          Operation = "invoice"
	OpPayment          Operation = "payment"
	OpBalanceDeduction Operation = "balance-deduction"
	OpReturn           Operation = "return"
	OpReversal         Operation = "reversal"
	OpVoucher          Operation = "voucher"
)

// IdempotencyKey identifies one attempt of one operation against one
// invoice. Two postings with the same key are the same business event;
// the second is skipped unless the first has since been reversed.
type IdempotencyKey struct {
	Operation Operation
	InvoiceID string
	Attempt   int
}

func (k IdempotencyKey) IsZero() bool {
	return k.Operation == "" && k.InvoiceID == "" && k.Attempt == 0
}

// String renders the canonical storage form of the key.
func (k IdempotencyKey) String() string {
	return fmt.Sprintf("%s:%s:%d", k.Operation, k.InvoiceID, k.Attempt)
}

// =============================================================================
// JOURNAL LINE
// =============================================================================

// Line is one side of a double entry. Exactly one of Debit/Credit is
// nonzero; both fields exist for symmetry in serialized form.
type Line struct {
	AccountID   string
	AccountName string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// Swapped returns the line with debit and credit exchanged.
// Used when building reversal entries.
func (l Line) Swapped() Line {
	return Line{
		AccountID:   l.AccountID,
		AccountName: l.AccountName,
		Debit:       l.Credit,
		Credit:      l.Debit,
	}
}

// =============================================================================
// JOURNAL ENTRY
// =============================================================================

type Entry struct {
	Seq            int64
	ID             string
	Date           time.Time
	Description    string
	Reference      string
	Type           EntryType
	Lines          []Line
	IdempotencyKey IdempotencyKey
	CreatedAt      time.Time
}

func (e Entry) TotalDebit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Debit)
	}
	return total
}

func (e Entry) TotalCredit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Credit)
	}
	return total
}

// Validate enforces the balanced-entry and one-sided-line invariants.
func (e Entry) Validate() error {
	if len(e.Lines) == 0 {
		return fmt.Errorf("entry %q: %w", e.Reference, ErrEmptyEntry)
	}
	for i, l := range e.Lines {
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return fmt.Errorf("entry %q line %d: %w", e.Reference, i, ErrNegativeLine)
		}
		if l.Debit.IsZero() == l.Credit.IsZero() {
			return fmt.Errorf("entry %q line %d: %w", e.Reference, i, ErrInvalidLine)
		}
	}
	debit, credit := e.TotalDebit(), e.TotalCredit()
	if !debit.Equal(credit) {
		return &UnbalancedEntryError{Reference: e.Reference, Debit: debit, Credit: credit}
	}
	return nil
}

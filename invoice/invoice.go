/*
invoice.go - Invoice model, totals math and payment state

PURPOSE:
  Defines the invoice aggregate shared by sales and purchase flows.
  A return is itself an invoice of the same type as its original, linked
  through OriginalInvoiceID, and can never be deleted.

TOTALS INVARIANTS:
  item.Total    == max(0, quantity*(unitPrice+colorPrice) - discountAmount)
  inv.Subtotal  == sum(item.Total)
  inv.Total     == Subtotal - DiscountAmount + VATAmount

MONEY:
  All amounts are decimal with 3 fractional digits (KWD-style currency).

SEE ALSO:
  - manager.go: lifecycle orchestration
  - returns.go: return processing
*/
package invoice

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMS
// =============================================================================

type Type string

const (
	TypeSales    Type = "sales"
	TypePurchase Type = "purchase"
)

func (t Type) Valid() bool { return t == TypeSales || t == TypePurchase }

type PaymentStatus string

const (
	StatusPaid    PaymentStatus = "paid"
	StatusPartial PaymentStatus = "partial"
	StatusPending PaymentStatus = "pending"
	StatusOverdue PaymentStatus = "overdue"
	StatusNA      PaymentStatus = "n/a"
)

type DiscountType string

const (
	DiscountFlat    DiscountType = "amount"
	DiscountPercent DiscountType = "percentage"
)

// State tracks the return lifecycle of a posted invoice.
type State string

const (
	StatePosted            State = "posted"
	StatePartiallyReturned State = "partially_returned"
	StateFullyReturned     State = "fully_returned"
)

// =============================================================================
// LINE ITEM
// =============================================================================

type Item struct {
	ItemID string
	Name   string

	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	// ColorPrice is an additive per-unit surcharge.
	ColorPrice   decimal.Decimal
	Discount     decimal.Decimal
	DiscountType DiscountType
	Total        decimal.Decimal

	// ExpiryDate optionally accompanies purchase lines.
	ExpiryDate *time.Time
}

// gross returns quantity * (unitPrice + colorPrice), unrounded.
func (it Item) gross() decimal.Decimal {
	return it.Quantity.Mul(it.UnitPrice.Add(it.ColorPrice))
}

// DiscountValue resolves the line discount to an absolute amount.
func (it Item) DiscountValue() decimal.Decimal {
	if it.DiscountType == DiscountPercent {
		return roundMoney(it.gross().Mul(it.Discount).Div(decimal.NewFromInt(100)))
	}
	return it.Discount
}

// ComputeTotal returns the line total, floored at zero.
func (it Item) ComputeTotal() decimal.Decimal {
	total := it.gross().Sub(it.DiscountValue())
	if total.IsNegative() {
		return decimal.Zero
	}
	return roundMoney(total)
}

// =============================================================================
// INVOICE
// =============================================================================

type Invoice struct {
	ID     string
	Number string
	Type   Type

	PartyID string
	Items   []Item

	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	DiscountType   DiscountType
	DiscountAmount decimal.Decimal
	VATRate        decimal.Decimal
	VATAmount      decimal.Decimal
	Total          decimal.Decimal

	// PaidAmount includes cash payments and balance deductions.
	PaidAmount       decimal.Decimal
	BalanceDeduction decimal.Decimal
	PaymentStatus    PaymentStatus

	Date    time.Time
	DueDate time.Time

	IsReturn          bool
	OriginalInvoiceID string

	State    State
	Revision int
	Notes    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Outstanding returns the unpaid remainder, floored at zero.
func (inv Invoice) Outstanding() decimal.Decimal {
	out := inv.Total.Sub(inv.PaidAmount)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// EffectiveStatus derives overdue from the due date at read time; the
// stored status is never rewritten by the clock.
func (inv Invoice) EffectiveStatus(now time.Time) PaymentStatus {
	if inv.IsReturn {
		return StatusNA
	}
	if inv.PaymentStatus == StatusPending || inv.PaymentStatus == StatusPartial {
		if !inv.DueDate.IsZero() && dateOnly(inv.DueDate).Before(dateOnly(now)) {
			return StatusOverdue
		}
	}
	return inv.PaymentStatus
}

// =============================================================================
// TOTALS
// =============================================================================

// computeTotals fills Subtotal, DiscountAmount, VATAmount and Total from
// the items and header-level discount/VAT settings.
func computeTotals(inv *Invoice) {
	subtotal := decimal.Zero
	for i := range inv.Items {
		inv.Items[i].Total = inv.Items[i].ComputeTotal()
		subtotal = subtotal.Add(inv.Items[i].Total)
	}
	inv.Subtotal = subtotal

	if inv.DiscountType == DiscountPercent {
		inv.DiscountAmount = roundMoney(subtotal.Mul(inv.Discount).Div(decimal.NewFromInt(100)))
	} else {
		inv.DiscountAmount = inv.Discount
	}

	taxable := subtotal.Sub(inv.DiscountAmount)
	inv.VATAmount = roundMoney(taxable.Mul(inv.VATRate).Div(decimal.NewFromInt(100)))
	inv.Total = roundMoney(taxable.Add(inv.VATAmount))
}

func roundMoney(d decimal.Decimal) decimal.Decimal { return d.Round(3) }

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

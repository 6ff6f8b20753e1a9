/*
Package alerts derives notification sets from current ledger state.

PURPOSE:
  Pure read-only projections: overdue invoices, invoices due soon, items
  below their minimum stock level, and stock close to expiry. No function
  here mutates anything, so they are safe to call on every render or poll.
*/
package alerts

import (
	"time"

	"github.com/MinaMohsen466/accounting-engine/inventory"
	"github.com/MinaMohsen466/accounting-engine/invoice"
)

// DefaultExpiryWindowDays is how far ahead expiring stock is flagged.
const DefaultExpiryWindowDays = 30

// =============================================================================
// INVOICE ALERTS
// =============================================================================

// Overdue returns invoices whose due date has passed without full payment.
func Overdue(invoices []invoice.Invoice, now time.Time) []invoice.Invoice {
	var out []invoice.Invoice
	today := dateOnly(now)
	for _, inv := range invoices {
		if inv.IsReturn || inv.PaymentStatus == invoice.StatusPaid || inv.DueDate.IsZero() {
			continue
		}
		if dateOnly(inv.DueDate).Before(today) {
			out = append(out, inv)
		}
	}
	return out
}

// DueSoon returns unpaid invoices due within the next n days (inclusive).
func DueSoon(invoices []invoice.Invoice, now time.Time, n int) []invoice.Invoice {
	var out []invoice.Invoice
	today := dateOnly(now)
	limit := today.AddDate(0, 0, n)
	for _, inv := range invoices {
		if inv.IsReturn || inv.PaymentStatus == invoice.StatusPaid || inv.DueDate.IsZero() {
			continue
		}
		due := dateOnly(inv.DueDate)
		if !due.Before(today) && !due.After(limit) {
			out = append(out, inv)
		}
	}
	return out
}

// =============================================================================
// INVENTORY ALERTS
// =============================================================================

// LowStock returns items below their minimum stock level.
func LowStock(items []inventory.Item) []inventory.Item {
	var out []inventory.Item
	for _, it := range items {
		if it.LowStock() {
			out = append(out, it)
		}
	}
	return out
}

// Expiring returns items whose expiry date falls within the next n days
// (inclusive). Already-expired stock is not "expiring"; it is past help.
func Expiring(items []inventory.Item, now time.Time, n int) []inventory.Item {
	var out []inventory.Item
	today := dateOnly(now)
	limit := today.AddDate(0, 0, n)
	for _, it := range items {
		if it.ExpiryDate == nil {
			continue
		}
		exp := dateOnly(*it.ExpiryDate)
		if !exp.Before(today) && !exp.After(limit) {
			out = append(out, it)
		}
	}
	return out
}

// =============================================================================
// SUMMARY
// =============================================================================

type Summary struct {
	Overdue  []invoice.Invoice
	DueSoon  []invoice.Invoice
	LowStock []inventory.Item
	Expiring []inventory.Item
}

// Derive computes every alert set in one pass-friendly call.
func Derive(invoices []invoice.Invoice, items []inventory.Item, now time.Time, dueSoonDays int) Summary {
	return Summary{
		Overdue:  Overdue(invoices, now),
		DueSoon:  DueSoon(invoices, now, dueSoonDays),
		LowStock: LowStock(items),
		Expiring: Expiring(items, now, DefaultExpiryWindowDays),
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

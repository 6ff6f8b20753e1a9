/*
Package balance derives a counterparty's effective balance.

PURPOSE:
  The stored counterparty balance is the opening balance only. The
  effective balance adds the unpaid remainder of every invoice linked to
  the party, with returns carrying negative weight:

    total = opening + sum(total - paid over non-return invoices)
                    - sum(total - paid over return invoices)

CRITICAL INVARIANT - NO VOUCHER TERM:
  Vouchers without an invoice link already mutated the opening balance
  when they were applied. Summing them again here would double count.
  There is deliberately no voucher term in this calculation; do not "fix"
  that by adding one.

SIGN CONVENTION:
  The engine always returns a signed number in "they owe us / we owe
  them" units (positive = debit, they owe us). For suppliers the
  presentation layer flips the label, not the number: a supplier total of
  +100 is displayed as credit owed to them.
*/
package balance

import (
	"github.com/shopspring/decimal"

	"github.com/MinaMohsen466/accounting-engine/invoice"
	"github.com/MinaMohsen466/accounting-engine/party"
)

// =============================================================================
// CALCULATION
// =============================================================================

// Total returns the party's effective balance: opening plus unpaid
// invoice deltas, returns subtracting.
func Total(p party.Counterparty, invoices []invoice.Invoice) decimal.Decimal {
	total := p.OpeningBalance
	for _, inv := range invoices {
		if inv.PartyID != p.ID {
			continue
		}
		if inv.IsReturn {
			total = total.Sub(inv.Outstanding())
		} else {
			total = total.Add(inv.Outstanding())
		}
	}
	return total
}

// =============================================================================
// STATEMENT - Display-ready breakdown
// =============================================================================

type Statement struct {
	PartyID string
	Name    string
	Role    party.Role

	Opening     decimal.Decimal
	Outstanding decimal.Decimal // unpaid invoice deltas, returns netted
	Total       decimal.Decimal

	// Amount is the magnitude shown to the user; Label carries the
	// flipped supplier convention.
	Amount decimal.Decimal
	Label  string
}

// ForParty builds the display breakdown for one counterparty.
func ForParty(p party.Counterparty, invoices []invoice.Invoice) Statement {
	total := Total(p, invoices)
	st := Statement{
		PartyID:     p.ID,
		Name:        p.Name,
		Role:        p.Role,
		Opening:     p.OpeningBalance,
		Outstanding: total.Sub(p.OpeningBalance),
		Total:       total,
		Amount:      total.Abs(),
	}
	st.Label = label(p.Role, total)
	return st
}

// label implements the supplier flip: internally positive always means
// "they owe us"; suppliers are reported from their side.
func label(role party.Role, total decimal.Decimal) string {
	debit := !total.IsNegative()
	if role == party.RoleSupplier {
		debit = !debit
	}
	if total.IsZero() {
		return "settled"
	}
	if debit {
		return "debit"
	}
	return "credit"
}

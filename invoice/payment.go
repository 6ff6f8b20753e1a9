/*
payment.go - Payment recording and voucher application

PURPOSE:
  Money arriving after invoice creation flows through here: direct
  payments against an invoice, and vouchers. A voucher either targets one
  invoice (pays it down) or, with no invoice, mutates the counterparty's
  opening balance. The two paths are mutually exclusive - the same amount
  must never travel both, or it would be counted twice when the effective
  balance is derived.

DUPLICATE GUARD:
  Every payment posting carries a structured idempotency key whose
  attempt number counts prior payment entries for the invoice, so a
  retried request lands on an existing key and is skipped.
*/
package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MinaMohsen466/accounting-engine/ledger"
	"github.com/MinaMohsen466/accounting-engine/party"
)

// =============================================================================
// DIRECT PAYMENT
// =============================================================================

// RecordPayment applies a cash payment against an invoice's outstanding
// amount and posts the guarded payment entry.
func (m *Manager) RecordPayment(ctx context.Context, invoiceID string, amount decimal.Decimal, date time.Time) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var updated Invoice
	err := m.Store.WithTx(ctx, func(s Store) error {
		inv, err := m.recordPaymentTx(ctx, s, invoiceID, amount, date)
		if err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	m.notify("invoices")
	return updated, nil
}

// recordPaymentTx is the tx-scoped body shared with voucher application.
func (m *Manager) recordPaymentTx(ctx context.Context, s Store, invoiceID string, amount decimal.Decimal, date time.Time) (Invoice, error) {
	inv, err := m.requireInvoice(ctx, s, invoiceID)
	if err != nil {
		return Invoice{}, err
	}
	if inv.IsReturn {
		return Invoice{}, &ValidationError{Field: "invoice", Reason: "returns do not accept payments"}
	}
	if !amount.IsPositive() {
		return Invoice{}, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if amount.GreaterThan(inv.Outstanding()) {
		return Invoice{}, fmt.Errorf("invoice %s: outstanding %s, payment %s: %w",
			inv.Number, inv.Outstanding().StringFixed(3), amount.StringFixed(3), ErrOverpayment)
	}

	attempt, err := m.nextPaymentAttempt(ctx, s, inv.Number)
	if err != nil {
		return Invoice{}, err
	}

	led := m.ledger(s)
	var e ledger.Entry
	if inv.Type == TypeSales {
		e = m.entry(inv, "Payment for "+inv.Number, "PAY-"+inv.Number, ledger.EntryPayment, attempt, ledger.OpPayment,
			line(ledger.AccountBank, "Bank", amount, decimal.Zero),
			line(ledger.AccountReceivable, "Accounts Receivable", decimal.Zero, amount),
		)
	} else {
		e = m.entry(inv, "Payment for "+inv.Number, "PAY-"+inv.Number, ledger.EntryPayment, attempt, ledger.OpPayment,
			line(ledger.AccountPayable, "Accounts Payable", amount, decimal.Zero),
			line(ledger.AccountBank, "Bank", decimal.Zero, amount),
		)
	}
	if !date.IsZero() {
		e.Date = date
	}
	if _, _, err := led.PostGuarded(ctx, e); err != nil {
		return Invoice{}, err
	}

	inv.PaidAmount = inv.PaidAmount.Add(amount)
	if inv.Outstanding().IsZero() {
		inv.PaymentStatus = StatusPaid
	} else {
		inv.PaymentStatus = StatusPartial
	}
	inv.UpdatedAt = m.now()
	if err := s.UpdateInvoice(ctx, *inv); err != nil {
		return Invoice{}, err
	}

	m.Log.Info().Str("invoice", inv.Number).Str("amount", amount.StringFixed(3)).
		Msg("payment recorded")
	return *inv, nil
}

// nextPaymentAttempt counts prior payment postings (reversed or not) so
// each genuine payment gets a fresh idempotency key while a retry of the
// same request is deduplicated upstream by the caller's key.
func (m *Manager) nextPaymentAttempt(ctx context.Context, s Store, number string) (int, error) {
	entries, err := s.EntriesByReference(ctx, "PAY-"+number)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, e := range entries {
		if e.Type == ledger.EntryPayment {
			count++
		}
	}
	return count + 1, nil
}

// =============================================================================
// VOUCHERS
// =============================================================================

// ApplyVoucher routes a voucher down exactly one of the two paths:
// invoice-linked (pays the invoice) or unlinked (mutates the opening
// balance and posts through the clearing account).
func (m *Manager) ApplyVoucher(ctx context.Context, v party.Voucher) (party.Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := v.Validate(); err != nil {
		return party.Voucher{}, err
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Date.IsZero() {
		v.Date = m.now()
	}

	err := m.Store.WithTx(ctx, func(s Store) error {
		p, err := s.Party(ctx, v.PartyID)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("party %q: %w", v.PartyID, party.ErrPartyNotFound)
		}

		if v.InvoiceID != "" {
			inv, err := m.requireInvoice(ctx, s, v.InvoiceID)
			if err != nil {
				return err
			}
			if inv.PartyID != v.PartyID {
				return &ValidationError{Field: "invoiceId", Reason: "invoice belongs to a different counterparty"}
			}
			if _, err := m.recordPaymentTx(ctx, s, v.InvoiceID, v.Amount, v.Date); err != nil {
				return err
			}
			return s.AddVoucher(ctx, v)
		}

		// Unlinked voucher: the opening balance absorbs the amount here,
		// and the balance calculator must never re-sum it.
		if err := m.postVoucherEntry(ctx, s, v, *p); err != nil {
			return err
		}
		if v.Type == party.VoucherReceipt {
			p.OpeningBalance = p.OpeningBalance.Sub(v.Amount)
		} else {
			p.OpeningBalance = p.OpeningBalance.Add(v.Amount)
		}
		if err := s.SaveParty(ctx, *p); err != nil {
			return err
		}
		return s.AddVoucher(ctx, v)
	})
	if err != nil {
		return party.Voucher{}, err
	}

	m.Log.Info().Str("voucher", v.ID).Str("type", string(v.Type)).
		Str("amount", v.Amount.StringFixed(3)).Msg("voucher applied")
	m.notify("vouchers")
	return v, nil
}

func (m *Manager) postVoucherEntry(ctx context.Context, s Store, v party.Voucher, p party.Counterparty) error {
	led := m.ledger(s)
	ref := "VCH-" + voucherRefID(v.ID)

	var e ledger.Entry
	if v.Type == party.VoucherReceipt {
		e = ledger.Entry{
			Date:        v.Date,
			Description: "Receipt voucher - " + p.Name,
			Reference:   ref,
			Type:        ledger.EntryPayment,
			Lines: []ledger.Line{
				line(ledger.AccountBank, "Bank", v.Amount, decimal.Zero),
				line(ledger.AccountClearing, "Counterparty Balance Clearing", decimal.Zero, v.Amount),
			},
			IdempotencyKey: ledger.IdempotencyKey{Operation: ledger.OpVoucher, InvoiceID: v.ID, Attempt: 1},
		}
	} else {
		e = ledger.Entry{
			Date:        v.Date,
			Description: "Payment voucher - " + p.Name,
			Reference:   ref,
			Type:        ledger.EntryPayment,
			Lines: []ledger.Line{
				line(ledger.AccountClearing, "Counterparty Balance Clearing", v.Amount, decimal.Zero),
				line(ledger.AccountBank, "Bank", decimal.Zero, v.Amount),
			},
			IdempotencyKey: ledger.IdempotencyKey{Operation: ledger.OpVoucher, InvoiceID: v.ID, Attempt: 1},
		}
	}
	_, _, err := led.PostGuarded(ctx, e)
	return err
}

// voucherRefID shortens generated UUIDs for the journal reference while
// tolerating caller-supplied IDs of any length.
func voucherRefID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

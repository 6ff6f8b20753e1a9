/*
voucher.go - Receipt and payment vouchers

PURPOSE:
  A voucher records money moving between us and a counterparty outside of
  invoice creation. Two mutually exclusive paths exist:

    1. InvoiceID set:   the voucher pays down that invoice's unpaid amount
    2. InvoiceID empty: the voucher mutates the party's opening balance

  The same amount must never travel both paths - that would count the
  money twice. The invoice lifecycle manager enforces the split.
*/
package party

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type VoucherType string

const (
	// VoucherReceipt records money received from a counterparty.
	VoucherReceipt VoucherType = "receipt"
	// VoucherPayment records money paid to a counterparty.
	VoucherPayment VoucherType = "payment"
)

type Voucher struct {
	ID      string
	Type    VoucherType
	PartyID string
	Amount  decimal.Decimal

	// InvoiceID, when set, targets the voucher at one invoice.
	InvoiceID string

	Date  time.Time
	Notes string
}

func (v Voucher) Validate() error {
	if v.Type != VoucherReceipt && v.Type != VoucherPayment {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidVoucher, v.Type)
	}
	if v.PartyID == "" {
		return fmt.Errorf("%w: counterparty required", ErrInvalidVoucher)
	}
	if !v.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidVoucher)
	}
	return nil
}

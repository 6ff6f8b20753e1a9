package party

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrPartyNotFound is returned when a referenced counterparty does not exist.
	ErrPartyNotFound = errors.New("counterparty not found")

	// ErrInvalidOpeningBalance is returned when an opening balance violates
	// the per-role sign rule.
	ErrInvalidOpeningBalance = errors.New("invalid opening balance for role")

	// ErrOpeningBalanceLocked is returned when editing an opening balance
	// after the party already has transactions.
	ErrOpeningBalanceLocked = errors.New("opening balance locked: party has transactions")

	// ErrInvalidParty is returned for malformed counterparty input.
	ErrInvalidParty = errors.New("invalid counterparty")

	// ErrInvalidVoucher is returned for malformed voucher input.
	ErrInvalidVoucher = errors.New("invalid voucher")
)

type OpeningBalanceError struct {
	Role   Role
	Amount decimal.Decimal
}

func (e *OpeningBalanceError) Error() string {
	switch e.Role {
	case RoleCustomer:
		return fmt.Sprintf("customer opening balance must be >= 0, got %s", e.Amount.String())
	case RoleSupplier:
		return fmt.Sprintf("supplier opening balance must be <= 0, got %s", e.Amount.String())
	}
	return fmt.Sprintf("invalid opening balance %s", e.Amount.String())
}

func (e *OpeningBalanceError) Unwrap() error { return ErrInvalidOpeningBalance }

type InvalidPartyError struct {
	Field  string
	Reason string
}

func (e *InvalidPartyError) Error() string {
	return fmt.Sprintf("counterparty %s: %s", e.Field, e.Reason)
}

func (e *InvalidPartyError) Unwrap() error { return ErrInvalidParty }

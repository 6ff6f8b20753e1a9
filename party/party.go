/*
party.go - Counterparties and the opening-balance invariant

PURPOSE:
  A counterparty is a customer or supplier. Its stored balance is the
  OPENING balance only: fixed at creation and locked once any invoice or
  voucher references the party. Everything the party currently owes (or is
  owed) on top of that is derived from unpaid invoices by the balance
  package - never stored.

OPENING BALANCE SIGN RULES:
  Customers:  opening balance >= 0 (a customer can only be a debtor or neutral)
  Suppliers:  opening balance <= 0 (we can only owe a supplier or be neutral)
  This asymmetry is a business invariant, not an implementation detail.

SEE ALSO:
  - service.go: persistence and the opening-balance lock
  - balance package: effective balance derivation
*/
package party

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ROLES
// =============================================================================

type Role string

const (
	RoleCustomer Role = "customer"
	RoleSupplier Role = "supplier"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleSupplier
}

// =============================================================================
// COUNTERPARTY
// =============================================================================

type Counterparty struct {
	ID   string
	Name string
	Role Role

	// OpeningBalance is fixed at creation and locked once any transaction
	// references this party. Signed in "they owe us" units.
	OpeningBalance decimal.Decimal

	Phone   string
	Email   string
	Address string
	Notes   string

	CreatedAt time.Time
}

// New builds a counterparty, enforcing the opening-balance sign rule.
func New(name string, role Role, opening decimal.Decimal) (Counterparty, error) {
	if name == "" {
		return Counterparty{}, &InvalidPartyError{Field: "name", Reason: "required"}
	}
	if !role.Valid() {
		return Counterparty{}, &InvalidPartyError{Field: "role", Reason: "must be customer or supplier"}
	}
	if err := ValidateOpeningBalance(role, opening); err != nil {
		return Counterparty{}, err
	}
	return Counterparty{
		ID:             uuid.NewString(),
		Name:           name,
		Role:           role,
		OpeningBalance: opening,
		CreatedAt:      time.Now(),
	}, nil
}

// ValidateOpeningBalance enforces the per-role sign rule.
func ValidateOpeningBalance(role Role, amount decimal.Decimal) error {
	switch role {
	case RoleCustomer:
		if amount.IsNegative() {
			return &OpeningBalanceError{Role: role, Amount: amount}
		}
	case RoleSupplier:
		if amount.IsPositive() {
			return &OpeningBalanceError{Role: role, Amount: amount}
		}
	}
	return nil
}

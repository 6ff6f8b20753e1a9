/*
service.go - Counterparty persistence rules

PURPOSE:
  Wraps the party store with the business rules around creation and the
  opening-balance lock. Voucher application lives with the invoice
  lifecycle manager, which owns all write orchestration.
*/
package party

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Persistence required for counterparties
// =============================================================================

type Store interface {
	Parties(ctx context.Context, role Role) ([]Counterparty, error)
	Party(ctx context.Context, id string) (*Counterparty, error)
	SaveParty(ctx context.Context, p Counterparty) error

	// HasTransactions reports whether any invoice or voucher references
	// the party. Used to lock opening-balance edits.
	HasTransactions(ctx context.Context, partyID string) (bool, error)
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Store Store
	Log   zerolog.Logger
}

func NewService(store Store) *Service {
	return &Service{Store: store, Log: zerolog.Nop()}
}

type CreateInput struct {
	Name           string
	Role           Role
	OpeningBalance decimal.Decimal
	Phone          string
	Email          string
	Address        string
	Notes          string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Counterparty, error) {
	p, err := New(in.Name, in.Role, in.OpeningBalance)
	if err != nil {
		return Counterparty{}, err
	}
	p.Phone = in.Phone
	p.Email = in.Email
	p.Address = in.Address
	p.Notes = in.Notes

	if err := s.Store.SaveParty(ctx, p); err != nil {
		return Counterparty{}, err
	}
	s.Log.Info().Str("party", p.ID).Str("role", string(p.Role)).Msg("counterparty created")
	return p, nil
}

// SetOpeningBalance replaces the opening balance. Rejected once the party
// has any transaction; the sign rule still applies.
func (s *Service) SetOpeningBalance(ctx context.Context, id string, amount decimal.Decimal) error {
	p, err := s.Store.Party(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("party %q: %w", id, ErrPartyNotFound)
	}

	locked, err := s.Store.HasTransactions(ctx, id)
	if err != nil {
		return err
	}
	if locked {
		return fmt.Errorf("party %q: %w", id, ErrOpeningBalanceLocked)
	}
	if err := ValidateOpeningBalance(p.Role, amount); err != nil {
		return err
	}

	p.OpeningBalance = amount
	return s.Store.SaveParty(ctx, *p)
}

// UpdateContact edits the free-text fields, which are never locked.
func (s *Service) UpdateContact(ctx context.Context, id string, phone, email, address, notes string) error {
	p, err := s.Store.Party(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("party %q: %w", id, ErrPartyNotFound)
	}
	p.Phone = phone
	p.Email = email
	p.Address = address
	p.Notes = notes
	return s.Store.SaveParty(ctx, *p)
}

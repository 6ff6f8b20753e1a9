/*
store.go - Storage contract for the lifecycle manager

PURPOSE:
  The manager orchestrates the journal ledger, the inventory reconciler
  and the counterparty store on every mutation, so its store bundles all
  of their repositories plus invoice and voucher persistence.

ATOMICITY:
  WithTx gives the manager an all-or-nothing mutation scope. Every
  lifecycle operation runs entirely inside one WithTx call: a failure
  after the mutation pass has begun rolls the whole operation back, so a
  crash between "reverse old" and "apply new" can never leave quantities
  or balances half-updated.

SEE ALSO:
  - store/memory: snapshot-rollback implementation for tests/dev
  - store/sqlite: database-transaction implementation
*/
package invoice

import (
	"context"

	"github.com/MinaMohsen466/accounting-engine/inventory"
	"github.com/MinaMohsen466/accounting-engine/ledger"
	"github.com/MinaMohsen466/accounting-engine/party"
)

// =============================================================================
// REPOSITORIES
// =============================================================================

type InvoiceStore interface {
	Invoices(ctx context.Context) ([]Invoice, error)
	Invoice(ctx context.Context, id string) (*Invoice, error)
	AddInvoice(ctx context.Context, inv Invoice) error
	UpdateInvoice(ctx context.Context, inv Invoice) error
	DeleteInvoice(ctx context.Context, id string) error

	// NextInvoiceNumber issues the next number for the given prefix
	// (e.g. "INV" -> "INV-000042"). Numbers are fixed-width so that
	// reference containment matching never collides.
	NextInvoiceNumber(ctx context.Context, prefix string) (string, error)
}

type VoucherStore interface {
	Vouchers(ctx context.Context) ([]party.Voucher, error)
	AddVoucher(ctx context.Context, v party.Voucher) error
}

// =============================================================================
// COMBINED STORE
// =============================================================================

// Store is everything a lifecycle mutation touches.
type Store interface {
	ledger.Store
	inventory.Store
	party.Store
	InvoiceStore
	VoucherStore

	// WithTx runs fn against a transactional view of the store.
	// fn returning an error rolls back every write it performed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// CHANGE NOTIFICATION
// =============================================================================

// Notifier receives a signal after every successful mutation so read
// views (dashboard, statements) can refresh. Delivery is the caller's
// concern; the manager only emits.
type Notifier interface {
	Changed(scope string)
}

type NotifierFunc func(scope string)

func (f NotifierFunc) Changed(scope string) { f(scope) }

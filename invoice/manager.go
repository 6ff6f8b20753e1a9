/*
manager.go - Invoice lifecycle orchestration

PURPOSE:
  The Manager owns every mutating operation on invoices and coordinates
  the three ledgers that must stay mutually consistent: journal entries,
  inventory quantities/costs, and counterparty balances.

ORDERING (mandatory):
  validate -> reverse-old-effects -> apply-new-effects -> persist
  All validation is read-only and runs first; any failure aborts with no
  side effects. The mutation pass runs inside Store.WithTx so a failure
  mid-way rolls everything back.

CONCURRENCY:
  A single mutex serializes mutations (single-writer queue). Concurrent
  callers would otherwise race between "reverse old" and "apply new",
  corrupting quantities or double-posting payments. The duplicate-posting
  guards in the ledger additionally protect against retried operations.

POSTING MODEL:
  Sales paid in full:   Bank (debit) / Sales Revenue (credit), one entry
  Sales otherwise:      A/R / Sales Revenue, plus guarded payment entry
                        Bank / A/R for the cash portion
  Purchase paid:        Inventory / Bank
  Purchase otherwise:   Inventory / A/P, plus guarded payment A/P / Bank
  Balance deduction:    guarded entry through the clearing account, and
                        the counterparty's opening balance moves by the
                        deducted amount

BUSINESS RULES:
  - Purchase invoices are edit-locked except free-text notes (they are
    externally-sourced source documents)
  - Return invoices are immutable and undeletable
  - Invoices with returns against them cannot be edited or deleted
*/
package invoice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/MinaMohsen466/accounting-engine/inventory"
	"github.com/MinaMohsen466/accounting-engine/ledger"
	"github.com/MinaMohsen466/accounting-engine/party"
)

// =============================================================================
// MANAGER
// =============================================================================

type Manager struct {
	Store    Store
	Notifier Notifier
	Expiry   inventory.ExpiryPolicy
	Clock    func() time.Time
	Log      zerolog.Logger

	mu sync.Mutex
}

func NewManager(store Store) *Manager {
	return &Manager{
		Store:  store,
		Expiry: inventory.DefaultExpiryPolicy(),
		Clock:  time.Now,
		Log:    zerolog.Nop(),
	}
}

func (m *Manager) now() time.Time {
	if m.Clock != nil {
		return m.Clock()
	}
	return time.Now()
}

func (m *Manager) notify(scope string) {
	if m.Notifier != nil {
		m.Notifier.Changed(scope)
	}
}

func (m *Manager) ledger(s Store) *ledger.Ledger {
	l := ledger.New(s)
	l.Log = m.Log
	l.Clock = m.Clock
	return l
}

func (m *Manager) reconciler(s Store) *inventory.Reconciler {
	return &inventory.Reconciler{Store: s, Expiry: m.Expiry, Clock: m.Clock}
}

// =============================================================================
// INPUT TYPES
// =============================================================================

type ItemInput struct {
	ItemID       string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	ColorPrice   decimal.Decimal
	Discount     decimal.Decimal
	DiscountType DiscountType
	ExpiryDate   *time.Time
}

type CreateInput struct {
	Type    Type
	PartyID string
	Items   []ItemInput

	Discount     decimal.Decimal
	DiscountType DiscountType
	VATRate      decimal.Decimal

	PaymentStatus PaymentStatus
	// PaidAmount is the cash portion for partial invoices.
	PaidAmount decimal.Decimal
	// BalanceDeduction settles part of the invoice against the
	// counterparty's opening balance.
	BalanceDeduction decimal.Decimal

	Date    time.Time
	DueDate time.Time
	Notes   string
}

type EditInput struct {
	Items []ItemInput

	Discount     decimal.Decimal
	DiscountType DiscountType
	VATRate      decimal.Decimal

	PaymentStatus    PaymentStatus
	PaidAmount       decimal.Decimal
	BalanceDeduction decimal.Decimal

	DueDate time.Time
	Notes   string
}

// =============================================================================
// CREATE
// =============================================================================

func (m *Manager) Create(ctx context.Context, in CreateInput) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validateItems(in.Items); err != nil {
		return Invoice{}, err
	}
	if !in.Type.Valid() {
		return Invoice{}, &ValidationError{Field: "type", Reason: "must be sales or purchase"}
	}
	if in.PartyID == "" {
		return Invoice{}, &ValidationError{Field: "party", Reason: "required"}
	}

	now := m.now()
	inv := Invoice{
		ID:               uuid.NewString(),
		Type:             in.Type,
		PartyID:          in.PartyID,
		Items:            buildItems(in.Items),
		Discount:         in.Discount,
		DiscountType:     in.DiscountType,
		VATRate:          in.VATRate,
		PaymentStatus:    in.PaymentStatus,
		BalanceDeduction: in.BalanceDeduction,
		Date:             orNow(in.Date, now),
		DueDate:          in.DueDate,
		State:            StatePosted,
		Notes:            in.Notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	computeTotals(&inv)

	cash, err := resolvePayment(in.PaymentStatus, in.PaidAmount, in.BalanceDeduction, inv.Total)
	if err != nil {
		return Invoice{}, err
	}
	inv.PaidAmount = cash.Add(in.BalanceDeduction)

	err = m.Store.WithTx(ctx, func(s Store) error {
		// Validation pass: all reads, no writes.
		p, err := m.requireParty(ctx, s, inv.PartyID, inv.Type)
		if err != nil {
			return err
		}
		if err := m.resolveItemNames(ctx, s, inv.Items); err != nil {
			return err
		}
		rec := m.reconciler(s)
		if inv.Type == TypeSales {
			if err := rec.CheckAvailability(ctx, stockLines(inv.Items)); err != nil {
				return err
			}
		}

		number, err := s.NextInvoiceNumber(ctx, numberPrefix(inv.Type, false))
		if err != nil {
			return err
		}
		inv.Number = number

		// Mutation pass.
		if err := m.postInvoiceEntries(ctx, s, &inv, p, cash, 1); err != nil {
			return err
		}
		if inv.Type == TypeSales {
			if err := rec.ApplySale(ctx, stockLines(inv.Items)); err != nil {
				return err
			}
		} else {
			if err := rec.ApplyPurchase(ctx, stockLines(inv.Items)); err != nil {
				return err
			}
		}
		if err := m.applyBalanceDeduction(ctx, s, p, inv.Type, in.BalanceDeduction); err != nil {
			return err
		}
		return s.AddInvoice(ctx, inv)
	})
	if err != nil {
		return Invoice{}, err
	}

	m.Log.Info().Str("invoice", inv.Number).Str("type", string(inv.Type)).
		Str("total", inv.Total.StringFixed(3)).Msg("invoice created")
	m.notify("invoices")
	return inv, nil
}

// =============================================================================
// EDIT
// =============================================================================

// Edit replaces the monetary content of a sales invoice. Purchase
// invoices only accept notes edits (UpdateNotes); returns are immutable.
func (m *Manager) Edit(ctx context.Context, id string, in EditInput) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, err := m.requireInvoice(ctx, m.Store, id)
	if err != nil {
		return Invoice{}, err
	}
	if old.IsReturn {
		return Invoice{}, &EditNotAllowedError{InvoiceID: id, Reason: "return invoices are immutable"}
	}
	if old.Type == TypePurchase {
		return Invoice{}, &EditNotAllowedError{InvoiceID: id, Reason: "purchase invoices accept notes edits only"}
	}
	hasReturns, err := m.hasReturns(ctx, m.Store, id)
	if err != nil {
		return Invoice{}, err
	}
	if hasReturns {
		return Invoice{}, &EditNotAllowedError{InvoiceID: id, Reason: "invoice has returns against it"}
	}
	if err := validateItems(in.Items); err != nil {
		return Invoice{}, err
	}

	next := *old
	next.Items = buildItems(in.Items)
	next.Discount = in.Discount
	next.DiscountType = in.DiscountType
	next.VATRate = in.VATRate
	next.PaymentStatus = in.PaymentStatus
	next.BalanceDeduction = in.BalanceDeduction
	next.DueDate = in.DueDate
	next.Notes = in.Notes
	next.UpdatedAt = m.now()
	computeTotals(&next)

	cash, err := resolvePayment(in.PaymentStatus, in.PaidAmount, in.BalanceDeduction, next.Total)
	if err != nil {
		return Invoice{}, err
	}
	next.PaidAmount = cash.Add(in.BalanceDeduction)

	err = m.Store.WithTx(ctx, func(s Store) error {
		p, err := m.requireParty(ctx, s, next.PartyID, next.Type)
		if err != nil {
			return err
		}
		if err := m.resolveItemNames(ctx, s, next.Items); err != nil {
			return err
		}

		// Reverse old journal effects, reconcile inventory as net deltas,
		// then post the new entries.
		led := m.ledger(s)
		if _, err := led.Reverse(ctx, old.Number); err != nil {
			return err
		}
		rec := m.reconciler(s)
		if err := rec.ReconcileSale(ctx, stockLines(old.Items), stockLines(next.Items)); err != nil {
			return err
		}

		// Undo the old balance deduction before applying the new one.
		if err := m.restoreBalanceDeduction(ctx, s, p, old.Type, old.BalanceDeduction); err != nil {
			return err
		}
		p, err = m.requireParty(ctx, s, next.PartyID, next.Type)
		if err != nil {
			return err
		}
		if err := m.applyBalanceDeduction(ctx, s, p, next.Type, next.BalanceDeduction); err != nil {
			return err
		}

		next.Revision = old.Revision + 1
		if err := m.postInvoiceEntries(ctx, s, &next, p, cash, next.Revision+1); err != nil {
			return err
		}
		return s.UpdateInvoice(ctx, next)
	})
	if err != nil {
		return Invoice{}, err
	}

	m.Log.Info().Str("invoice", next.Number).Int("revision", next.Revision).Msg("invoice edited")
	m.notify("invoices")
	return next, nil
}

// UpdateNotes edits the free-text notes. Allowed for purchase invoices;
// returns stay immutable.
func (m *Manager) UpdateNotes(ctx context.Context, id, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, err := m.requireInvoice(ctx, m.Store, id)
	if err != nil {
		return err
	}
	if inv.IsReturn {
		return &EditNotAllowedError{InvoiceID: id, Reason: "return invoices are immutable"}
	}
	inv.Notes = notes
	inv.UpdatedAt = m.now()
	if err := m.Store.UpdateInvoice(ctx, *inv); err != nil {
		return err
	}
	m.notify("invoices")
	return nil
}

// =============================================================================
// DELETE
// =============================================================================

func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, err := m.requireInvoice(ctx, m.Store, id)
	if err != nil {
		return err
	}
	if inv.IsReturn {
		return fmt.Errorf("invoice %s is a return: %w", inv.Number, ErrDeleteNotAllowed)
	}
	hasReturns, err := m.hasReturns(ctx, m.Store, id)
	if err != nil {
		return err
	}
	if hasReturns {
		return fmt.Errorf("invoice %s has returns against it: %w", inv.Number, ErrDeleteNotAllowed)
	}

	err = m.Store.WithTx(ctx, func(s Store) error {
		rec := m.reconciler(s)
		// Purchase reversal is precondition-checked inside ReversePurchase:
		// every line's stock must still cover the purchased quantity.
		if inv.Type == TypePurchase {
			if err := rec.ReversePurchase(ctx, stockLines(inv.Items)); err != nil {
				return err
			}
		} else {
			if err := rec.ReverseSale(ctx, stockLines(inv.Items)); err != nil {
				return err
			}
		}

		led := m.ledger(s)
		if _, err := led.Reverse(ctx, inv.Number); err != nil {
			return err
		}

		p, err := s.Party(ctx, inv.PartyID)
		if err != nil {
			return err
		}
		if p != nil {
			if err := m.restoreBalanceDeduction(ctx, s, *p, inv.Type, inv.BalanceDeduction); err != nil {
				return err
			}
		}
		return s.DeleteInvoice(ctx, id)
	})
	if err != nil {
		return err
	}

	m.Log.Info().Str("invoice", inv.Number).Msg("invoice deleted")
	m.notify("invoices")
	return nil
}

// =============================================================================
// POSTING
// =============================================================================

// postInvoiceEntries writes the main entry plus the optional guarded
// payment and balance-deduction entries. attempt scopes the idempotency
// keys to the current revision of the invoice.
func (m *Manager) postInvoiceEntries(ctx context.Context, s Store, inv *Invoice, p party.Counterparty, cash decimal.Decimal, attempt int) error {
	led := m.ledger(s)
	deduction := inv.BalanceDeduction

	paidInFull := cash.Equal(inv.Total) && deduction.IsZero() && inv.Total.IsPositive()

	var main ledger.Entry
	switch {
	case inv.Type == TypeSales && paidInFull:
		main = m.entry(inv, EntryDescription(inv, p), inv.Number, ledger.EntryNormal, attempt, ledger.OpInvoice,
			line(ledger.AccountBank, "Bank", inv.Total, decimal.Zero),
			line(ledger.AccountSalesRevenue, "Sales Revenue", decimal.Zero, inv.Total),
		)
	case inv.Type == TypeSales:
		main = m.entry(inv, EntryDescription(inv, p), inv.Number, ledger.EntryNormal, attempt, ledger.OpInvoice,
			line(ledger.AccountReceivable, "Accounts Receivable", inv.Total, decimal.Zero),
			line(ledger.AccountSalesRevenue, "Sales Revenue", decimal.Zero, inv.Total),
		)
	case inv.Type == TypePurchase && paidInFull:
		main = m.entry(inv, EntryDescription(inv, p), inv.Number, ledger.EntryNormal, attempt, ledger.OpInvoice,
			line(ledger.AccountInventory, "Inventory", inv.Total, decimal.Zero),
			line(ledger.AccountBank, "Bank", decimal.Zero, inv.Total),
		)
	default:
		main = m.entry(inv, EntryDescription(inv, p), inv.Number, ledger.EntryNormal, attempt, ledger.OpInvoice,
			line(ledger.AccountInventory, "Inventory", inv.Total, decimal.Zero),
			line(ledger.AccountPayable, "Accounts Payable", decimal.Zero, inv.Total),
		)
	}
	if inv.Total.IsPositive() {
		if _, _, err := led.PostGuarded(ctx, main); err != nil {
			return err
		}
	}

	if cash.IsPositive() && !paidInFull {
		var pay ledger.Entry
		if inv.Type == TypeSales {
			pay = m.entry(inv, "Payment for "+inv.Number, "PAY-"+inv.Number, ledger.EntryPayment, attempt, ledger.OpPayment,
				line(ledger.AccountBank, "Bank", cash, decimal.Zero),
				line(ledger.AccountReceivable, "Accounts Receivable", decimal.Zero, cash),
			)
		} else {
			pay = m.entry(inv, "Payment for "+inv.Number, "PAY-"+inv.Number, ledger.EntryPayment, attempt, ledger.OpPayment,
				line(ledger.AccountPayable, "Accounts Payable", cash, decimal.Zero),
				line(ledger.AccountBank, "Bank", decimal.Zero, cash),
			)
		}
		if _, _, err := led.PostGuarded(ctx, pay); err != nil {
			return err
		}
	}

	if deduction.IsPositive() {
		var ded ledger.Entry
		if inv.Type == TypeSales {
			ded = m.entry(inv, "Balance deduction for "+inv.Number, "BAL-DED-"+inv.Number, ledger.EntryPayment, attempt, ledger.OpBalanceDeduction,
				line(ledger.AccountClearing, "Counterparty Balance Clearing", deduction, decimal.Zero),
				line(ledger.AccountReceivable, "Accounts Receivable", decimal.Zero, deduction),
			)
		} else {
			ded = m.entry(inv, "Balance deduction for "+inv.Number, "BAL-DED-"+inv.Number, ledger.EntryPayment, attempt, ledger.OpBalanceDeduction,
				line(ledger.AccountPayable, "Accounts Payable", deduction, decimal.Zero),
				line(ledger.AccountClearing, "Counterparty Balance Clearing", decimal.Zero, deduction),
			)
		}
		if _, _, err := led.PostGuarded(ctx, ded); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) entry(inv *Invoice, desc, ref string, et ledger.EntryType, attempt int, op ledger.Operation, lines ...ledger.Line) ledger.Entry {
	return ledger.Entry{
		Date:        inv.Date,
		Description: desc,
		Reference:   ref,
		Type:        et,
		Lines:       lines,
		IdempotencyKey: ledger.IdempotencyKey{
			Operation: op,
			InvoiceID: inv.ID,
			Attempt:   attempt,
		},
	}
}

// EntryDescription renders the human-readable journal description for an
// invoice's main entry.
func EntryDescription(inv *Invoice, p party.Counterparty) string {
	var kind string
	switch {
	case inv.Type == TypeSales && inv.IsReturn:
		kind = "Sales return"
	case inv.Type == TypeSales:
		kind = "Sales invoice"
	case inv.IsReturn:
		kind = "Purchase return"
	default:
		kind = "Purchase invoice"
	}
	return fmt.Sprintf("%s %s - %s", kind, inv.Number, p.Name)
}

func line(accountID, name string, debit, credit decimal.Decimal) ledger.Line {
	return ledger.Line{AccountID: accountID, AccountName: name, Debit: debit, Credit: credit}
}

// =============================================================================
// BALANCE DEDUCTION
// =============================================================================

// applyBalanceDeduction moves the counterparty's opening balance by the
// deducted amount: a customer's receivable shrinks, a supplier credit is
// consumed toward zero.
func (m *Manager) applyBalanceDeduction(ctx context.Context, s Store, p party.Counterparty, t Type, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	if t == TypeSales {
		p.OpeningBalance = p.OpeningBalance.Sub(amount)
	} else {
		p.OpeningBalance = p.OpeningBalance.Add(amount)
	}
	return s.SaveParty(ctx, p)
}

func (m *Manager) restoreBalanceDeduction(ctx context.Context, s Store, p party.Counterparty, t Type, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	if t == TypeSales {
		p.OpeningBalance = p.OpeningBalance.Add(amount)
	} else {
		p.OpeningBalance = p.OpeningBalance.Sub(amount)
	}
	return s.SaveParty(ctx, p)
}

// =============================================================================
// HELPERS
// =============================================================================

func (m *Manager) requireInvoice(ctx context.Context, s Store, id string) (*Invoice, error) {
	inv, err := s.Invoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("invoice %q: %w", id, ErrInvoiceNotFound)
	}
	return inv, nil
}

// requireParty loads the counterparty and checks its role matches the
// invoice type (sales -> customer, purchase -> supplier).
func (m *Manager) requireParty(ctx context.Context, s Store, partyID string, t Type) (party.Counterparty, error) {
	p, err := s.Party(ctx, partyID)
	if err != nil {
		return party.Counterparty{}, err
	}
	if p == nil {
		return party.Counterparty{}, fmt.Errorf("party %q: %w", partyID, party.ErrPartyNotFound)
	}
	want := party.RoleCustomer
	if t == TypePurchase {
		want = party.RoleSupplier
	}
	if p.Role != want {
		return party.Counterparty{}, &ValidationError{
			Field:  "party",
			Reason: fmt.Sprintf("%s invoice requires a %s", t, want),
		}
	}
	return *p, nil
}

func (m *Manager) resolveItemNames(ctx context.Context, s Store, items []Item) error {
	for i := range items {
		it, err := s.Item(ctx, items[i].ItemID)
		if err != nil {
			return err
		}
		if it == nil {
			return &inventory.ItemNotFoundError{ItemID: items[i].ItemID}
		}
		items[i].Name = it.Name
	}
	return nil
}

func (m *Manager) hasReturns(ctx context.Context, s Store, invoiceID string) (bool, error) {
	all, err := s.Invoices(ctx)
	if err != nil {
		return false, err
	}
	for _, inv := range all {
		if inv.IsReturn && inv.OriginalInvoiceID == invoiceID {
			return true, nil
		}
	}
	return false, nil
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return &ValidationError{Field: "items", Reason: "at least one item required"}
	}
	for i, it := range items {
		if it.ItemID == "" {
			return &ValidationError{Field: fmt.Sprintf("items[%d].itemId", i), Reason: "required"}
		}
		if !it.Quantity.IsPositive() {
			return &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Reason: "must be positive"}
		}
		if it.UnitPrice.IsNegative() || it.ColorPrice.IsNegative() {
			return &ValidationError{Field: fmt.Sprintf("items[%d].price", i), Reason: "must be non-negative"}
		}
		if it.Discount.IsNegative() {
			return &ValidationError{Field: fmt.Sprintf("items[%d].discount", i), Reason: "must be non-negative"}
		}
	}
	return nil
}

// resolvePayment derives the cash portion from the declared status and
// checks status/amount consistency.
func resolvePayment(status PaymentStatus, paid, deduction, total decimal.Decimal) (decimal.Decimal, error) {
	if deduction.IsNegative() {
		return decimal.Zero, &ValidationError{Field: "balanceDeduction", Reason: "must be non-negative"}
	}
	if deduction.GreaterThan(total) {
		return decimal.Zero, &ValidationError{Field: "balanceDeduction", Reason: "exceeds invoice total"}
	}
	switch status {
	case StatusPaid:
		return total.Sub(deduction), nil
	case StatusPartial:
		combined := paid.Add(deduction)
		if !combined.IsPositive() {
			return decimal.Zero, &ValidationError{Field: "paidAmount", Reason: "partial invoices need a paid amount"}
		}
		if combined.GreaterThanOrEqual(total) {
			return decimal.Zero, &ValidationError{Field: "paidAmount", Reason: "partial payment must be below total"}
		}
		return paid, nil
	case StatusPending:
		if paid.IsPositive() || deduction.IsPositive() {
			return decimal.Zero, &ValidationError{Field: "paymentStatus", Reason: "pending invoices cannot carry payments"}
		}
		return decimal.Zero, nil
	default:
		return decimal.Zero, &ValidationError{Field: "paymentStatus", Reason: "must be paid, partial or pending"}
	}
}

func buildItems(in []ItemInput) []Item {
	items := make([]Item, len(in))
	for i, it := range in {
		items[i] = Item{
			ItemID:       it.ItemID,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			ColorPrice:   it.ColorPrice,
			Discount:     it.Discount,
			DiscountType: it.DiscountType,
			ExpiryDate:   it.ExpiryDate,
		}
	}
	return items
}

// stockLines projects invoice items onto the reconciler's line view.
// The per-unit cost includes the color surcharge.
func stockLines(items []Item) []inventory.Line {
	lines := make([]inventory.Line, len(items))
	for i, it := range items {
		lines[i] = inventory.Line{
			ItemID:     it.ItemID,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice.Add(it.ColorPrice),
			ExpiryDate: it.ExpiryDate,
		}
	}
	return lines
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}

func numberPrefix(t Type, isReturn bool) string {
	if isReturn {
		return "RET"
	}
	if t == TypePurchase {
		return "PUR"
	}
	return "INV"
}

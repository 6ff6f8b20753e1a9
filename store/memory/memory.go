/*
Package memory provides an in-memory implementation of the engine stores.

PURPOSE:
  Backs tests and development. Implements every repository the invoice
  lifecycle manager needs, plus WithTx as snapshot + rollback: the
  function runs against live state, and any error restores the snapshot,
  giving the same all-or-nothing contract as a database transaction.

CONCURRENCY:
  A RWMutex guards individual operations; a separate transaction mutex
  serializes WithTx scopes so a rollback never races a concurrent writer.
*/
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/MinaMohsen466/accounting-engine/inventory"
	"github.com/MinaMohsen466/accounting-engine/invoice"
	"github.com/MinaMohsen466/accounting-engine/ledger"
	"github.com/MinaMohsen466/accounting-engine/party"
)

// =============================================================================
// STORE
// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	accounts map[string]ledger.Account
	entries  []ledger.Entry
	entrySeq int64

	items    map[string]inventory.Item
	parties  map[string]party.Counterparty
	invoices map[string]invoice.Invoice
	vouchers []party.Voucher
	counters map[string]int
}

func New() *Memory {
	return &Memory{
		accounts: make(map[string]ledger.Account),
		items:    make(map[string]inventory.Item),
		parties:  make(map[string]party.Counterparty),
		invoices: make(map[string]invoice.Invoice),
		counters: make(map[string]int),
	}
}

// NewWithChart returns a store seeded with the default chart of accounts.
func NewWithChart() *Memory {
	m := New()
	for _, a := range ledger.DefaultChart() {
		m.accounts[a.ID] = a
	}
	return m
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (m *Memory) Accounts(_ context.Context) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *Memory) Account(_ context.Context, id string) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) SaveAccount(_ context.Context, a ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.ID] = a
	return nil
}

// =============================================================================
// JOURNAL - Append-only
// =============================================================================

func (m *Memory) NextEntrySeq(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entrySeq++
	return m.entrySeq, nil
}

func (m *Memory) AppendEntry(_ context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, cloneEntry(e))
	return nil
}

func (m *Memory) Entries(_ context.Context) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Entry, len(m.entries))
	for i, e := range m.entries {
		out[i] = cloneEntry(e)
	}
	return out, nil
}

func (m *Memory) EntriesByReference(_ context.Context, ref string) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Entry
	for _, e := range m.entries {
		if strings.Contains(e.Reference, ref) {
			out = append(out, cloneEntry(e))
		}
	}
	return out, nil
}

func (m *Memory) EntriesByKey(_ context.Context, key string) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Entry
	for _, e := range m.entries {
		if !e.IdempotencyKey.IsZero() && e.IdempotencyKey.String() == key {
			out = append(out, cloneEntry(e))
		}
	}
	return out, nil
}

// =============================================================================
// INVENTORY
// =============================================================================

func (m *Memory) Items(_ context.Context) ([]inventory.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]inventory.Item, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) Item(_ context.Context, id string) (*inventory.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &it, nil
}

func (m *Memory) SaveItem(_ context.Context, it inventory.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[it.ID] = it
	return nil
}

// =============================================================================
// COUNTERPARTIES
// =============================================================================

func (m *Memory) Parties(_ context.Context, role party.Role) ([]party.Counterparty, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []party.Counterparty
	for _, p := range m.parties {
		if p.Role == role {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) Party(_ context.Context, id string) (*party.Counterparty, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.parties[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) SaveParty(_ context.Context, p party.Counterparty) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parties[p.ID] = p
	return nil
}

func (m *Memory) HasTransactions(_ context.Context, partyID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inv := range m.invoices {
		if inv.PartyID == partyID {
			return true, nil
		}
	}
	for _, v := range m.vouchers {
		if v.PartyID == partyID {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// INVOICES
// =============================================================================

func (m *Memory) Invoices(_ context.Context) ([]invoice.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]invoice.Invoice, 0, len(m.invoices))
	for _, inv := range m.invoices {
		out = append(out, cloneInvoice(inv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *Memory) Invoice(_ context.Context, id string) (*invoice.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, nil
	}
	c := cloneInvoice(inv)
	return &c, nil
}

func (m *Memory) AddInvoice(_ context.Context, inv invoice.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.invoices[inv.ID]; exists {
		return fmt.Errorf("invoice %q already exists", inv.ID)
	}
	m.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (m *Memory) UpdateInvoice(_ context.Context, inv invoice.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.invoices[inv.ID]; !exists {
		return fmt.Errorf("invoice %q: %w", inv.ID, invoice.ErrInvoiceNotFound)
	}
	m.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (m *Memory) DeleteInvoice(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.invoices[id]; !exists {
		return fmt.Errorf("invoice %q: %w", id, invoice.ErrInvoiceNotFound)
	}
	delete(m.invoices, id)
	return nil
}

func (m *Memory) NextInvoiceNumber(_ context.Context, prefix string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[prefix]++
	return fmt.Sprintf("%s-%06d", prefix, m.counters[prefix]), nil
}

// =============================================================================
// VOUCHERS
// =============================================================================

func (m *Memory) Vouchers(_ context.Context) ([]party.Voucher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]party.Voucher, len(m.vouchers))
	copy(out, m.vouchers)
	return out, nil
}

func (m *Memory) AddVoucher(_ context.Context, v party.Voucher) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vouchers = append(m.vouchers, v)
	return nil
}

// =============================================================================
// TRANSACTIONS - Snapshot + rollback
// =============================================================================

// WithTx runs fn against the live store. On error the pre-call snapshot
// is restored, so partial mutations never survive.
func (m *Memory) WithTx(_ context.Context, fn func(invoice.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	accounts map[string]ledger.Account
	entries  []ledger.Entry
	entrySeq int64
	items    map[string]inventory.Item
	parties  map[string]party.Counterparty
	invoices map[string]invoice.Invoice
	vouchers []party.Voucher
	counters map[string]int
}

func (m *Memory) snapshot() snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := snapshot{
		accounts: make(map[string]ledger.Account, len(m.accounts)),
		entries:  make([]ledger.Entry, len(m.entries)),
		entrySeq: m.entrySeq,
		items:    make(map[string]inventory.Item, len(m.items)),
		parties:  make(map[string]party.Counterparty, len(m.parties)),
		invoices: make(map[string]invoice.Invoice, len(m.invoices)),
		vouchers: make([]party.Voucher, len(m.vouchers)),
		counters: make(map[string]int, len(m.counters)),
	}
	for k, v := range m.accounts {
		s.accounts[k] = v
	}
	for i, e := range m.entries {
		s.entries[i] = cloneEntry(e)
	}
	for k, v := range m.items {
		s.items[k] = v
	}
	for k, v := range m.parties {
		s.parties[k] = v
	}
	for k, v := range m.invoices {
		s.invoices[k] = cloneInvoice(v)
	}
	copy(s.vouchers, m.vouchers)
	for k, v := range m.counters {
		s.counters[k] = v
	}
	return s
}

func (m *Memory) restore(s snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = s.accounts
	m.entries = s.entries
	m.entrySeq = s.entrySeq
	m.items = s.items
	m.parties = s.parties
	m.invoices = s.invoices
	m.vouchers = s.vouchers
	m.counters = s.counters
}

// =============================================================================
// CLONING - Values with internal slices need deep copies
// =============================================================================

func cloneEntry(e ledger.Entry) ledger.Entry {
	lines := make([]ledger.Line, len(e.Lines))
	copy(lines, e.Lines)
	e.Lines = lines
	return e
}

func cloneInvoice(inv invoice.Invoice) invoice.Invoice {
	items := make([]invoice.Item, len(inv.Items))
	copy(items, inv.Items)
	inv.Items = items
	return inv
}

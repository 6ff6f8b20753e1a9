/*
Package sqlite provides the SQLite-backed implementation of the engine stores.

PURPOSE:
  Implements every repository the invoice lifecycle manager composes
  (accounts, journal, inventory, counterparties, invoices, vouchers) plus
  WithTx over a real database transaction.

APPEND-ONLY ENFORCEMENT:
  The journal tables carry no UPDATE or DELETE statements. Corrections
  reach the ledger as reversal entries only.

KEY TABLES:
  accounts:        Chart of accounts with cached balances
  journal_entries: Immutable entry headers (seq, reference, guard key)
  journal_lines:   Debit/credit lines, balanced per entry
  inventory_items: On-hand quantity and weighted-average cost
  counterparties:  Customers and suppliers with opening balances
  invoices:        Invoice headers; line items serialized as JSON
  vouchers:        Receipt/payment vouchers
  counters:        Monotonic sequences for entry seq and invoice numbers

MONEY:
  Decimals are stored as TEXT to avoid float drift; timestamps as RFC3339.

WAL MODE:
  SQLite is opened with WAL for better read concurrency; the store mutex
  serializes writers, and WithTx holds it for the whole transaction.

USAGE:
  store, err := sqlite.New("./data/accounting.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - invoice/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/MinaMohsen466/accounting-engine/inventory"
	"github.com/MinaMohsen466/accounting-engine/invoice"
	"github.com/MinaMohsen466/accounting-engine/ledger"
	"github.com/MinaMohsen466/accounting-engine/party"
)

// dbtx is the subset of *sql.DB and *sql.Tx the store needs, so every
// query runs identically inside and outside WithTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements invoice.Store using SQLite. A Store bound to a
// transaction (inside WithTx) has a nil mutex; the outer lock is already
// held for the transaction's lifetime.
type Store struct {
	db *sql.DB
	q  dbtx
	mu *sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, q: db, mu: &sync.RWMutex{}}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id      TEXT PRIMARY KEY,
		code    TEXT NOT NULL,
		name    TEXT NOT NULL,
		type    TEXT NOT NULL,
		balance TEXT NOT NULL DEFAULT '0'
	);

	-- Journal (append-only)
	CREATE TABLE IF NOT EXISTS journal_entries (
		id              TEXT PRIMARY KEY,
		seq             INTEGER NOT NULL,
		entry_date      TEXT NOT NULL,
		description     TEXT NOT NULL,
		reference       TEXT NOT NULL,
		entry_type      TEXT NOT NULL,
		op_type         TEXT NOT NULL DEFAULT '',
		op_invoice_id   TEXT NOT NULL DEFAULT '',
		op_attempt      INTEGER NOT NULL DEFAULT 0,
		idempotency_key TEXT NOT NULL DEFAULT '',
		created_at      TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_reference
		ON journal_entries(reference);
	CREATE INDEX IF NOT EXISTS idx_entries_key
		ON journal_entries(idempotency_key) WHERE idempotency_key != '';
	CREATE INDEX IF NOT EXISTS idx_entries_seq
		ON journal_entries(seq);

	CREATE TABLE IF NOT EXISTS journal_lines (
		entry_id     TEXT NOT NULL REFERENCES journal_entries(id),
		line_no      INTEGER NOT NULL,
		account_id   TEXT NOT NULL,
		account_name TEXT NOT NULL,
		debit        TEXT NOT NULL,
		credit       TEXT NOT NULL,
		PRIMARY KEY (entry_id, line_no)
	);

	CREATE TABLE IF NOT EXISTS inventory_items (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		sku             TEXT NOT NULL DEFAULT '',
		quantity        TEXT NOT NULL DEFAULT '0',
		price           TEXT NOT NULL DEFAULT '0',
		purchase_price  TEXT NOT NULL DEFAULT '0',
		min_stock_level TEXT NOT NULL DEFAULT '0',
		expiry_date     TEXT,
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS counterparties (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		role            TEXT NOT NULL,
		opening_balance TEXT NOT NULL DEFAULT '0',
		phone           TEXT NOT NULL DEFAULT '',
		email           TEXT NOT NULL DEFAULT '',
		address         TEXT NOT NULL DEFAULT '',
		notes           TEXT NOT NULL DEFAULT '',
		created_at      TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_parties_role
		ON counterparties(role);

	CREATE TABLE IF NOT EXISTS invoices (
		id                  TEXT PRIMARY KEY,
		number              TEXT NOT NULL UNIQUE,
		type                TEXT NOT NULL,
		party_id            TEXT NOT NULL REFERENCES counterparties(id),
		items_json          TEXT NOT NULL,
		subtotal            TEXT NOT NULL,
		discount            TEXT NOT NULL,
		discount_type       TEXT NOT NULL,
		discount_amount     TEXT NOT NULL,
		vat_rate            TEXT NOT NULL,
		vat_amount          TEXT NOT NULL,
		total               TEXT NOT NULL,
		paid_amount         TEXT NOT NULL,
		balance_deduction   TEXT NOT NULL,
		payment_status      TEXT NOT NULL,
		invoice_date        TEXT NOT NULL,
		due_date            TEXT,
		is_return           BOOLEAN NOT NULL DEFAULT FALSE,
		original_invoice_id TEXT NOT NULL DEFAULT '',
		state               TEXT NOT NULL,
		revision            INTEGER NOT NULL DEFAULT 0,
		notes               TEXT NOT NULL DEFAULT '',
		created_at          TEXT NOT NULL,
		updated_at          TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_party
		ON invoices(party_id);
	CREATE INDEX IF NOT EXISTS idx_invoices_original
		ON invoices(original_invoice_id) WHERE original_invoice_id != '';

	CREATE TABLE IF NOT EXISTS vouchers (
		id         TEXT PRIMARY KEY,
		type       TEXT NOT NULL,
		party_id   TEXT NOT NULL REFERENCES counterparties(id),
		amount     TEXT NOT NULL,
		invoice_id TEXT NOT NULL DEFAULT '',
		date       TEXT NOT NULL,
		notes      TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_vouchers_party
		ON vouchers(party_id);

	-- Monotonic sequences: entry seq plus one row per invoice prefix
	CREATE TABLE IF NOT EXISTS counters (
		name  TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) rlock() {
	if s.mu != nil {
		s.mu.RLock()
	}
}

func (s *Store) runlock() {
	if s.mu != nil {
		s.mu.RUnlock()
	}
}

func (s *Store) lock() {
	if s.mu != nil {
		s.mu.Lock()
	}
}

func (s *Store) unlock() {
	if s.mu != nil {
		s.mu.Unlock()
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn inside one database transaction. The store handed to
// fn shares the connection but routes every statement through the tx.
func (s *Store) WithTx(ctx context.Context, fn func(store invoice.Store) error) error {
	s.lock()
	defer s.unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	txStore := &Store{db: s.db, q: sqlTx}
	if err := fn(txStore); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *Store) Accounts(ctx context.Context) ([]ledger.Account, error) {
	s.rlock()
	defer s.runlock()

	rows, err := s.q.QueryContext(ctx,
		"SELECT id, code, name, type, balance FROM accounts ORDER BY code")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *Store) Account(ctx context.Context, id string) (*ledger.Account, error) {
	s.rlock()
	defer s.runlock()

	var a ledger.Account
	var typ, balance string
	err := s.q.QueryRowContext(ctx,
		"SELECT id, code, name, type, balance FROM accounts WHERE id = ?", id,
	).Scan(&a.ID, &a.Code, &a.Name, &typ, &balance)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Type = ledger.AccountType(typ)
	a.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("account %s: bad balance %q: %w", a.ID, balance, err)
	}
	return &a, nil
}

func (s *Store) SaveAccount(ctx context.Context, a ledger.Account) error {
	s.lock()
	defer s.unlock()

	query := `
		INSERT INTO accounts (id, code, name, type, balance)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			name = excluded.name,
			type = excluded.type,
			balance = excluded.balance
	`
	_, err := s.q.ExecContext(ctx, query, a.ID, a.Code, a.Name, string(a.Type), a.Balance.String())
	return err
}

func scanAccount(rows *sql.Rows) (ledger.Account, error) {
	var a ledger.Account
	var typ, balance string
	if err := rows.Scan(&a.ID, &a.Code, &a.Name, &typ, &balance); err != nil {
		return a, err
	}
	a.Type = ledger.AccountType(typ)
	var err error
	a.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return a, fmt.Errorf("account %s: bad balance %q: %w", a.ID, balance, err)
	}
	return a, nil
}

// =============================================================================
// JOURNAL - Append-only
// =============================================================================

func (s *Store) NextEntrySeq(ctx context.Context) (int64, error) {
	s.lock()
	defer s.unlock()

	n, err := s.nextCounter(ctx, "entry_seq")
	return int64(n), err
}

func (s *Store) AppendEntry(ctx context.Context, e ledger.Entry) error {
	s.lock()
	defer s.unlock()

	key := ""
	if !e.IdempotencyKey.IsZero() {
		key = e.IdempotencyKey.String()
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO journal_entries
		(id, seq, entry_date, description, reference, entry_type,
		 op_type, op_invoice_id, op_attempt, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Seq, e.Date.Format(time.RFC3339), e.Description, e.Reference,
		string(e.Type), string(e.IdempotencyKey.Operation), e.IdempotencyKey.InvoiceID,
		e.IdempotencyKey.Attempt, key, e.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append entry %s: %w", e.Reference, err)
	}

	for i, l := range e.Lines {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO journal_lines (entry_id, line_no, account_id, account_name, debit, credit)
			VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, i, l.AccountID, l.AccountName, l.Debit.String(), l.Credit.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to append entry %s line %d: %w", e.Reference, i, err)
		}
	}
	return nil
}

func (s *Store) Entries(ctx context.Context) ([]ledger.Entry, error) {
	s.rlock()
	defer s.runlock()
	return s.queryEntries(ctx, entrySelect+" ORDER BY seq ASC")
}

func (s *Store) EntriesByReference(ctx context.Context, ref string) ([]ledger.Entry, error) {
	s.rlock()
	defer s.runlock()
	return s.queryEntries(ctx,
		entrySelect+" WHERE instr(reference, ?) > 0 ORDER BY seq ASC", ref)
}

func (s *Store) EntriesByKey(ctx context.Context, key string) ([]ledger.Entry, error) {
	s.rlock()
	defer s.runlock()
	return s.queryEntries(ctx,
		entrySelect+" WHERE idempotency_key = ? ORDER BY seq ASC", key)
}

const entrySelect = `
	SELECT id, seq, entry_date, description, reference, entry_type,
	       op_type, op_invoice_id, op_attempt, created_at
	FROM journal_entries`

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]ledger.Entry, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		var entryDate, entryType, opType, createdAt string
		if err := rows.Scan(&e.ID, &e.Seq, &entryDate, &e.Description, &e.Reference,
			&entryType, &opType, &e.IdempotencyKey.InvoiceID, &e.IdempotencyKey.Attempt,
			&createdAt); err != nil {
			return nil, err
		}
		e.Type = ledger.EntryType(entryType)
		e.IdempotencyKey.Operation = ledger.Operation(opType)
		e.Date, _ = time.Parse(time.RFC3339, entryDate)
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range entries {
		lines, err := s.entryLines(ctx, entries[i].ID)
		if err != nil {
			return nil, err
		}
		entries[i].Lines = lines
	}
	return entries, nil
}

func (s *Store) entryLines(ctx context.Context, entryID string) ([]ledger.Line, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT account_id, account_name, debit, credit
		FROM journal_lines WHERE entry_id = ? ORDER BY line_no ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []ledger.Line
	for rows.Next() {
		var l ledger.Line
		var debit, credit string
		if err := rows.Scan(&l.AccountID, &l.AccountName, &debit, &credit); err != nil {
			return nil, err
		}
		if l.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, fmt.Errorf("entry %s: bad debit %q: %w", entryID, debit, err)
		}
		if l.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, fmt.Errorf("entry %s: bad credit %q: %w", entryID, credit, err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// =============================================================================
// INVENTORY
// =============================================================================

func (s *Store) Items(ctx context.Context) ([]inventory.Item, error) {
	s.rlock()
	defer s.runlock()

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, sku, quantity, price, purchase_price, min_stock_level,
		       expiry_date, created_at, updated_at
		FROM inventory_items ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []inventory.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) Item(ctx context.Context, id string) (*inventory.Item, error) {
	s.rlock()
	defer s.runlock()

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, sku, quantity, price, purchase_price, min_stock_level,
		       expiry_date, created_at, updated_at
		FROM inventory_items WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	it, err := scanItem(rows)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *Store) SaveItem(ctx context.Context, it inventory.Item) error {
	s.lock()
	defer s.unlock()

	var expiry *string
	if it.ExpiryDate != nil {
		v := it.ExpiryDate.Format(time.RFC3339)
		expiry = &v
	}

	query := `
		INSERT INTO inventory_items
		(id, name, sku, quantity, price, purchase_price, min_stock_level,
		 expiry_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			sku = excluded.sku,
			quantity = excluded.quantity,
			price = excluded.price,
			purchase_price = excluded.purchase_price,
			min_stock_level = excluded.min_stock_level,
			expiry_date = excluded.expiry_date,
			updated_at = excluded.updated_at
	`
	_, err := s.q.ExecContext(ctx, query,
		it.ID, it.Name, it.SKU, it.Quantity.String(), it.Price.String(),
		it.PurchasePrice.String(), it.MinStockLevel.String(), expiry,
		it.CreatedAt.Format(time.RFC3339), it.UpdatedAt.Format(time.RFC3339),
	)
	return err
}

func scanItem(rows *sql.Rows) (inventory.Item, error) {
	var it inventory.Item
	var quantity, price, purchasePrice, minStock string
	var expiry sql.NullString
	var createdAt, updatedAt string

	if err := rows.Scan(&it.ID, &it.Name, &it.SKU, &quantity, &price,
		&purchasePrice, &minStock, &expiry, &createdAt, &updatedAt); err != nil {
		return it, err
	}

	var err error
	if it.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return it, fmt.Errorf("item %s: bad quantity %q: %w", it.ID, quantity, err)
	}
	if it.Price, err = decimal.NewFromString(price); err != nil {
		return it, fmt.Errorf("item %s: bad price %q: %w", it.ID, price, err)
	}
	if it.PurchasePrice, err = decimal.NewFromString(purchasePrice); err != nil {
		return it, fmt.Errorf("item %s: bad purchase price %q: %w", it.ID, purchasePrice, err)
	}
	if it.MinStockLevel, err = decimal.NewFromString(minStock); err != nil {
		return it, fmt.Errorf("item %s: bad min stock %q: %w", it.ID, minStock, err)
	}
	if expiry.Valid && expiry.String != "" {
		t, _ := time.Parse(time.RFC3339, expiry.String)
		it.ExpiryDate = &t
	}
	it.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	it.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return it, nil
}

// =============================================================================
// COUNTERPARTIES
// =============================================================================

func (s *Store) Parties(ctx context.Context, role party.Role) ([]party.Counterparty, error) {
	s.rlock()
	defer s.runlock()

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, role, opening_balance, phone, email, address, notes, created_at
		FROM counterparties WHERE role = ? ORDER BY name`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parties []party.Counterparty
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		parties = append(parties, p)
	}
	return parties, rows.Err()
}

func (s *Store) Party(ctx context.Context, id string) (*party.Counterparty, error) {
	s.rlock()
	defer s.runlock()

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, role, opening_balance, phone, email, address, notes, created_at
		FROM counterparties WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	p, err := scanParty(rows)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) SaveParty(ctx context.Context, p party.Counterparty) error {
	s.lock()
	defer s.unlock()

	query := `
		INSERT INTO counterparties
		(id, name, role, opening_balance, phone, email, address, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			opening_balance = excluded.opening_balance,
			phone = excluded.phone,
			email = excluded.email,
			address = excluded.address,
			notes = excluded.notes
	`
	_, err := s.q.ExecContext(ctx, query,
		p.ID, p.Name, string(p.Role), p.OpeningBalance.String(),
		p.Phone, p.Email, p.Address, p.Notes, p.CreatedAt.Format(time.RFC3339),
	)
	return err
}

func (s *Store) HasTransactions(ctx context.Context, partyID string) (bool, error) {
	s.rlock()
	defer s.runlock()

	var count int
	err := s.q.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM invoices WHERE party_id = ?)
		     + (SELECT COUNT(*) FROM vouchers WHERE party_id = ?)`,
		partyID, partyID,
	).Scan(&count)
	return count > 0, err
}

func scanParty(rows *sql.Rows) (party.Counterparty, error) {
	var p party.Counterparty
	var role, opening, createdAt string
	if err := rows.Scan(&p.ID, &p.Name, &role, &opening,
		&p.Phone, &p.Email, &p.Address, &p.Notes, &createdAt); err != nil {
		return p, err
	}
	p.Role = party.Role(role)
	var err error
	if p.OpeningBalance, err = decimal.NewFromString(opening); err != nil {
		return p, fmt.Errorf("party %s: bad opening balance %q: %w", p.ID, opening, err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return p, nil
}

// =============================================================================
// INVOICES
// =============================================================================

const invoiceSelect = `
	SELECT id, number, type, party_id, items_json, subtotal, discount,
	       discount_type, discount_amount, vat_rate, vat_amount, total,
	       paid_amount, balance_deduction, payment_status, invoice_date,
	       due_date, is_return, original_invoice_id, state, revision, notes,
	       created_at, updated_at
	FROM invoices`

func (s *Store) Invoices(ctx context.Context) ([]invoice.Invoice, error) {
	s.rlock()
	defer s.runlock()

	rows, err := s.q.QueryContext(ctx, invoiceSelect+" ORDER BY number")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []invoice.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (s *Store) Invoice(ctx context.Context, id string) (*invoice.Invoice, error) {
	s.rlock()
	defer s.runlock()

	rows, err := s.q.QueryContext(ctx, invoiceSelect+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	inv, err := scanInvoice(rows)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *Store) AddInvoice(ctx context.Context, inv invoice.Invoice) error {
	s.lock()
	defer s.unlock()
	return s.writeInvoice(ctx, inv, `
		INSERT INTO invoices
		(id, number, type, party_id, items_json, subtotal, discount,
		 discount_type, discount_amount, vat_rate, vat_amount, total,
		 paid_amount, balance_deduction, payment_status, invoice_date,
		 due_date, is_return, original_invoice_id, state, revision, notes,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
}

func (s *Store) UpdateInvoice(ctx context.Context, inv invoice.Invoice) error {
	s.lock()
	defer s.unlock()

	itemsJSON, err := json.Marshal(toStoredItems(inv.Items))
	if err != nil {
		return fmt.Errorf("failed to encode invoice items: %w", err)
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE invoices SET
			number = ?, type = ?, party_id = ?, items_json = ?, subtotal = ?,
			discount = ?, discount_type = ?, discount_amount = ?, vat_rate = ?,
			vat_amount = ?, total = ?, paid_amount = ?, balance_deduction = ?,
			payment_status = ?, invoice_date = ?, due_date = ?, is_return = ?,
			original_invoice_id = ?, state = ?, revision = ?, notes = ?,
			updated_at = ?
		WHERE id = ?`,
		inv.Number, string(inv.Type), inv.PartyID, string(itemsJSON),
		inv.Subtotal.String(), inv.Discount.String(), string(inv.DiscountType),
		inv.DiscountAmount.String(), inv.VATRate.String(), inv.VATAmount.String(),
		inv.Total.String(), inv.PaidAmount.String(), inv.BalanceDeduction.String(),
		string(inv.PaymentStatus), inv.Date.Format(time.RFC3339), nullTime(inv.DueDate),
		inv.IsReturn, inv.OriginalInvoiceID, string(inv.State), inv.Revision, inv.Notes,
		inv.UpdatedAt.Format(time.RFC3339), inv.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("invoice %q: %w", inv.ID, invoice.ErrInvoiceNotFound)
	}
	return nil
}

func (s *Store) DeleteInvoice(ctx context.Context, id string) error {
	s.lock()
	defer s.unlock()

	res, err := s.q.ExecContext(ctx, "DELETE FROM invoices WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("invoice %q: %w", id, invoice.ErrInvoiceNotFound)
	}
	return nil
}

func (s *Store) NextInvoiceNumber(ctx context.Context, prefix string) (string, error) {
	s.lock()
	defer s.unlock()

	n, err := s.nextCounter(ctx, "invoice_"+prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%06d", prefix, n), nil
}

func (s *Store) writeInvoice(ctx context.Context, inv invoice.Invoice, query string) error {
	itemsJSON, err := json.Marshal(toStoredItems(inv.Items))
	if err != nil {
		return fmt.Errorf("failed to encode invoice items: %w", err)
	}

	_, err = s.q.ExecContext(ctx, query,
		inv.ID, inv.Number, string(inv.Type), inv.PartyID, string(itemsJSON),
		inv.Subtotal.String(), inv.Discount.String(), string(inv.DiscountType),
		inv.DiscountAmount.String(), inv.VATRate.String(), inv.VATAmount.String(),
		inv.Total.String(), inv.PaidAmount.String(), inv.BalanceDeduction.String(),
		string(inv.PaymentStatus), inv.Date.Format(time.RFC3339), nullTime(inv.DueDate),
		inv.IsReturn, inv.OriginalInvoiceID, string(inv.State), inv.Revision, inv.Notes,
		inv.CreatedAt.Format(time.RFC3339), inv.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to store invoice %s: %w", inv.Number, err)
	}
	return nil
}

// storedItem is the JSON shape of one invoice line in the items column.
type storedItem struct {
	ItemID       string          `json:"itemId"`
	Name         string          `json:"name"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	ColorPrice   decimal.Decimal `json:"colorPrice"`
	Discount     decimal.Decimal `json:"discount"`
	DiscountType string          `json:"discountType"`
	Total        decimal.Decimal `json:"total"`
	ExpiryDate   *time.Time      `json:"expiryDate,omitempty"`
}

func toStoredItems(items []invoice.Item) []storedItem {
	out := make([]storedItem, len(items))
	for i, it := range items {
		out[i] = storedItem{
			ItemID:       it.ItemID,
			Name:         it.Name,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			ColorPrice:   it.ColorPrice,
			Discount:     it.Discount,
			DiscountType: string(it.DiscountType),
			Total:        it.Total,
			ExpiryDate:   it.ExpiryDate,
		}
	}
	return out
}

func fromStoredItems(items []storedItem) []invoice.Item {
	out := make([]invoice.Item, len(items))
	for i, it := range items {
		out[i] = invoice.Item{
			ItemID:       it.ItemID,
			Name:         it.Name,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			ColorPrice:   it.ColorPrice,
			Discount:     it.Discount,
			DiscountType: invoice.DiscountType(it.DiscountType),
			Total:        it.Total,
			ExpiryDate:   it.ExpiryDate,
		}
	}
	return out
}

func scanInvoice(rows *sql.Rows) (invoice.Invoice, error) {
	var inv invoice.Invoice
	var typ, itemsJSON, discountType, status, state string
	var subtotal, discount, discountAmount, vatRate, vatAmount, total, paid, deduction string
	var invoiceDate, createdAt, updatedAt string
	var dueDate sql.NullString

	err := rows.Scan(&inv.ID, &inv.Number, &typ, &inv.PartyID, &itemsJSON,
		&subtotal, &discount, &discountType, &discountAmount, &vatRate,
		&vatAmount, &total, &paid, &deduction, &status, &invoiceDate,
		&dueDate, &inv.IsReturn, &inv.OriginalInvoiceID, &state, &inv.Revision,
		&inv.Notes, &createdAt, &updatedAt)
	if err != nil {
		return inv, fmt.Errorf("failed to scan invoice: %w", err)
	}

	inv.Type = invoice.Type(typ)
	inv.DiscountType = invoice.DiscountType(discountType)
	inv.PaymentStatus = invoice.PaymentStatus(status)
	inv.State = invoice.State(state)

	var items []storedItem
	if err := json.Unmarshal([]byte(itemsJSON), &items); err != nil {
		return inv, fmt.Errorf("invoice %s: bad items payload: %w", inv.ID, err)
	}
	inv.Items = fromStoredItems(items)

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&inv.Subtotal, subtotal}, {&inv.Discount, discount},
		{&inv.DiscountAmount, discountAmount}, {&inv.VATRate, vatRate},
		{&inv.VATAmount, vatAmount}, {&inv.Total, total},
		{&inv.PaidAmount, paid}, {&inv.BalanceDeduction, deduction},
	} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return inv, fmt.Errorf("invoice %s: bad amount %q: %w", inv.ID, f.src, err)
		}
	}

	inv.Date, _ = time.Parse(time.RFC3339, invoiceDate)
	if dueDate.Valid && dueDate.String != "" {
		inv.DueDate, _ = time.Parse(time.RFC3339, dueDate.String)
	}
	inv.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	inv.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return inv, nil
}

// =============================================================================
// VOUCHERS
// =============================================================================

func (s *Store) Vouchers(ctx context.Context) ([]party.Voucher, error) {
	s.rlock()
	defer s.runlock()

	rows, err := s.q.QueryContext(ctx,
		"SELECT id, type, party_id, amount, invoice_id, date, notes FROM vouchers ORDER BY date")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vouchers []party.Voucher
	for rows.Next() {
		var v party.Voucher
		var typ, amount, date string
		if err := rows.Scan(&v.ID, &typ, &v.PartyID, &amount, &v.InvoiceID, &date, &v.Notes); err != nil {
			return nil, err
		}
		v.Type = party.VoucherType(typ)
		if v.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("voucher %s: bad amount %q: %w", v.ID, amount, err)
		}
		v.Date, _ = time.Parse(time.RFC3339, date)
		vouchers = append(vouchers, v)
	}
	return vouchers, rows.Err()
}

func (s *Store) AddVoucher(ctx context.Context, v party.Voucher) error {
	s.lock()
	defer s.unlock()

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO vouchers (id, type, party_id, amount, invoice_id, date, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ID, string(v.Type), v.PartyID, v.Amount.String(), v.InvoiceID,
		v.Date.Format(time.RFC3339), v.Notes,
	)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

// nextCounter increments and returns the named monotonic counter. Callers
// hold the write lock (or run inside a transaction), so the exec+select
// pair is atomic.
func (s *Store) nextCounter(ctx context.Context, name string) (int, error) {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO counters (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1`, name)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.q.QueryRowContext(ctx, "SELECT value FROM counters WHERE name = ?", name).Scan(&n)
	return n, err
}

func nullTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	v := t.Format(time.RFC3339)
	return &v
}

/*
ledger.go - Append-only journal with idempotent reversal

PURPOSE:
  The Ledger is the source of truth for every monetary effect in the
  system. Invoice creation, payments, balance deductions and returns all
  land here as balanced entries. Account balances are a cache the ledger
  maintains as it posts.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: entries are never updated or deleted
  2. BALANCED: Post rejects any entry whose debits != credits
  3. IDEMPOTENT REVERSAL: reversing twice has the effect of reversing once
  4. DUPLICATE GUARD: a guarded posting whose key is already active is a
     no-op, reported as skipped rather than failed

REVERSAL MODEL:
  Reverse(reference) finds every active entry whose reference contains the
  business key, skips entries that are themselves reversals, skips entries
  whose own reversal was already posted, and posts a new entry with every
  line's debit/credit swapped. A reversal is matched to its entry through
  the reversed entry's sequence number, carried in the reversal's
  idempotency key; entries later reposted under the same reference (edit
  revisions) are therefore reversible again. The original entry stays in
  the journal forever.

DUPLICATE GUARD:
  PostGuarded checks the structured idempotency key before posting. An
  active (non-reversed) entry with the same key means the work was already
  done: the call reports skipped=true and posts nothing. If the prior entry
  was reversed, a fresh posting is permitted.

SEE ALSO:
  - entry.go: Entry, Line, IdempotencyKey
  - store/memory: in-memory Store for tests
  - store/sqlite: production Store
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// =============================================================================
// STORE - Persistence required by the ledger
// =============================================================================

// Store is the persistence surface the ledger needs. Entries are
// append-only; accounts are read-modify-write for the balance cache.
type Store interface {
	Accounts(ctx context.Context) ([]Account, error)
	Account(ctx context.Context, id string) (*Account, error)
	SaveAccount(ctx context.Context, a Account) error

	NextEntrySeq(ctx context.Context) (int64, error)
	AppendEntry(ctx context.Context, e Entry) error
	Entries(ctx context.Context) ([]Entry, error)
	// EntriesByReference returns entries whose reference contains ref.
	EntriesByReference(ctx context.Context, ref string) ([]Entry, error)
	// EntriesByKey returns entries with the exact idempotency key.
	EntriesByKey(ctx context.Context, key string) ([]Entry, error)
}

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	Store Store
	Log   zerolog.Logger
	Clock func() time.Time
}

func New(store Store) *Ledger {
	return &Ledger{Store: store, Log: zerolog.Nop(), Clock: time.Now}
}

// Post validates and appends an entry, then updates the cached balance of
// every touched account. The sequence number is assigned here.
func (l *Ledger) Post(ctx context.Context, e Entry) (Entry, error) {
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}

	// Validate account references before any mutation.
	for _, line := range e.Lines {
		acct, err := l.Store.Account(ctx, line.AccountID)
		if err != nil {
			return Entry{}, err
		}
		if acct == nil {
			return Entry{}, fmt.Errorf("account %q: %w", line.AccountID, ErrAccountNotFound)
		}
	}

	seq, err := l.Store.NextEntrySeq(ctx)
	if err != nil {
		return Entry{}, err
	}
	e.Seq = seq
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.Clock()
	}
	if e.Date.IsZero() {
		e.Date = e.CreatedAt
	}

	if err := l.Store.AppendEntry(ctx, e); err != nil {
		return Entry{}, err
	}
	if err := l.applyToAccounts(ctx, e); err != nil {
		return Entry{}, err
	}

	l.Log.Debug().
		Int64("seq", e.Seq).
		Str("reference", e.Reference).
		Str("type", string(e.Type)).
		Str("debit", e.TotalDebit().StringFixed(3)).
		Msg("posted journal entry")
	return e, nil
}

// PostGuarded posts the entry unless an active entry with the same
// idempotency key already exists. Returns posted=false (and no error)
// when the posting is skipped.
func (l *Ledger) PostGuarded(ctx context.Context, e Entry) (Entry, bool, error) {
	if !e.IdempotencyKey.IsZero() {
		active, err := l.activeKeyExists(ctx, e.IdempotencyKey)
		if err != nil {
			return Entry{}, false, err
		}
		if active {
			l.Log.Info().
				Str("key", e.IdempotencyKey.String()).
				Str("reference", e.Reference).
				Msg("duplicate posting skipped")
			return Entry{}, false, nil
		}
	}
	posted, err := l.Post(ctx, e)
	if err != nil {
		return Entry{}, false, err
	}
	return posted, true, nil
}

// Reverse negates every active entry whose reference contains the given
// business key. Idempotent: entries already reversed are left alone.
// Returns the number of reversal entries posted.
func (l *Ledger) Reverse(ctx context.Context, reference string) (int, error) {
	if reference == "" {
		return 0, nil
	}
	matches, err := l.Store.EntriesByReference(ctx, reference)
	if err != nil {
		return 0, err
	}

	reversed := 0
	for _, e := range matches {
		if e.Type == EntryReversal {
			continue
		}
		done, err := l.isReversed(ctx, e)
		if err != nil {
			return reversed, err
		}
		if done {
			continue
		}

		rev := Entry{
			Date:        l.Clock(),
			Description: "Reversal of " + e.Description,
			Reference:   "REV-" + e.Reference,
			Type:        EntryReversal,
			Lines:       make([]Line, 0, len(e.Lines)),
			IdempotencyKey: IdempotencyKey{
				Operation: OpReversal,
				InvoiceID: reversalSubject(e),
				Attempt:   int(e.Seq),
			},
		}
		for _, line := range e.Lines {
			rev.Lines = append(rev.Lines, line.Swapped())
		}
		if _, err := l.Post(ctx, rev); err != nil {
			return reversed, err
		}
		reversed++
	}
	return reversed, nil
}

// IsReversed reports whether the entry already has a matching reversal.
func (l *Ledger) IsReversed(ctx context.Context, e Entry) (bool, error) {
	return l.isReversed(ctx, e)
}

// isReversed checks for this entry's own reversal, not merely any
// REV-<reference> entry. Reversal keys carry the reversed entry's Seq,
// so an entry reposted under the same reference (edit revisions) is not
// shadowed by an older reversal.
func (l *Ledger) isReversed(ctx context.Context, e Entry) (bool, error) {
	key := IdempotencyKey{
		Operation: OpReversal,
		InvoiceID: reversalSubject(e),
		Attempt:   int(e.Seq),
	}
	counterparts, err := l.Store.EntriesByKey(ctx, key.String())
	if err != nil {
		return false, err
	}
	for _, c := range counterparts {
		if c.Type == EntryReversal {
			return true, nil
		}
	}
	return false, nil
}

func (l *Ledger) activeKeyExists(ctx context.Context, k IdempotencyKey) (bool, error) {
	entries, err := l.Store.EntriesByKey(ctx, k.String())
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Type == EntryReversal {
			continue
		}
		done, err := l.isReversed(ctx, e)
		if err != nil {
			return false, err
		}
		if !done {
			return true, nil
		}
	}
	return false, nil
}

func (l *Ledger) applyToAccounts(ctx context.Context, e Entry) error {
	for _, line := range e.Lines {
		acct, err := l.Store.Account(ctx, line.AccountID)
		if err != nil {
			return err
		}
		if acct == nil {
			return fmt.Errorf("account %q: %w", line.AccountID, ErrAccountNotFound)
		}
		acct.Balance = acct.Balance.Add(acct.Type.BalanceDelta(line.Debit, line.Credit))
		if err := l.Store.SaveAccount(ctx, *acct); err != nil {
			return err
		}
	}
	return nil
}

// reversalSubject picks the invoice the reversal key should be scoped to.
// Falls back to the reference for entries not tied to an invoice.
func reversalSubject(e Entry) string {
	if e.IdempotencyKey.InvoiceID != "" {
		return e.IdempotencyKey.InvoiceID
	}
	return e.Reference
}

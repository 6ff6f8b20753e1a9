package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/MinaMohsen466/accounting-engine/ledger"
	"github.com/MinaMohsen466/accounting-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestLedger(t *testing.T) (*ledger.Ledger, *memory.Memory) {
	t.Helper()
	store := memory.NewWithChart()
	l := ledger.New(store)
	l.Clock = func() time.Time { return time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC) }
	return l, store
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dr(account, name, amount string) ledger.Line {
	return ledger.Line{AccountID: account, AccountName: name, Debit: money(amount), Credit: decimal.Zero}
}

func cr(account, name, amount string) ledger.Line {
	return ledger.Line{AccountID: account, AccountName: name, Debit: decimal.Zero, Credit: money(amount)}
}

func bankRevenueEntry(ref, amount string) ledger.Entry {
	return ledger.Entry{
		Description: "Sales invoice " + ref,
		Reference:   ref,
		Type:        ledger.EntryNormal,
		Lines: []ledger.Line{
			dr(ledger.AccountBank, "Bank", amount),
			cr(ledger.AccountSalesRevenue, "Sales Revenue", amount),
		},
	}
}

func accountBalance(t *testing.T, store *memory.Memory, id string) decimal.Decimal {
	t.Helper()
	a, err := store.Account(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, a)
	return a.Balance
}

// =============================================================================
// POSTING
// =============================================================================

func TestPost_BalancedEntry_UpdatesAccountCaches(t *testing.T) {
	// GIVEN: A fresh chart of accounts
	// WHEN: Posting Bank 20.000 debit / Sales Revenue 20.000 credit
	// THEN: Both cached balances move by 20.000 with their own sign convention

	ctx := context.Background()
	l, store := newTestLedger(t)

	posted, err := l.Post(ctx, bankRevenueEntry("INV-000001", "20.000"))
	require.NoError(t, err)
	require.Equal(t, int64(1), posted.Seq)
	require.NotEmpty(t, posted.ID)

	require.True(t, accountBalance(t, store, ledger.AccountBank).Equal(money("20.000")),
		"asset account increases on the debit side")
	require.True(t, accountBalance(t, store, ledger.AccountSalesRevenue).Equal(money("20.000")),
		"revenue account increases on the credit side")
}

func TestPost_UnbalancedEntry_Rejected(t *testing.T) {
	// GIVEN: An entry whose debits exceed its credits
	// WHEN: Posting it
	// THEN: The post fails and no account balance moves

	ctx := context.Background()
	l, store := newTestLedger(t)

	e := ledger.Entry{
		Description: "broken",
		Reference:   "BAD-1",
		Type:        ledger.EntryNormal,
		Lines: []ledger.Line{
			dr(ledger.AccountBank, "Bank", "10"),
			cr(ledger.AccountSalesRevenue, "Sales Revenue", "9"),
		},
	}
	_, err := l.Post(ctx, e)
	require.ErrorIs(t, err, ledger.ErrUnbalancedEntry)

	require.True(t, accountBalance(t, store, ledger.AccountBank).IsZero())
	entries, err := store.Entries(ctx)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestPost_TwoSidedLine_Rejected(t *testing.T) {
	// GIVEN: A line carrying both a debit and a credit
	// WHEN: Posting
	// THEN: Rejected as an invalid line

	l, _ := newTestLedger(t)
	e := ledger.Entry{
		Reference: "BAD-2",
		Type:      ledger.EntryNormal,
		Lines: []ledger.Line{
			{AccountID: ledger.AccountBank, AccountName: "Bank", Debit: money("5"), Credit: money("5")},
			cr(ledger.AccountSalesRevenue, "Sales Revenue", "0"),
		},
	}
	_, err := l.Post(context.Background(), e)
	require.ErrorIs(t, err, ledger.ErrInvalidLine)
}

func TestPost_UnknownAccount_Rejected(t *testing.T) {
	// GIVEN: An entry referencing an account missing from the chart
	// WHEN: Posting
	// THEN: Rejected before any mutation

	l, store := newTestLedger(t)
	e := ledger.Entry{
		Reference: "BAD-3",
		Type:      ledger.EntryNormal,
		Lines: []ledger.Line{
			dr("9999", "Ghost", "10"),
			cr(ledger.AccountSalesRevenue, "Sales Revenue", "10"),
		},
	}
	_, err := l.Post(context.Background(), e)
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)

	entries, err := store.Entries(context.Background())
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestBalanceDelta_SignConvention(t *testing.T) {
	// Asset/expense accounts grow with debits; the rest grow with credits.
	debit, credit := money("7"), money("3")

	require.True(t, ledger.Asset.BalanceDelta(debit, credit).Equal(money("4")))
	require.True(t, ledger.Expense.BalanceDelta(debit, credit).Equal(money("4")))
	require.True(t, ledger.ContraRevenue.BalanceDelta(debit, credit).Equal(money("4")))
	require.True(t, ledger.Liability.BalanceDelta(debit, credit).Equal(money("-4")))
	require.True(t, ledger.Revenue.BalanceDelta(debit, credit).Equal(money("-4")))
	require.True(t, ledger.Equity.BalanceDelta(debit, credit).Equal(money("-4")))
}

// =============================================================================
// REVERSAL
// =============================================================================

func TestReverse_NegatesEntryOnce(t *testing.T) {
	// GIVEN: A posted invoice entry
	// WHEN: Reversing by reference, twice
	// THEN: Exactly one reversal entry exists and balances return to zero

	ctx := context.Background()
	l, store := newTestLedger(t)

	_, err := l.Post(ctx, bankRevenueEntry("INV-000001", "50.000"))
	require.NoError(t, err)

	n, err := l.Reverse(ctx, "INV-000001")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// Second reversal is a no-op.
	n, err = l.Reverse(ctx, "INV-000001")
	require.NoError(t, err)
	require.Equal(t, 0, n)

	require.True(t, accountBalance(t, store, ledger.AccountBank).IsZero())
	require.True(t, accountBalance(t, store, ledger.AccountSalesRevenue).IsZero())

	entries, err := store.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2, "original entry stays in the journal forever")
	require.Equal(t, ledger.EntryReversal, entries[1].Type)
	require.Equal(t, "REV-INV-000001", entries[1].Reference)
}

func TestReverse_ContainmentMatchesRelatedEntries(t *testing.T) {
	// GIVEN: An invoice entry plus its payment entry (PAY-<number>)
	// WHEN: Reversing by the invoice number
	// THEN: Both entries are reversed

	ctx := context.Background()
	l, store := newTestLedger(t)

	_, err := l.Post(ctx, bankRevenueEntry("INV-000002", "30.000"))
	require.NoError(t, err)
	pay := ledger.Entry{
		Description: "Payment for INV-000002",
		Reference:   "PAY-INV-000002",
		Type:        ledger.EntryPayment,
		Lines: []ledger.Line{
			dr(ledger.AccountBank, "Bank", "10.000"),
			cr(ledger.AccountReceivable, "Accounts Receivable", "10.000"),
		},
	}
	_, err = l.Post(ctx, pay)
	require.NoError(t, err)

	n, err := l.Reverse(ctx, "INV-000002")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.True(t, accountBalance(t, store, ledger.AccountBank).IsZero())
	require.True(t, accountBalance(t, store, ledger.AccountReceivable).IsZero())
}

func TestReverse_SkipsReversalEntries(t *testing.T) {
	// GIVEN: An already-reversed entry whose reversal contains the reference
	// WHEN: Reversing again
	// THEN: The reversal entry itself is never reversed

	ctx := context.Background()
	l, store := newTestLedger(t)

	_, err := l.Post(ctx, bankRevenueEntry("INV-000003", "15.000"))
	require.NoError(t, err)
	_, err = l.Reverse(ctx, "INV-000003")
	require.NoError(t, err)

	n, err := l.Reverse(ctx, "INV-000003")
	require.NoError(t, err)
	require.Equal(t, 0, n)

	entries, err := store.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestReverse_RepostedReferenceIsReversibleAgain(t *testing.T) {
	// GIVEN: A reference that was reversed and then reposted
	// WHEN: Reversing the reference again
	// THEN: The reposted entry is reversed; the old reversal does not
	//       shadow it

	ctx := context.Background()
	l, store := newTestLedger(t)

	_, err := l.Post(ctx, bankRevenueEntry("INV-000006", "20.000"))
	require.NoError(t, err)
	n, err := l.Reverse(ctx, "INV-000006")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = l.Post(ctx, bankRevenueEntry("INV-000006", "35.000"))
	require.NoError(t, err)
	require.True(t, accountBalance(t, store, ledger.AccountBank).Equal(money("35.000")))

	n, err = l.Reverse(ctx, "INV-000006")
	require.NoError(t, err)
	require.Equal(t, 1, n, "only the live repost is reversed")
	require.True(t, accountBalance(t, store, ledger.AccountBank).IsZero())
	require.True(t, accountBalance(t, store, ledger.AccountSalesRevenue).IsZero())

	entries, err := store.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 4)
}

// =============================================================================
// DUPLICATE GUARD
// =============================================================================

func TestPostGuarded_SkipsDuplicateKey(t *testing.T) {
	// GIVEN: A guarded entry already posted
	// WHEN: Posting the same key again
	// THEN: The second posting is skipped without error

	ctx := context.Background()
	l, store := newTestLedger(t)

	e := bankRevenueEntry("INV-000004", "25.000")
	e.IdempotencyKey = ledger.IdempotencyKey{Operation: ledger.OpInvoice, InvoiceID: "inv-4", Attempt: 1}

	_, posted, err := l.PostGuarded(ctx, e)
	require.NoError(t, err)
	require.True(t, posted)

	_, posted, err = l.PostGuarded(ctx, e)
	require.NoError(t, err)
	require.False(t, posted, "active duplicate key must be skipped")

	require.True(t, accountBalance(t, store, ledger.AccountBank).Equal(money("25.000")))
}

func TestPostGuarded_RepostAllowedAfterReversal(t *testing.T) {
	// GIVEN: A guarded entry that has since been reversed
	// WHEN: Posting the same key again
	// THEN: The key is no longer active and the posting goes through

	ctx := context.Background()
	l, store := newTestLedger(t)

	e := bankRevenueEntry("INV-000005", "40.000")
	e.IdempotencyKey = ledger.IdempotencyKey{Operation: ledger.OpInvoice, InvoiceID: "inv-5", Attempt: 1}

	_, posted, err := l.PostGuarded(ctx, e)
	require.NoError(t, err)
	require.True(t, posted)

	_, err = l.Reverse(ctx, "INV-000005")
	require.NoError(t, err)

	_, posted, err = l.PostGuarded(ctx, e)
	require.NoError(t, err)
	require.True(t, posted, "reversed key must accept a fresh posting")

	require.True(t, accountBalance(t, store, ledger.AccountBank).Equal(money("40.000")))
}

func TestIdempotencyKey_String(t *testing.T) {
	k := ledger.IdempotencyKey{Operation: ledger.OpPayment, InvoiceID: "abc", Attempt: 2}
	require.Equal(t, "payment:abc:2", k.String())
	require.False(t, k.IsZero())
	require.True(t, ledger.IdempotencyKey{}.IsZero())
}

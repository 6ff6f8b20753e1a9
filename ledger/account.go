/*
account.go - Chart of accounts and the cached balance convention

PURPOSE:
  Defines Account, the account types, and the sign convention used when
  journal postings update the cached account balance.

BALANCE CACHE:
  Account.Balance is a derived value maintained exclusively by the ledger
  when entries are posted. No user-facing flow writes it directly. If the
  cache were ever lost it could be rebuilt by replaying every entry.

SIGN CONVENTION:
  Asset, expense and contra-revenue accounts increase on the debit side.
  Liability, equity and revenue accounts increase on the credit side.

SEE ALSO:
  - chart.go: Default account set
  - ledger.go: Posting logic that maintains the cache
*/
package ledger

import "github.com/shopspring/decimal"

// =============================================================================
// ACCOUNT TYPES
// =============================================================================

type AccountType string

const (
	Asset     AccountType = "asset"
	Liability AccountType = "liability"
	Equity    AccountType = "equity"
	Revenue   AccountType = "revenue"
	Expense   AccountType = "expense"
	// ContraRevenue is debit-normal: Sales Returns grows when debited,
	// offsetting Sales Revenue.
	ContraRevenue AccountType = "contra-revenue"
)

// BalanceDelta returns the signed effect on an account of this type when
// the given debit and credit totals are posted to it.
func (t AccountType) BalanceDelta(debit, credit decimal.Decimal) decimal.Decimal {
	switch t {
	case Asset, Expense, ContraRevenue:
		return debit.Sub(credit)
	default:
		return credit.Sub(debit)
	}
}

// =============================================================================
// ACCOUNT
// =============================================================================

// Account is one row of the chart of accounts.
// Balance is a cache maintained by Ledger.Post; never set it directly.
type Account struct {
	ID      string
	Code    string
	Name    string
	Type    AccountType
	Balance decimal.Decimal
}

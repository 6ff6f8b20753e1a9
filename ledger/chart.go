package ledger

import "github.com/shopspring/decimal"

// Well-known account IDs used by the invoice posting model.
// The ID doubles as the account code.
const (
	AccountBank         = "1000"
	AccountReceivable   = "1100"
	AccountInventory    = "1200"
	AccountPayable      = "2000"
	AccountClearing     = "2100"
	AccountSalesRevenue = "4000"
	AccountSalesReturns = "4100"
	AccountCOGS         = "5000"
)

// DefaultChart returns the starting chart of accounts. Balances start at
// zero; opening positions are introduced through journal entries.
func DefaultChart() []Account {
	mk := func(id, name string, t AccountType) Account {
		return Account{ID: id, Code: id, Name: name, Type: t, Balance: decimal.Zero}
	}
	return []Account{
		mk(AccountBank, "Bank", Asset),
		mk(AccountReceivable, "Accounts Receivable", Asset),
		mk(AccountInventory, "Inventory", Asset),
		mk(AccountPayable, "Accounts Payable", Liability),
		mk(AccountClearing, "Counterparty Balance Clearing", Liability),
		mk(AccountSalesRevenue, "Sales Revenue", Revenue),
		mk(AccountSalesReturns, "Sales Returns", ContraRevenue),
		mk(AccountCOGS, "Cost of Goods Sold", Expense),
	}
}

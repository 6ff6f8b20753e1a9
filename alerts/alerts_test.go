package alerts_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/MinaMohsen466/accounting-engine/alerts"
	"github.com/MinaMohsen466/accounting-engine/inventory"
	"github.com/MinaMohsen466/accounting-engine/invoice"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var now = time.Date(2025, time.July, 15, 14, 30, 0, 0, time.UTC)

func days(n int) time.Time { return now.AddDate(0, 0, n) }

func unpaid(number string, due time.Time) invoice.Invoice {
	return invoice.Invoice{Number: number, PaymentStatus: invoice.StatusPending, DueDate: due}
}

func qty(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

// =============================================================================
// INVOICE ALERTS
// =============================================================================

func TestOverdue(t *testing.T) {
	// GIVEN: Invoices on both sides of the due date
	// WHEN: Deriving overdue
	// THEN: Only unpaid past-due non-returns qualify

	paid := unpaid("INV-2", days(-3))
	paid.PaymentStatus = invoice.StatusPaid
	ret := unpaid("RET-1", days(-3))
	ret.IsReturn = true

	got := alerts.Overdue([]invoice.Invoice{
		unpaid("INV-1", days(-1)),
		paid,
		ret,
		unpaid("INV-3", days(2)),
		unpaid("INV-4", time.Time{}), // no due date, never overdue
	}, now)

	require.Len(t, got, 1)
	require.Equal(t, "INV-1", got[0].Number)
}

func TestOverdue_DueTodayIsNotOverdue(t *testing.T) {
	// Comparison happens at date granularity: due today means due, not late.
	earlier := time.Date(now.Year(), now.Month(), now.Day(), 8, 0, 0, 0, time.UTC)
	got := alerts.Overdue([]invoice.Invoice{unpaid("INV-1", earlier)}, now)
	require.Empty(t, got)
}

func TestDueSoon_WindowInclusive(t *testing.T) {
	// GIVEN: A 7-day window
	// WHEN: Deriving due-soon
	// THEN: Today through day 7 inclusive; past-due and beyond excluded

	got := alerts.DueSoon([]invoice.Invoice{
		unpaid("INV-1", days(-1)), // already overdue, not "soon"
		unpaid("INV-2", days(0)),
		unpaid("INV-3", days(7)),
		unpaid("INV-4", days(8)),
	}, now, 7)

	require.Len(t, got, 2)
	require.Equal(t, "INV-2", got[0].Number)
	require.Equal(t, "INV-3", got[1].Number)
}

func TestDueSoon_PartialStillCounts(t *testing.T) {
	inv := unpaid("INV-1", days(3))
	inv.PaymentStatus = invoice.StatusPartial
	got := alerts.DueSoon([]invoice.Invoice{inv}, now, 7)
	require.Len(t, got, 1)
}

// =============================================================================
// INVENTORY ALERTS
// =============================================================================

func TestLowStock(t *testing.T) {
	got := alerts.LowStock([]inventory.Item{
		{ID: "a", Quantity: qty(2), MinStockLevel: qty(5)},
		{ID: "b", Quantity: qty(5), MinStockLevel: qty(5)}, // at the level, not below
		{ID: "c", Quantity: qty(9), MinStockLevel: qty(5)},
	})
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].ID)
}

func TestExpiring_ExcludesAlreadyExpired(t *testing.T) {
	// GIVEN: Expired, expiring and far-future stock
	// WHEN: Deriving with a 30-day window
	// THEN: Only stock expiring within the window is flagged

	past, soon, far := days(-2), days(10), days(45)
	got := alerts.Expiring([]inventory.Item{
		{ID: "expired", ExpiryDate: &past},
		{ID: "soon", ExpiryDate: &soon},
		{ID: "far", ExpiryDate: &far},
		{ID: "none"},
	}, now, 30)

	require.Len(t, got, 1)
	require.Equal(t, "soon", got[0].ID)
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestDerive(t *testing.T) {
	soon := days(20)
	s := alerts.Derive(
		[]invoice.Invoice{unpaid("INV-1", days(-1)), unpaid("INV-2", days(5))},
		[]inventory.Item{
			{ID: "low", Quantity: qty(1), MinStockLevel: qty(3)},
			{ID: "exp", ExpiryDate: &soon},
		},
		now, 7,
	)

	require.Len(t, s.Overdue, 1)
	require.Len(t, s.DueSoon, 1)
	require.Len(t, s.LowStock, 1)
	require.Len(t, s.Expiring, 1)
}

package invoice_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MinaMohsen466/accounting-engine/inventory"
	"github.com/MinaMohsen466/accounting-engine/invoice"
	"github.com/MinaMohsen466/accounting-engine/ledger"
	"github.com/MinaMohsen466/accounting-engine/party"
)

// =============================================================================
// SALES RETURNS
// =============================================================================

func TestReturn_PartialWithLineDiscountApportioned(t *testing.T) {
	// GIVEN: A pending sale of 3 widgets at 10 with a flat line discount of 3
	// WHEN: Returning 1 widget
	// THEN: The return carries a third of the discount (total 9), stock
	//       comes back, and the original is partially returned

	ctx := context.Background()
	m, store := newTestManager(t)
	seedItem(t, store, "widget", "10", "4")
	seedParty(t, store, "acme", party.RoleCustomer, "0")

	in := itemInput("widget", "3", "10")
	in.Discount = money("3")
	in.DiscountType = invoice.DiscountFlat

	created, err := m.Create(ctx, invoice.CreateInput{
		Type:          invoice.TypeSales,
		PartyID:       "acme",
		Items:         []invoice.ItemInput{in},
		PaymentStatus: invoice.StatusPending,
	})
	require.NoError(t, err)
	require.True(t, created.Total.Equal(money("27")))
	require.True(t, stockOf(t, store, "widget").Equal(money("7")))

	ret, err := m.Return(ctx, created.ID, invoice.ReturnInput{
		Lines: []invoice.ReturnLine{{ItemID: "widget", Quantity: money("1")}},
	})
	require.NoError(t, err)
	require.Equal(t, "RET-000001", ret.Number)
	require.True(t, ret.IsReturn)
	require.Equal(t, created.ID, ret.OriginalInvoiceID)
	require.True(t, ret.Total.Equal(money("9")), "10 minus apportioned discount 1, got %s", ret.Total)
	require.Equal(t, invoice.StatusNA, ret.PaymentStatus)

	require.True(t, stockOf(t, store, "widget").Equal(money("8")))

	original, err := store.Invoice(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, invoice.StatePartiallyReturned, original.State)

	// Unsettled original: the return reduces the receivable.
	require.True(t, balanceOf(t, store, ledger.AccountSalesReturns).Equal(money("9")))
	require.True(t, balanceOf(t, store, ledger.AccountReceivable).Equal(money("18")))
}

func TestReturn_HeaderDiscountApportionedBySubtotalShare(t *testing.T) {
	// GIVEN: A sale of 2 widgets at 10 with a flat header discount of 4
	// WHEN: Returning 1 widget (half the subtotal)
	// THEN: The return carries half the header discount: total 8

	ctx := context.Background()
	m, store := newTestManager(t)
	seedItem(t, store, "widget", "10", "4")
	seedParty(t, store, "acme", party.RoleCustomer, "0")

	created, err := m.Create(ctx, invoice.CreateInput{
		Type:          invoice.TypeSales,
		PartyID:       "acme",
		Items:         []invoice.ItemInput{itemInput("widget", "2", "10")},
		Discount:      money("4"),
		DiscountType:  invoice.DiscountFlat,
		PaymentStatus: invoice.StatusPending,
	})
	require.NoError(t, err)
	require.True(t, created.Total.Equal(money("16")))

	ret, err := m.Return(ctx, created.ID, invoice.ReturnInput{
		Lines: []invoice.ReturnLine{{ItemID: "widget", Quantity: money("1")}},
	})
	require.NoError(t, err)
	require.True(t, ret.Total.Equal(money("8")), "got %s", ret.Total)
}

func TestReturn_CapAccumulatesAcrossReturns(t *testing.T) {
	// GIVEN: 2 of 3 widgets already returned
	// WHEN: Returning 2 more
	// THEN: Rejected with the remaining returnable quantity

	ctx := context.Background()
	m, store := newTestManager(t)
	seedItem(t, store, "widget", "10", "4")
	seedParty(t, store, "acme", party.RoleCustomer, "0")

	created, err := m.Create(ctx, invoice.CreateInput{
		Type:          invoice.TypeSales,
		PartyID:       "acme",
		Items:         []invoice.ItemInput{itemInput("widget", "3", "10")},
		PaymentStatus: invoice.StatusPending,
	})
	require.NoError(t, err)

	_, err = m.Return(ctx, created.ID, invoice.ReturnInput{
		Lines: []invoice.ReturnLine{{ItemID: "widget", Quantity: money("2")}},
	})
	require.NoError(t, err)

	_, err = m.Return(ctx, created.ID, invoice.ReturnInput{
		Lines: []invoice.ReturnLine{{ItemID: "widget", Quantity: money("2")}},
	})
	require.ErrorIs(t, err, invoice.ErrReturnQuantityExceeded)

	var qtyErr *invoice.ReturnQuantityError
	require.ErrorAs(t, err, &qtyErr)
	require.True(t, qtyErr.Requested.Equal(money("2")))
	require.True(t, qtyErr.Returnable.Equal(money("1")))
}

func TestReturn_AllLines_FullyReturned(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)
	seedItem(t, store, "widget", "10", "4")
	seedParty(t, store, "acme", party.RoleCustomer, "0")

	created, err := m.Create(ctx, invoice.CreateInput{
		Type:          invoice.TypeSales,
		PartyID:       "acme",
		Items:         []invoice.ItemInput{itemInput("widget", "3", "10")},
		PaymentStatus: invoice.StatusPending,
	})
	require.NoError(t, err)

	_, err = m.Return(ctx, created.ID, invoice.ReturnInput{
		Lines: []invoice.ReturnLine{{ItemID: "widget", Quantity: money("3")}},
	})
	require.NoError(t, err)

	original, err := store.Invoice(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, invoice.StateFullyReturned, original.State)
	require.True(t, stockOf(t, store, "widget").Equal(money("10")))
}

func TestReturn_SettledOriginal_RefundsViaBank(t *testing.T) {
	// GIVEN: A fully paid sale of 3 widgets at 10
	// WHEN: Returning 1
	// THEN: The refund leaves through the bank, not the receivable, and
	//       the return itself is born settled

	ctx := context.Background()
	m, store := newTestManager(t)
	seedItem(t, store, "widget", "10", "4")
	seedParty(t, store, "acme", party.RoleCustomer, "0")

	created, err := m.Create(ctx, invoice.CreateInput{
		Type:          invoice.TypeSales,
		PartyID:       "acme",
		Items:         []invoice.ItemInput{itemInput("widget", "3", "10")},
		PaymentStatus: invoice.StatusPaid,
	})
	require.NoError(t, err)

	ret, err := m.Return(ctx, created.ID, invoice.ReturnInput{
		Lines: []invoice.ReturnLine{{ItemID: "widget", Quantity: money("1")}},
	})
	require.NoError(t, err)
	require.True(t, ret.PaidAmount.Equal(ret.Total))
	require.True(t, ret.Outstanding().IsZero())

	require.True(t, balanceOf(t, store, ledger.AccountBank).Equal(money("20")), "30 in, 10 refunded")
	require.True(t, balanceOf(t, store, ledger.AccountReceivable).IsZero())
}

// =============================================================================
// PURCHASE RETURNS
// =============================================================================

func TestReturn_Purchase_ReducesPayableAndStock(t *testing.T) {
	// GIVEN: An unpaid purchase of 10 widgets at 5
	// WHEN: Returning 4 to the supplier
	// THEN: Stock drops, payable shrinks by the returned amount

	ctx := context.Background()
	m, store := newTestManager(t)
	seedItem(t, store, "widget", "0", "0")
	seedParty(t, store, "supplies", party.RoleSupplier, "0")

	created, err := m.Create(ctx, invoice.CreateInput{
		Type:          invoice.TypePurchase,
		PartyID:       "supplies",
		Items:         []invoice.ItemInput{itemInput("widget", "10", "5")},
		PaymentStatus: invoice.StatusPending,
	})
	require.NoError(t, err)

	ret, err := m.Return(ctx, created.ID, invoice.ReturnInput{
		Lines: []invoice.ReturnLine{{ItemID: "widget", Quantity: money("4")}},
	})
	require.NoError(t, err)
	require.True(t, ret.Total.Equal(money("20")))

	require.True(t, stockOf(t, store, "widget").Equal(money("6")))
	require.True(t, balanceOf(t, store, ledger.AccountPayable).Equal(money("30")))
	require.True(t, balanceOf(t, store, ledger.AccountInventory).Equal(money("30")))
}

func TestReturn_Purchase_RequiresStockOnHand(t *testing.T) {
	// GIVEN: A purchase of 10 widgets of which 8 were sold on
	// WHEN: Returning 4 to the supplier
	// THEN: Rejected; the goods are no longer ours to ship back

	ctx := context.Background()
	m, store := newTestManager(t)
	seedItem(t, store, "widget", "0", "0")
	seedParty(t, store, "supplies", party.RoleSupplier, "0")
	seedParty(t, store, "acme", party.RoleCustomer, "0")

	created, err := m.Create(ctx, invoice.CreateInput{
		Type:          invoice.TypePurchase,
		PartyID:       "supplies",
		Items:         []invoice.ItemInput{itemInput("widget", "10", "5")},
		PaymentStatus: invoice.StatusPaid,
	})
	require.NoError(t, err)

	_, err = m.Create(ctx, invoice.CreateInput{
		Type:          invoice.TypeSales,
		PartyID:       "acme",
		Items:         []invoice.ItemInput{itemInput("widget", "8", "9")},
		PaymentStatus: invoice.StatusPaid,
	})
	require.NoError(t, err)

	_, err = m.Return(ctx, created.ID, invoice.ReturnInput{
		Lines: []invoice.ReturnLine{{ItemID: "widget", Quantity: money("4")}},
	})
	require.ErrorIs(t, err, inventory.ErrInsufficientStockToReverse)
	require.True(t, stockOf(t, store, "widget").Equal(money("2")))
}

// =============================================================================
// GUARDS
// =============================================================================

func TestReturn_OfAReturn_Rejected(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)
	seedItem(t, store, "widget", "10", "4")
	seedParty(t, store, "acme", party.RoleCustomer, "0")

	created, err := m.Create(ctx, invoice.CreateInput{
		Type:          invoice.TypeSales,
		PartyID:       "acme",
		Items:         []invoice.ItemInput{itemInput("widget", "3", "10")},
		PaymentStatus: invoice.StatusPending,
	})
	require.NoError(t, err)

	ret, err := m.Return(ctx, created.ID, invoice.ReturnInput{
		Lines: []invoice.ReturnLine{{ItemID: "widget", Quantity: money("1")}},
	})
	require.NoError(t, err)

	_, err = m.Return(ctx, ret.ID, invoice.ReturnInput{
		Lines: []invoice.ReturnLine{{ItemID: "widget", Quantity: money("1")}},
	})
	require.ErrorIs(t, err, invoice.ErrValidation)
}

func TestReturn_ItemNotOnInvoice_Rejected(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)
	seedItem(t, store, "widget", "10", "4")
	seedItem(t, store, "gadget", "10", "4")
	seedParty(t, store, "acme", party.RoleCustomer, "0")

	created, err := m.Create(ctx, invoice.CreateInput{
		Type:          invoice.TypeSales,
		PartyID:       "acme",
		Items:         []invoice.ItemInput{itemInput("widget", "3", "10")},
		PaymentStatus: invoice.StatusPending,
	})
	require.NoError(t, err)

	_, err = m.Return(ctx, created.ID, invoice.ReturnInput{
		Lines: []invoice.ReturnLine{{ItemID: "gadget", Quantity: money("1")}},
	})
	require.ErrorIs(t, err, invoice.ErrValidation)
}

func TestDelete_ReturnInvoice_Rejected(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)
	seedItem(t, store, "widget", "10", "4")
	seedParty(t, store, "acme", party.RoleCustomer, "0")

	created, err := m.Create(ctx, invoice.CreateInput{
		Type:          invoice.TypeSales,
		PartyID:       "acme",
		Items:         []invoice.ItemInput{itemInput("widget", "3", "10")},
		PaymentStatus: invoice.StatusPending,
	})
	require.NoError(t, err)

	ret, err := m.Return(ctx, created.ID, invoice.ReturnInput{
		Lines: []invoice.ReturnLine{{ItemID: "widget", Quantity: money("1")}},
	})
	require.NoError(t, err)

	require.ErrorIs(t, m.Delete(ctx, ret.ID), invoice.ErrDeleteNotAllowed)
	require.ErrorIs(t, m.Delete(ctx, created.ID), invoice.ErrDeleteNotAllowed,
		"original with returns against it is pinned too")
}

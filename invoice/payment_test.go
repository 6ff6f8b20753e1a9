package invoice_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MinaMohsen466/accounting-engine/invoice"
	"github.com/MinaMohsen466/accounting-engine/ledger"
	"github.com/MinaMohsen466/accounting-engine/party"
)

// =============================================================================
// DIRECT PAYMENTS
// =============================================================================

func TestRecordPayment_PartialThenPaid(t *testing.T) {
	// GIVEN: A pending sale of 30
	// WHEN: Paying 10, then 20
	// THEN: Status moves pending -> partial -> paid, A/R drains to zero

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

	first, err := m.RecordPayment(ctx, created.ID, money("10"), time.Time{})
	require.NoError(t, err)
	require.Equal(t, invoice.StatusPartial, first.PaymentStatus)
	require.True(t, first.Outstanding().Equal(money("20")))

	second, err := m.RecordPayment(ctx, created.ID, money("20"), time.Time{})
	require.NoError(t, err)
	require.Equal(t, invoice.StatusPaid, second.PaymentStatus)
	require.True(t, second.Outstanding().IsZero())

	require.True(t, balanceOf(t, store, ledger.AccountReceivable).IsZero())
	require.True(t, balanceOf(t, store, ledger.AccountBank).Equal(money("30")))
	require.Len(t, entriesByRef(t, store, "PAY-"+created.Number), 2,
		"each payment gets its own attempt-scoped entry")
}

func TestRecordPayment_Overpayment_Rejected(t *testing.T) {
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

	_, err = m.RecordPayment(ctx, created.ID, money("31"), time.Time{})
	require.ErrorIs(t, err, invoice.ErrOverpayment)

	stored, err := store.Invoice(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, stored.PaidAmount.IsZero())
	require.True(t, balanceOf(t, store, ledger.AccountBank).IsZero())
}

func TestRecordPayment_PurchaseDrainsPayable(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)
	seedItem(t, store, "widget", "0", "0")
	seedParty(t, store, "supplies", party.RoleSupplier, "0")

	created, err := m.Create(ctx, invoice.CreateInput{
		Type:          invoice.TypePurchase,
		PartyID:       "supplies",
		Items:         []invoice.ItemInput{itemInput("widget", "4", "5")},
		PaymentStatus: invoice.StatusPending,
	})
	require.NoError(t, err)

	paid, err := m.RecordPayment(ctx, created.ID, money("20"), time.Time{})
	require.NoError(t, err)
	require.Equal(t, invoice.StatusPaid, paid.PaymentStatus)

	require.True(t, balanceOf(t, store, ledger.AccountPayable).IsZero())
	require.True(t, balanceOf(t, store, ledger.AccountBank).Equal(money("-20")))
}

func TestRecordPayment_OnReturn_Rejected(t *testing.T) {
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

	_, err = m.RecordPayment(ctx, ret.ID, money("5"), time.Time{})
	require.ErrorIs(t, err, invoice.ErrValidation)
}

// =============================================================================
// VOUCHERS
// =============================================================================

func TestApplyVoucher_InvoiceLinked_PaysInvoice(t *testing.T) {
	// GIVEN: A pending sale of 30
	// WHEN: Applying a receipt voucher of 30 linked to it
	// THEN: The invoice is paid; the opening balance never moves

	ctx := context.Background()
	m, store := newTestManager(t)
	seedItem(t, store, "widget", "10", "4")
	seedParty(t, store, "acme", party.RoleCustomer, "50")

	created, err := m.Create(ctx, invoice.CreateInput{
		Type:          invoice.TypeSales,
		PartyID:       "acme",
		Items:         []invoice.ItemInput{itemInput("widget", "3", "10")},
		PaymentStatus: invoice.StatusPending,
	})
	require.NoError(t, err)

	v, err := m.ApplyVoucher(ctx, party.Voucher{
		Type:      party.VoucherReceipt,
		PartyID:   "acme",
		InvoiceID: created.ID,
		Amount:    money("30"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, v.ID)

	stored, err := store.Invoice(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, invoice.StatusPaid, stored.PaymentStatus)
	require.True(t, openingOf(t, store, "acme").Equal(money("50")),
		"linked vouchers must not touch the opening balance")

	vouchers, err := store.Vouchers(ctx)
	require.NoError(t, err)
	require.Len(t, vouchers, 1)
}

func TestApplyVoucher_Unlinked_MutatesOpeningBalance(t *testing.T) {
	// GIVEN: A customer owing 50 from before
	// WHEN: Receiving 20 with no invoice link
	// THEN: Opening 50 -> 30 and a clearing entry is posted; the balance
	//       derivation will see only the mutated opening

	ctx := context.Background()
	m, store := newTestManager(t)
	seedParty(t, store, "acme", party.RoleCustomer, "50")

	_, err := m.ApplyVoucher(ctx, party.Voucher{
		Type:    party.VoucherReceipt,
		PartyID: "acme",
		Amount:  money("20"),
	})
	require.NoError(t, err)

	require.True(t, openingOf(t, store, "acme").Equal(money("30")))
	require.True(t, balanceOf(t, store, ledger.AccountBank).Equal(money("20")))

	entries, err := store.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].Reference, "VCH-")
}

func TestApplyVoucher_UnlinkedPayment_AddsToOpening(t *testing.T) {
	// Paying a supplier we owe money to moves their opening toward zero.
	ctx := context.Background()
	m, store := newTestManager(t)
	seedParty(t, store, "supplies", party.RoleSupplier, "-80")

	_, err := m.ApplyVoucher(ctx, party.Voucher{
		Type:    party.VoucherPayment,
		PartyID: "supplies",
		Amount:  money("30"),
	})
	require.NoError(t, err)

	require.True(t, openingOf(t, store, "supplies").Equal(money("-50")))
	require.True(t, balanceOf(t, store, ledger.AccountBank).Equal(money("-30")))
}

func TestApplyVoucher_ShortSuppliedID_Accepted(t *testing.T) {
	// GIVEN: A caller-supplied voucher ID shorter than the generated form
	// WHEN: Applying an unlinked receipt
	// THEN: The ID is kept as-is and the journal reference uses it whole

	ctx := context.Background()
	m, store := newTestManager(t)
	seedParty(t, store, "acme", party.RoleCustomer, "50")

	v, err := m.ApplyVoucher(ctx, party.Voucher{
		ID:      "v1",
		Type:    party.VoucherReceipt,
		PartyID: "acme",
		Amount:  money("20"),
	})
	require.NoError(t, err)
	require.Equal(t, "v1", v.ID)

	require.Len(t, entriesByRef(t, store, "VCH-v1"), 1)
	require.True(t, openingOf(t, store, "acme").Equal(money("30")))
}

func TestApplyVoucher_LinkedOverpayment_RollsBack(t *testing.T) {
	// GIVEN: A pending sale of 30
	// WHEN: A linked voucher of 40 fails the overpayment check
	// THEN: The whole application rolls back, voucher included

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

	_, err = m.ApplyVoucher(ctx, party.Voucher{
		Type:      party.VoucherReceipt,
		PartyID:   "acme",
		InvoiceID: created.ID,
		Amount:    money("40"),
	})
	require.ErrorIs(t, err, invoice.ErrOverpayment)

	vouchers, err := store.Vouchers(ctx)
	require.NoError(t, err)
	require.Empty(t, vouchers)
}

func TestApplyVoucher_WrongParty_Rejected(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)
	seedItem(t, store, "widget", "10", "4")
	seedParty(t, store, "acme", party.RoleCustomer, "0")
	seedParty(t, store, "other", party.RoleCustomer, "0")

	created, err := m.Create(ctx, invoice.CreateInput{
		Type:          invoice.TypeSales,
		PartyID:       "acme",
		Items:         []invoice.ItemInput{itemInput("widget", "3", "10")},
		PaymentStatus: invoice.StatusPending,
	})
	require.NoError(t, err)

	_, err = m.ApplyVoucher(ctx, party.Voucher{
		Type:      party.VoucherReceipt,
		PartyID:   "other",
		InvoiceID: created.ID,
		Amount:    money("10"),
	})
	require.ErrorIs(t, err, invoice.ErrValidation)
}

func TestApplyVoucher_InvalidInput_Rejected(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.ApplyVoucher(context.Background(), party.Voucher{
		Type:    party.VoucherReceipt,
		PartyID: "acme",
		Amount:  money("0"),
	})
	require.ErrorIs(t, err, party.ErrInvalidVoucher)
}

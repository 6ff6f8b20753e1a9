/*
returns.go - Partial and full returns against posted invoices

PURPOSE:
  A return is a child invoice (IsReturn=true, same type as the original)
  whose journal postings cover the returned amount only and whose
  inventory effect runs opposite to the original invoice.

RETURNABLE CAP:
  Per item: returnable = originalQuantity - sum(previously returned) across
  every prior return of the invoice. A request exceeding the cap on any
  line is rejected outright - the engine never silently clamps.

DISCOUNT APPORTIONMENT:
  Line discounts scale with the returned fraction:
    returnedDiscount = originalDiscount * (returnQty / originalQty)
  The invoice-level discount scales with the returned share of the
  original subtotal.

STOCK PRECONDITIONS:
  Purchase returns ship stock back, so every line needs on-hand quantity
  >= the return quantity. Sales returns have no stock precondition - the
  goods are coming back to us.
*/
package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MinaMohsen466/accounting-engine/ledger"
	"github.com/MinaMohsen466/accounting-engine/party"
)

// =============================================================================
// INPUT
// =============================================================================

type ReturnLine struct {
	ItemID   string
	Quantity decimal.Decimal
}

type ReturnInput struct {
	Lines []ReturnLine
	Date  time.Time
	Notes string
}

// originalLine aggregates every occurrence of one item in the original
// invoice: the cap and the discount are computed per item, not per row.
type originalLine struct {
	quantity   decimal.Decimal
	unitPrice  decimal.Decimal
	colorPrice decimal.Decimal
	discount   decimal.Decimal // absolute, summed across rows
	name       string
}

// =============================================================================
// RETURN
// =============================================================================

func (m *Manager) Return(ctx context.Context, originalID string, in ReturnInput) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, err := m.requireInvoice(ctx, m.Store, originalID)
	if err != nil {
		return Invoice{}, err
	}
	if original.IsReturn {
		return Invoice{}, &ValidationError{Field: "invoice", Reason: "cannot return a return invoice"}
	}
	if len(in.Lines) == 0 {
		return Invoice{}, &ValidationError{Field: "lines", Reason: "at least one return line required"}
	}
	for i, l := range in.Lines {
		if !l.Quantity.IsPositive() {
			return Invoice{}, &ValidationError{Field: fmt.Sprintf("lines[%d].quantity", i), Reason: "must be positive"}
		}
	}

	originals := groupOriginal(original.Items)
	returned, err := m.returnedSoFar(ctx, m.Store, originalID)
	if err != nil {
		return Invoice{}, err
	}

	// Cap check per line, before anything moves.
	requested := make(map[string]decimal.Decimal)
	for _, l := range in.Lines {
		requested[l.ItemID] = requested[l.ItemID].Add(l.Quantity)
	}
	for itemID, qty := range requested {
		orig, ok := originals[itemID]
		if !ok {
			return Invoice{}, &ValidationError{
				Field:  "lines",
				Reason: fmt.Sprintf("item %s is not on invoice %s", itemID, original.Number),
			}
		}
		returnable := orig.quantity.Sub(returned[itemID])
		if qty.GreaterThan(returnable) {
			return Invoice{}, &ReturnQuantityError{
				ItemID:     itemID,
				Name:       orig.name,
				Requested:  qty,
				Returnable: returnable,
			}
		}
	}

	now := m.now()
	ret := Invoice{
		ID:                uuid.NewString(),
		Type:              original.Type,
		PartyID:           original.PartyID,
		Items:             buildReturnItems(originals, requested),
		DiscountType:      DiscountFlat,
		VATRate:           original.VATRate,
		PaymentStatus:     StatusNA,
		Date:              orNow(in.Date, now),
		IsReturn:          true,
		OriginalInvoiceID: original.ID,
		State:             StatePosted,
		Notes:             in.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	// Apportion the invoice-level discount by the returned share of the
	// original subtotal, then compute totals.
	retSubtotal := decimal.Zero
	for i := range ret.Items {
		ret.Items[i].Total = ret.Items[i].ComputeTotal()
		retSubtotal = retSubtotal.Add(ret.Items[i].Total)
	}
	if original.DiscountAmount.IsPositive() && original.Subtotal.IsPositive() {
		ret.Discount = roundMoney(original.DiscountAmount.Mul(retSubtotal).Div(original.Subtotal))
	}
	computeTotals(&ret)

	// Refund in cash when the original was settled; otherwise the return
	// reduces what remains receivable/payable.
	refundViaBank := original.Outstanding().IsZero() && original.PaymentStatus == StatusPaid
	if refundViaBank {
		ret.PaidAmount = ret.Total
	}

	err = m.Store.WithTx(ctx, func(s Store) error {
		p, err := m.requireParty(ctx, s, ret.PartyID, ret.Type)
		if err != nil {
			return err
		}

		number, err := s.NextInvoiceNumber(ctx, numberPrefix(ret.Type, true))
		if err != nil {
			return err
		}
		ret.Number = number

		rec := m.reconciler(s)
		if ret.Type == TypeSales {
			// Customer ships goods back: stock comes in.
			if err := rec.ReverseSale(ctx, stockLines(ret.Items)); err != nil {
				return err
			}
		} else {
			// We ship stock back to the supplier: it must still exist.
			if err := rec.ReversePurchase(ctx, stockLines(ret.Items)); err != nil {
				return err
			}
		}

		if err := m.postReturnEntry(ctx, s, &ret, p, refundViaBank); err != nil {
			return err
		}

		updated := *original
		updated.State = returnState(originals, addReturned(returned, requested))
		updated.UpdatedAt = now
		if err := s.UpdateInvoice(ctx, updated); err != nil {
			return err
		}
		return s.AddInvoice(ctx, ret)
	})
	if err != nil {
		return Invoice{}, err
	}

	m.Log.Info().Str("return", ret.Number).Str("original", original.Number).
		Str("total", ret.Total.StringFixed(3)).Msg("return processed")
	m.notify("invoices")
	return ret, nil
}

// postReturnEntry writes the balanced entry for the returned amount only.
func (m *Manager) postReturnEntry(ctx context.Context, s Store, ret *Invoice, p party.Counterparty, refundViaBank bool) error {
	if !ret.Total.IsPositive() {
		return nil
	}
	led := m.ledger(s)

	var e ledger.Entry
	if ret.Type == TypeSales {
		counter := line(ledger.AccountReceivable, "Accounts Receivable", decimal.Zero, ret.Total)
		if refundViaBank {
			counter = line(ledger.AccountBank, "Bank", decimal.Zero, ret.Total)
		}
		e = m.entry(ret, EntryDescription(ret, p), ret.Number, ledger.EntryNormal, 1, ledger.OpReturn,
			line(ledger.AccountSalesReturns, "Sales Returns", ret.Total, decimal.Zero),
			counter,
		)
	} else {
		counter := line(ledger.AccountPayable, "Accounts Payable", ret.Total, decimal.Zero)
		if refundViaBank {
			counter = line(ledger.AccountBank, "Bank", ret.Total, decimal.Zero)
		}
		e = m.entry(ret, EntryDescription(ret, p), ret.Number, ledger.EntryNormal, 1, ledger.OpReturn,
			counter,
			line(ledger.AccountInventory, "Inventory", decimal.Zero, ret.Total),
		)
	}
	_, _, err := led.PostGuarded(ctx, e)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func groupOriginal(items []Item) map[string]originalLine {
	grouped := make(map[string]originalLine)
	for _, it := range items {
		g, seen := grouped[it.ItemID]
		if !seen {
			g.unitPrice = it.UnitPrice
			g.colorPrice = it.ColorPrice
			g.name = it.Name
		}
		g.quantity = g.quantity.Add(it.Quantity)
		g.discount = g.discount.Add(it.DiscountValue())
		grouped[it.ItemID] = g
	}
	return grouped
}

// returnedSoFar sums returned quantities per item across every prior
// return of the invoice.
func (m *Manager) returnedSoFar(ctx context.Context, s Store, originalID string) (map[string]decimal.Decimal, error) {
	all, err := s.Invoices(ctx)
	if err != nil {
		return nil, err
	}
	returned := make(map[string]decimal.Decimal)
	for _, inv := range all {
		if !inv.IsReturn || inv.OriginalInvoiceID != originalID {
			continue
		}
		for _, it := range inv.Items {
			returned[it.ItemID] = returned[it.ItemID].Add(it.Quantity)
		}
	}
	return returned, nil
}

// buildReturnItems carries the original pricing and apportions each
// item's discount by the returned fraction.
func buildReturnItems(originals map[string]originalLine, requested map[string]decimal.Decimal) []Item {
	items := make([]Item, 0, len(requested))
	for itemID, qty := range requested {
		orig := originals[itemID]
		apportioned := decimal.Zero
		if orig.quantity.IsPositive() {
			apportioned = roundMoney(orig.discount.Mul(qty).Div(orig.quantity))
		}
		items = append(items, Item{
			ItemID:       itemID,
			Name:         orig.name,
			Quantity:     qty,
			UnitPrice:    orig.unitPrice,
			ColorPrice:   orig.colorPrice,
			Discount:     apportioned,
			DiscountType: DiscountFlat,
		})
	}
	return items
}

func addReturned(returned, requested map[string]decimal.Decimal) map[string]decimal.Decimal {
	total := make(map[string]decimal.Decimal, len(returned)+len(requested))
	for id, qty := range returned {
		total[id] = qty
	}
	for id, qty := range requested {
		total[id] = total[id].Add(qty)
	}
	return total
}

// returnState reports whether every original line is now fully returned.
func returnState(originals map[string]originalLine, returned map[string]decimal.Decimal) State {
	for id, orig := range originals {
		if returned[id].LessThan(orig.quantity) {
			return StatePartiallyReturned
		}
	}
	return StateFullyReturned
}

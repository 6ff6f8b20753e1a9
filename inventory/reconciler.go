/*
reconciler.go - Applies and undoes invoice effects on inventory

PURPOSE:
  The Reconciler is the only writer of inventory quantities and
  weighted-average costs. Sales decrement stock, purchases merge new stock
  into the weighted-average cost, edits are reconciled as per-item deltas,
  and deletions reverse the original effect.

CRITICAL INVARIANTS:
  1. VALIDATE-FIRST: every operation runs a read-only validation pass over
     all lines before mutating anything (all-or-nothing)
  2. ONE EFFECT PER ITEM: lines for the same item within one invoice are
     grouped and applied once, never double-applied
  3. FLOOR AT ZERO: quantities never go negative

WEIGHTED-AVERAGE COST:
  When purchasing, lines for the same item are first blended into one
  weighted price, then merged into existing stock:
    newCost = (oldQty*oldCost + addQty*weightedPrice) / (oldQty + addQty)

EXPIRY POLICY:
  On purchase, an expiry date supplied on the line always wins. Otherwise,
  when existing stock is already expired or expiring soon and the incoming
  quantity is materially larger than what is on hand, the expiry date is
  pushed out. The thresholds live in ExpiryPolicy so the behavior can be
  tuned without touching the merge logic.

SEE ALSO:
  - item.go: Item model
  - errors.go: validation errors raised here
*/
package inventory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Persistence required by the reconciler
// =============================================================================

type Store interface {
	Items(ctx context.Context) ([]Item, error)
	Item(ctx context.Context, id string) (*Item, error)
	SaveItem(ctx context.Context, it Item) error
}

// =============================================================================
// LINES - Minimal view of invoice lines
// =============================================================================

// Line is the slice of an invoice line the reconciler cares about.
type Line struct {
	ItemID   string
	Quantity decimal.Decimal
	// UnitPrice is the per-unit cost on purchase lines.
	UnitPrice  decimal.Decimal
	ExpiryDate *time.Time
}

// group sums quantities per item and computes the weighted line price.
type group struct {
	quantity decimal.Decimal
	value    decimal.Decimal // sum(qty*price), for weighted price
	expiry   *time.Time      // latest supplied expiry
}

func groupLines(lines []Line) map[string]group {
	groups := make(map[string]group)
	for _, l := range lines {
		g := groups[l.ItemID]
		g.quantity = g.quantity.Add(l.Quantity)
		g.value = g.value.Add(l.Quantity.Mul(l.UnitPrice))
		if l.ExpiryDate != nil {
			if g.expiry == nil || l.ExpiryDate.After(*g.expiry) {
				e := *l.ExpiryDate
				g.expiry = &e
			}
		}
		groups[l.ItemID] = g
	}
	return groups
}

// =============================================================================
// EXPIRY POLICY
// =============================================================================

// ExpiryPolicy controls the heuristic expiry extension on restock.
type ExpiryPolicy struct {
	Enabled bool
	// RestockRatio is the incoming/on-hand quantity ratio above which the
	// heuristic fires (on top of the stock being expired/expiring).
	RestockRatio decimal.Decimal
	// SoonWindow is how close to expiry counts as "expiring".
	SoonWindow time.Duration
	// Extension is how far past now the new expiry is pushed.
	Extension time.Duration
}

func DefaultExpiryPolicy() ExpiryPolicy {
	return ExpiryPolicy{
		Enabled:      true,
		RestockRatio: decimal.NewFromFloat(0.5),
		SoonWindow:   30 * 24 * time.Hour,
		Extension:    180 * 24 * time.Hour,
	}
}

// =============================================================================
// RECONCILER
// =============================================================================

type Reconciler struct {
	Store  Store
	Expiry ExpiryPolicy
	Clock  func() time.Time
}

func NewReconciler(store Store) *Reconciler {
	return &Reconciler{Store: store, Expiry: DefaultExpiryPolicy(), Clock: time.Now}
}

func (r *Reconciler) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

// CheckAvailability verifies that every line's item exists and has enough
// stock for the grouped quantity. Read-only.
func (r *Reconciler) CheckAvailability(ctx context.Context, lines []Line) error {
	for id, g := range groupLines(lines) {
		item, err := r.Store.Item(ctx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return &ItemNotFoundError{ItemID: id}
		}
		if item.Quantity.LessThan(g.quantity) {
			return &InsufficientStockError{
				ItemID:    id,
				Name:      item.Name,
				Available: item.Quantity,
				Requested: g.quantity,
			}
		}
	}
	return nil
}

// ApplySale decrements stock for a sales invoice. Validation of all lines
// happens before any mutation; quantities are floored at zero.
func (r *Reconciler) ApplySale(ctx context.Context, lines []Line) error {
	groups := groupLines(lines)
	items, err := r.resolveAll(ctx, groups)
	if err != nil {
		return err
	}
	for id, g := range groups {
		item := items[id]
		item.Quantity = floorZero(item.Quantity.Sub(g.quantity))
		item.UpdatedAt = r.now()
		if err := r.Store.SaveItem(ctx, *item); err != nil {
			return err
		}
	}
	return nil
}

// ApplyPurchase merges purchased stock into on-hand quantity and
// weighted-average cost, and applies the expiry policy.
func (r *Reconciler) ApplyPurchase(ctx context.Context, lines []Line) error {
	groups := groupLines(lines)
	items, err := r.resolveAll(ctx, groups)
	if err != nil {
		return err
	}
	now := r.now()
	for id, g := range groups {
		if g.quantity.IsZero() {
			continue
		}
		item := items[id]
		weightedPrice := g.value.Div(g.quantity)

		oldQty := item.Quantity
		newQty := oldQty.Add(g.quantity)
		oldValue := oldQty.Mul(item.PurchasePrice)
		item.PurchasePrice = oldValue.Add(g.quantity.Mul(weightedPrice)).Div(newQty).Round(3)
		item.Quantity = newQty

		switch {
		case g.expiry != nil:
			e := *g.expiry
			item.ExpiryDate = &e
		case r.shouldExtendExpiry(*item, oldQty, g.quantity, now):
			e := now.Add(r.Expiry.Extension)
			item.ExpiryDate = &e
		}

		item.UpdatedAt = now
		if err := r.Store.SaveItem(ctx, *item); err != nil {
			return err
		}
	}
	return nil
}

// shouldExtendExpiry implements the restock heuristic: stock already
// expired or about to, and the incoming quantity is materially larger
// than what is on hand.
func (r *Reconciler) shouldExtendExpiry(item Item, oldQty, addQty decimal.Decimal, now time.Time) bool {
	if !r.Expiry.Enabled || item.ExpiryDate == nil {
		return false
	}
	if item.ExpiryDate.After(now.Add(r.Expiry.SoonWindow)) {
		return false
	}
	if oldQty.IsZero() {
		return true
	}
	return addQty.GreaterThan(oldQty.Mul(r.Expiry.RestockRatio))
}

// ReconcileSale adjusts stock for an edited sales invoice: the old effect
// is undone once per item, then the new effect applied once per item.
// Net increases are validated against available stock before anything moves.
func (r *Reconciler) ReconcileSale(ctx context.Context, oldLines, newLines []Line) error {
	oldGroups := groupLines(oldLines)
	newGroups := groupLines(newLines)

	// Net delta per item: positive means more stock leaves.
	deltas := make(map[string]decimal.Decimal)
	for id, g := range newGroups {
		deltas[id] = g.quantity
	}
	for id, g := range oldGroups {
		deltas[id] = deltas[id].Sub(g.quantity)
	}

	// Validation pass.
	items := make(map[string]*Item, len(deltas))
	for id, delta := range deltas {
		item, err := r.Store.Item(ctx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return &ItemNotFoundError{ItemID: id}
		}
		if delta.IsPositive() && item.Quantity.LessThan(delta) {
			return &InsufficientStockError{
				ItemID:    id,
				Name:      item.Name,
				Available: item.Quantity,
				Requested: delta,
			}
		}
		items[id] = item
	}

	// Apply pass.
	for id, delta := range deltas {
		if delta.IsZero() {
			continue
		}
		item := items[id]
		item.Quantity = floorZero(item.Quantity.Sub(delta))
		item.UpdatedAt = r.now()
		if err := r.Store.SaveItem(ctx, *item); err != nil {
			return err
		}
	}
	return nil
}

// ReverseSale restores stock removed by a sales invoice (delete/return).
func (r *Reconciler) ReverseSale(ctx context.Context, lines []Line) error {
	groups := groupLines(lines)
	items, err := r.resolveAll(ctx, groups)
	if err != nil {
		return err
	}
	for id, g := range groups {
		item := items[id]
		item.Quantity = item.Quantity.Add(g.quantity)
		item.UpdatedAt = r.now()
		if err := r.Store.SaveItem(ctx, *item); err != nil {
			return err
		}
	}
	return nil
}

// ReversePurchase removes stock added by a purchase invoice. Every item
// must still hold at least the purchased quantity, otherwise the whole
// operation is rejected before any mutation.
func (r *Reconciler) ReversePurchase(ctx context.Context, lines []Line) error {
	groups := groupLines(lines)
	items, err := r.resolveAll(ctx, groups)
	if err != nil {
		return err
	}
	for id, g := range groups {
		item := items[id]
		if item.Quantity.LessThan(g.quantity) {
			return &StockReversalError{
				ItemID:   id,
				Name:     item.Name,
				OnHand:   item.Quantity,
				Required: g.quantity,
			}
		}
	}
	for id, g := range groups {
		item := items[id]
		item.Quantity = item.Quantity.Sub(g.quantity)
		item.UpdatedAt = r.now()
		if err := r.Store.SaveItem(ctx, *item); err != nil {
			return err
		}
	}
	return nil
}

// resolveAll is the shared validation pass: every grouped item must exist.
func (r *Reconciler) resolveAll(ctx context.Context, groups map[string]group) (map[string]*Item, error) {
	items := make(map[string]*Item, len(groups))
	for id := range groups {
		item, err := r.Store.Item(ctx, id)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, &ItemNotFoundError{ItemID: id}
		}
		items[id] = item
	}
	return items, nil
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

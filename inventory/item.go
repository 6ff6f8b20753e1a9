/*
item.go - Inventory item model

PURPOSE:
  An inventory item tracks on-hand quantity and weighted-average purchase
  cost for one product. Quantity is mutated only through the Reconciler as
  invoices are created, edited, deleted or returned - never directly from
  user-facing forms after creation.
*/
package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	ID   string
	Name string
	SKU  string

	// Quantity on hand. Owned by the Reconciler.
	Quantity decimal.Decimal

	// Price is the selling price per unit.
	Price decimal.Decimal

	// PurchasePrice is the weighted-average cost per unit.
	PurchasePrice decimal.Decimal

	MinStockLevel decimal.Decimal
	ExpiryDate    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LowStock reports whether the item is below its minimum stock level.
func (it Item) LowStock() bool {
	return it.Quantity.LessThan(it.MinStockLevel)
}

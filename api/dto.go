/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  internal domain model from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Responses render amounts as fixed-3 strings. Requests accept JSON
  numbers or strings; decimal.Decimal parses both.

SEE ALSO:
  - handlers.go: Uses these types
  - server.go: Router setup and middleware
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MinaMohsen466/accounting-engine/inventory"
	"github.com/MinaMohsen466/accounting-engine/invoice"
	"github.com/MinaMohsen466/accounting-engine/ledger"
	"github.com/MinaMohsen466/accounting-engine/party"
)

// =============================================================================
// INVOICES
// =============================================================================

type ItemRequest struct {
	ItemID       string          `json:"itemId"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	ColorPrice   decimal.Decimal `json:"colorPrice"`
	Discount     decimal.Decimal `json:"discount"`
	DiscountType string          `json:"discountType"`
	ExpiryDate   string          `json:"expiryDate,omitempty"`
}

type CreateInvoiceRequest struct {
	Type             string          `json:"type"`
	PartyID          string          `json:"partyId"`
	Items            []ItemRequest   `json:"items"`
	Discount         decimal.Decimal `json:"discount"`
	DiscountType     string          `json:"discountType"`
	VATRate          decimal.Decimal `json:"vatRate"`
	PaymentStatus    string          `json:"paymentStatus"`
	PaidAmount       decimal.Decimal `json:"paidAmount"`
	BalanceDeduction decimal.Decimal `json:"balanceDeduction"`
	Date             string          `json:"date,omitempty"`
	DueDate          string          `json:"dueDate,omitempty"`
	Notes            string          `json:"notes,omitempty"`
}

type EditInvoiceRequest struct {
	Items            []ItemRequest   `json:"items"`
	Discount         decimal.Decimal `json:"discount"`
	DiscountType     string          `json:"discountType"`
	VATRate          decimal.Decimal `json:"vatRate"`
	PaymentStatus    string          `json:"paymentStatus"`
	PaidAmount       decimal.Decimal `json:"paidAmount"`
	BalanceDeduction decimal.Decimal `json:"balanceDeduction"`
	DueDate          string          `json:"dueDate,omitempty"`
	Notes            string          `json:"notes,omitempty"`
}

type UpdateNotesRequest struct {
	Notes string `json:"notes"`
}

type ReturnLineRequest struct {
	ItemID   string          `json:"itemId"`
	Quantity decimal.Decimal `json:"quantity"`
}

type ReturnRequest struct {
	Lines []ReturnLineRequest `json:"lines"`
	Date  string              `json:"date,omitempty"`
	Notes string              `json:"notes,omitempty"`
}

type PaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date,omitempty"`
}

type InvoiceItemDTO struct {
	ItemID       string `json:"itemId"`
	Name         string `json:"name"`
	Quantity     string `json:"quantity"`
	UnitPrice    string `json:"unitPrice"`
	ColorPrice   string `json:"colorPrice"`
	Discount     string `json:"discount"`
	DiscountType string `json:"discountType"`
	Total        string `json:"total"`
	ExpiryDate   string `json:"expiryDate,omitempty"`
}

type InvoiceDTO struct {
	ID                string           `json:"id"`
	Number            string           `json:"number"`
	Type              string           `json:"type"`
	PartyID           string           `json:"partyId"`
	Items             []InvoiceItemDTO `json:"items"`
	Subtotal          string           `json:"subtotal"`
	Discount          string           `json:"discount"`
	DiscountType      string           `json:"discountType"`
	DiscountAmount    string           `json:"discountAmount"`
	VATRate           string           `json:"vatRate"`
	VATAmount         string           `json:"vatAmount"`
	Total             string           `json:"total"`
	PaidAmount        string           `json:"paidAmount"`
	BalanceDeduction  string           `json:"balanceDeduction"`
	Outstanding       string           `json:"outstanding"`
	PaymentStatus     string           `json:"paymentStatus"`
	Date              string           `json:"date"`
	DueDate           string           `json:"dueDate,omitempty"`
	IsReturn          bool             `json:"isReturn"`
	OriginalInvoiceID string           `json:"originalInvoiceId,omitempty"`
	State             string           `json:"state"`
	Revision          int              `json:"revision"`
	Notes             string           `json:"notes,omitempty"`
	CreatedAt         string           `json:"createdAt"`
	UpdatedAt         string           `json:"updatedAt"`
}

func toInvoiceDTO(inv invoice.Invoice, now time.Time) InvoiceDTO {
	items := make([]InvoiceItemDTO, len(inv.Items))
	for i, it := range inv.Items {
		items[i] = InvoiceItemDTO{
			ItemID:       it.ItemID,
			Name:         it.Name,
			Quantity:     it.Quantity.String(),
			UnitPrice:    it.UnitPrice.StringFixed(3),
			ColorPrice:   it.ColorPrice.StringFixed(3),
			Discount:     it.Discount.String(),
			DiscountType: string(it.DiscountType),
			Total:        it.Total.StringFixed(3),
			ExpiryDate:   formatDate(it.ExpiryDate),
		}
	}

	dto := InvoiceDTO{
		ID:                inv.ID,
		Number:            inv.Number,
		Type:              string(inv.Type),
		PartyID:           inv.PartyID,
		Items:             items,
		Subtotal:          inv.Subtotal.StringFixed(3),
		Discount:          inv.Discount.String(),
		DiscountType:      string(inv.DiscountType),
		DiscountAmount:    inv.DiscountAmount.StringFixed(3),
		VATRate:           inv.VATRate.String(),
		VATAmount:         inv.VATAmount.StringFixed(3),
		Total:             inv.Total.StringFixed(3),
		PaidAmount:        inv.PaidAmount.StringFixed(3),
		BalanceDeduction:  inv.BalanceDeduction.StringFixed(3),
		Outstanding:       inv.Outstanding().StringFixed(3),
		PaymentStatus:     string(inv.EffectiveStatus(now)),
		Date:              inv.Date.Format(time.RFC3339),
		IsReturn:          inv.IsReturn,
		OriginalInvoiceID: inv.OriginalInvoiceID,
		State:             string(inv.State),
		Revision:          inv.Revision,
		Notes:             inv.Notes,
		CreatedAt:         inv.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         inv.UpdatedAt.Format(time.RFC3339),
	}
	if !inv.DueDate.IsZero() {
		dto.DueDate = inv.DueDate.Format("2006-01-02")
	}
	return dto
}

// =============================================================================
// INVENTORY
// =============================================================================

type CreateItemRequest struct {
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	MinStockLevel decimal.Decimal `json:"minStockLevel"`
	ExpiryDate    string          `json:"expiryDate,omitempty"`
}

// UpdateItemRequest carries the editable fields. Quantity and the
// weighted-average cost are owned by the reconciler and not editable here.
type UpdateItemRequest struct {
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	Price         decimal.Decimal `json:"price"`
	MinStockLevel decimal.Decimal `json:"minStockLevel"`
	ExpiryDate    string          `json:"expiryDate,omitempty"`
}

type ItemDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	SKU           string `json:"sku,omitempty"`
	Quantity      string `json:"quantity"`
	Price         string `json:"price"`
	PurchasePrice string `json:"purchasePrice"`
	MinStockLevel string `json:"minStockLevel"`
	LowStock      bool   `json:"lowStock"`
	ExpiryDate    string `json:"expiryDate,omitempty"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

func toItemDTO(it inventory.Item) ItemDTO {
	return ItemDTO{
		ID:            it.ID,
		Name:          it.Name,
		SKU:           it.SKU,
		Quantity:      it.Quantity.String(),
		Price:         it.Price.StringFixed(3),
		PurchasePrice: it.PurchasePrice.StringFixed(3),
		MinStockLevel: it.MinStockLevel.String(),
		LowStock:      it.LowStock(),
		ExpiryDate:    formatDate(it.ExpiryDate),
		CreatedAt:     it.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     it.UpdatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// COUNTERPARTIES
// =============================================================================

type CreatePartyRequest struct {
	Name           string          `json:"name"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	Phone          string          `json:"phone,omitempty"`
	Email          string          `json:"email,omitempty"`
	Address        string          `json:"address,omitempty"`
	Notes          string          `json:"notes,omitempty"`
}

type UpdateContactRequest struct {
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

type SetOpeningBalanceRequest struct {
	OpeningBalance decimal.Decimal `json:"openingBalance"`
}

type PartyDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	OpeningBalance string `json:"openingBalance"`
	Phone          string `json:"phone,omitempty"`
	Email          string `json:"email,omitempty"`
	Address        string `json:"address,omitempty"`
	Notes          string `json:"notes,omitempty"`
	CreatedAt      string `json:"createdAt"`
}

func toPartyDTO(p party.Counterparty) PartyDTO {
	return PartyDTO{
		ID:             p.ID,
		Name:           p.Name,
		Role:           string(p.Role),
		OpeningBalance: p.OpeningBalance.StringFixed(3),
		Phone:          p.Phone,
		Email:          p.Email,
		Address:        p.Address,
		Notes:          p.Notes,
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
}

// BalanceDTO is the effective-balance statement for one counterparty.
type BalanceDTO struct {
	PartyID     string `json:"partyId"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Opening     string `json:"opening"`
	Outstanding string `json:"outstanding"`
	Total       string `json:"total"`
	Amount      string `json:"amount"`
	Label       string `json:"label"`
}

// =============================================================================
// VOUCHERS
// =============================================================================

type VoucherRequest struct {
	Type      string          `json:"type"`
	PartyID   string          `json:"partyId"`
	Amount    decimal.Decimal `json:"amount"`
	InvoiceID string          `json:"invoiceId,omitempty"`
	Date      string          `json:"date,omitempty"`
	Notes     string          `json:"notes,omitempty"`
}

type VoucherDTO struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	PartyID   string `json:"partyId"`
	Amount    string `json:"amount"`
	InvoiceID string `json:"invoiceId,omitempty"`
	Date      string `json:"date"`
	Notes     string `json:"notes,omitempty"`
}

func toVoucherDTO(v party.Voucher) VoucherDTO {
	return VoucherDTO{
		ID:        v.ID,
		Type:      string(v.Type),
		PartyID:   v.PartyID,
		Amount:    v.Amount.StringFixed(3),
		InvoiceID: v.InvoiceID,
		Date:      v.Date.Format(time.RFC3339),
		Notes:     v.Notes,
	}
}

// =============================================================================
// JOURNAL
// =============================================================================

type LineDTO struct {
	AccountID   string `json:"accountId"`
	AccountName string `json:"accountName"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
}

type EntryDTO struct {
	Seq         int64     `json:"seq"`
	ID          string    `json:"id"`
	Date        string    `json:"date"`
	Description string    `json:"description"`
	Reference   string    `json:"reference"`
	Type        string    `json:"type"`
	Lines       []LineDTO `json:"lines"`
	CreatedAt   string    `json:"createdAt"`
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	lines := make([]LineDTO, len(e.Lines))
	for i, l := range e.Lines {
		lines[i] = LineDTO{
			AccountID:   l.AccountID,
			AccountName: l.AccountName,
			Debit:       l.Debit.StringFixed(3),
			Credit:      l.Credit.StringFixed(3),
		}
	}
	return EntryDTO{
		Seq:         e.Seq,
		ID:          e.ID,
		Date:        e.Date.Format(time.RFC3339),
		Description: e.Description,
		Reference:   e.Reference,
		Type:        string(e.Type),
		Lines:       lines,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
}

type AccountDTO struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Balance string `json:"balance"`
}

func toAccountDTO(a ledger.Account) AccountDTO {
	return AccountDTO{
		ID:      a.ID,
		Code:    a.Code,
		Name:    a.Name,
		Type:    string(a.Type),
		Balance: a.Balance.StringFixed(3),
	}
}

// =============================================================================
// ALERTS
// =============================================================================

type AlertsDTO struct {
	Overdue  []InvoiceDTO `json:"overdue"`
	DueSoon  []InvoiceDTO `json:"dueSoon"`
	LowStock []ItemDTO    `json:"lowStock"`
	Expiring []ItemDTO    `json:"expiring"`
}

// =============================================================================
// HELPERS
// =============================================================================

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

/*
handlers.go - HTTP API handlers for the accounting engine

PURPOSE:
  Exposes the invoice/journal/inventory engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Invoices:
    GET    /api/invoices                   List invoices
    POST   /api/invoices                   Create invoice
    GET    /api/invoices/{id}              Get invoice
    PUT    /api/invoices/{id}              Edit invoice (sales only)
    PATCH  /api/invoices/{id}/notes        Edit free-text notes
    DELETE /api/invoices/{id}              Delete invoice (full reversal)
    POST   /api/invoices/{id}/returns      Process a return
    POST   /api/invoices/{id}/payments     Record a payment

  Inventory:
    GET    /api/inventory                  List items
    POST   /api/inventory                  Create item
    GET    /api/inventory/{id}             Get item
    PUT    /api/inventory/{id}             Update editable fields

  Counterparties (mounted twice: /api/customers, /api/suppliers):
    GET    /                               List by role
    POST   /                               Create
    GET    /{id}                           Get
    PUT    /{id}                           Update contact fields
    PUT    /{id}/opening-balance           Set opening balance (locked after tx)
    GET    /{id}/balance                   Effective balance statement

  Vouchers:
    GET    /api/vouchers                   List vouchers
    POST   /api/vouchers                   Apply a voucher

  Journal:
    GET    /api/journal/entries            List entries (optional ?reference=)
    GET    /api/journal/accounts           Chart of accounts with balances

  Alerts:
    GET    /api/alerts                     Overdue/due-soon/low-stock/expiring

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Business-rule conflicts (stock, edit locks, overpayment, caps)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/MinaMohsen466/accounting-engine/alerts"
	"github.com/MinaMohsen466/accounting-engine/balance"
	"github.com/MinaMohsen466/accounting-engine/inventory"
	"github.com/MinaMohsen466/accounting-engine/invoice"
	"github.com/MinaMohsen466/accounting-engine/ledger"
	"github.com/MinaMohsen466/accounting-engine/party"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   invoice.Store
	Manager *invoice.Manager
	Parties *party.Service
	Log     zerolog.Logger

	// DueSoonDays is the lookahead window for due-soon alerts.
	DueSoonDays int

	Clock func() time.Time
}

// NewHandler creates a handler wired to the given store.
func NewHandler(store invoice.Store) *Handler {
	return &Handler{
		Store:       store,
		Manager:     invoice.NewManager(store),
		Parties:     party.NewService(store),
		Log:         zerolog.Nop(),
		DueSoonDays: 7,
		Clock:       time.Now,
	}
}

func (h *Handler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.Store.Invoices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}

	now := h.now()
	dtos := make([]InvoiceDTO, 0, len(invoices))
	for _, inv := range invoices {
		if t := r.URL.Query().Get("type"); t != "" && string(inv.Type) != t {
			continue
		}
		dtos = append(dtos, toInvoiceDTO(inv, now))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Store.Invoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get invoice", err)
		return
	}
	if inv == nil {
		writeError(w, http.StatusNotFound, "Invoice not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(*inv, h.now()))
}

func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := invoice.CreateInput{
		Type:             invoice.Type(req.Type),
		PartyID:          req.PartyID,
		Items:            toItemInputs(req.Items),
		Discount:         req.Discount,
		DiscountType:     invoice.DiscountType(req.DiscountType),
		VATRate:          req.VATRate,
		PaymentStatus:    invoice.PaymentStatus(req.PaymentStatus),
		PaidAmount:       req.PaidAmount,
		BalanceDeduction: req.BalanceDeduction,
		Date:             parseDate(req.Date),
		DueDate:          parseDate(req.DueDate),
		Notes:            req.Notes,
	}

	inv, err := h.Manager.Create(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceDTO(inv, h.now()))
}

func (h *Handler) EditInvoice(w http.ResponseWriter, r *http.Request) {
	var req EditInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := invoice.EditInput{
		Items:            toItemInputs(req.Items),
		Discount:         req.Discount,
		DiscountType:     invoice.DiscountType(req.DiscountType),
		VATRate:          req.VATRate,
		PaymentStatus:    invoice.PaymentStatus(req.PaymentStatus),
		PaidAmount:       req.PaidAmount,
		BalanceDeduction: req.BalanceDeduction,
		DueDate:          parseDate(req.DueDate),
		Notes:            req.Notes,
	}

	inv, err := h.Manager.Edit(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv, h.now()))
}

func (h *Handler) UpdateInvoiceNotes(w http.ResponseWriter, r *http.Request) {
	var req UpdateNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Manager.UpdateNotes(r.Context(), chi.URLParam(r, "id"), req.Notes); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := h.Manager.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) CreateReturn(w http.ResponseWriter, r *http.Request) {
	var req ReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	lines := make([]invoice.ReturnLine, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = invoice.ReturnLine{ItemID: l.ItemID, Quantity: l.Quantity}
	}

	ret, err := h.Manager.Return(r.Context(), chi.URLParam(r, "id"), invoice.ReturnInput{
		Lines: lines,
		Date:  parseDate(req.Date),
		Notes: req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceDTO(ret, h.now()))
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	inv, err := h.Manager.RecordPayment(r.Context(), chi.URLParam(r, "id"), req.Amount, parseDate(req.Date))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv, h.now()))
}

// =============================================================================
// INVENTORY HANDLERS
// =============================================================================

func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.Items(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list items", err)
		return
	}
	dtos := make([]ItemDTO, len(items))
	for i, it := range items {
		dtos[i] = toItemDTO(it)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.Store.Item(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get item", err)
		return
	}
	if it == nil {
		writeError(w, http.StatusNotFound, "Item not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toItemDTO(*it))
}

func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Item name is required", nil)
		return
	}
	if req.Quantity.IsNegative() || req.Price.IsNegative() || req.PurchasePrice.IsNegative() {
		writeError(w, http.StatusBadRequest, "Quantities and prices must be non-negative", nil)
		return
	}

	now := h.now()
	it := inventory.Item{
		ID:            uuid.NewString(),
		Name:          req.Name,
		SKU:           req.SKU,
		Quantity:      req.Quantity,
		Price:         req.Price,
		PurchasePrice: req.PurchasePrice,
		MinStockLevel: req.MinStockLevel,
		ExpiryDate:    parseDatePtr(req.ExpiryDate),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := h.Store.SaveItem(r.Context(), it); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemDTO(it))
}

// UpdateItem edits descriptive fields. On-hand quantity and the
// weighted-average cost stay as the reconciler left them.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	it, err := h.Store.Item(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get item", err)
		return
	}
	if it == nil {
		writeError(w, http.StatusNotFound, "Item not found", nil)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Item name is required", nil)
		return
	}
	if req.Price.IsNegative() {
		writeError(w, http.StatusBadRequest, "Price must be non-negative", nil)
		return
	}

	it.Name = req.Name
	it.SKU = req.SKU
	it.Price = req.Price
	it.MinStockLevel = req.MinStockLevel
	it.ExpiryDate = parseDatePtr(req.ExpiryDate)
	it.UpdatedAt = h.now()

	if err := h.Store.SaveItem(r.Context(), *it); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save item", err)
		return
	}
	writeJSON(w, http.StatusOK, toItemDTO(*it))
}

// =============================================================================
// COUNTERPARTY HANDLERS - Mounted per role
// =============================================================================

func (h *Handler) ListParties(role party.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parties, err := h.Store.Parties(r.Context(), role)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list counterparties", err)
			return
		}
		dtos := make([]PartyDTO, len(parties))
		for i, p := range parties {
			dtos[i] = toPartyDTO(p)
		}
		writeJSON(w, http.StatusOK, dtos)
	}
}

func (h *Handler) CreateParty(role party.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePartyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}

		p, err := h.Parties.Create(r.Context(), party.CreateInput{
			Name:           req.Name,
			Role:           role,
			OpeningBalance: req.OpeningBalance,
			Phone:          req.Phone,
			Email:          req.Email,
			Address:        req.Address,
			Notes:          req.Notes,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toPartyDTO(p))
	}
}

func (h *Handler) GetParty(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.Party(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get counterparty", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Counterparty not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toPartyDTO(*p))
}

func (h *Handler) UpdatePartyContact(w http.ResponseWriter, r *http.Request) {
	var req UpdateContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	err := h.Parties.UpdateContact(r.Context(), chi.URLParam(r, "id"),
		req.Phone, req.Email, req.Address, req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) SetOpeningBalance(w http.ResponseWriter, r *http.Request) {
	var req SetOpeningBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Parties.SetOpeningBalance(r.Context(), chi.URLParam(r, "id"), req.OpeningBalance); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// GetPartyBalance returns the effective balance statement: opening plus
// unpaid invoice deltas, returns subtracting. Unlinked vouchers already
// live in the opening balance and are never re-summed.
func (h *Handler) GetPartyBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := h.Store.Party(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get counterparty", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Counterparty not found", nil)
		return
	}

	invoices, err := h.Store.Invoices(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load invoices", err)
		return
	}

	st := balance.ForParty(*p, invoices)
	writeJSON(w, http.StatusOK, BalanceDTO{
		PartyID:     st.PartyID,
		Name:        st.Name,
		Role:        string(st.Role),
		Opening:     st.Opening.StringFixed(3),
		Outstanding: st.Outstanding.StringFixed(3),
		Total:       st.Total.StringFixed(3),
		Amount:      st.Amount.StringFixed(3),
		Label:       st.Label,
	})
}

// =============================================================================
// VOUCHER HANDLERS
// =============================================================================

func (h *Handler) ListVouchers(w http.ResponseWriter, r *http.Request) {
	vouchers, err := h.Store.Vouchers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list vouchers", err)
		return
	}
	dtos := make([]VoucherDTO, len(vouchers))
	for i, v := range vouchers {
		dtos[i] = toVoucherDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ApplyVoucher(w http.ResponseWriter, r *http.Request) {
	var req VoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	v, err := h.Manager.ApplyVoucher(r.Context(), party.Voucher{
		Type:      party.VoucherType(req.Type),
		PartyID:   req.PartyID,
		Amount:    req.Amount,
		InvoiceID: req.InvoiceID,
		Date:      parseDate(req.Date),
		Notes:     req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVoucherDTO(v))
}

// =============================================================================
// JOURNAL HANDLERS
// =============================================================================

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	var (
		entries []ledger.Entry
		err     error
	)
	if ref := r.URL.Query().Get("reference"); ref != "" {
		entries, err = h.Store.EntriesByReference(r.Context(), ref)
	} else {
		entries, err = h.Store.Entries(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list entries", err)
		return
	}

	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Store.Accounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts", err)
		return
	}
	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ALERT HANDLERS
// =============================================================================

func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	invoices, err := h.Store.Invoices(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load invoices", err)
		return
	}
	items, err := h.Store.Items(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load items", err)
		return
	}

	now := h.now()
	summary := alerts.Derive(invoices, items, now, h.DueSoonDays)
	writeJSON(w, http.StatusOK, AlertsDTO{
		Overdue:  toInvoiceDTOs(summary.Overdue, now),
		DueSoon:  toInvoiceDTOs(summary.DueSoon, now),
		LowStock: toItemDTOs(summary.LowStock),
		Expiring: toItemDTOs(summary.Expiring),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func toItemInputs(items []ItemRequest) []invoice.ItemInput {
	in := make([]invoice.ItemInput, len(items))
	for i, it := range items {
		in[i] = invoice.ItemInput{
			ItemID:       it.ItemID,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			ColorPrice:   it.ColorPrice,
			Discount:     it.Discount,
			DiscountType: invoice.DiscountType(it.DiscountType),
			ExpiryDate:   parseDatePtr(it.ExpiryDate),
		}
	}
	return in
}

func toInvoiceDTOs(invoices []invoice.Invoice, now time.Time) []InvoiceDTO {
	dtos := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = toInvoiceDTO(inv, now)
	}
	return dtos
}

func toItemDTOs(items []inventory.Item) []ItemDTO {
	dtos := make([]ItemDTO, len(items))
	for i, it := range items {
		dtos[i] = toItemDTO(it)
	}
	return dtos
}

// parseDate accepts RFC3339 or plain YYYY-MM-DD; empty input yields the
// zero time so callers can apply their own defaults.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return time.Time{}
}

func parseDatePtr(s string) *time.Time {
	t := parseDate(s)
	if t.IsZero() {
		return nil
	}
	return &t
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := errorResponse{Error: msg}
	if err != nil {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors to HTTP status codes: validation
// to 400, unknown IDs to 404, business-rule conflicts to 409.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, invoice.ErrInvoiceNotFound),
		errors.Is(err, party.ErrPartyNotFound),
		errors.Is(err, inventory.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "Not found", err)

	case errors.Is(err, invoice.ErrValidation),
		errors.Is(err, party.ErrInvalidParty),
		errors.Is(err, party.ErrInvalidVoucher),
		errors.Is(err, party.ErrInvalidOpeningBalance):
		writeError(w, http.StatusBadRequest, "Validation failed", err)

	case errors.Is(err, invoice.ErrEditNotAllowed),
		errors.Is(err, invoice.ErrDeleteNotAllowed),
		errors.Is(err, invoice.ErrReturnQuantityExceeded),
		errors.Is(err, invoice.ErrOverpayment),
		errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, inventory.ErrInsufficientStockToReverse),
		errors.Is(err, party.ErrOpeningBalanceLocked):
		writeError(w, http.StatusConflict, "Operation not allowed", err)

	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

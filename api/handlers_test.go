package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/MinaMohsen466/accounting-engine/api"
	"github.com/MinaMohsen466/accounting-engine/inventory"
	"github.com/MinaMohsen466/accounting-engine/party"
	"github.com/MinaMohsen466/accounting-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var testNow = time.Date(2025, time.August, 1, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*httptest.Server, *memory.Memory) {
	t.Helper()
	store := memory.NewWithChart()
	h := api.NewHandler(store)
	h.Clock = func() time.Time { return testNow }
	h.Manager.Clock = h.Clock

	srv := httptest.NewServer(api.NewRouter(h, []string{"*"}))
	t.Cleanup(srv.Close)
	return srv, store
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedItem(t *testing.T, store *memory.Memory, id, quantity string) {
	t.Helper()
	require.NoError(t, store.SaveItem(context.Background(), inventory.Item{
		ID:            id,
		Name:          id,
		Quantity:      money(quantity),
		PurchasePrice: money("4"),
	}))
}

func seedCustomer(t *testing.T, store *memory.Memory, id, opening string) {
	t.Helper()
	require.NoError(t, store.SaveParty(context.Background(), party.Counterparty{
		ID:             id,
		Name:           id,
		Role:           party.RoleCustomer,
		OpeningBalance: money(opening),
	}))
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// =============================================================================
// INVOICES
// =============================================================================

func TestCreateInvoice_Created(t *testing.T) {
	// GIVEN: A customer and stocked item
	// WHEN: POSTing a paid sales invoice
	// THEN: 201 with fixed-3 amounts and an assigned number

	srv, store := newTestServer(t)
	seedItem(t, store, "widget", "5")
	seedCustomer(t, store, "acme", "0")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/invoices", map[string]any{
		"type":          "sales",
		"partyId":       "acme",
		"paymentStatus": "paid",
		"items": []map[string]any{
			{"itemId": "widget", "quantity": 2, "unitPrice": "10"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	dto := decode[api.InvoiceDTO](t, resp)
	require.Equal(t, "INV-000001", dto.Number)
	require.Equal(t, "20.000", dto.Total)
	require.Equal(t, "paid", dto.PaymentStatus)
	require.Equal(t, "0.000", dto.Outstanding)
}

func TestCreateInvoice_ValidationError_400(t *testing.T) {
	srv, store := newTestServer(t)
	seedCustomer(t, store, "acme", "0")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/invoices", map[string]any{
		"type":          "sales",
		"partyId":       "acme",
		"paymentStatus": "paid",
		"items":         []map[string]any{},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateInvoice_InsufficientStock_409(t *testing.T) {
	srv, store := newTestServer(t)
	seedItem(t, store, "widget", "1")
	seedCustomer(t, store, "acme", "0")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/invoices", map[string]any{
		"type":          "sales",
		"partyId":       "acme",
		"paymentStatus": "paid",
		"items": []map[string]any{
			{"itemId": "widget", "quantity": 5, "unitPrice": "10"},
		},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGetInvoice_NotFound_404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/invoices/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListInvoices_TypeFilter(t *testing.T) {
	srv, store := newTestServer(t)
	seedItem(t, store, "widget", "20")
	seedCustomer(t, store, "acme", "0")
	require.NoError(t, store.SaveParty(context.Background(), party.Counterparty{
		ID: "supplies", Name: "supplies", Role: party.RoleSupplier,
	}))

	for _, body := range []map[string]any{
		{"type": "sales", "partyId": "acme", "paymentStatus": "paid",
			"items": []map[string]any{{"itemId": "widget", "quantity": 1, "unitPrice": "10"}}},
		{"type": "purchase", "partyId": "supplies", "paymentStatus": "pending",
			"items": []map[string]any{{"itemId": "widget", "quantity": 5, "unitPrice": "4"}}},
	} {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/invoices", body)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/api/invoices?type=purchase")
	require.NoError(t, err)
	got := decode[[]api.InvoiceDTO](t, resp)
	require.Len(t, got, 1)
	require.Equal(t, "purchase", got[0].Type)
}

func TestRecordPayment_Overpayment_409(t *testing.T) {
	srv, store := newTestServer(t)
	seedItem(t, store, "widget", "5")
	seedCustomer(t, store, "acme", "0")

	created := decode[api.InvoiceDTO](t, doJSON(t, http.MethodPost, srv.URL+"/api/invoices", map[string]any{
		"type":          "sales",
		"partyId":       "acme",
		"paymentStatus": "pending",
		"items": []map[string]any{
			{"itemId": "widget", "quantity": 2, "unitPrice": "10"},
		},
	}))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/invoices/"+created.ID+"/payments",
		map[string]any{"amount": "25"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateReturn_Created(t *testing.T) {
	srv, store := newTestServer(t)
	seedItem(t, store, "widget", "5")
	seedCustomer(t, store, "acme", "0")

	created := decode[api.InvoiceDTO](t, doJSON(t, http.MethodPost, srv.URL+"/api/invoices", map[string]any{
		"type":          "sales",
		"partyId":       "acme",
		"paymentStatus": "pending",
		"items": []map[string]any{
			{"itemId": "widget", "quantity": 3, "unitPrice": "10"},
		},
	}))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/invoices/"+created.ID+"/returns", map[string]any{
		"lines": []map[string]any{{"itemId": "widget", "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	ret := decode[api.InvoiceDTO](t, resp)
	require.True(t, ret.IsReturn)
	require.Equal(t, "RET-000001", ret.Number)
	require.Equal(t, "n/a", ret.PaymentStatus)
}

// =============================================================================
// INVENTORY
// =============================================================================

func TestCreateAndUpdateItem(t *testing.T) {
	// GIVEN: An item created over the API
	// WHEN: Updating its descriptive fields
	// THEN: Quantity and cost stay as the reconciler left them

	srv, _ := newTestServer(t)

	created := decode[api.ItemDTO](t, doJSON(t, http.MethodPost, srv.URL+"/api/inventory", map[string]any{
		"name":          "Widget",
		"sku":           "W-1",
		"quantity":      "7",
		"price":         "12",
		"purchasePrice": "4",
	}))
	require.NotEmpty(t, created.ID)
	require.Equal(t, "7", created.Quantity)

	updated := decode[api.ItemDTO](t, doJSON(t, http.MethodPut, srv.URL+"/api/inventory/"+created.ID, map[string]any{
		"name":  "Widget Mk2",
		"sku":   "W-2",
		"price": "14",
	}))
	require.Equal(t, "Widget Mk2", updated.Name)
	require.Equal(t, "7", updated.Quantity, "quantity is reconciler-owned")
	require.Equal(t, "4.000", updated.PurchasePrice, "cost is reconciler-owned")
}

func TestCreateItem_MissingName_400(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/inventory", map[string]any{"quantity": "1"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// COUNTERPARTIES
// =============================================================================

func TestCustomerRoutes_RoleComesFromMount(t *testing.T) {
	// GIVEN: The /api/customers mount
	// WHEN: Creating without a role field
	// THEN: The party is a customer; the suppliers list stays empty

	srv, _ := newTestServer(t)

	created := decode[api.PartyDTO](t, doJSON(t, http.MethodPost, srv.URL+"/api/customers", map[string]any{
		"name":           "Acme",
		"openingBalance": "25",
	}))
	require.Equal(t, "customer", created.Role)
	require.Equal(t, "25.000", created.OpeningBalance)

	resp, err := http.Get(srv.URL + "/api/suppliers")
	require.NoError(t, err)
	suppliers := decode[[]api.PartyDTO](t, resp)
	require.Empty(t, suppliers)
}

func TestCreateSupplier_PositiveOpening_400(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/suppliers", map[string]any{
		"name":           "Supplies Co",
		"openingBalance": "10",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSetOpeningBalance_Locked_409(t *testing.T) {
	srv, store := newTestServer(t)
	seedItem(t, store, "widget", "5")
	seedCustomer(t, store, "acme", "0")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/invoices", map[string]any{
		"type":          "sales",
		"partyId":       "acme",
		"paymentStatus": "paid",
		"items": []map[string]any{
			{"itemId": "widget", "quantity": 1, "unitPrice": "10"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/customers/acme/opening-balance",
		map[string]any{"openingBalance": "50"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGetPartyBalance_Statement(t *testing.T) {
	// GIVEN: A customer with opening 50 and an unpaid invoice of 30
	// WHEN: GETting the balance statement
	// THEN: Opening, outstanding and total are broken out

	srv, store := newTestServer(t)
	seedItem(t, store, "widget", "5")
	seedCustomer(t, store, "acme", "50")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/invoices", map[string]any{
		"type":          "sales",
		"partyId":       "acme",
		"paymentStatus": "pending",
		"items": []map[string]any{
			{"itemId": "widget", "quantity": 3, "unitPrice": "10"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/customers/acme/balance")
	require.NoError(t, err)
	st := decode[api.BalanceDTO](t, resp)
	require.Equal(t, "50.000", st.Opening)
	require.Equal(t, "30.000", st.Outstanding)
	require.Equal(t, "80.000", st.Total)
	require.Equal(t, "debit", st.Label)
}

// =============================================================================
// JOURNAL AND ALERTS
// =============================================================================

func TestListEntries_ReferenceFilter(t *testing.T) {
	srv, store := newTestServer(t)
	seedItem(t, store, "widget", "10")
	seedCustomer(t, store, "acme", "0")

	for i := 0; i < 2; i++ {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/invoices", map[string]any{
			"type":          "sales",
			"partyId":       "acme",
			"paymentStatus": "paid",
			"items": []map[string]any{
				{"itemId": "widget", "quantity": 1, "unitPrice": "10"},
			},
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/api/journal/entries?reference=INV-000002")
	require.NoError(t, err)
	entries := decode[[]api.EntryDTO](t, resp)
	require.Len(t, entries, 1)
	require.Equal(t, "INV-000002", entries[0].Reference)
}

func TestListAccounts_SeededChart(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/journal/accounts")
	require.NoError(t, err)
	accounts := decode[[]api.AccountDTO](t, resp)
	require.NotEmpty(t, accounts)
	for _, a := range accounts {
		require.Equal(t, "0.000", a.Balance)
	}
}

func TestGetAlerts(t *testing.T) {
	// GIVEN: An overdue invoice and a low-stock item
	// WHEN: GETting alerts
	// THEN: Both show up in their buckets

	srv, store := newTestServer(t)
	seedItem(t, store, "widget", "10")
	seedCustomer(t, store, "acme", "0")
	require.NoError(t, store.SaveItem(context.Background(), inventory.Item{
		ID:            "low",
		Name:          "low",
		Quantity:      money("1"),
		MinStockLevel: money("5"),
	}))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/invoices", map[string]any{
		"type":          "sales",
		"partyId":       "acme",
		"paymentStatus": "pending",
		"dueDate":       testNow.AddDate(0, 0, -3).Format("2006-01-02"),
		"items": []map[string]any{
			{"itemId": "widget", "quantity": 1, "unitPrice": "10"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/alerts")
	require.NoError(t, err)
	got := decode[api.AlertsDTO](t, resp)
	require.Len(t, got.Overdue, 1)
	require.Equal(t, "overdue", got.Overdue[0].PaymentStatus)
	require.Len(t, got.LowStock, 1)
	require.Equal(t, "low", got.LowStock[0].ID)
	require.Empty(t, got.DueSoon)
	require.Empty(t, got.Expiring)
}

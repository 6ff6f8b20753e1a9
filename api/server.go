/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/invoices/*    Invoice lifecycle (create, edit, delete, returns, payments)
  /api/inventory/*   Inventory items
  /api/customers/*   Customers (counterparties with role=customer)
  /api/suppliers/*   Suppliers (counterparties with role=supplier)
  /api/vouchers/*    Receipt/payment vouchers
  /api/journal/*     Journal entries and chart of accounts
  /api/alerts        Derived alert sets

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MinaMohsen466/accounting-engine/party"
)

// NewRouter creates a router with all routes configured. allowedOrigins
// feeds the CORS middleware; pass []string{"*"} for open local dev.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Route("/api", func(r chi.Router) {
		// Invoice routes
		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.ListInvoices)
			r.Post("/", h.CreateInvoice)
			r.Get("/{id}", h.GetInvoice)
			r.Put("/{id}", h.EditInvoice)
			r.Patch("/{id}/notes", h.UpdateInvoiceNotes)
			r.Delete("/{id}", h.DeleteInvoice)
			r.Post("/{id}/returns", h.CreateReturn)
			r.Post("/{id}/payments", h.RecordPayment)
		})

		// Inventory routes
		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", h.ListItems)
			r.Post("/", h.CreateItem)
			r.Get("/{id}", h.GetItem)
			r.Put("/{id}", h.UpdateItem)
		})

		// Counterparty routes, one mount per role
		r.Route("/customers", partyRoutes(h, party.RoleCustomer))
		r.Route("/suppliers", partyRoutes(h, party.RoleSupplier))

		// Voucher routes
		r.Route("/vouchers", func(r chi.Router) {
			r.Get("/", h.ListVouchers)
			r.Post("/", h.ApplyVoucher)
		})

		// Journal routes (read-only; the journal is append-only and only
		// the lifecycle manager writes to it)
		r.Route("/journal", func(r chi.Router) {
			r.Get("/entries", h.ListEntries)
			r.Get("/accounts", h.ListAccounts)
		})

		r.Get("/alerts", h.GetAlerts)
	})

	return r
}

func partyRoutes(h *Handler, role party.Role) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", h.ListParties(role))
		r.Post("/", h.CreateParty(role))
		r.Get("/{id}", h.GetParty)
		r.Put("/{id}", h.UpdatePartyContact)
		r.Put("/{id}/opening-balance", h.SetOpeningBalance)
		r.Get("/{id}/balance", h.GetPartyBalance)
	}
}

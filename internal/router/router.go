package router

import (
	"net/http"
	"strings"

	"github.com/rentledger/backend/internal/handlers"
)

// Handlers groups the endpoint handlers mounted under /api/v1.
type Handlers struct {
	Payments *handlers.PaymentHandler
	Cashouts *handlers.CashoutHandler
	Owners   *handlers.OwnerHandler
	Reports  *handlers.ReportHandler
}

// New returns an http.Handler serving the API under /api/v1. Every route
// runs behind auth.
func New(h Handlers, auth func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"
	handle := func(pattern string, fn http.HandlerFunc) {
		method, path, _ := strings.Cut(pattern, " ")
		mux.Handle(method+" "+base+path, auth(fn))
	}

	handle("POST /payments/{id}/post", h.Payments.Post)

	handle("POST /cashouts", h.Cashouts.Create)
	handle("GET /cashouts", h.Cashouts.List)
	handle("GET /cashouts/{id}", h.Cashouts.Get)
	handle("POST /cashouts/{id}/approve", h.Cashouts.Approve)
	handle("POST /cashouts/{id}/reject", h.Cashouts.Reject)
	handle("POST /cashouts/{id}/process", h.Cashouts.Process)
	handle("GET /balances/company", h.Cashouts.CompanyBalance)

	handle("GET /owners/{id}/balance", h.Owners.Balance)
	handle("GET /owners/{id}/payments", h.Owners.ListPayments)
	handle("POST /owners/{id}/payments", h.Owners.MarkPayment)

	handle("GET /proration", handlers.Proration)

	handle("GET /reports/financial", h.Reports.Financial)
	handle("GET /reports/occupancy", h.Reports.Occupancy)
	handle("GET /reports/payments", h.Reports.Payments)
	handle("GET /reports/owners/{id}/statement", h.Reports.OwnerStatement)

	return mux
}

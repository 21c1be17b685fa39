package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentledger/backend/internal/ledger"
	"github.com/rentledger/backend/internal/middleware"
	"github.com/rentledger/backend/internal/models"
	"github.com/rentledger/backend/internal/repository/memstore"
	"github.com/rentledger/backend/internal/services"
)

// ---------------------------------------------------------------------------
// Fixture: real services over the in-memory store
// ---------------------------------------------------------------------------

type fixture struct {
	store    *memstore.Store
	payments *PaymentHandler
	cashouts *CashoutHandler
	owners   *OwnerHandler
	reports  *ReportHandler
	tenantID uuid.UUID
	ownerID  uuid.UUID
	property models.Property
	admin    *models.Actor
	platform *models.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	f := &fixture{store: store, tenantID: uuid.New(), ownerID: uuid.New()}
	f.property = models.Property{ID: uuid.New(), TenantID: f.tenantID, OwnerID: f.ownerID, Name: "Acacia Flats"}
	store.AddTenant(models.Tenant{ID: f.tenantID, Name: "Acme Lettings"})
	store.AddProperty(f.property)
	store.AddUnit(models.Unit{ID: uuid.New(), PropertyID: f.property.ID, Status: models.UnitOccupied})

	details, err := services.NewDetailsValidator()
	if err != nil {
		t.Fatal(err)
	}
	posting := ledger.NewService(store, store.Sources, store.Balances, store.Fees, store.Transactions, ledger.NewFeeEngine(decimal.NewFromInt(10)), nil)
	cashouts := services.NewCashoutService(store, store.Cashouts, store.Balances, store.Sources, store.Transactions, details, services.CashoutSettings{}, nil, nil)
	payouts := services.NewPayoutService(store, store.Balances, store.OwnerPayments, store.Transactions, nil)
	reports := services.NewReportService(store.Sources, store.Transactions, store.OwnerPayments, store.Cashouts, store.Balances, nil, nil)

	f.payments = &PaymentHandler{Ledger: posting}
	f.cashouts = &CashoutHandler{Cashouts: cashouts}
	f.owners = &OwnerHandler{Payouts: payouts}
	f.reports = &ReportHandler{Reports: reports}
	f.admin = mustActor(t, f.tenantID, models.RoleCompanyAdmin)
	f.platform = mustActor(t, uuid.Nil, models.RolePlatformAdmin)
	return f
}

func mustActor(t *testing.T, tenantID uuid.UUID, role string) *models.Actor {
	t.Helper()
	a, err := models.NewActor(uuid.New(), tenantID, role)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

// addPayment seeds a completed May rent payment.
func (f *fixture) addPayment(amount string) uuid.UUID {
	id := uuid.New()
	f.store.AddPayment(models.Payment{
		ID: id, TenantID: f.tenantID, LeaseID: uuid.New(), PropertyID: f.property.ID, UnitID: uuid.New(),
		OwnerID: f.ownerID, Amount: decimal.RequireFromString(amount), Status: models.PaymentStatusCompleted,
		PaymentType: models.PaymentTypeRent, PaymentDate: time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC),
	})
	return id
}

type call struct {
	method string
	target string
	body   string
	actor  *models.Actor
	id     string
}

func do(h http.HandlerFunc, c call) *httptest.ResponseRecorder {
	var req *http.Request
	if c.body != "" {
		req = httptest.NewRequest(c.method, c.target, strings.NewReader(c.body))
	} else {
		req = httptest.NewRequest(c.method, c.target, nil)
	}
	if c.id != "" {
		req.SetPathValue("id", c.id)
	}
	if c.actor != nil {
		req = req.WithContext(middleware.WithActor(req.Context(), c.actor))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, status, rec.Body.String())
	}
	e := decode[errorResponse](t, rec)
	if e.Code != code {
		t.Errorf("code = %q, want %q (error %q)", e.Code, code, e.Error)
	}
}

// ---------------------------------------------------------------------------
// Payments
// ---------------------------------------------------------------------------

func TestPaymentHandler_Post(t *testing.T) {
	f := newFixture(t)
	id := f.addPayment("50000")

	rec := do(f.payments.Post, call{method: http.MethodPost, target: "/api/v1/payments/" + id.String() + "/post", actor: f.admin, id: id.String()})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d; body = %s", rec.Code, rec.Body.String())
	}
	res := decode[ledger.PostResult](t, rec)
	if !res.Fee.FeeAmount.Equal(decimal.NewFromInt(5000)) || !res.CompanyBalance.AvailableBalance.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("fee = %s, available = %s", res.Fee.FeeAmount, res.CompanyBalance.AvailableBalance)
	}

	rec = do(f.payments.Post, call{method: http.MethodPost, target: "/", actor: f.admin, id: id.String()})
	if rec.Code != http.StatusOK {
		t.Fatalf("replay status = %d", rec.Code)
	}
	if !decode[ledger.PostResult](t, rec).AlreadyPosted {
		t.Error("replay not flagged as already posted")
	}
}

func TestPaymentHandler_PostErrors(t *testing.T) {
	f := newFixture(t)
	id := f.addPayment("100")
	outsider := mustActor(t, uuid.New(), models.RoleAccountant)

	expectError(t, do(f.payments.Post, call{method: http.MethodPost, target: "/", actor: f.admin, id: "nope"}), http.StatusBadRequest, "validation_error")
	expectError(t, do(f.payments.Post, call{method: http.MethodPost, target: "/", actor: f.admin, id: uuid.NewString()}), http.StatusNotFound, "not_found")
	expectError(t, do(f.payments.Post, call{method: http.MethodPost, target: "/", actor: outsider, id: id.String()}), http.StatusForbidden, "forbidden")

	rec := do(f.payments.Post, call{method: http.MethodPost, target: "/", id: id.String()})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no actor status = %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// Cashouts
// ---------------------------------------------------------------------------

func TestCashoutHandler_Lifecycle(t *testing.T) {
	f := newFixture(t)
	pid := f.addPayment("50000")
	do(f.payments.Post, call{method: http.MethodPost, target: "/", actor: f.admin, id: pid.String()})

	create := func(amount string) *httptest.ResponseRecorder {
		body := `{"amount":"` + amount + `","payment_method":"mpesa","payment_details":{"phone_number":"0712345678"}}`
		return do(f.cashouts.Create, call{method: http.MethodPost, target: "/api/v1/cashouts", actor: f.admin, body: body})
	}
	expectError(t, create("6000"), http.StatusUnprocessableEntity, "insufficient_funds")
	expectError(t, create("500"), http.StatusUnprocessableEntity, "below_minimum_amount")
	expectError(t, create("1e50000000"), http.StatusBadRequest, "validation_error")
	expectError(t, create("10000000000000"), http.StatusBadRequest, "validation_error")

	rec := create("2000")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d; body = %s", rec.Code, rec.Body.String())
	}
	c := decode[models.CashoutRequest](t, rec)
	if c.Status != models.CashoutPending || !c.FeeAmount.Equal(decimal.NewFromInt(60)) {
		t.Errorf("created = %+v", c)
	}
	id := c.ID.String()

	expectError(t, do(f.cashouts.Approve, call{method: http.MethodPost, target: "/", actor: f.admin, id: id}), http.StatusForbidden, "forbidden")
	if rec := do(f.cashouts.Approve, call{method: http.MethodPost, target: "/", actor: f.platform, id: id}); rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d; body = %s", rec.Code, rec.Body.String())
	}
	expectError(t, do(f.cashouts.Approve, call{method: http.MethodPost, target: "/", actor: f.platform, id: id}), http.StatusConflict, "invalid_state_transition")
	expectError(t, do(f.cashouts.Process, call{method: http.MethodPost, target: "/", actor: f.platform, id: id, body: `{}`}), http.StatusBadRequest, "validation_error")

	rec = do(f.cashouts.Process, call{method: http.MethodPost, target: "/", actor: f.platform, id: id, body: `{"transaction_id":"MPX123"}`})
	if rec.Code != http.StatusOK {
		t.Fatalf("process status = %d; body = %s", rec.Code, rec.Body.String())
	}
	if got := decode[models.CashoutRequest](t, rec); got.Status != models.CashoutProcessed || got.TransactionID != "MPX123" {
		t.Errorf("processed = %+v", got)
	}

	rec = do(f.cashouts.CompanyBalance, call{method: http.MethodGet, target: "/api/v1/balances/company", actor: f.admin})
	if rec.Code != http.StatusOK {
		t.Fatalf("balance status = %d", rec.Code)
	}
	b := decode[models.CompanyBalance](t, rec)
	if !b.AvailableBalance.Equal(decimal.NewFromInt(3000)) || !b.PendingBalance.IsZero() {
		t.Errorf("balance = available %s pending %s", b.AvailableBalance, b.PendingBalance)
	}

	rec = do(f.cashouts.List, call{method: http.MethodGet, target: "/api/v1/cashouts?status=processed", actor: f.admin})
	list := decode[map[string][]models.CashoutRequest](t, rec)
	if len(list["cashouts"]) != 1 {
		t.Errorf("listed %d cashouts", len(list["cashouts"]))
	}
	expectError(t, do(f.cashouts.List, call{method: http.MethodGet, target: "/api/v1/cashouts?status=lost", actor: f.admin}), http.StatusBadRequest, "validation_error")
}

func TestCashoutHandler_RejectAndLookup(t *testing.T) {
	f := newFixture(t)
	pid := f.addPayment("50000")
	do(f.payments.Post, call{method: http.MethodPost, target: "/", actor: f.admin, id: pid.String()})

	rec := do(f.cashouts.Create, call{method: http.MethodPost, target: "/", actor: f.admin,
		body: `{"amount":1500,"payment_method":"mpesa","payment_details":{"phone_number":"+254712345678"}}`})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d; body = %s", rec.Code, rec.Body.String())
	}
	id := decode[models.CashoutRequest](t, rec).ID.String()

	expectError(t, do(f.cashouts.Reject, call{method: http.MethodPost, target: "/", actor: f.platform, id: id, body: `{"reason":""}`}), http.StatusBadRequest, "validation_error")
	rec = do(f.cashouts.Reject, call{method: http.MethodPost, target: "/", actor: f.platform, id: id, body: `{"reason":"details mismatch"}`})
	if got := decode[models.CashoutRequest](t, rec); got.Status != models.CashoutRejected || got.RejectionReason != "details mismatch" {
		t.Errorf("rejected = %+v", got)
	}

	outsider := mustActor(t, uuid.New(), models.RoleCompanyAdmin)
	expectError(t, do(f.cashouts.Get, call{method: http.MethodGet, target: "/", actor: outsider, id: id}), http.StatusNotFound, "not_found")
	if rec := do(f.cashouts.Get, call{method: http.MethodGet, target: "/", actor: f.admin, id: id}); rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}

	expectError(t, do(f.cashouts.Create, call{method: http.MethodPost, target: "/", actor: f.admin, body: `{"amount":"1500","bogus":1}`}), http.StatusBadRequest, "validation_error")
	expectError(t, do(f.cashouts.CompanyBalance, call{method: http.MethodGet, target: "/", actor: f.platform}), http.StatusBadRequest, "validation_error")
}

// ---------------------------------------------------------------------------
// Owners
// ---------------------------------------------------------------------------

func TestOwnerHandler_Payments(t *testing.T) {
	f := newFixture(t)
	pid := f.addPayment("50000")
	do(f.payments.Post, call{method: http.MethodPost, target: "/", actor: f.admin, id: pid.String()})
	owner := f.ownerID.String()

	expectError(t, do(f.owners.MarkPayment, call{method: http.MethodPost, target: "/", actor: f.admin, id: owner,
		body: `{"amount":"50000","payment_method":"mpesa"}`}), http.StatusUnprocessableEntity, "exceeds_amount_owed")
	expectError(t, do(f.owners.MarkPayment, call{method: http.MethodPost, target: "/", actor: f.admin, id: owner,
		body: `{"amount":"100","payment_method":"mpesa","payment_date":"6 May"}`}), http.StatusBadRequest, "validation_error")

	rec := do(f.owners.MarkPayment, call{method: http.MethodPost, target: "/", actor: f.admin, id: owner,
		body: `{"amount":"20000","payment_method":"bank_transfer","payment_date":"2024-05-06","transaction_id":"BT-1"}`})
	if rec.Code != http.StatusCreated {
		t.Fatalf("mark status = %d; body = %s", rec.Code, rec.Body.String())
	}
	p := decode[models.OwnerPayment](t, rec)
	if !p.PaymentDate.Equal(time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("payment date = %s", p.PaymentDate)
	}

	rec = do(f.owners.Balance, call{method: http.MethodGet, target: "/", actor: f.admin, id: owner})
	b := decode[models.OwnerBalance](t, rec)
	if !b.AmountOwed.Equal(decimal.NewFromInt(25000)) || !b.TotalPaid.Equal(decimal.NewFromInt(20000)) {
		t.Errorf("owed = %s, paid = %s", b.AmountOwed, b.TotalPaid)
	}

	rec = do(f.owners.ListPayments, call{method: http.MethodGet, target: "/", actor: f.admin, id: owner})
	if got := decode[map[string][]models.OwnerPayment](t, rec); len(got["payments"]) != 1 {
		t.Errorf("payments = %d", len(got["payments"]))
	}

	// Platform admins name the tenant explicitly.
	rec = do(f.owners.Balance, call{method: http.MethodGet, target: "/?tenant_id=" + f.tenantID.String(), actor: f.platform, id: owner})
	if rec.Code != http.StatusOK {
		t.Errorf("platform balance status = %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// Reports and proration
// ---------------------------------------------------------------------------

func TestReportHandler(t *testing.T) {
	f := newFixture(t)
	pid := f.addPayment("50000")
	do(f.payments.Post, call{method: http.MethodPost, target: "/", actor: f.admin, id: pid.String()})

	rec := do(f.reports.Financial, call{method: http.MethodGet, target: "/api/v1/reports/financial?from=2024-05-01&to=2024-05-03", actor: f.admin})
	if rec.Code != http.StatusOK {
		t.Fatalf("financial status = %d; body = %s", rec.Code, rec.Body.String())
	}
	fin := decode[services.FinancialReport](t, rec)
	if !fin.TotalRevenue.Equal(decimal.NewFromInt(50000)) || !fin.PlatformFeesPaid.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("revenue = %s, fees = %s", fin.TotalRevenue, fin.PlatformFeesPaid)
	}

	rec = do(f.reports.Occupancy, call{method: http.MethodGet, target: "/?from=2024-05-01&to=2024-05-31", actor: f.admin})
	if occ := decode[services.OccupancyReport](t, rec); occ.TotalUnits != 1 || occ.Occupied != 1 {
		t.Errorf("occupancy = %+v", occ)
	}

	rec = do(f.reports.OwnerStatement, call{method: http.MethodGet, target: "/?from=2024-05-01&to=2024-05-31", actor: f.admin, id: f.ownerID.String()})
	if st := decode[services.OwnerStatement](t, rec); !st.Lifetime.AmountOwed.Equal(decimal.NewFromInt(45000)) {
		t.Errorf("statement owed = %s", st.Lifetime.AmountOwed)
	}

	for _, q := range []string{"", "?from=2024-05-01", "?from=2024-05-31&to=2024-05-01", "?from=May&to=June"} {
		expectError(t, do(f.reports.Payments, call{method: http.MethodGet, target: "/" + q, actor: f.admin}), http.StatusBadRequest, "validation_error")
	}
}

func TestProration(t *testing.T) {
	admin := mustActor(t, uuid.New(), models.RoleAccountant)

	rec := do(Proration, call{method: http.MethodGet, target: "/api/v1/proration?move_in=2024-03-20&monthly_rent=50000", actor: admin})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rec.Code, rec.Body.String())
	}
	pr := decode[services.ProratedRent](t, rec)
	if !pr.IsProrated || !pr.Amount.Equal(decimal.NewFromInt(25000)) || pr.ProratedDays != 12 {
		t.Errorf("prorated = %+v", pr)
	}

	rec = do(Proration, call{method: http.MethodGet, target: "/?move_in=2024-03-02&monthly_rent=50000&deposit=25000", actor: admin})
	if first := decode[services.FirstPayment](t, rec); !first.Total.Equal(decimal.NewFromInt(75000)) {
		t.Errorf("first payment total = %s", first.Total)
	}

	expectError(t, do(Proration, call{method: http.MethodGet, target: "/?move_in=2024-03-02&monthly_rent=abc", actor: admin}), http.StatusBadRequest, "validation_error")
	expectError(t, do(Proration, call{method: http.MethodGet, target: "/?monthly_rent=100", actor: admin}), http.StatusBadRequest, "validation_error")
	expectError(t, do(Proration, call{method: http.MethodGet, target: "/?move_in=2024-03-02&monthly_rent=-1", actor: admin}), http.StatusBadRequest, "validation_error")
	expectError(t, do(Proration, call{method: http.MethodGet, target: "/?move_in=2024-03-20&monthly_rent=1e50000000", actor: admin}), http.StatusBadRequest, "validation_error")
	expectError(t, do(Proration, call{method: http.MethodGet, target: "/?move_in=2024-03-02&monthly_rent=100&deposit=1e13", actor: admin}), http.StatusBadRequest, "validation_error")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.Fail(models.ErrValidation, "x"), http.StatusBadRequest},
		{models.Fail(models.ErrForbidden, "x"), http.StatusForbidden},
		{models.Fail(models.ErrNotFound, "x"), http.StatusNotFound},
		{models.Fail(models.ErrInsufficientFunds, "x"), http.StatusUnprocessableEntity},
		{models.Fail(models.ErrBelowMinimumAmount, "x"), http.StatusUnprocessableEntity},
		{models.Fail(models.ErrExceedsAmountOwed, "x"), http.StatusUnprocessableEntity},
		{models.Fail(models.ErrInvalidStateTransition, "x"), http.StatusConflict},
		{models.Persistence(uuid.New(), "op", errors.New("db down")), http.StatusInternalServerError},
		{errors.New("anything"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWriteError_HidesStorageCause(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, nil, models.Persistence(uuid.New(), "update balance", errors.New("pq: connection reset")))
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Errorf("body leaks cause: %s", rec.Body.String())
	}
	expectError(t, rec, http.StatusInternalServerError, "persistence_failure")
}

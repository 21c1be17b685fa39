package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rentledger/backend/internal/models"
	"github.com/rentledger/backend/internal/repository/memstore"
)

type fixture struct {
	store    *memstore.Store
	svc      *Service
	tenantID uuid.UUID
	ownerID  uuid.UUID
	property models.Property
	actor    *models.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	f := &fixture{store: store, tenantID: uuid.New(), ownerID: uuid.New()}
	f.property = models.Property{ID: uuid.New(), TenantID: f.tenantID, OwnerID: f.ownerID, Name: "Riverside Court"}
	store.AddTenant(models.Tenant{ID: f.tenantID, Name: "Acme Lettings"})
	store.AddProperty(f.property)
	f.svc = NewService(store, store.Sources, store.Balances, store.Fees, store.Transactions, NewFeeEngine(dec("10")), nil)
	actor, err := models.NewActor(uuid.New(), f.tenantID, models.RoleAccountant)
	if err != nil {
		t.Fatal(err)
	}
	f.actor = actor
	return f
}

func (f *fixture) payment(amount string, mutate ...func(*models.Payment)) models.Payment {
	p := models.Payment{
		ID:          uuid.New(),
		TenantID:    f.tenantID,
		LeaseID:     uuid.New(),
		PropertyID:  f.property.ID,
		UnitID:      uuid.New(),
		OwnerID:     f.ownerID,
		Amount:      dec(amount),
		Status:      models.PaymentStatusCompleted,
		PaymentType: models.PaymentTypeRent,
		PaymentDate: time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
	}
	for _, m := range mutate {
		m(&p)
	}
	f.store.AddPayment(p)
	return p
}

func TestPostPayment_UpdatesBothBalances(t *testing.T) {
	f := newFixture(t)
	p := f.payment("50000")

	res, err := f.svc.PostPayment(context.Background(), f.actor, p.ID)
	if err != nil {
		t.Fatalf("PostPayment: %v", err)
	}
	if res.AlreadyPosted {
		t.Fatal("first posting reported as duplicate")
	}
	if !res.Fee.FeeAmount.Equal(dec("5000")) || res.Fee.FeeSource != models.FeeSourceGlobal {
		t.Errorf("fee = %s (%s), want 5000 (global)", res.Fee.FeeAmount, res.Fee.FeeSource)
	}

	ctx := context.Background()
	company, err := f.store.Balances.GetCompany(ctx, f.tenantID)
	if err != nil {
		t.Fatal(err)
	}
	if !company.AvailableBalance.Equal(dec("5000")) || !company.TotalCollected.Equal(dec("50000")) ||
		!company.PlatformFeesCollected.Equal(dec("5000")) {
		t.Errorf("company balance = %+v", company)
	}
	if !company.InvariantHolds() {
		t.Error("company invariant broken")
	}
	owner, err := f.store.Balances.GetOwner(ctx, f.tenantID, f.ownerID)
	if err != nil {
		t.Fatal(err)
	}
	if !owner.AmountOwed.Equal(dec("45000")) || !owner.TotalRentCollected.Equal(dec("50000")) || !owner.TotalPlatformFees.Equal(dec("5000")) {
		t.Errorf("owner balance = %+v", owner)
	}
	if !owner.InvariantHolds() {
		t.Error("owner invariant broken")
	}
	if f.store.FeeCount() != 1 || f.store.TransactionCount() != 1 {
		t.Errorf("fees=%d transactions=%d, want 1 and 1", f.store.FeeCount(), f.store.TransactionCount())
	}
	if res.Transaction.TransactionType != models.TxPaymentReceived || !res.Transaction.BalanceAfter.Equal(dec("5000")) {
		t.Errorf("transaction = %+v", res.Transaction)
	}
}

func TestPostPayment_SecondPostingIsNoOp(t *testing.T) {
	f := newFixture(t)
	p := f.payment("12000")
	ctx := context.Background()

	first, err := f.svc.PostPayment(ctx, f.actor, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.PostPayment(ctx, f.actor, p.ID)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !second.AlreadyPosted {
		t.Fatal("replay not flagged AlreadyPosted")
	}
	if second.Fee.ID != first.Fee.ID {
		t.Errorf("replay returned fee %s, want %s", second.Fee.ID, first.Fee.ID)
	}
	if second.Transaction == nil || second.Transaction.ID != first.Transaction.ID {
		t.Error("replay should return the original transaction")
	}
	company, _ := f.store.Balances.GetCompany(ctx, f.tenantID)
	if !company.AvailableBalance.Equal(dec("1200")) {
		t.Errorf("available = %s after replay, want 1200", company.AvailableBalance)
	}
	if f.store.FeeCount() != 1 || f.store.TransactionCount() != 1 {
		t.Errorf("replay wrote rows: fees=%d transactions=%d", f.store.FeeCount(), f.store.TransactionCount())
	}
}

func TestPostPayment_FeeSourceRecorded(t *testing.T) {
	f := newFixture(t)
	commission := dec("8")
	f.property.CommissionPercentage = &commission
	f.store.AddProperty(f.property)
	p := f.payment("1000")

	res, err := f.svc.PostPayment(context.Background(), f.actor, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fee.FeeSource != models.FeeSourceProperty || !res.Fee.FeeAmount.Equal(dec("80")) {
		t.Errorf("fee = %s from %s, want 80 from property", res.Fee.FeeAmount, res.Fee.FeeSource)
	}
}

func TestPostPayment_RollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	p := f.payment("5000")
	f.store.FailOn("transactions.create", errors.New("disk full"))

	_, err := f.svc.PostPayment(context.Background(), f.actor, p.ID)
	if !errors.Is(err, models.ErrPersistence) {
		t.Fatalf("expected persistence failure, got %v", err)
	}
	var de *models.Error
	if !errors.As(err, &de) || de.Ref != p.ID.String() {
		t.Errorf("error should carry payment id, got %+v", de)
	}
	if _, err := f.store.Balances.GetCompany(context.Background(), f.tenantID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("company balance should not exist after rollback, got %v", err)
	}
	if f.store.FeeCount() != 0 {
		t.Error("fee row survived rollback")
	}

	f.store.FailOn("transactions.create", nil)
	if _, err := f.svc.PostPayment(context.Background(), f.actor, p.ID); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestPostPayment_Validation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		mutate func(*models.Payment)
		want   error
	}{
		{"pending", func(p *models.Payment) { p.Status = models.PaymentStatusPending }, models.ErrValidation},
		{"failed", func(p *models.Payment) { p.Status = models.PaymentStatusFailed }, models.ErrValidation},
		{"unknown type", func(p *models.Payment) { p.PaymentType = "refund" }, models.ErrValidation},
		{"zero amount", func(p *models.Payment) { p.Amount = dec("0") }, models.ErrValidation},
		{"deposit ok", func(p *models.Payment) { p.PaymentType = models.PaymentTypeDeposit }, nil},
		{"late fee ok", func(p *models.Payment) { p.PaymentType = models.PaymentTypeLateFee }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := f.payment("100", tt.mutate)
			_, err := f.svc.PostPayment(context.Background(), f.actor, p.ID)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := f.svc.PostPayment(context.Background(), f.actor, uuid.New()); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing payment: got %v", err)
	}
}

func TestPostPayment_ForbiddenAcrossTenants(t *testing.T) {
	f := newFixture(t)
	p := f.payment("100")
	other, _ := models.NewActor(uuid.New(), uuid.New(), models.RoleCompanyAdmin)

	if _, err := f.svc.PostPayment(context.Background(), other, p.ID); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	admin, _ := models.NewActor(uuid.New(), uuid.Nil, models.RolePlatformAdmin)
	if _, err := f.svc.PostPayment(context.Background(), admin, p.ID); err != nil {
		t.Fatalf("platform admin should post for any tenant: %v", err)
	}
}

func TestPostPayment_ConcurrentPostingsSumExactly(t *testing.T) {
	f := newFixture(t)
	var ids []uuid.UUID
	for i := 0; i < 20; i++ {
		ids = append(ids, f.payment("1000.10").ID)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(ids)*2)
	for _, id := range ids {
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(id uuid.UUID) {
				defer wg.Done()
				if _, err := f.svc.PostPayment(context.Background(), f.actor, id); err != nil {
					errs <- err
				}
			}(id)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent post: %v", err)
	}

	company, _ := f.store.Balances.GetCompany(context.Background(), f.tenantID)
	// 20 x round(1000.10 * 10%) = 20 x 100.01
	if !company.AvailableBalance.Equal(dec("2000.20")) || !company.TotalCollected.Equal(dec("20002")) {
		t.Errorf("company = available %s collected %s", company.AvailableBalance, company.TotalCollected)
	}
	owner, _ := f.store.Balances.GetOwner(context.Background(), f.tenantID, f.ownerID)
	if !owner.AmountOwed.Equal(dec("18001.80")) || !owner.InvariantHolds() {
		t.Errorf("owner amount owed = %s", owner.AmountOwed)
	}
	if f.store.FeeCount() != 20 || f.store.TransactionCount() != 20 {
		t.Errorf("fees=%d transactions=%d, want 20", f.store.FeeCount(), f.store.TransactionCount())
	}
}

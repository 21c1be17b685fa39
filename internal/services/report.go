package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentledger/backend/internal/metrics"
	"github.com/rentledger/backend/internal/models"
)

// Read-side interfaces. None of them lock.

type ReportSource interface {
	ListPayments(ctx context.Context, q models.LedgerQuery) ([]*models.Payment, error)
	ListExpenses(ctx context.Context, q models.LedgerQuery) ([]*models.Expense, error)
	ListUnits(ctx context.Context, tenantID uuid.UUID) ([]*models.Unit, error)
}

type TransactionLister interface {
	List(ctx context.Context, q models.LedgerQuery) ([]*models.BalanceTransaction, error)
}

type OwnerPaymentLister interface {
	List(ctx context.Context, q models.LedgerQuery) ([]*models.OwnerPayment, error)
}

type ProcessedCashoutLister interface {
	ListProcessed(ctx context.Context, tenantID uuid.UUID, p models.Period) ([]*models.CashoutRequest, error)
}

type BalanceReader interface {
	GetCompany(ctx context.Context, tenantID uuid.UUID) (*models.CompanyBalance, error)
	GetOwner(ctx context.Context, tenantID, ownerID uuid.UUID) (*models.OwnerBalance, error)
}

// ReportCache stores rendered reports. Implementations own the TTL.
type ReportCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
}

// ReportService builds read-only projections over the ledger. Output depends
// only on stored state and the inputs; the payment report also reads Now to
// decide which pending payments are past due.
type ReportService struct {
	Sources       ReportSource
	Transactions  TransactionLister
	OwnerPayments OwnerPaymentLister
	Cashouts      ProcessedCashoutLister
	Balances      BalanceReader
	Cache         ReportCache
	Log           *slog.Logger
	Now           func() time.Time
}

func NewReportService(sources ReportSource, txs TransactionLister, ownerPayments OwnerPaymentLister, cashouts ProcessedCashoutLister, balances BalanceReader, cache ReportCache, log *slog.Logger) *ReportService {
	if log == nil {
		log = slog.Default()
	}
	return &ReportService{
		Sources:       sources,
		Transactions:  txs,
		OwnerPayments: ownerPayments,
		Cashouts:      cashouts,
		Balances:      balances,
		Cache:         cache,
		Log:           log,
		Now:           time.Now,
	}
}

type FinancialReport struct {
	TenantID           uuid.UUID                  `json:"tenant_id"`
	Period             models.Period              `json:"period"`
	TotalRevenue       decimal.Decimal            `json:"total_revenue"`
	RevenueByType      map[string]decimal.Decimal `json:"revenue_by_type"`
	TotalExpenses      decimal.Decimal            `json:"total_expenses"`
	ExpensesByCategory map[string]decimal.Decimal `json:"expenses_by_category"`
	PlatformFeesPaid   decimal.Decimal            `json:"platform_fees_paid"`
	OwnerPayments      decimal.Decimal            `json:"owner_payments"`
	NetIncome          decimal.Decimal            `json:"net_income"`
	CashoutsProcessed  decimal.Decimal            `json:"cashouts_processed"`
	CashoutCount       int                        `json:"cashout_count"`
}

type PropertyOccupancy struct {
	PropertyID    uuid.UUID       `json:"property_id"`
	PropertyName  string          `json:"property_name"`
	TotalUnits    int             `json:"total_units"`
	Occupied      int             `json:"occupied"`
	Vacant        int             `json:"vacant"`
	Maintenance   int             `json:"maintenance"`
	OccupancyRate decimal.Decimal `json:"occupancy_rate"`
}

type OccupancyReport struct {
	TenantID      uuid.UUID           `json:"tenant_id"`
	Period        models.Period       `json:"period"`
	TotalUnits    int                 `json:"total_units"`
	Occupied      int                 `json:"occupied"`
	Vacant        int                 `json:"vacant"`
	Maintenance   int                 `json:"maintenance"`
	OccupancyRate decimal.Decimal     `json:"occupancy_rate"`
	Properties    []PropertyOccupancy `json:"properties"`
}

type PaymentReport struct {
	TenantID        uuid.UUID       `json:"tenant_id"`
	Period          models.Period   `json:"period"`
	TotalPayments   int             `json:"total_payments"`
	ByStatus        map[string]int  `json:"by_status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	CollectedAmount decimal.Decimal `json:"collected_amount"`
	SuccessRate     decimal.Decimal `json:"success_rate"`
	LatePayments    int             `json:"late_payments"`
	LateAmount      decimal.Decimal `json:"late_amount"`
}

// LifetimeTotals come from the owner's running balance.
type LifetimeTotals struct {
	TotalRentCollected decimal.Decimal `json:"total_rent_collected"`
	TotalPlatformFees  decimal.Decimal `json:"total_platform_fees"`
	AmountOwed         decimal.Decimal `json:"amount_owed"`
	TotalPaid          decimal.Decimal `json:"total_paid"`
}

type OwnerStatement struct {
	TenantID         uuid.UUID                    `json:"tenant_id"`
	OwnerID          uuid.UUID                    `json:"owner_id"`
	Period           models.Period                `json:"period"`
	RevenueGenerated decimal.Decimal              `json:"revenue_generated"`
	PlatformFees     decimal.Decimal              `json:"platform_fees"`
	Expenses         decimal.Decimal              `json:"expenses"`
	NetAmount        decimal.Decimal              `json:"net_amount"`
	PaymentsReceived decimal.Decimal              `json:"payments_received"`
	Payments         []*models.OwnerPayment       `json:"payments"`
	Lifetime         LifetimeTotals               `json:"lifetime"`
	Transactions     []*models.BalanceTransaction `json:"transactions"`
}

// Financial summarizes revenue, expenses, fees and payouts for the period.
func (s *ReportService) Financial(ctx context.Context, actor *models.Actor, tenantID uuid.UUID, p models.Period) (*FinancialReport, error) {
	if err := s.check(actor, tenantID, p); err != nil {
		return nil, err
	}
	return cached(ctx, s, s.key(ctx, "financial", tenantID, nil, p), func() (*FinancialReport, error) {
		q := models.LedgerQuery{TenantID: tenantID, Period: p}
		payments, err := s.Sources.ListPayments(ctx, q)
		if err != nil {
			return nil, err
		}
		expenses, err := s.Sources.ListExpenses(ctx, q)
		if err != nil {
			return nil, err
		}
		txs, err := s.Transactions.List(ctx, q)
		if err != nil {
			return nil, err
		}
		ownerPayments, err := s.OwnerPayments.List(ctx, q)
		if err != nil {
			return nil, err
		}
		cashouts, err := s.Cashouts.ListProcessed(ctx, tenantID, p)
		if err != nil {
			return nil, err
		}

		r := &FinancialReport{
			TenantID:           tenantID,
			Period:             p,
			RevenueByType:      map[string]decimal.Decimal{},
			ExpensesByCategory: map[string]decimal.Decimal{},
			CashoutCount:       len(cashouts),
		}
		for _, pm := range payments {
			if pm.Status != models.PaymentStatusCompleted {
				continue
			}
			r.TotalRevenue = r.TotalRevenue.Add(pm.Amount)
			r.RevenueByType[pm.PaymentType] = r.RevenueByType[pm.PaymentType].Add(pm.Amount)
		}
		for _, e := range expenses {
			r.TotalExpenses = r.TotalExpenses.Add(e.Amount)
			r.ExpensesByCategory[e.Category] = r.ExpensesByCategory[e.Category].Add(e.Amount)
		}
		r.PlatformFeesPaid = feesIn(txs)
		for _, op := range ownerPayments {
			r.OwnerPayments = r.OwnerPayments.Add(op.Amount)
		}
		for _, c := range cashouts {
			r.CashoutsProcessed = r.CashoutsProcessed.Add(c.Amount)
		}
		r.NetIncome = r.TotalRevenue.Sub(r.TotalExpenses).Sub(r.PlatformFeesPaid).Sub(r.OwnerPayments)
		return r, nil
	})
}

// Occupancy counts the tenant's units by status. Units carry no history, so
// the counts reflect current state; the period is echoed for the caller.
func (s *ReportService) Occupancy(ctx context.Context, actor *models.Actor, tenantID uuid.UUID, p models.Period) (*OccupancyReport, error) {
	if err := s.check(actor, tenantID, p); err != nil {
		return nil, err
	}
	return cached(ctx, s, s.key(ctx, "occupancy", tenantID, nil, p), func() (*OccupancyReport, error) {
		units, err := s.Sources.ListUnits(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		r := &OccupancyReport{TenantID: tenantID, Period: p, Properties: []PropertyOccupancy{}}
		byProperty := map[uuid.UUID]*PropertyOccupancy{}
		for _, u := range units {
			po, ok := byProperty[u.PropertyID]
			if !ok {
				po = &PropertyOccupancy{PropertyID: u.PropertyID, PropertyName: u.PropertyName}
				byProperty[u.PropertyID] = po
			}
			po.TotalUnits++
			r.TotalUnits++
			switch u.Status {
			case models.UnitOccupied:
				po.Occupied++
				r.Occupied++
			case models.UnitMaintenance:
				po.Maintenance++
				r.Maintenance++
			default:
				po.Vacant++
				r.Vacant++
			}
		}
		for _, po := range byProperty {
			po.OccupancyRate = rate(po.Occupied, po.TotalUnits)
			r.Properties = append(r.Properties, *po)
		}
		sort.Slice(r.Properties, func(i, j int) bool {
			a, b := r.Properties[i], r.Properties[j]
			if a.PropertyName != b.PropertyName {
				return a.PropertyName < b.PropertyName
			}
			return a.PropertyID.String() < b.PropertyID.String()
		})
		r.OccupancyRate = rate(r.Occupied, r.TotalUnits)
		return r, nil
	})
}

// Payments reports collection performance for payments dated in the period.
// A payment is late when it is still pending and its due date has passed.
func (s *ReportService) Payments(ctx context.Context, actor *models.Actor, tenantID uuid.UUID, p models.Period) (*PaymentReport, error) {
	if err := s.check(actor, tenantID, p); err != nil {
		return nil, err
	}
	return cached(ctx, s, s.key(ctx, "payments", tenantID, nil, p), func() (*PaymentReport, error) {
		payments, err := s.Sources.ListPayments(ctx, models.LedgerQuery{TenantID: tenantID, Period: p})
		if err != nil {
			return nil, err
		}
		now := s.Now()
		r := &PaymentReport{TenantID: tenantID, Period: p, ByStatus: map[string]int{}}
		completed := 0
		for _, pm := range payments {
			r.TotalPayments++
			r.ByStatus[pm.Status]++
			r.TotalAmount = r.TotalAmount.Add(pm.Amount)
			switch pm.Status {
			case models.PaymentStatusCompleted:
				completed++
				r.CollectedAmount = r.CollectedAmount.Add(pm.Amount)
			case models.PaymentStatusPending:
				if pm.DueDate != nil && pm.DueDate.Before(now) {
					r.LatePayments++
					r.LateAmount = r.LateAmount.Add(pm.Amount)
				}
			}
		}
		r.SuccessRate = rate(completed, r.TotalPayments)
		return r, nil
	})
}

// OwnerStatement reports one owner's revenue, fees, expenses and payouts for
// the period, with lifetime totals from the running balance.
func (s *ReportService) OwnerStatement(ctx context.Context, actor *models.Actor, tenantID, ownerID uuid.UUID, p models.Period) (*OwnerStatement, error) {
	if err := s.check(actor, tenantID, p); err != nil {
		return nil, err
	}
	return cached(ctx, s, s.key(ctx, "owner_statement", tenantID, &ownerID, p), func() (*OwnerStatement, error) {
		q := models.LedgerQuery{TenantID: tenantID, OwnerID: &ownerID, Period: p}
		payments, err := s.Sources.ListPayments(ctx, q)
		if err != nil {
			return nil, err
		}
		expenses, err := s.Sources.ListExpenses(ctx, q)
		if err != nil {
			return nil, err
		}
		txs, err := s.Transactions.List(ctx, q)
		if err != nil {
			return nil, err
		}
		ownerPayments, err := s.OwnerPayments.List(ctx, q)
		if err != nil {
			return nil, err
		}

		r := &OwnerStatement{
			TenantID:     tenantID,
			OwnerID:      ownerID,
			Period:       p,
			Payments:     nonNil(ownerPayments),
			Transactions: nonNil(txs),
		}
		for _, pm := range payments {
			if pm.Status == models.PaymentStatusCompleted {
				r.RevenueGenerated = r.RevenueGenerated.Add(pm.Amount)
			}
		}
		for _, e := range expenses {
			r.Expenses = r.Expenses.Add(e.Amount)
		}
		r.PlatformFees = feesIn(txs)
		for _, op := range ownerPayments {
			r.PaymentsReceived = r.PaymentsReceived.Add(op.Amount)
		}
		r.NetAmount = r.RevenueGenerated.Sub(r.PlatformFees).Sub(r.Expenses)

		bal, err := s.Balances.GetOwner(ctx, tenantID, ownerID)
		switch {
		case err == nil:
			r.Lifetime = LifetimeTotals{
				TotalRentCollected: bal.TotalRentCollected,
				TotalPlatformFees:  bal.TotalPlatformFees,
				AmountOwed:         bal.AmountOwed,
				TotalPaid:          bal.TotalPaid,
			}
		case !errors.Is(err, models.ErrNotFound):
			return nil, err
		}
		sort.SliceStable(r.Transactions, func(i, j int) bool {
			a, b := r.Transactions[i], r.Transactions[j]
			if !a.TransactionDate.Equal(b.TransactionDate) {
				return a.TransactionDate.Before(b.TransactionDate)
			}
			return a.ID.String() < b.ID.String()
		})
		return r, nil
	})
}

func (s *ReportService) check(actor *models.Actor, tenantID uuid.UUID, p models.Period) error {
	if err := actor.Authorize(models.CapViewReports, tenantID); err != nil {
		return err
	}
	return p.Validate()
}

// key identifies a report by its inputs and the balance versions it reads.
// Changes to records owned by other services show up once the entry expires.
func (s *ReportService) key(ctx context.Context, kind string, tenantID uuid.UUID, ownerID *uuid.UUID, p models.Period) string {
	if s.Cache == nil {
		return ""
	}
	var version, ownerVersion int64
	if b, err := s.Balances.GetCompany(ctx, tenantID); err == nil {
		version = b.Version
	}
	owner := "-"
	if ownerID != nil {
		owner = ownerID.String()
		if b, err := s.Balances.GetOwner(ctx, tenantID, *ownerID); err == nil {
			ownerVersion = b.Version
		}
	}
	return fmt.Sprintf("report:%s:%s:%s:%s:%s:%d.%d", kind, tenantID, owner,
		p.From.UTC().Format(time.RFC3339), p.To.UTC().Format(time.RFC3339), version, ownerVersion)
}

func cached[T any](ctx context.Context, s *ReportService, key string, build func() (*T, error)) (*T, error) {
	if s.Cache != nil && key != "" {
		var hit T
		ok, err := s.Cache.Get(ctx, key, &hit)
		switch {
		case err != nil:
			metrics.ReportCache.WithLabelValues("error").Inc()
			s.Log.Warn("report cache read failed", "key", key, "error", err)
		case ok:
			metrics.ReportCache.WithLabelValues("hit").Inc()
			return &hit, nil
		default:
			metrics.ReportCache.WithLabelValues("miss").Inc()
		}
	}
	r, err := build()
	if err != nil {
		return nil, models.Persistence(reportRef{key}, "build report", err)
	}
	if s.Cache != nil && key != "" {
		if err := s.Cache.Set(ctx, key, r); err != nil {
			metrics.ReportCache.WithLabelValues("error").Inc()
			s.Log.Warn("report cache write failed", "key", key, "error", err)
		}
	}
	return r, nil
}

type reportRef struct{ key string }

func (r reportRef) String() string { return r.key }

func feesIn(txs []*models.BalanceTransaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if t.TransactionType == models.TxPaymentReceived {
			total = total.Add(t.FeeAmount)
		}
	}
	return total
}

func rate(part, whole int) decimal.Decimal {
	return models.Ratio(decimal.NewFromInt(int64(part)), decimal.NewFromInt(int64(whole)))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

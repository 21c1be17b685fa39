// Package ledger posts completed payments into the company and owner balances.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/rentledger/backend/internal/metrics"
	"github.com/rentledger/backend/internal/models"
	"github.com/rentledger/backend/internal/repository"
)

// PostResult is the outcome of a posting. When AlreadyPosted is set the
// payment had been posted before and only Fee and Transaction are filled.
type PostResult struct {
	Fee            *models.PlatformFee        `json:"fee"`
	Transaction    *models.BalanceTransaction `json:"transaction,omitempty"`
	CompanyBalance *models.CompanyBalance     `json:"company_balance,omitempty"`
	OwnerBalance   *models.OwnerBalance       `json:"owner_balance,omitempty"`
	AlreadyPosted  bool                       `json:"already_posted"`
}

type Service struct {
	Pool         TxBeginner
	Sources      PaymentSource
	Balances     BalanceStore
	Fees         FeeStore
	Transactions TransactionLog
	Engine       FeeEngine
	Log          *slog.Logger
	Now          func() time.Time
}

func NewService(pool TxBeginner, sources PaymentSource, balances BalanceStore, fees FeeStore, txlog TransactionLog, engine FeeEngine, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		Pool:         pool,
		Sources:      sources,
		Balances:     balances,
		Fees:         fees,
		Transactions: txlog,
		Engine:       engine,
		Log:          log,
		Now:          time.Now,
	}
}

// PostPayment computes the platform fee on a completed payment and applies it
// to both balances, writing the fee and a payment_received transaction in the
// same database transaction. Posting a payment twice is a no-op that returns
// the original fee with AlreadyPosted set.
func (s *Service) PostPayment(ctx context.Context, actor *models.Actor, paymentID uuid.UUID) (*PostResult, error) {
	p, err := s.Sources.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, s.fail(paymentID, "load payment", err)
	}
	if err := actor.Authorize(models.CapPostPayments, p.TenantID); err != nil {
		return nil, s.fail(paymentID, "", err)
	}
	if err := postable(p); err != nil {
		return nil, s.fail(paymentID, "", err)
	}
	prop, err := s.Sources.GetProperty(ctx, p.PropertyID)
	if err != nil {
		return nil, s.fail(paymentID, "load property", err)
	}
	tenant, err := s.Sources.GetTenant(ctx, p.TenantID)
	if err != nil {
		return nil, s.fail(paymentID, "load tenant", err)
	}
	pct, source, err := s.Engine.Resolve(prop, tenant)
	if err != nil {
		return nil, s.fail(paymentID, "", err)
	}
	fee, ownerAmount, err := s.Engine.Compute(p.Amount, pct)
	if err != nil {
		return nil, s.fail(paymentID, "", err)
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, s.fail(paymentID, "begin transaction", err)
	}
	defer tx.Rollback(ctx)

	res, err := s.apply(ctx, tx, p, pct, source, fee, ownerAmount)
	if errors.Is(err, repository.ErrDuplicate) {
		// Lost a race with a concurrent posting of the same payment.
		_ = tx.Rollback(ctx)
		return s.existing(ctx, paymentID)
	}
	if err != nil {
		return nil, s.fail(paymentID, "post payment", err)
	}
	if res.AlreadyPosted {
		metrics.LedgerPostings.WithLabelValues("duplicate").Inc()
		return res, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, s.fail(paymentID, "commit posting", err)
	}

	metrics.LedgerPostings.WithLabelValues("posted").Inc()
	metrics.LedgerFeesPosted.Add(fee.InexactFloat64())
	s.Log.Info("payment posted",
		"payment_id", paymentID,
		"tenant_id", p.TenantID,
		"owner_id", p.OwnerID,
		"amount", p.Amount.StringFixed(models.MoneyPlaces),
		"fee", fee.StringFixed(models.MoneyPlaces),
		"fee_source", source,
	)
	return res, nil
}

// apply runs inside tx. Lock order is company balance, then owner balance.
func (s *Service) apply(ctx context.Context, tx pgx.Tx, p *models.Payment, pct decimal.Decimal, source string, fee, ownerAmount decimal.Decimal) (*PostResult, error) {
	company, err := s.Balances.EnsureCompanyForUpdate(ctx, tx, p.TenantID)
	if err != nil {
		return nil, err
	}
	owner, err := s.Balances.EnsureOwnerForUpdate(ctx, tx, p.TenantID, p.OwnerID)
	if err != nil {
		return nil, err
	}

	prior, err := s.Fees.GetByPaymentIDTx(ctx, tx, p.ID)
	switch {
	case err == nil:
		res := &PostResult{Fee: prior, AlreadyPosted: true}
		if t, err := s.Transactions.GetPaymentReceivedTx(ctx, tx, p.ID); err == nil {
			res.Transaction = t
		}
		return res, nil
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	amount := models.RoundMoney(p.Amount)
	company.TotalCollected = company.TotalCollected.Add(amount)
	company.PlatformFeesCollected = company.PlatformFeesCollected.Add(fee)
	company.AvailableBalance = company.AvailableBalance.Add(fee)
	if err := s.Balances.UpdateCompanyTx(ctx, tx, company); err != nil {
		return nil, err
	}

	owner.TotalRentCollected = owner.TotalRentCollected.Add(amount)
	owner.TotalPlatformFees = owner.TotalPlatformFees.Add(fee)
	owner.AmountOwed = owner.AmountOwed.Add(ownerAmount)
	if err := s.Balances.UpdateOwnerTx(ctx, tx, owner); err != nil {
		return nil, err
	}

	pf := &models.PlatformFee{
		ID:            uuid.New(),
		PaymentID:     p.ID,
		TenantID:      p.TenantID,
		PropertyID:    p.PropertyID,
		OwnerID:       p.OwnerID,
		FeePercentage: pct,
		FeeAmount:     fee,
		BaseAmount:    amount,
		FeeSource:     source,
	}
	if err := s.Fees.CreateTx(ctx, tx, pf); err != nil {
		return nil, err
	}

	date := p.PaymentDate
	if date.IsZero() {
		date = s.Now()
	}
	bt := &models.BalanceTransaction{
		ID:              uuid.New(),
		TenantID:        p.TenantID,
		OwnerID:         models.Ref(p.OwnerID),
		PaymentID:       models.Ref(p.ID),
		TransactionType: models.TxPaymentReceived,
		Amount:          amount,
		FeeAmount:       fee,
		NetAmount:       ownerAmount,
		BalanceAfter:    company.AvailableBalance,
		TransactionDate: date,
		Description: fmt.Sprintf("%s payment of %s, platform fee %s at %s%%",
			p.PaymentType, models.FormatMoney(amount), models.FormatMoney(fee), pct.String()),
	}
	if err := s.Transactions.CreateTx(ctx, tx, bt); err != nil {
		return nil, err
	}

	return &PostResult{Fee: pf, Transaction: bt, CompanyBalance: company, OwnerBalance: owner}, nil
}

// existing reads the committed posting for a payment.
func (s *Service) existing(ctx context.Context, paymentID uuid.UUID) (*PostResult, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, s.fail(paymentID, "begin transaction", err)
	}
	defer tx.Rollback(ctx)
	fee, err := s.Fees.GetByPaymentIDTx(ctx, tx, paymentID)
	if err != nil {
		return nil, s.fail(paymentID, "load existing fee", err)
	}
	res := &PostResult{Fee: fee, AlreadyPosted: true}
	if t, err := s.Transactions.GetPaymentReceivedTx(ctx, tx, paymentID); err == nil {
		res.Transaction = t
	}
	metrics.LedgerPostings.WithLabelValues("duplicate").Inc()
	return res, nil
}

func postable(p *models.Payment) error {
	if p.Status != models.PaymentStatusCompleted {
		return models.Fail(models.ErrValidation, "payment %s is %s, not completed", p.ID, p.Status).WithRef(p.ID)
	}
	if !models.PostableType(p.PaymentType) {
		return models.Fail(models.ErrValidation, "payment type %q is not postable", p.PaymentType).WithRef(p.ID)
	}
	if !p.Amount.IsPositive() {
		return models.Fail(models.ErrValidation, "payment amount must be positive").WithRef(p.ID)
	}
	return nil
}

// fail classifies err, counts it and logs storage failures with the payment id.
func (s *Service) fail(paymentID uuid.UUID, op string, err error) error {
	var de *models.Error
	if errors.As(err, &de) {
		metrics.LedgerPostings.WithLabelValues("rejected").Inc()
		if de.Ref == "" {
			de.Ref = paymentID.String()
		}
		return err
	}
	metrics.LedgerPostings.WithLabelValues("failed").Inc()
	s.Log.Error("payment posting failed", "payment_id", paymentID, "op", op, "error", err)
	return models.Persistence(paymentID, op, err)
}

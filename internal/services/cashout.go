package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/rentledger/backend/internal/metrics"
	"github.com/rentledger/backend/internal/models"
	"github.com/rentledger/backend/internal/notify"
)

// Defaults applied when a tenant has no cashout settings of its own.
var (
	DefaultCashoutFeePercentage = decimal.NewFromInt(3)
	DefaultMinCashoutAmount     = decimal.NewFromInt(1000)
)

// TxBeginner starts a database transaction (pgxpool.Pool in production).
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CashoutRepo is the cashout request storage the state machine needs.
type CashoutRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, c *models.CashoutRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.CashoutRequest, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.CashoutRequest, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, c *models.CashoutRequest) error
	List(ctx context.Context, q models.CashoutQuery) ([]*models.CashoutRequest, error)
}

type CompanyBalanceRepo interface {
	GetCompany(ctx context.Context, tenantID uuid.UUID) (*models.CompanyBalance, error)
	GetCompanyForUpdate(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID) (*models.CompanyBalance, error)
	UpdateCompanyTx(ctx context.Context, tx pgx.Tx, b *models.CompanyBalance) error
}

type TenantSource interface {
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

type TransactionWriter interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.BalanceTransaction) error
}

// InsertNotificationTxFunc enqueues a notification within the given
// transaction. Provided by main using river.Client.InsertTx.
type InsertNotificationTxFunc func(ctx context.Context, tx pgx.Tx, args notify.Args) error

// CashoutSettings are the fallbacks for tenants without their own values.
// A nil field takes the package default; an explicit zero is kept.
type CashoutSettings struct {
	FeePercentage *decimal.Decimal
	MinAmount     *decimal.Decimal
}

// CashoutService runs the cashout workflow: pending -> approved -> processed,
// or pending -> rejected.
type CashoutService struct {
	Pool         TxBeginner
	Cashouts     CashoutRepo
	Balances     CompanyBalanceRepo
	Tenants      TenantSource
	Transactions TransactionWriter
	Details      *DetailsValidator
	Settings     CashoutSettings
	Log          *slog.Logger
	Now          func() time.Time

	insertNotification InsertNotificationTxFunc
}

func NewCashoutService(
	pool TxBeginner,
	cashouts CashoutRepo,
	balances CompanyBalanceRepo,
	tenants TenantSource,
	txlog TransactionWriter,
	details *DetailsValidator,
	settings CashoutSettings,
	insertNotification InsertNotificationTxFunc,
	log *slog.Logger,
) *CashoutService {
	if settings.FeePercentage == nil {
		settings.FeePercentage = &DefaultCashoutFeePercentage
	}
	if settings.MinAmount == nil {
		settings.MinAmount = &DefaultMinCashoutAmount
	}
	if log == nil {
		log = slog.Default()
	}
	return &CashoutService{
		Pool:               pool,
		Cashouts:           cashouts,
		Balances:           balances,
		Tenants:            tenants,
		Transactions:       txlog,
		Details:            details,
		Settings:           settings,
		Log:                log,
		Now:                time.Now,
		insertNotification: insertNotification,
	}
}

type CreateCashoutInput struct {
	TenantID       uuid.UUID       `json:"tenant_id"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentMethod  string          `json:"payment_method"`
	PaymentDetails json.RawMessage `json:"payment_details"`
}

// CreateRequest records a pending cashout after checking the amount against
// the locked company balance. The fee quote is frozen on the request.
func (s *CashoutService) CreateRequest(ctx context.Context, actor *models.Actor, in CreateCashoutInput) (*models.CashoutRequest, error) {
	if err := actor.Authorize(models.CapRequestCashout, in.TenantID); err != nil {
		return nil, err
	}
	if err := models.ValidateAmount("cashout amount", in.Amount); err != nil {
		return nil, err
	}
	amount := models.RoundMoney(in.Amount)
	if !amount.IsPositive() {
		return nil, models.Fail(models.ErrValidation, "cashout amount must be positive")
	}
	if s.Details != nil {
		if err := s.Details.Validate(in.PaymentMethod, in.PaymentDetails); err != nil {
			return nil, err
		}
	}
	tenant, err := s.Tenants.GetTenant(ctx, in.TenantID)
	if err != nil {
		return nil, s.persistence(in.TenantID, "load tenant", err)
	}
	feePct, minAmount := s.tenantSettings(tenant)

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, s.persistence(in.TenantID, "begin transaction", err)
	}
	defer tx.Rollback(ctx)

	bal, err := s.Balances.GetCompanyForUpdate(ctx, tx, in.TenantID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, s.persistence(in.TenantID, "lock company balance", err)
	}
	available := decimal.Zero
	if bal != nil {
		available = bal.AvailableBalance
	}
	if amount.GreaterThan(available) {
		return nil, models.Fail(models.ErrInsufficientFunds, "Insufficient balance. Available: %s", models.FormatMoney(available))
	}
	if amount.LessThan(minAmount) {
		return nil, models.Fail(models.ErrBelowMinimumAmount, "Minimum cashout amount is %s", models.FormatMoney(minAmount))
	}

	fee := models.PercentOf(amount, feePct)
	req := &models.CashoutRequest{
		ID:             uuid.New(),
		TenantID:       in.TenantID,
		RequestedBy:    actor.ID,
		Amount:         amount,
		FeePercentage:  feePct,
		FeeAmount:      fee,
		NetAmount:      amount.Sub(fee),
		Status:         models.CashoutPending,
		PaymentMethod:  in.PaymentMethod,
		PaymentDetails: in.PaymentDetails,
	}
	if err := s.Cashouts.CreateTx(ctx, tx, req); err != nil {
		return nil, s.persistence(req.ID, "create cashout request", err)
	}
	// bal is non-nil here: amount > 0 passed the available check.
	bal.PendingBalance = bal.PendingBalance.Add(amount)
	if err := s.Balances.UpdateCompanyTx(ctx, tx, bal); err != nil {
		return nil, s.persistence(req.ID, "update company balance", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, s.persistence(req.ID, "commit cashout request", err)
	}

	metrics.CashoutTransitions.WithLabelValues(string(models.CashoutPending)).Inc()
	s.Log.Info("cashout requested",
		"cashout_id", req.ID, "tenant_id", req.TenantID,
		"amount", amount.StringFixed(2), "fee", fee.StringFixed(2))
	return req, nil
}

func (s *CashoutService) tenantSettings(t *models.Tenant) (feePct, minAmount decimal.Decimal) {
	feePct, minAmount = *s.Settings.FeePercentage, *s.Settings.MinAmount
	if t.CashoutFeePercentage != nil {
		feePct = *t.CashoutFeePercentage
	}
	if t.MinCashoutAmount != nil {
		minAmount = *t.MinCashoutAmount
	}
	return feePct, minAmount
}

// Approve moves a pending request to approved.
func (s *CashoutService) Approve(ctx context.Context, actor *models.Actor, id uuid.UUID) (*models.CashoutRequest, error) {
	return s.transition(ctx, actor, id, models.CapApproveCashout, models.CashoutApproved, func(ctx context.Context, tx pgx.Tx, c *models.CashoutRequest, now time.Time) error {
		c.ApprovedBy, c.ApprovedAt = models.Ref(actor.ID), &now
		return nil
	})
}

// Reject moves a pending request to rejected and releases its pending amount.
// The state check runs before the reason is validated.
func (s *CashoutService) Reject(ctx context.Context, actor *models.Actor, id uuid.UUID, reason string) (*models.CashoutRequest, error) {
	return s.transition(ctx, actor, id, models.CapApproveCashout, models.CashoutRejected, func(ctx context.Context, tx pgx.Tx, c *models.CashoutRequest, now time.Time) error {
		if reason == "" {
			return models.Fail(models.ErrValidation, "rejection reason is required").WithRef(id)
		}
		c.RejectedBy, c.RejectedAt, c.RejectionReason = models.Ref(actor.ID), &now, reason
		bal, err := s.Balances.GetCompanyForUpdate(ctx, tx, c.TenantID)
		if err != nil {
			return err
		}
		bal.PendingBalance = floorZero(bal.PendingBalance.Sub(c.Amount))
		return s.Balances.UpdateCompanyTx(ctx, tx, bal)
	})
}

// Process pays out an approved request. The balance is re-checked under lock
// because it may have moved since approval. The state check runs before the
// transaction id is validated.
func (s *CashoutService) Process(ctx context.Context, actor *models.Actor, id uuid.UUID, transactionID string) (*models.CashoutRequest, error) {
	return s.transition(ctx, actor, id, models.CapProcessCashout, models.CashoutProcessed, func(ctx context.Context, tx pgx.Tx, c *models.CashoutRequest, now time.Time) error {
		if transactionID == "" {
			return models.Fail(models.ErrValidation, "transaction id is required").WithRef(id)
		}
		bal, err := s.Balances.GetCompanyForUpdate(ctx, tx, c.TenantID)
		if errors.Is(err, models.ErrNotFound) {
			return models.Fail(models.ErrInsufficientFunds, "Insufficient balance. Available: %s", models.FormatMoney(decimal.Zero))
		}
		if err != nil {
			return err
		}
		if c.Amount.GreaterThan(bal.AvailableBalance) {
			return models.Fail(models.ErrInsufficientFunds, "Insufficient balance. Available: %s", models.FormatMoney(bal.AvailableBalance))
		}
		bal.AvailableBalance = bal.AvailableBalance.Sub(c.Amount)
		bal.TotalCashedOut = bal.TotalCashedOut.Add(c.NetAmount)
		bal.TotalPlatformFeesPaid = bal.TotalPlatformFeesPaid.Add(c.FeeAmount)
		bal.PendingBalance = floorZero(bal.PendingBalance.Sub(c.Amount))
		amount := c.Amount
		bal.LastCashoutAt, bal.LastCashoutAmount = &now, &amount
		if err := s.Balances.UpdateCompanyTx(ctx, tx, bal); err != nil {
			return err
		}

		c.ProcessedAt, c.TransactionID = &now, transactionID
		return s.Transactions.CreateTx(ctx, tx, &models.BalanceTransaction{
			ID:               uuid.New(),
			TenantID:         c.TenantID,
			CashoutRequestID: models.Ref(c.ID),
			TransactionType:  models.TxCashoutProcessed,
			Amount:           c.Amount,
			FeeAmount:        c.FeeAmount,
			NetAmount:        c.NetAmount,
			BalanceAfter:     bal.AvailableBalance,
			TransactionDate:  now,
			Description: fmt.Sprintf("Cashout of %s via %s (ref %s), fee %s",
				models.FormatMoney(c.Amount), c.PaymentMethod, transactionID, models.FormatMoney(c.FeeAmount)),
		})
	})
}

type applyFunc func(ctx context.Context, tx pgx.Tx, c *models.CashoutRequest, now time.Time) error

// transition locks the request, checks the state table, then applies the
// change and enqueues the matching notification in one transaction. Input
// checks inside apply therefore lose to an invalid state.
func (s *CashoutService) transition(ctx context.Context, actor *models.Actor, id uuid.UUID, capability models.Capability, next models.CashoutStatus, apply applyFunc) (*models.CashoutRequest, error) {
	if actor == nil || !actor.Can(capability) {
		return nil, models.Fail(models.ErrForbidden, "not allowed to move cashout to %s", next).WithRef(id)
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, s.persistence(id, "begin transaction", err)
	}
	defer tx.Rollback(ctx)

	c, err := s.Cashouts.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, s.persistence(id, "lock cashout request", err)
	}
	if err := actor.Authorize(capability, c.TenantID); err != nil {
		return nil, err
	}
	if c.Status.Terminal() {
		return nil, models.Fail(models.ErrInvalidStateTransition, "cashout request is already %s", c.Status).WithRef(id)
	}
	if !c.Status.CanTransitionTo(next) {
		return nil, models.Fail(models.ErrInvalidStateTransition, "cannot move cashout from %s to %s", c.Status, next).WithRef(id)
	}

	now := s.Now().UTC()
	if err := apply(ctx, tx, c, now); err != nil {
		return nil, s.persistence(id, "apply "+string(next), err)
	}
	c.Status = next
	if err := s.Cashouts.UpdateTx(ctx, tx, c); err != nil {
		return nil, s.persistence(id, "update cashout request", err)
	}
	if s.insertNotification != nil {
		args, err := notify.New(notificationType(next), c.RequestedBy, c.TenantID, c)
		if err != nil {
			return nil, s.persistence(id, "build notification", err)
		}
		if err := s.insertNotification(ctx, tx, args); err != nil {
			return nil, s.persistence(id, "enqueue notification", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, s.persistence(id, "commit "+string(next), err)
	}

	metrics.CashoutTransitions.WithLabelValues(string(next)).Inc()
	if next == models.CashoutProcessed {
		metrics.CashoutAmount.Add(c.Amount.InexactFloat64())
	}
	s.Log.Info("cashout "+string(next), "cashout_id", c.ID, "tenant_id", c.TenantID, "actor_id", actor.ID)
	return c, nil
}

func notificationType(s models.CashoutStatus) string {
	switch s {
	case models.CashoutApproved:
		return notify.CashoutApproved
	case models.CashoutRejected:
		return notify.CashoutRejected
	default:
		return notify.CashoutProcessed
	}
}

// Get returns one request, scoped to the actor's tenant.
func (s *CashoutService) Get(ctx context.Context, actor *models.Actor, id uuid.UUID) (*models.CashoutRequest, error) {
	c, err := s.Cashouts.GetByID(ctx, id)
	if err != nil {
		return nil, s.persistence(id, "get cashout request", err)
	}
	if err := actor.Authorize(models.CapViewBalances, c.TenantID); err != nil {
		// Do not reveal that another tenant's request exists.
		return nil, models.Fail(models.ErrNotFound, "cashout request %s not found", id).WithRef(id)
	}
	return c, nil
}

// Balance returns the tenant's company balance. A tenant with no postings yet
// reads as all zeros.
func (s *CashoutService) Balance(ctx context.Context, actor *models.Actor, tenantID uuid.UUID) (*models.CompanyBalance, error) {
	if err := actor.Authorize(models.CapViewBalances, tenantID); err != nil {
		return nil, err
	}
	b, err := s.Balances.GetCompany(ctx, tenantID)
	if errors.Is(err, models.ErrNotFound) {
		return models.NewCompanyBalance(tenantID), nil
	}
	if err != nil {
		return nil, s.persistence(tenantID, "get company balance", err)
	}
	return b, nil
}

// ListByTenant lists a tenant's requests, optionally filtered by status.
func (s *CashoutService) ListByTenant(ctx context.Context, actor *models.Actor, tenantID uuid.UUID, status models.CashoutStatus) ([]*models.CashoutRequest, error) {
	if err := actor.Authorize(models.CapViewBalances, tenantID); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, models.Fail(models.ErrValidation, "unknown cashout status %q", status)
	}
	list, err := s.Cashouts.List(ctx, models.CashoutQuery{TenantID: &tenantID, Status: status})
	if err != nil {
		return nil, s.persistence(tenantID, "list cashout requests", err)
	}
	return list, nil
}

func (s *CashoutService) persistence(ref uuid.UUID, op string, err error) error {
	var de *models.Error
	if errors.As(err, &de) {
		if de.Ref == "" {
			de.Ref = ref.String()
		}
		return err
	}
	s.Log.Error("cashout operation failed", "ref", ref, "op", op, "error", err)
	return models.Persistence(ref, op, err)
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

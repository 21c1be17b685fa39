package services

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
)

type OwnerBalanceRepo interface {
	GetOwner(ctx context.Context, tenantID, ownerID uuid.UUID) (*models.OwnerBalance, error)
	GetOwnerForUpdate(ctx context.Context, tx pgx.Tx, tenantID, ownerID uuid.UUID) (*models.OwnerBalance, error)
	UpdateOwnerTx(ctx context.Context, tx pgx.Tx, b *models.OwnerBalance) error
}

type OwnerPaymentRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, p *models.OwnerPayment) error
	ListByOwner(ctx context.Context, tenantID, ownerID uuid.UUID) ([]*models.OwnerPayment, error)
}

// PayoutService records disbursements to property owners against what the
// tenant-company owes them.
type PayoutService struct {
	Pool         TxBeginner
	Owners       OwnerBalanceRepo
	Payments     OwnerPaymentRepo
	Transactions TransactionWriter
	Log          *slog.Logger
	Now          func() time.Time
}

func NewPayoutService(pool TxBeginner, owners OwnerBalanceRepo, payments OwnerPaymentRepo, txlog TransactionWriter, log *slog.Logger) *PayoutService {
	if log == nil {
		log = slog.Default()
	}
	return &PayoutService{Pool: pool, Owners: owners, Payments: payments, Transactions: txlog, Log: log, Now: time.Now}
}

type MarkPaymentInput struct {
	TenantID      uuid.UUID       `json:"tenant_id"`
	OwnerID       uuid.UUID       `json:"owner_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	PaymentDate   *time.Time      `json:"payment_date,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

// MarkPayment records a payment to an owner and reduces the amount owed.
func (s *PayoutService) MarkPayment(ctx context.Context, actor *models.Actor, in MarkPaymentInput) (*models.OwnerPayment, error) {
	if err := actor.Authorize(models.CapRecordOwnerPayment, in.TenantID); err != nil {
		return nil, s.reject(err)
	}
	if err := models.ValidateAmount("payment amount", in.Amount); err != nil {
		return nil, s.reject(err)
	}
	amount := models.RoundMoney(in.Amount)
	if !amount.IsPositive() {
		return nil, s.reject(models.Fail(models.ErrValidation, "payment amount must be positive").WithRef(in.OwnerID))
	}
	if !models.ValidOwnerPaymentMethod(in.PaymentMethod) {
		return nil, s.reject(models.Fail(models.ErrValidation, "unsupported payment method %q", in.PaymentMethod).WithRef(in.OwnerID))
	}
	date := s.Now().UTC()
	if in.PaymentDate != nil {
		date = *in.PaymentDate
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, s.persistence(in.OwnerID, "begin transaction", err)
	}
	defer tx.Rollback(ctx)

	bal, err := s.Owners.GetOwnerForUpdate(ctx, tx, in.TenantID, in.OwnerID)
	if err != nil {
		return nil, s.persistence(in.OwnerID, "lock owner balance", err)
	}
	if amount.GreaterThan(bal.AmountOwed) {
		return nil, s.reject(models.Fail(models.ErrExceedsAmountOwed,
			"Payment of %s exceeds amount owed. Amount owed: %s", models.FormatMoney(amount), models.FormatMoney(bal.AmountOwed)).WithRef(in.OwnerID))
	}

	p := &models.OwnerPayment{
		ID:            uuid.New(),
		TenantID:      in.TenantID,
		OwnerID:       in.OwnerID,
		Amount:        amount,
		PaymentDate:   date,
		PaymentMethod: in.PaymentMethod,
		TransactionID: in.TransactionID,
		Notes:         in.Notes,
		CreatedBy:     actor.ID,
	}
	if err := s.Payments.CreateTx(ctx, tx, p); err != nil {
		return nil, s.persistence(in.OwnerID, "create owner payment", err)
	}

	bal.AmountOwed = bal.AmountOwed.Sub(amount)
	bal.AmountPaid = bal.AmountPaid.Add(amount)
	bal.TotalPaid = bal.TotalPaid.Add(amount)
	bal.LastPaymentDate, bal.LastPaymentAmount = &date, &amount
	if err := s.Owners.UpdateOwnerTx(ctx, tx, bal); err != nil {
		return nil, s.persistence(in.OwnerID, "update owner balance", err)
	}

	if err := s.Transactions.CreateTx(ctx, tx, &models.BalanceTransaction{
		ID:              uuid.New(),
		TenantID:        in.TenantID,
		OwnerID:         models.Ref(in.OwnerID),
		OwnerPaymentID:  models.Ref(p.ID),
		TransactionType: models.TxOwnerPayment,
		Amount:          amount,
		NetAmount:       amount,
		BalanceAfter:    bal.AmountOwed,
		TransactionDate: date,
		Description:     fmt.Sprintf("Owner payment of %s via %s", models.FormatMoney(amount), in.PaymentMethod),
	}); err != nil {
		return nil, s.persistence(in.OwnerID, "append owner payment transaction", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, s.persistence(in.OwnerID, "commit owner payment", err)
	}

	metrics.OwnerPayments.WithLabelValues("recorded").Inc()
	s.Log.Info("owner payment recorded",
		"owner_payment_id", p.ID, "owner_id", in.OwnerID, "tenant_id", in.TenantID,
		"amount", amount.StringFixed(2), "amount_owed", bal.AmountOwed.StringFixed(2))
	return p, nil
}

// Balance returns an owner's running balance.
func (s *PayoutService) Balance(ctx context.Context, actor *models.Actor, tenantID, ownerID uuid.UUID) (*models.OwnerBalance, error) {
	if err := actor.Authorize(models.CapViewBalances, tenantID); err != nil {
		return nil, err
	}
	b, err := s.Owners.GetOwner(ctx, tenantID, ownerID)
	if err != nil {
		return nil, models.Persistence(ownerID, "get owner balance", err)
	}
	return b, nil
}

// ListPayments returns an owner's payment history, newest first.
func (s *PayoutService) ListPayments(ctx context.Context, actor *models.Actor, tenantID, ownerID uuid.UUID) ([]*models.OwnerPayment, error) {
	if err := actor.Authorize(models.CapViewBalances, tenantID); err != nil {
		return nil, err
	}
	list, err := s.Payments.ListByOwner(ctx, tenantID, ownerID)
	if err != nil {
		return nil, models.Persistence(ownerID, "list owner payments", err)
	}
	return list, nil
}

func (s *PayoutService) reject(err error) error {
	metrics.OwnerPayments.WithLabelValues("rejected").Inc()
	return err
}

func (s *PayoutService) persistence(ref uuid.UUID, op string, err error) error {
	var de *models.Error
	if errors.As(err, &de) {
		return s.reject(err)
	}
	metrics.OwnerPayments.WithLabelValues("failed").Inc()
	s.Log.Error("owner payment failed", "owner_id", ref, "op", op, "error", err)
	return models.Persistence(ref, op, err)
}

package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rentledger/backend/internal/models"
)

// TxBeginner starts the transaction a posting runs in (pgxpool.Pool in production).
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PaymentSource reads the records a posting depends on.
type PaymentSource interface {
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetProperty(ctx context.Context, id uuid.UUID) (*models.Property, error)
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

// BalanceStore locks and writes the two running-balance rows.
type BalanceStore interface {
	EnsureCompanyForUpdate(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID) (*models.CompanyBalance, error)
	UpdateCompanyTx(ctx context.Context, tx pgx.Tx, b *models.CompanyBalance) error
	EnsureOwnerForUpdate(ctx context.Context, tx pgx.Tx, tenantID, ownerID uuid.UUID) (*models.OwnerBalance, error)
	UpdateOwnerTx(ctx context.Context, tx pgx.Tx, b *models.OwnerBalance) error
}

type FeeStore interface {
	GetByPaymentIDTx(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) (*models.PlatformFee, error)
	CreateTx(ctx context.Context, tx pgx.Tx, f *models.PlatformFee) error
}

// TransactionLog appends audit rows. There is no update or delete.
type TransactionLog interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.BalanceTransaction) error
	GetPaymentReceivedTx(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) (*models.BalanceTransaction, error)
}

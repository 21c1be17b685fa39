package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentledger/backend/internal/models"
)

type FeeRepo struct {
	pool *pgxpool.Pool
}

func NewFeeRepo(pool *pgxpool.Pool) *FeeRepo {
	return &FeeRepo{pool: pool}
}

const feeCols = `id, payment_id, tenant_id, property_id, owner_id, fee_percentage, fee_amount, base_amount, fee_source, created_at`

func scanFee(row pgx.Row) (*models.PlatformFee, error) {
	var f models.PlatformFee
	if err := row.Scan(&f.ID, &f.PaymentID, &f.TenantID, &f.PropertyID, &f.OwnerID, &f.FeePercentage, &f.FeeAmount,
		&f.BaseAmount, &f.FeeSource, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

// CreateTx inserts a fee row. A second fee for the same payment returns ErrDuplicate.
func (r *FeeRepo) CreateTx(ctx context.Context, tx pgx.Tx, f *models.PlatformFee) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO platform_fees (id, payment_id, tenant_id, property_id, owner_id, fee_percentage, fee_amount, base_amount, fee_source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, f.ID, f.PaymentID, f.TenantID, f.PropertyID, f.OwnerID, f.FeePercentage, models.RoundMoney(f.FeeAmount),
		models.RoundMoney(f.BaseAmount), f.FeeSource).Scan(&f.CreatedAt)
	return mapErr(err, "platform fee", f.ID)
}

func (r *FeeRepo) GetByPaymentIDTx(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) (*models.PlatformFee, error) {
	f, err := scanFee(tx.QueryRow(ctx, `SELECT `+feeCols+` FROM platform_fees WHERE payment_id = $1`, paymentID))
	return f, mapErr(err, "platform fee for payment", paymentID)
}

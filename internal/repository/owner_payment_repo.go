package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentledger/backend/internal/models"
)

type OwnerPaymentRepo struct {
	pool *pgxpool.Pool
}

func NewOwnerPaymentRepo(pool *pgxpool.Pool) *OwnerPaymentRepo {
	return &OwnerPaymentRepo{pool: pool}
}

const ownerPaymentCols = `id, tenant_id, owner_id, amount, payment_date, payment_method, transaction_id, notes, created_by, created_at`

func scanOwnerPayment(row pgx.Row) (*models.OwnerPayment, error) {
	var p models.OwnerPayment
	if err := row.Scan(&p.ID, &p.TenantID, &p.OwnerID, &p.Amount, &p.PaymentDate, &p.PaymentMethod,
		&p.TransactionID, &p.Notes, &p.CreatedBy, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *OwnerPaymentRepo) CreateTx(ctx context.Context, tx pgx.Tx, p *models.OwnerPayment) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO owner_payments (id, tenant_id, owner_id, amount, payment_date, payment_method, transaction_id, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, p.ID, p.TenantID, p.OwnerID, models.RoundMoney(p.Amount), p.PaymentDate, p.PaymentMethod,
		p.TransactionID, p.Notes, p.CreatedBy).Scan(&p.CreatedAt)
	return mapErr(err, "owner payment", p.ID)
}

// ListByOwner returns the owner's payments newest first.
func (r *OwnerPaymentRepo) ListByOwner(ctx context.Context, tenantID, ownerID uuid.UUID) ([]*models.OwnerPayment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ownerPaymentCols+` FROM owner_payments
		WHERE tenant_id = $1 AND owner_id = $2
		ORDER BY payment_date DESC, id
	`, tenantID, ownerID)
	if err != nil {
		return nil, err
	}
	return collectOwnerPayments(rows)
}

// List returns payments in the query scope ordered by payment date.
func (r *OwnerPaymentRepo) List(ctx context.Context, q models.LedgerQuery) ([]*models.OwnerPayment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ownerPaymentCols+` FROM owner_payments
		WHERE tenant_id = $1 AND ($2::uuid IS NULL OR owner_id = $2) AND payment_date BETWEEN $3 AND $4
		ORDER BY payment_date, id
	`, q.TenantID, q.OwnerID, q.Period.From, q.Period.To)
	if err != nil {
		return nil, err
	}
	return collectOwnerPayments(rows)
}

func collectOwnerPayments(rows pgx.Rows) ([]*models.OwnerPayment, error) {
	defer rows.Close()
	var list []*models.OwnerPayment
	for rows.Next() {
		p, err := scanOwnerPayment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

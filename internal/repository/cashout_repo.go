package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentledger/backend/internal/models"
)

type CashoutRepo struct {
	pool *pgxpool.Pool
}

func NewCashoutRepo(pool *pgxpool.Pool) *CashoutRepo {
	return &CashoutRepo{pool: pool}
}

const cashoutCols = `id, tenant_id, requested_by, amount, fee_percentage, fee_amount, net_amount, status,
	payment_method, payment_details, approved_by, approved_at, rejected_by, rejected_at, rejection_reason,
	processed_at, transaction_id, created_at, updated_at`

func scanCashout(row pgx.Row) (*models.CashoutRequest, error) {
	var c models.CashoutRequest
	var status string
	if err := row.Scan(&c.ID, &c.TenantID, &c.RequestedBy, &c.Amount, &c.FeePercentage, &c.FeeAmount, &c.NetAmount, &status,
		&c.PaymentMethod, &c.PaymentDetails, &c.ApprovedBy, &c.ApprovedAt, &c.RejectedBy, &c.RejectedAt, &c.RejectionReason,
		&c.ProcessedAt, &c.TransactionID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Status = models.CashoutStatus(status)
	return &c, nil
}

func (r *CashoutRepo) CreateTx(ctx context.Context, tx pgx.Tx, c *models.CashoutRequest) error {
	details := c.PaymentDetails
	if len(details) == 0 {
		details = []byte(`{}`)
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO cashout_requests (id, tenant_id, requested_by, amount, fee_percentage, fee_amount, net_amount,
			status, payment_method, payment_details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, c.ID, c.TenantID, c.RequestedBy, models.RoundMoney(c.Amount), c.FeePercentage, models.RoundMoney(c.FeeAmount),
		models.RoundMoney(c.NetAmount), string(c.Status), c.PaymentMethod, details).Scan(&c.CreatedAt, &c.UpdatedAt)
	return mapErr(err, "cashout request", c.ID)
}

func (r *CashoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.CashoutRequest, error) {
	c, err := scanCashout(r.pool.QueryRow(ctx, `SELECT `+cashoutCols+` FROM cashout_requests WHERE id = $1`, id))
	return c, mapErr(err, "cashout request", id)
}

// GetByIDForUpdate locks the request row. Call within a transaction.
func (r *CashoutRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.CashoutRequest, error) {
	c, err := scanCashout(tx.QueryRow(ctx, `SELECT `+cashoutCols+` FROM cashout_requests WHERE id = $1 FOR UPDATE`, id))
	return c, mapErr(err, "cashout request", id)
}

// UpdateTx persists the workflow columns. Amount and the frozen fee quote are
// never rewritten.
func (r *CashoutRepo) UpdateTx(ctx context.Context, tx pgx.Tx, c *models.CashoutRequest) error {
	return tx.QueryRow(ctx, `
		UPDATE cashout_requests SET
			status = $2, approved_by = $3, approved_at = $4, rejected_by = $5, rejected_at = $6,
			rejection_reason = $7, processed_at = $8, transaction_id = $9, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, c.ID, string(c.Status), c.ApprovedBy, c.ApprovedAt, c.RejectedBy, c.RejectedAt,
		c.RejectionReason, c.ProcessedAt, c.TransactionID).Scan(&c.UpdatedAt)
}

// List returns requests newest first. An empty status matches all.
func (r *CashoutRepo) List(ctx context.Context, q models.CashoutQuery) ([]*models.CashoutRequest, error) {
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+cashoutCols+` FROM cashout_requests
		WHERE ($1::uuid IS NULL OR tenant_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id
		LIMIT $3
	`, q.TenantID, string(q.Status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CashoutRequest
	for rows.Next() {
		c, err := scanCashout(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// ListProcessed returns the tenant's processed requests within the period.
func (r *CashoutRepo) ListProcessed(ctx context.Context, tenantID uuid.UUID, p models.Period) ([]*models.CashoutRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+cashoutCols+` FROM cashout_requests
		WHERE tenant_id = $1 AND status = 'processed' AND processed_at BETWEEN $2 AND $3
		ORDER BY processed_at, id
	`, tenantID, p.From, p.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CashoutRequest
	for rows.Next() {
		c, err := scanCashout(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentledger/backend/internal/models"
)

// TransactionRepo is the append-only balance transaction log. It has no update
// or delete methods; the table also rejects them with a trigger.
type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const txCols = `id, tenant_id, owner_id, payment_id, cashout_request_id, owner_payment_id, transaction_type,
	amount, fee_amount, net_amount, balance_after, transaction_date, description, created_at`

func scanTransaction(row pgx.Row) (*models.BalanceTransaction, error) {
	var t models.BalanceTransaction
	if err := row.Scan(&t.ID, &t.TenantID, &t.OwnerID, &t.PaymentID, &t.CashoutRequestID, &t.OwnerPaymentID, &t.TransactionType,
		&t.Amount, &t.FeeAmount, &t.NetAmount, &t.BalanceAfter, &t.TransactionDate, &t.Description, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTx appends a row inside the given transaction. A second
// payment_received row for one payment returns ErrDuplicate.
func (r *TransactionRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.BalanceTransaction) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO balance_transactions (id, tenant_id, owner_id, payment_id, cashout_request_id, owner_payment_id,
			transaction_type, amount, fee_amount, net_amount, balance_after, transaction_date, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at
	`, t.ID, t.TenantID, t.OwnerID, t.PaymentID, t.CashoutRequestID, t.OwnerPaymentID, t.TransactionType,
		models.RoundMoney(t.Amount), models.RoundMoney(t.FeeAmount), models.RoundMoney(t.NetAmount), models.RoundMoney(t.BalanceAfter),
		t.TransactionDate, t.Description).Scan(&t.CreatedAt)
	return mapErr(err, "balance transaction", t.ID)
}

func (r *TransactionRepo) GetPaymentReceivedTx(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) (*models.BalanceTransaction, error) {
	t, err := scanTransaction(tx.QueryRow(ctx, `
		SELECT `+txCols+` FROM balance_transactions WHERE payment_id = $1 AND transaction_type = 'payment_received'
	`, paymentID))
	return t, mapErr(err, "balance transaction for payment", paymentID)
}

// List returns rows in the query scope ordered by transaction date, then id.
func (r *TransactionRepo) List(ctx context.Context, q models.LedgerQuery) ([]*models.BalanceTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+txCols+` FROM balance_transactions
		WHERE tenant_id = $1 AND ($2::uuid IS NULL OR owner_id = $2) AND transaction_date BETWEEN $3 AND $4
		ORDER BY transaction_date, id
	`, q.TenantID, q.OwnerID, q.Period.From, q.Period.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.BalanceTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

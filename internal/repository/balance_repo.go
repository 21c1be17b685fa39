package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentledger/backend/internal/models"
)

type BalanceRepo struct {
	pool *pgxpool.Pool
}

func NewBalanceRepo(pool *pgxpool.Pool) *BalanceRepo {
	return &BalanceRepo{pool: pool}
}

const companyCols = `id, tenant_id, available_balance, pending_balance, total_collected, platform_fees_collected,
	total_cashed_out, total_platform_fees_paid, last_cashout_at, last_cashout_amount, version, created_at, updated_at`

func scanCompany(row pgx.Row) (*models.CompanyBalance, error) {
	var b models.CompanyBalance
	err := row.Scan(&b.ID, &b.TenantID, &b.AvailableBalance, &b.PendingBalance, &b.TotalCollected, &b.PlatformFeesCollected,
		&b.TotalCashedOut, &b.TotalPlatformFeesPaid, &b.LastCashoutAt, &b.LastCashoutAmount, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BalanceRepo) GetCompany(ctx context.Context, tenantID uuid.UUID) (*models.CompanyBalance, error) {
	b, err := scanCompany(r.pool.QueryRow(ctx, `SELECT `+companyCols+` FROM company_balances WHERE tenant_id = $1`, tenantID))
	return b, mapErr(err, "company balance for tenant", tenantID)
}

// GetCompanyForUpdate locks the tenant's balance row. Call within a transaction.
func (r *BalanceRepo) GetCompanyForUpdate(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID) (*models.CompanyBalance, error) {
	b, err := scanCompany(tx.QueryRow(ctx, `SELECT `+companyCols+` FROM company_balances WHERE tenant_id = $1 FOR UPDATE`, tenantID))
	return b, mapErr(err, "company balance for tenant", tenantID)
}

// EnsureCompanyForUpdate creates the row if missing and locks it. The unique
// tenant_id constraint makes concurrent first postings converge on one row.
func (r *BalanceRepo) EnsureCompanyForUpdate(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID) (*models.CompanyBalance, error) {
	if _, err := tx.Exec(ctx, `
		INSERT INTO company_balances (id, tenant_id) VALUES ($1, $2)
		ON CONFLICT (tenant_id) DO NOTHING
	`, uuid.New(), tenantID); err != nil {
		return nil, err
	}
	return r.GetCompanyForUpdate(ctx, tx, tenantID)
}

// UpdateCompanyTx writes every mutable column and bumps version. Call after a
// ForUpdate read in the same tx.
func (r *BalanceRepo) UpdateCompanyTx(ctx context.Context, tx pgx.Tx, b *models.CompanyBalance) error {
	return tx.QueryRow(ctx, `
		UPDATE company_balances SET
			available_balance = $2, pending_balance = $3, total_collected = $4, platform_fees_collected = $5,
			total_cashed_out = $6, total_platform_fees_paid = $7, last_cashout_at = $8, last_cashout_amount = $9,
			version = version + 1, updated_at = now()
		WHERE id = $1
		RETURNING version, updated_at
	`, b.ID, models.RoundMoney(b.AvailableBalance), models.RoundMoney(b.PendingBalance), models.RoundMoney(b.TotalCollected),
		models.RoundMoney(b.PlatformFeesCollected), models.RoundMoney(b.TotalCashedOut), models.RoundMoney(b.TotalPlatformFeesPaid),
		b.LastCashoutAt, b.LastCashoutAmount).Scan(&b.Version, &b.UpdatedAt)
}

const ownerCols = `id, tenant_id, owner_id, total_rent_collected, total_platform_fees, total_expenses, amount_owed,
	amount_paid, total_paid, last_payment_date, last_payment_amount, version, created_at, updated_at`

func scanOwner(row pgx.Row) (*models.OwnerBalance, error) {
	var b models.OwnerBalance
	err := row.Scan(&b.ID, &b.TenantID, &b.OwnerID, &b.TotalRentCollected, &b.TotalPlatformFees, &b.TotalExpenses, &b.AmountOwed,
		&b.AmountPaid, &b.TotalPaid, &b.LastPaymentDate, &b.LastPaymentAmount, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BalanceRepo) GetOwner(ctx context.Context, tenantID, ownerID uuid.UUID) (*models.OwnerBalance, error) {
	b, err := scanOwner(r.pool.QueryRow(ctx, `
		SELECT `+ownerCols+` FROM owner_balances WHERE tenant_id = $1 AND owner_id = $2
	`, tenantID, ownerID))
	return b, mapErr(err, "owner balance for owner", ownerID)
}

// GetOwnerForUpdate locks an existing owner balance row. Call within a transaction.
func (r *BalanceRepo) GetOwnerForUpdate(ctx context.Context, tx pgx.Tx, tenantID, ownerID uuid.UUID) (*models.OwnerBalance, error) {
	b, err := scanOwner(tx.QueryRow(ctx, `
		SELECT `+ownerCols+` FROM owner_balances WHERE tenant_id = $1 AND owner_id = $2 FOR UPDATE
	`, tenantID, ownerID))
	return b, mapErr(err, "owner balance for owner", ownerID)
}

// EnsureOwnerForUpdate creates the owner's row if missing and locks it.
func (r *BalanceRepo) EnsureOwnerForUpdate(ctx context.Context, tx pgx.Tx, tenantID, ownerID uuid.UUID) (*models.OwnerBalance, error) {
	if _, err := tx.Exec(ctx, `
		INSERT INTO owner_balances (id, tenant_id, owner_id) VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, owner_id) DO NOTHING
	`, uuid.New(), tenantID, ownerID); err != nil {
		return nil, err
	}
	return r.GetOwnerForUpdate(ctx, tx, tenantID, ownerID)
}

func (r *BalanceRepo) UpdateOwnerTx(ctx context.Context, tx pgx.Tx, b *models.OwnerBalance) error {
	return tx.QueryRow(ctx, `
		UPDATE owner_balances SET
			total_rent_collected = $2, total_platform_fees = $3, total_expenses = $4, amount_owed = $5,
			amount_paid = $6, total_paid = $7, last_payment_date = $8, last_payment_amount = $9,
			version = version + 1, updated_at = now()
		WHERE id = $1
		RETURNING version, updated_at
	`, b.ID, models.RoundMoney(b.TotalRentCollected), models.RoundMoney(b.TotalPlatformFees), models.RoundMoney(b.TotalExpenses),
		models.RoundMoney(b.AmountOwed), models.RoundMoney(b.AmountPaid), models.RoundMoney(b.TotalPaid),
		b.LastPaymentDate, b.LastPaymentAmount).Scan(&b.Version, &b.UpdatedAt)
}

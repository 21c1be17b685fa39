package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentledger/backend/internal/models"
)

// SourceRepo reads the payment, property, unit, expense and tenant records
// owned by other services. It never writes.
type SourceRepo struct {
	pool *pgxpool.Pool
}

func NewSourceRepo(pool *pgxpool.Pool) *SourceRepo {
	return &SourceRepo{pool: pool}
}

const paymentSelect = `
	SELECT p.id, p.tenant_id, p.lease_id, pr.id, u.id, pr.owner_id, p.amount, p.status, p.payment_type, p.payment_date, p.due_date
	FROM payments p
	JOIN leases l ON l.id = p.lease_id
	JOIN units u ON u.id = l.unit_id
	JOIN properties pr ON pr.id = u.property_id`

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	if err := row.Scan(&p.ID, &p.TenantID, &p.LeaseID, &p.PropertyID, &p.UnitID, &p.OwnerID, &p.Amount,
		&p.Status, &p.PaymentType, &p.PaymentDate, &p.DueDate); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPayment resolves a payment with its property and owner through the lease.
func (r *SourceRepo) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, paymentSelect+` WHERE p.id = $1`, id))
	return p, mapErr(err, "payment", id)
}

func (r *SourceRepo) GetProperty(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	var p models.Property
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, owner_id, name, commission_percentage FROM properties WHERE id = $1
	`, id).Scan(&p.ID, &p.TenantID, &p.OwnerID, &p.Name, &p.CommissionPercentage)
	if err != nil {
		return nil, mapErr(err, "property", id)
	}
	return &p, nil
}

func (r *SourceRepo) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var t models.Tenant
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, cashout_fee_percentage, min_cashout_amount, default_platform_fee_percentage FROM tenants WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &t.CashoutFeePercentage, &t.MinCashoutAmount, &t.DefaultPlatformFeePercentage)
	if err != nil {
		return nil, mapErr(err, "tenant", id)
	}
	return &t, nil
}

// ListPayments returns payments dated within the query period, any status.
func (r *SourceRepo) ListPayments(ctx context.Context, q models.LedgerQuery) ([]*models.Payment, error) {
	rows, err := r.pool.Query(ctx, paymentSelect+`
		WHERE p.tenant_id = $1 AND ($2::uuid IS NULL OR pr.owner_id = $2) AND p.payment_date BETWEEN $3 AND $4
		ORDER BY p.payment_date, p.id
	`, q.TenantID, q.OwnerID, q.Period.From, q.Period.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (r *SourceRepo) ListExpenses(ctx context.Context, q models.LedgerQuery) ([]*models.Expense, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT e.id, e.tenant_id, e.property_id, pr.owner_id, e.category, e.amount, e.expense_date
		FROM expenses e
		JOIN properties pr ON pr.id = e.property_id
		WHERE e.tenant_id = $1 AND ($2::uuid IS NULL OR pr.owner_id = $2) AND e.expense_date BETWEEN $3 AND $4
		ORDER BY e.expense_date, e.id
	`, q.TenantID, q.OwnerID, q.Period.From, q.Period.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Expense
	for rows.Next() {
		var e models.Expense
		if err := rows.Scan(&e.ID, &e.TenantID, &e.PropertyID, &e.OwnerID, &e.Category, &e.Amount, &e.ExpenseDate); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}

// ListUnits returns every unit of the tenant with its property name.
func (r *SourceRepo) ListUnits(ctx context.Context, tenantID uuid.UUID) ([]*models.Unit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.property_id, pr.name, u.status
		FROM units u
		JOIN properties pr ON pr.id = u.property_id
		WHERE pr.tenant_id = $1
		ORDER BY pr.name, u.id
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Unit
	for rows.Next() {
		var u models.Unit
		if err := rows.Scan(&u.ID, &u.PropertyID, &u.PropertyName, &u.Status); err != nil {
			return nil, err
		}
		list = append(list, &u)
	}
	return list, rows.Err()
}

package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rentledger/backend/internal/models"
	"github.com/rentledger/backend/internal/repository"
)

type Balances struct{ s *Store }

func (b *Balances) GetCompany(_ context.Context, tenantID uuid.UUID) (*models.CompanyBalance, error) {
	var out *models.CompanyBalance
	b.s.read(func(st *state) {
		if v, ok := st.companies[tenantID]; ok {
			out = &v
		}
	})
	if out == nil {
		return nil, notFound("company balance for tenant", tenantID)
	}
	return out, nil
}

func (b *Balances) GetCompanyForUpdate(_ context.Context, tx pgx.Tx, tenantID uuid.UUID) (*models.CompanyBalance, error) {
	st, err := b.s.stateOf(tx)
	if err != nil {
		return nil, err
	}
	v, ok := st.companies[tenantID]
	if !ok {
		return nil, notFound("company balance for tenant", tenantID)
	}
	return &v, nil
}

func (b *Balances) EnsureCompanyForUpdate(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID) (*models.CompanyBalance, error) {
	st, err := b.s.stateOf(tx)
	if err != nil {
		return nil, err
	}
	if _, ok := st.companies[tenantID]; !ok {
		nb := models.NewCompanyBalance(tenantID)
		nb.CreatedAt, nb.UpdatedAt = b.s.now(), b.s.now()
		st.companies[tenantID] = *nb
	}
	return b.GetCompanyForUpdate(ctx, tx, tenantID)
}

func (b *Balances) UpdateCompanyTx(_ context.Context, tx pgx.Tx, cb *models.CompanyBalance) error {
	if err := b.s.fail("balances.update_company"); err != nil {
		return err
	}
	st, err := b.s.stateOf(tx)
	if err != nil {
		return err
	}
	cur, ok := st.companies[cb.TenantID]
	if !ok || cur.ID != cb.ID {
		return notFound("company balance", cb.ID)
	}
	cb.Version = cur.Version + 1
	cb.UpdatedAt = b.s.now()
	st.companies[cb.TenantID] = *cb
	return nil
}

func (b *Balances) GetOwner(_ context.Context, tenantID, ownerID uuid.UUID) (*models.OwnerBalance, error) {
	var out *models.OwnerBalance
	b.s.read(func(st *state) {
		if v, ok := st.owners[ownerKey{tenantID, ownerID}]; ok {
			out = &v
		}
	})
	if out == nil {
		return nil, notFound("owner balance for owner", ownerID)
	}
	return out, nil
}

func (b *Balances) GetOwnerForUpdate(_ context.Context, tx pgx.Tx, tenantID, ownerID uuid.UUID) (*models.OwnerBalance, error) {
	st, err := b.s.stateOf(tx)
	if err != nil {
		return nil, err
	}
	v, ok := st.owners[ownerKey{tenantID, ownerID}]
	if !ok {
		return nil, notFound("owner balance for owner", ownerID)
	}
	return &v, nil
}

func (b *Balances) EnsureOwnerForUpdate(ctx context.Context, tx pgx.Tx, tenantID, ownerID uuid.UUID) (*models.OwnerBalance, error) {
	st, err := b.s.stateOf(tx)
	if err != nil {
		return nil, err
	}
	k := ownerKey{tenantID, ownerID}
	if _, ok := st.owners[k]; !ok {
		nb := models.NewOwnerBalance(tenantID, ownerID)
		nb.CreatedAt, nb.UpdatedAt = b.s.now(), b.s.now()
		st.owners[k] = *nb
	}
	return b.GetOwnerForUpdate(ctx, tx, tenantID, ownerID)
}

func (b *Balances) UpdateOwnerTx(_ context.Context, tx pgx.Tx, ob *models.OwnerBalance) error {
	if err := b.s.fail("balances.update_owner"); err != nil {
		return err
	}
	st, err := b.s.stateOf(tx)
	if err != nil {
		return err
	}
	k := ownerKey{ob.TenantID, ob.OwnerID}
	cur, ok := st.owners[k]
	if !ok || cur.ID != ob.ID {
		return notFound("owner balance", ob.ID)
	}
	ob.Version = cur.Version + 1
	ob.UpdatedAt = b.s.now()
	st.owners[k] = *ob
	return nil
}

type Fees struct{ s *Store }

func (f *Fees) CreateTx(_ context.Context, tx pgx.Tx, fee *models.PlatformFee) error {
	if err := f.s.fail("fees.create"); err != nil {
		return err
	}
	st, err := f.s.stateOf(tx)
	if err != nil {
		return err
	}
	if _, dup := st.fees[fee.PaymentID]; dup {
		return repository.ErrDuplicate
	}
	fee.CreatedAt = f.s.now()
	st.fees[fee.PaymentID] = *fee
	return nil
}

func (f *Fees) GetByPaymentIDTx(_ context.Context, tx pgx.Tx, paymentID uuid.UUID) (*models.PlatformFee, error) {
	st, err := f.s.stateOf(tx)
	if err != nil {
		return nil, err
	}
	v, ok := st.fees[paymentID]
	if !ok {
		return nil, notFound("platform fee for payment", paymentID)
	}
	return &v, nil
}

func inScope(q models.LedgerQuery, tenantID uuid.UUID, ownerID *uuid.UUID) bool {
	if tenantID != q.TenantID {
		return false
	}
	if q.OwnerID == nil {
		return true
	}
	return ownerID != nil && *ownerID == *q.OwnerID
}

type Transactions struct{ s *Store }

func (t *Transactions) CreateTx(_ context.Context, tx pgx.Tx, bt *models.BalanceTransaction) error {
	if err := t.s.fail("transactions.create"); err != nil {
		return err
	}
	st, err := t.s.stateOf(tx)
	if err != nil {
		return err
	}
	if bt.TransactionType == models.TxPaymentReceived && bt.PaymentID != nil {
		for _, e := range st.transactions {
			if e.TransactionType == models.TxPaymentReceived && e.PaymentID != nil && *e.PaymentID == *bt.PaymentID {
				return repository.ErrDuplicate
			}
		}
	}
	bt.CreatedAt = t.s.now()
	st.transactions = append(st.transactions, *bt)
	return nil
}

func (t *Transactions) GetPaymentReceivedTx(_ context.Context, tx pgx.Tx, paymentID uuid.UUID) (*models.BalanceTransaction, error) {
	st, err := t.s.stateOf(tx)
	if err != nil {
		return nil, err
	}
	for _, e := range st.transactions {
		if e.TransactionType == models.TxPaymentReceived && e.PaymentID != nil && *e.PaymentID == paymentID {
			return &e, nil
		}
	}
	return nil, notFound("balance transaction for payment", paymentID)
}

func (t *Transactions) List(_ context.Context, q models.LedgerQuery) ([]*models.BalanceTransaction, error) {
	var list []*models.BalanceTransaction
	t.s.read(func(st *state) {
		for _, e := range st.transactions {
			if inScope(q, e.TenantID, e.OwnerID) && q.Period.Contains(e.TransactionDate) {
				list = append(list, &e)
			}
		}
	})
	sort.Slice(list, func(i, j int) bool {
		if !list[i].TransactionDate.Equal(list[j].TransactionDate) {
			return list[i].TransactionDate.Before(list[j].TransactionDate)
		}
		return list[i].ID.String() < list[j].ID.String()
	})
	return list, nil
}

type Cashouts struct{ s *Store }

func (c *Cashouts) CreateTx(_ context.Context, tx pgx.Tx, req *models.CashoutRequest) error {
	if err := c.s.fail("cashouts.create"); err != nil {
		return err
	}
	st, err := c.s.stateOf(tx)
	if err != nil {
		return err
	}
	if _, dup := st.cashouts[req.ID]; dup {
		return repository.ErrDuplicate
	}
	req.CreatedAt, req.UpdatedAt = c.s.now(), c.s.now()
	st.cashouts[req.ID] = *req
	return nil
}

func (c *Cashouts) GetByID(_ context.Context, id uuid.UUID) (*models.CashoutRequest, error) {
	var out *models.CashoutRequest
	c.s.read(func(st *state) {
		if v, ok := st.cashouts[id]; ok {
			out = &v
		}
	})
	if out == nil {
		return nil, notFound("cashout request", id)
	}
	return out, nil
}

func (c *Cashouts) GetByIDForUpdate(_ context.Context, tx pgx.Tx, id uuid.UUID) (*models.CashoutRequest, error) {
	st, err := c.s.stateOf(tx)
	if err != nil {
		return nil, err
	}
	v, ok := st.cashouts[id]
	if !ok {
		return nil, notFound("cashout request", id)
	}
	return &v, nil
}

func (c *Cashouts) UpdateTx(_ context.Context, tx pgx.Tx, req *models.CashoutRequest) error {
	if err := c.s.fail("cashouts.update"); err != nil {
		return err
	}
	st, err := c.s.stateOf(tx)
	if err != nil {
		return err
	}
	cur, ok := st.cashouts[req.ID]
	if !ok {
		return notFound("cashout request", req.ID)
	}
	// amount and quote are immutable
	next := *req
	next.Amount, next.FeePercentage, next.FeeAmount, next.NetAmount = cur.Amount, cur.FeePercentage, cur.FeeAmount, cur.NetAmount
	next.UpdatedAt = c.s.now()
	req.UpdatedAt = next.UpdatedAt
	st.cashouts[req.ID] = next
	return nil
}

func (c *Cashouts) List(_ context.Context, q models.CashoutQuery) ([]*models.CashoutRequest, error) {
	var list []*models.CashoutRequest
	c.s.read(func(st *state) {
		for _, v := range st.cashouts {
			if q.TenantID != nil && v.TenantID != *q.TenantID {
				continue
			}
			if q.Status != "" && v.Status != q.Status {
				continue
			}
			list = append(list, &v)
		}
	})
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID.String() < list[j].ID.String()
	})
	if q.Limit > 0 && len(list) > q.Limit {
		list = list[:q.Limit]
	}
	return list, nil
}

func (c *Cashouts) ListProcessed(_ context.Context, tenantID uuid.UUID, p models.Period) ([]*models.CashoutRequest, error) {
	var list []*models.CashoutRequest
	c.s.read(func(st *state) {
		for _, v := range st.cashouts {
			if v.TenantID == tenantID && v.Status == models.CashoutProcessed && v.ProcessedAt != nil && p.Contains(*v.ProcessedAt) {
				list = append(list, &v)
			}
		}
	})
	sort.Slice(list, func(i, j int) bool {
		if !list[i].ProcessedAt.Equal(*list[j].ProcessedAt) {
			return list[i].ProcessedAt.Before(*list[j].ProcessedAt)
		}
		return list[i].ID.String() < list[j].ID.String()
	})
	return list, nil
}

type OwnerPayments struct{ s *Store }

func (o *OwnerPayments) CreateTx(_ context.Context, tx pgx.Tx, p *models.OwnerPayment) error {
	if err := o.s.fail("owner_payments.create"); err != nil {
		return err
	}
	st, err := o.s.stateOf(tx)
	if err != nil {
		return err
	}
	p.CreatedAt = o.s.now()
	st.ownerPayments = append(st.ownerPayments, *p)
	return nil
}

func (o *OwnerPayments) ListByOwner(_ context.Context, tenantID, ownerID uuid.UUID) ([]*models.OwnerPayment, error) {
	var list []*models.OwnerPayment
	o.s.read(func(st *state) {
		for _, p := range st.ownerPayments {
			if p.TenantID == tenantID && p.OwnerID == ownerID {
				list = append(list, &p)
			}
		}
	})
	sort.Slice(list, func(i, j int) bool {
		if !list[i].PaymentDate.Equal(list[j].PaymentDate) {
			return list[i].PaymentDate.After(list[j].PaymentDate)
		}
		return list[i].ID.String() < list[j].ID.String()
	})
	return list, nil
}

func (o *OwnerPayments) List(_ context.Context, q models.LedgerQuery) ([]*models.OwnerPayment, error) {
	var list []*models.OwnerPayment
	o.s.read(func(st *state) {
		for _, p := range st.ownerPayments {
			if inScope(q, p.TenantID, &p.OwnerID) && q.Period.Contains(p.PaymentDate) {
				list = append(list, &p)
			}
		}
	})
	sort.Slice(list, func(i, j int) bool {
		if !list[i].PaymentDate.Equal(list[j].PaymentDate) {
			return list[i].PaymentDate.Before(list[j].PaymentDate)
		}
		return list[i].ID.String() < list[j].ID.String()
	})
	return list, nil
}

type Sources struct{ s *Store }

func (r *Sources) GetPayment(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	var out *models.Payment
	r.s.read(func(st *state) {
		if v, ok := st.payments[id]; ok {
			out = &v
		}
	})
	if out == nil {
		return nil, notFound("payment", id)
	}
	return out, nil
}

func (r *Sources) GetProperty(_ context.Context, id uuid.UUID) (*models.Property, error) {
	var out *models.Property
	r.s.read(func(st *state) {
		if v, ok := st.properties[id]; ok {
			out = &v
		}
	})
	if out == nil {
		return nil, notFound("property", id)
	}
	return out, nil
}

func (r *Sources) GetTenant(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	var out *models.Tenant
	r.s.read(func(st *state) {
		if v, ok := st.tenants[id]; ok {
			out = &v
		}
	})
	if out == nil {
		return nil, notFound("tenant", id)
	}
	return out, nil
}

func (r *Sources) ListPayments(_ context.Context, q models.LedgerQuery) ([]*models.Payment, error) {
	var list []*models.Payment
	r.s.read(func(st *state) {
		for _, p := range st.payments {
			if inScope(q, p.TenantID, &p.OwnerID) && q.Period.Contains(p.PaymentDate) {
				list = append(list, &p)
			}
		}
	})
	sort.Slice(list, func(i, j int) bool {
		if !list[i].PaymentDate.Equal(list[j].PaymentDate) {
			return list[i].PaymentDate.Before(list[j].PaymentDate)
		}
		return list[i].ID.String() < list[j].ID.String()
	})
	return list, nil
}

func (r *Sources) ListExpenses(_ context.Context, q models.LedgerQuery) ([]*models.Expense, error) {
	var list []*models.Expense
	r.s.read(func(st *state) {
		for _, e := range st.expenses {
			if inScope(q, e.TenantID, &e.OwnerID) && q.Period.Contains(e.ExpenseDate) {
				list = append(list, &e)
			}
		}
	})
	sort.Slice(list, func(i, j int) bool {
		if !list[i].ExpenseDate.Equal(list[j].ExpenseDate) {
			return list[i].ExpenseDate.Before(list[j].ExpenseDate)
		}
		return list[i].ID.String() < list[j].ID.String()
	})
	return list, nil
}

func (r *Sources) ListUnits(_ context.Context, tenantID uuid.UUID) ([]*models.Unit, error) {
	var list []*models.Unit
	r.s.read(func(st *state) {
		for _, u := range st.units {
			if p, ok := st.properties[u.PropertyID]; ok && p.TenantID == tenantID {
				if u.PropertyName == "" {
					u.PropertyName = p.Name
				}
				list = append(list, &u)
			}
		}
	})
	sort.Slice(list, func(i, j int) bool {
		if list[i].PropertyName != list[j].PropertyName {
			return list[i].PropertyName < list[j].PropertyName
		}
		return list[i].ID.String() < list[j].ID.String()
	})
	return list, nil
}

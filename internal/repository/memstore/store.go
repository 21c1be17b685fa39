// Package memstore is an in-memory stand-in for the Postgres repositories,
// used by service and handler tests. A transaction works on a private copy of
// the state and swaps it in on Commit, so rollbacks leave no trace.
// Transactions are serialized, which is a stricter form of row locking.
package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rentledger/backend/internal/models"
)

type ownerKey struct {
	tenant, owner uuid.UUID
}

type state struct {
	companies     map[uuid.UUID]models.CompanyBalance
	owners        map[ownerKey]models.OwnerBalance
	fees          map[uuid.UUID]models.PlatformFee
	transactions  []models.BalanceTransaction
	cashouts      map[uuid.UUID]models.CashoutRequest
	ownerPayments []models.OwnerPayment

	payments   map[uuid.UUID]models.Payment
	properties map[uuid.UUID]models.Property
	tenants    map[uuid.UUID]models.Tenant
	units      []models.Unit
	expenses   []models.Expense
}

func newState() *state {
	return &state{
		companies:  map[uuid.UUID]models.CompanyBalance{},
		owners:     map[ownerKey]models.OwnerBalance{},
		fees:       map[uuid.UUID]models.PlatformFee{},
		cashouts:   map[uuid.UUID]models.CashoutRequest{},
		payments:   map[uuid.UUID]models.Payment{},
		properties: map[uuid.UUID]models.Property{},
		tenants:    map[uuid.UUID]models.Tenant{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		companies:     cloneMap(s.companies),
		owners:        cloneMap(s.owners),
		fees:          cloneMap(s.fees),
		transactions:  append([]models.BalanceTransaction(nil), s.transactions...),
		cashouts:      cloneMap(s.cashouts),
		ownerPayments: append([]models.OwnerPayment(nil), s.ownerPayments...),
		payments:      s.payments,
		properties:    s.properties,
		tenants:       s.tenants,
		units:         s.units,
		expenses:      s.expenses,
	}
}

// Store holds committed state and hands out the per-table repositories.
type Store struct {
	txMu sync.Mutex

	mu        sync.RWMutex
	committed *state
	failures  map[string]error
	now       func() time.Time

	Balances      *Balances
	Fees          *Fees
	Transactions  *Transactions
	Cashouts      *Cashouts
	OwnerPayments *OwnerPayments
	Sources       *Sources
}

func New() *Store {
	s := &Store{committed: newState(), failures: map[string]error{}, now: time.Now}
	s.Balances = &Balances{s: s}
	s.Fees = &Fees{s: s}
	s.Transactions = &Transactions{s: s}
	s.Cashouts = &Cashouts{s: s}
	s.OwnerPayments = &OwnerPayments{s: s}
	s.Sources = &Sources{s: s}
	return s
}

// FailOn makes the named operation (e.g. "transactions.create") return err.
// A nil err clears it.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) fail(op string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failures[op]
}

// read runs fn against committed state outside any transaction.
func (s *Store) read(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.committed)
}

// seed mutates committed state directly. Test setup only.
func (s *Store) seed(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.committed.clone()
	fn(next)
	s.committed = next
}

// Begin starts a transaction. It blocks while another transaction is open.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := s.fail("begin"); err != nil {
		return nil, err
	}
	s.txMu.Lock()
	s.mu.RLock()
	st := s.committed.clone()
	s.mu.RUnlock()
	return &Tx{s: s, st: st}, nil
}

var errNotMemTx = errors.New("memstore: transaction was not started by this store")

func (s *Store) stateOf(tx pgx.Tx) (*state, error) {
	t, ok := tx.(*Tx)
	if !ok || t.s != s {
		return nil, errNotMemTx
	}
	if t.done {
		return nil, pgx.ErrTxClosed
	}
	return t.st, nil
}

// Tx implements pgx.Tx. Only Commit and Rollback do anything; the table
// repositories read and write its private state.
type Tx struct {
	s    *Store
	st   *state
	done bool
}

func (t *Tx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	if err := t.s.fail("commit"); err != nil {
		t.finish()
		return err
	}
	t.s.mu.Lock()
	t.s.committed = t.st
	t.s.mu.Unlock()
	t.finish()
	return nil
}

func (t *Tx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.finish()
	return nil
}

func (t *Tx) finish() {
	t.done = true
	t.s.txMu.Unlock()
}

func (t *Tx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("memstore: nested transactions are not supported")
}
func (t *Tx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *Tx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (t *Tx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (t *Tx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *Tx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *Tx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *Tx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *Tx) Conn() *pgx.Conn { return nil }

// Seeding helpers.

func (s *Store) AddTenant(t models.Tenant) {
	s.seed(func(st *state) {
		st.tenants = cloneMap(st.tenants)
		st.tenants[t.ID] = t
	})
}

func (s *Store) AddProperty(p models.Property) {
	s.seed(func(st *state) {
		st.properties = cloneMap(st.properties)
		st.properties[p.ID] = p
	})
}

func (s *Store) AddPayment(p models.Payment) {
	s.seed(func(st *state) {
		st.payments = cloneMap(st.payments)
		st.payments[p.ID] = p
	})
}

func (s *Store) AddUnit(u models.Unit) {
	s.seed(func(st *state) {
		st.units = append(append([]models.Unit(nil), st.units...), u)
	})
}

func (s *Store) AddExpense(e models.Expense) {
	s.seed(func(st *state) {
		st.expenses = append(append([]models.Expense(nil), st.expenses...), e)
	})
}

func (s *Store) PutCompanyBalance(b models.CompanyBalance) {
	s.seed(func(st *state) { st.companies[b.TenantID] = b })
}

func (s *Store) PutOwnerBalance(b models.OwnerBalance) {
	s.seed(func(st *state) { st.owners[ownerKey{b.TenantID, b.OwnerID}] = b })
}

// FeeCount and TransactionCount report committed row counts.
func (s *Store) FeeCount() int {
	var n int
	s.read(func(st *state) { n = len(st.fees) })
	return n
}

func (s *Store) TransactionCount() int {
	var n int
	s.read(func(st *state) { n = len(st.transactions) })
	return n
}

func notFound(what string, id any) error {
	return models.Fail(models.ErrNotFound, "%s %v not found", what, id)
}

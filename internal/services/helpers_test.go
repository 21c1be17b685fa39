package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/rentledger/backend/internal/models"
	"github.com/rentledger/backend/internal/notify"
	"github.com/rentledger/backend/internal/repository/memstore"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

var fixedNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func actor(t *testing.T, tenantID uuid.UUID, role string) *models.Actor {
	t.Helper()
	a, err := models.NewActor(uuid.New(), tenantID, role)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

// seedCompany stores a balance that satisfies the company invariant.
func seedCompany(store *memstore.Store, tenantID uuid.UUID, available string) {
	b := models.NewCompanyBalance(tenantID)
	b.AvailableBalance = dec(available)
	b.PlatformFeesCollected = dec(available)
	b.TotalCollected = dec(available).Mul(decimal.NewFromInt(10))
	store.PutCompanyBalance(*b)
}

// notifications records enqueued notification jobs.
type notifications struct {
	mu   sync.Mutex
	sent []notify.Args
	err  error
}

func (n *notifications) insert(_ context.Context, _ pgx.Tx, args notify.Args) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, args)
	return nil
}

func (n *notifications) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, a := range n.sent {
		out = append(out, a.Type)
	}
	return out
}

func mpesaDetails() json.RawMessage {
	return json.RawMessage(`{"phone_number":"0712345678"}`)
}

// Package notify delivers ledger notifications (cashout approved, rejected,
// processed) through River so they are enqueued in the same transaction as the
// state change and only sent after it commits.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// Notification types.
const (
	CashoutApproved  = "cashout_approved"
	CashoutRejected  = "cashout_rejected"
	CashoutProcessed = "cashout_processed"
)

type Args struct {
	UserID   uuid.UUID       `json:"user_id"`
	TenantID uuid.UUID       `json:"tenant_id"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
}

func (Args) Kind() string { return "ledger_notification" }

// InsertOpts keeps notifications on their own queue with a bounded retry budget.
func (Args) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: Queue, MaxAttempts: 8}
}

// Queue is the River queue notification jobs run on.
const Queue = "notifications"

// Sink receives notifications. Content and channel are the sink's concern.
type Sink interface {
	Notify(ctx context.Context, userID uuid.UUID, kind string, payload json.RawMessage) error
}

type Worker struct {
	river.WorkerDefaults[Args]
	sink Sink
}

func NewWorker(sink Sink) *Worker {
	return &Worker{sink: sink}
}

func (w *Worker) Work(ctx context.Context, job *river.Job[Args]) error {
	args := job.Args
	if err := w.sink.Notify(ctx, args.UserID, args.Type, args.Payload); err != nil {
		return fmt.Errorf("deliver %s to %s: %w", args.Type, args.UserID, err)
	}
	return nil
}

func (w *Worker) Timeout(*river.Job[Args]) time.Duration { return 15 * time.Second }

// New builds Args with payload marshaled from v.
func New(kind string, userID, tenantID uuid.UUID, v any) (Args, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Args{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Args{UserID: userID, TenantID: tenantID, Type: kind, Payload: payload}, nil
}

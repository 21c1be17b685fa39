package models

import (
	"time"

	"github.com/google/uuid"
)

// Period is an inclusive time range.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (p Period) Validate() error {
	if p.From.IsZero() || p.To.IsZero() {
		return Fail(ErrValidation, "period requires from and to")
	}
	if p.To.Before(p.From) {
		return Fail(ErrValidation, "period end %s is before start %s", p.To.Format(time.DateOnly), p.From.Format(time.DateOnly))
	}
	return nil
}

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.From) && !t.After(p.To)
}

// LedgerQuery scopes a read to one tenant, optionally one owner, over a period.
// Every repository read takes its scope explicitly.
type LedgerQuery struct {
	TenantID uuid.UUID
	OwnerID  *uuid.UUID
	Period   Period
}

// CashoutQuery filters cashout listings. A nil TenantID lists across tenants.
type CashoutQuery struct {
	TenantID *uuid.UUID
	Status   CashoutStatus
	Limit    int
}

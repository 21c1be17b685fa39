package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashoutStatus is the lifecycle state of a cashout request.
type CashoutStatus string

const (
	CashoutPending   CashoutStatus = "pending"
	CashoutApproved  CashoutStatus = "approved"
	CashoutRejected  CashoutStatus = "rejected"
	CashoutProcessed CashoutStatus = "processed"
)

// cashoutTransitions lists every permitted move. Anything else is invalid.
var cashoutTransitions = map[CashoutStatus][]CashoutStatus{
	CashoutPending:  {CashoutApproved, CashoutRejected},
	CashoutApproved: {CashoutProcessed},
}

// CanTransitionTo reports whether the state machine allows s -> next.
func (s CashoutStatus) CanTransitionTo(next CashoutStatus) bool {
	for _, allowed := range cashoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s CashoutStatus) Terminal() bool {
	return len(cashoutTransitions[s]) == 0
}

func (s CashoutStatus) Valid() bool {
	switch s {
	case CashoutPending, CashoutApproved, CashoutRejected, CashoutProcessed:
		return true
	}
	return false
}

// Cashout payment methods.
const (
	CashoutMethodMpesa        = "mpesa"
	CashoutMethodBankTransfer = "bank_transfer"
)

// CashoutRequest is a company-initiated withdrawal of its available balance.
// FeePercentage, FeeAmount and NetAmount are frozen when the request is created.
type CashoutRequest struct {
	ID              uuid.UUID       `json:"id"`
	TenantID        uuid.UUID       `json:"tenant_id"`
	RequestedBy     uuid.UUID       `json:"requested_by"`
	Amount          decimal.Decimal `json:"amount"`
	FeePercentage   decimal.Decimal `json:"fee_percentage"`
	FeeAmount       decimal.Decimal `json:"fee_amount"`
	NetAmount       decimal.Decimal `json:"net_amount"`
	Status          CashoutStatus   `json:"status"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentDetails  json.RawMessage `json:"payment_details"`
	ApprovedBy      *uuid.UUID      `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	RejectedBy      *uuid.UUID      `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time      `json:"rejected_at,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	TransactionID   string          `json:"transaction_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

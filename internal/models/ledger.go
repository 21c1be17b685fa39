package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Where a platform fee percentage came from.
const (
	FeeSourceProperty = "property"
	FeeSourceTenant   = "tenant"
	FeeSourceGlobal   = "global"
)

// PlatformFee is written once per posted payment.
type PlatformFee struct {
	ID            uuid.UUID       `json:"id"`
	PaymentID     uuid.UUID       `json:"payment_id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	PropertyID    uuid.UUID       `json:"property_id"`
	OwnerID       uuid.UUID       `json:"owner_id"`
	FeePercentage decimal.Decimal `json:"fee_percentage"`
	FeeAmount     decimal.Decimal `json:"fee_amount"`
	BaseAmount    decimal.Decimal `json:"base_amount"`
	FeeSource     string          `json:"fee_source"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Balance transaction_type enums.
const (
	TxPaymentReceived  = "payment_received"
	TxCashoutProcessed = "cashout_processed"
	TxOwnerPayment     = "owner_payment"
)

// BalanceTransaction is an append-only audit row. It is never updated or deleted.
type BalanceTransaction struct {
	ID               uuid.UUID       `json:"id"`
	TenantID         uuid.UUID       `json:"tenant_id"`
	OwnerID          *uuid.UUID      `json:"owner_id,omitempty"`
	PaymentID        *uuid.UUID      `json:"payment_id,omitempty"`
	CashoutRequestID *uuid.UUID      `json:"cashout_request_id,omitempty"`
	OwnerPaymentID   *uuid.UUID      `json:"owner_payment_id,omitempty"`
	TransactionType  string          `json:"transaction_type"`
	Amount           decimal.Decimal `json:"amount"`
	FeeAmount        decimal.Decimal `json:"fee_amount"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	BalanceAfter     decimal.Decimal `json:"balance_after"`
	TransactionDate  time.Time       `json:"transaction_date"`
	Description      string          `json:"description"`
	CreatedAt        time.Time       `json:"created_at"`
}

// OwnerPayment is a disbursement from the company to a property owner.
type OwnerPayment struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	OwnerID       uuid.UUID       `json:"owner_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   time.Time       `json:"payment_date"`
	PaymentMethod string          `json:"payment_method"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedBy     uuid.UUID       `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Owner payment methods.
const (
	OwnerPayCash         = "cash"
	OwnerPayMpesa        = "mpesa"
	OwnerPayBankTransfer = "bank_transfer"
	OwnerPayCheque       = "cheque"
)

func ValidOwnerPaymentMethod(m string) bool {
	switch m {
	case OwnerPayCash, OwnerPayMpesa, OwnerPayBankTransfer, OwnerPayCheque:
		return true
	}
	return false
}

// Ref returns a pointer to a copy of id, for nullable references.
func Ref(id uuid.UUID) *uuid.UUID { return &id }

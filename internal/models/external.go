package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Records below are owned by the property/lease/payment CRUD services and are
// only read here.

// Payment status and payment_type enums.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"

	PaymentTypeRent    = "rent"
	PaymentTypeDeposit = "deposit"
	PaymentTypeLateFee = "late_fee"
)

// PostableType reports whether a payment of type t feeds the ledger.
func PostableType(t string) bool {
	switch t {
	case PaymentTypeRent, PaymentTypeDeposit, PaymentTypeLateFee:
		return true
	}
	return false
}

type Payment struct {
	ID          uuid.UUID       `json:"id"`
	TenantID    uuid.UUID       `json:"tenant_id"`
	LeaseID     uuid.UUID       `json:"lease_id"`
	PropertyID  uuid.UUID       `json:"property_id"`
	UnitID      uuid.UUID       `json:"unit_id"`
	OwnerID     uuid.UUID       `json:"owner_id"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	PaymentType string          `json:"payment_type"`
	PaymentDate time.Time       `json:"payment_date"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
}

type Property struct {
	ID                   uuid.UUID        `json:"id"`
	TenantID             uuid.UUID        `json:"tenant_id"`
	OwnerID              uuid.UUID        `json:"owner_id"`
	Name                 string           `json:"name"`
	CommissionPercentage *decimal.Decimal `json:"commission_percentage,omitempty"`
}

// Tenant is a property-management company using the platform.
// Nil settings fall back to configured defaults.
type Tenant struct {
	ID                           uuid.UUID        `json:"id"`
	Name                         string           `json:"name"`
	CashoutFeePercentage         *decimal.Decimal `json:"cashout_fee_percentage,omitempty"`
	MinCashoutAmount             *decimal.Decimal `json:"min_cashout_amount,omitempty"`
	DefaultPlatformFeePercentage *decimal.Decimal `json:"default_platform_fee_percentage,omitempty"`
}

// Unit status enums.
const (
	UnitOccupied    = "occupied"
	UnitVacant      = "vacant"
	UnitMaintenance = "maintenance"
)

type Unit struct {
	ID           uuid.UUID `json:"id"`
	PropertyID   uuid.UUID `json:"property_id"`
	PropertyName string    `json:"property_name"`
	Status       string    `json:"status"`
}

type Expense struct {
	ID          uuid.UUID       `json:"id"`
	TenantID    uuid.UUID       `json:"tenant_id"`
	PropertyID  uuid.UUID       `json:"property_id"`
	OwnerID     uuid.UUID       `json:"owner_id"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	ExpenseDate time.Time       `json:"expense_date"`
}

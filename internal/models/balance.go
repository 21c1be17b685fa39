package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CompanyBalance is the running balance of one tenant-company.
// AvailableBalance = PlatformFeesCollected - TotalCashedOut - TotalPlatformFeesPaid.
type CompanyBalance struct {
	ID                    uuid.UUID        `json:"id"`
	TenantID              uuid.UUID        `json:"tenant_id"`
	AvailableBalance      decimal.Decimal  `json:"available_balance"`
	PendingBalance        decimal.Decimal  `json:"pending_balance"`
	TotalCollected        decimal.Decimal  `json:"total_collected"`
	PlatformFeesCollected decimal.Decimal  `json:"platform_fees_collected"`
	TotalCashedOut        decimal.Decimal  `json:"total_cashed_out"`
	TotalPlatformFeesPaid decimal.Decimal  `json:"total_platform_fees_paid"`
	LastCashoutAt         *time.Time       `json:"last_cashout_at,omitempty"`
	LastCashoutAmount     *decimal.Decimal `json:"last_cashout_amount,omitempty"`
	Version               int64            `json:"version"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// NewCompanyBalance returns a zeroed balance for a tenant.
func NewCompanyBalance(tenantID uuid.UUID) *CompanyBalance {
	return &CompanyBalance{ID: uuid.New(), TenantID: tenantID}
}

// InvariantHolds reports whether the available balance matches its components.
func (b *CompanyBalance) InvariantHolds() bool {
	want := b.PlatformFeesCollected.Sub(b.TotalCashedOut).Sub(b.TotalPlatformFeesPaid)
	return b.AvailableBalance.Equal(want) && !b.AvailableBalance.IsNegative()
}

// OwnerBalance is what the tenant-company owes one property owner.
// AmountOwed = TotalRentCollected - TotalPlatformFees - AmountPaid, never negative.
type OwnerBalance struct {
	ID                 uuid.UUID        `json:"id"`
	TenantID           uuid.UUID        `json:"tenant_id"`
	OwnerID            uuid.UUID        `json:"owner_id"`
	TotalRentCollected decimal.Decimal  `json:"total_rent_collected"`
	TotalPlatformFees  decimal.Decimal  `json:"total_platform_fees"`
	TotalExpenses      decimal.Decimal  `json:"total_expenses"`
	AmountOwed         decimal.Decimal  `json:"amount_owed"`
	AmountPaid         decimal.Decimal  `json:"amount_paid"`
	TotalPaid          decimal.Decimal  `json:"total_paid"`
	LastPaymentDate    *time.Time       `json:"last_payment_date,omitempty"`
	LastPaymentAmount  *decimal.Decimal `json:"last_payment_amount,omitempty"`
	Version            int64            `json:"version"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// NewOwnerBalance returns a zeroed balance for an owner within a tenant.
func NewOwnerBalance(tenantID, ownerID uuid.UUID) *OwnerBalance {
	return &OwnerBalance{ID: uuid.New(), TenantID: tenantID, OwnerID: ownerID}
}

func (b *OwnerBalance) InvariantHolds() bool {
	want := b.TotalRentCollected.Sub(b.TotalPlatformFees).Sub(b.AmountPaid)
	return b.AmountOwed.Equal(want) && !b.AmountOwed.IsNegative()
}

package models

import (
	"github.com/google/uuid"
)

// Capability is a single permission checked by the ledger services.
type Capability string

const (
	CapPostPayments       Capability = "post_payments"
	CapRequestCashout     Capability = "request_cashout"
	CapApproveCashout     Capability = "approve_cashout"
	CapProcessCashout     Capability = "process_cashout"
	CapRecordOwnerPayment Capability = "record_owner_payment"
	CapViewBalances       Capability = "view_balances"
	CapViewReports        Capability = "view_reports"
)

// Roles carried in access tokens.
const (
	RolePlatformAdmin = "platform_admin"
	RoleCompanyAdmin  = "company_admin"
	RoleAccountant    = "accountant"
)

var roleCapabilities = map[string][]Capability{
	RolePlatformAdmin: {
		CapPostPayments, CapRequestCashout, CapApproveCashout, CapProcessCashout,
		CapRecordOwnerPayment, CapViewBalances, CapViewReports,
	},
	RoleCompanyAdmin: {
		CapPostPayments, CapRequestCashout, CapRecordOwnerPayment, CapViewBalances, CapViewReports,
	},
	RoleAccountant: {
		CapPostPayments, CapRecordOwnerPayment, CapViewBalances, CapViewReports,
	},
}

// Actor is the authenticated caller, resolved once at the HTTP boundary.
// Platform admins have no tenant and may act on any tenant.
type Actor struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Role     string
	caps     map[Capability]bool
}

// NewActor resolves role into a capability set. Unknown roles are rejected.
func NewActor(id, tenantID uuid.UUID, role string) (*Actor, error) {
	caps, ok := roleCapabilities[role]
	if !ok {
		return nil, Fail(ErrForbidden, "unknown role %q", role)
	}
	if role != RolePlatformAdmin && tenantID == uuid.Nil {
		return nil, Fail(ErrForbidden, "role %q requires a tenant", role)
	}
	a := &Actor{ID: id, TenantID: tenantID, Role: role, caps: make(map[Capability]bool, len(caps))}
	for _, c := range caps {
		a.caps[c] = true
	}
	return a, nil
}

func (a *Actor) Can(c Capability) bool {
	return a != nil && a.caps[c]
}

func (a *Actor) IsPlatform() bool {
	return a != nil && a.Role == RolePlatformAdmin
}

// Authorize checks that the actor holds c and may act for tenantID.
func (a *Actor) Authorize(c Capability, tenantID uuid.UUID) error {
	if a == nil {
		return Fail(ErrForbidden, "no authenticated actor")
	}
	if !a.Can(c) {
		return Fail(ErrForbidden, "role %s may not %s", a.Role, c)
	}
	if !a.IsPlatform() && a.TenantID != tenantID {
		return Fail(ErrForbidden, "actor does not belong to tenant %s", tenantID)
	}
	return nil
}

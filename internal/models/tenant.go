package models

type LicenseTier string
type SubscriptionTier string
type TenantStatus string

const (
	LicenseStarter LicenseTier = "starter"
	LicenseBasic   LicenseTier = "basic"
	LicenseService LicenseTier = "service"

	TierStarter    SubscriptionTier = "starter"
	TierPro        SubscriptionTier = "pro"
	TierEnterprise SubscriptionTier = "enterprise"

	TenantActive    TenantStatus = "active"
	TenantSuspended TenantStatus = "suspended"
	TenantClosed    TenantStatus = "closed"
)

// Tenant is one organization. Tenants are never deleted; Status is the only
// way to retire one.
type Tenant struct {
	Base
	Name             string           `gorm:"size:255;not null;uniqueIndex" json:"name"`
	LicenseTier      LicenseTier      `gorm:"type:varchar(20);not null;check:license_tier IN ('starter','basic','service')" json:"license_tier"`
	SubscriptionTier SubscriptionTier `gorm:"type:varchar(20);not null;check:subscription_tier IN ('starter','pro','enterprise')" json:"subscription_tier"`
	Status           TenantStatus     `gorm:"type:varchar(20);not null;check:status IN ('active','suspended','closed')" json:"status"`
}

func (l LicenseTier) Valid() bool {
	return oneOf(l, LicenseStarter, LicenseBasic, LicenseService)
}

// Modules returns the modules a license unlocks, in display order.
func (l LicenseTier) Modules() []Module {
	switch l {
	case LicenseStarter:
		return []Module{ModuleGovernance, ModuleRiskManagement}
	case LicenseBasic:
		return []Module{ModuleGovernance, ModuleRiskManagement, ModuleCompliance, ModuleOutsourcing}
	case LicenseService:
		return append([]Module(nil), AllModules...)
	default:
		return nil
	}
}

func (l LicenseTier) Includes(m Module) bool {
	for _, lm := range l.Modules() {
		if lm == m {
			return true
		}
	}
	return false
}

func (t SubscriptionTier) Valid() bool {
	return oneOf(t, TierStarter, TierPro, TierEnterprise)
}

func (t SubscriptionTier) rank() int {
	switch t {
	case TierStarter:
		return 1
	case TierPro:
		return 2
	case TierEnterprise:
		return 3
	default:
		return 0
	}
}

// Covers reports whether a tenant on tier t may see content gated at min.
func (t SubscriptionTier) Covers(min SubscriptionTier) bool {
	return t.Valid() && min.Valid() && t.rank() >= min.rank()
}

// TiersUpTo lists every tier covered by t, lowest first.
func TiersUpTo(t SubscriptionTier) []SubscriptionTier {
	var out []SubscriptionTier
	for _, candidate := range []SubscriptionTier{TierStarter, TierPro, TierEnterprise} {
		if t.Covers(candidate) {
			out = append(out, candidate)
		}
	}
	return out
}

func (s TenantStatus) Valid() bool {
	return oneOf(s, TenantActive, TenantSuspended, TenantClosed)
}

// CanTransitionTo: active ⇄ suspended, either → closed; closed is terminal.
func (s TenantStatus) CanTransitionTo(next TenantStatus) bool {
	switch s {
	case TenantActive:
		return next == TenantSuspended || next == TenantClosed
	case TenantSuspended:
		return next == TenantActive || next == TenantClosed
	case TenantClosed:
		return false
	default:
		return false
	}
}

func (t *Tenant) IsActive() bool {
	return t.Status == TenantActive
}

package models

type UserRole string

const (
	RoleAdmin       UserRole = "admin"
	RoleRiskManager UserRole = "risk_manager"
	RoleViewer      UserRole = "viewer"
	RoleAuditor     UserRole = "auditor"
)

// User is the local profile of an identity issued by the external auth
// provider; ExternalID is the provider's subject.
type User struct {
	Base
	TenantID   uint     `gorm:"not null;index" json:"tenant_id"`
	Tenant     *Tenant  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ExternalID string   `gorm:"size:255;not null;uniqueIndex" json:"external_id"`
	Email      string   `gorm:"size:255" json:"email"`
	Name       string   `gorm:"size:255" json:"name"`
	Role       UserRole `gorm:"type:varchar(20);not null;check:role IN ('admin','risk_manager','viewer','auditor')" json:"role"`
}

func (r UserRole) Valid() bool {
	return oneOf(r, RoleAdmin, RoleRiskManager, RoleViewer, RoleAuditor)
}

// CanWrite reports whether the role may mutate domain records.
func (r UserRole) CanWrite() bool {
	return r == RoleAdmin || r == RoleRiskManager
}

// CanAdminister covers tenant settings and user management.
func (r UserRole) CanAdminister() bool {
	return r == RoleAdmin
}

func (r UserRole) CanReadAudit() bool {
	return r == RoleAdmin || r == RoleAuditor
}

// RiskOfficer is seeded at onboarding. UserID is a weak attribution link.
type RiskOfficer struct {
	Base
	TenantID uint    `gorm:"not null;index" json:"tenant_id"`
	Tenant   *Tenant `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Name     string  `gorm:"size:255;not null" json:"name"`
	Email    string  `gorm:"size:255" json:"email"`
	UserID   *uint   `json:"user_id,omitempty"`
	User     *User   `gorm:"constraint:OnDelete:SET NULL" json:"-"`
}

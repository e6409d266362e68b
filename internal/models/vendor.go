package models

import "time"

type VendorStatus string

const (
	VendorActive      VendorStatus = "active"
	VendorUnderReview VendorStatus = "under_review"
	VendorTerminated  VendorStatus = "terminated"
)

func (s VendorStatus) Valid() bool {
	return oneOf(s, VendorActive, VendorUnderReview, VendorTerminated)
}

// CanTransitionTo: active ⇄ under_review, either → terminated (terminal).
func (s VendorStatus) CanTransitionTo(next VendorStatus) bool {
	switch s {
	case VendorActive:
		return next == VendorUnderReview || next == VendorTerminated
	case VendorUnderReview:
		return next == VendorActive || next == VendorTerminated
	case VendorTerminated:
		return false
	default:
		return false
	}
}

type Vendor struct {
	Base
	TenantID    uint         `gorm:"not null;index" json:"tenant_id"`
	Tenant      *Tenant      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Name        string       `gorm:"size:255;not null" json:"name"`
	Service     string       `gorm:"type:text" json:"service"`
	Criticality Severity     `gorm:"type:varchar(20);not null;check:criticality IN ('low','medium','high','critical')" json:"criticality"`
	Status      VendorStatus `gorm:"type:varchar(20);not null;check:status IN ('active','under_review','terminated')" json:"status"`
	ContractEnd *time.Time   `json:"contract_end,omitempty"`
}

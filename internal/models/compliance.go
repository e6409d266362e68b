package models

import "time"

type ComplianceState string

const (
	StatusNotStarted    ComplianceState = "not_started"
	StatusInProgress    ComplianceState = "in_progress"
	StatusCompliant     ComplianceState = "compliant"
	StatusNonCompliant  ComplianceState = "non_compliant"
	StatusNotApplicable ComplianceState = "not_applicable"
)

func (s ComplianceState) Valid() bool {
	return oneOf(s, StatusNotStarted, StatusInProgress, StatusCompliant, StatusNonCompliant, StatusNotApplicable)
}

// IsReviewOutcome reports whether reaching s concludes a review cycle.
func (s ComplianceState) IsReviewOutcome() bool {
	switch s {
	case StatusCompliant, StatusNonCompliant:
		return true
	case StatusNotStarted, StatusInProgress, StatusNotApplicable:
		return false
	default:
		return false
	}
}

// ComplianceStatus joins a tenant to a shared requirement. There is exactly
// one row per (tenant, requirement), enforced by idx_compliance_tenant_requirement.
type ComplianceStatus struct {
	Base
	TenantID       uint            `gorm:"not null;uniqueIndex:idx_compliance_tenant_requirement,priority:1" json:"tenant_id"`
	Tenant         *Tenant         `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	RequirementID  uint            `gorm:"not null;uniqueIndex:idx_compliance_tenant_requirement,priority:2" json:"requirement_id"`
	Requirement    *Requirement    `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	Status         ComplianceState `gorm:"type:varchar(20);not null;check:status IN ('not_started','in_progress','compliant','non_compliant','not_applicable')" json:"status"`
	EvidenceRefs   []string        `gorm:"type:text;serializer:json" json:"evidence_refs"`
	Notes          string          `gorm:"type:text" json:"notes"`
	LastReviewedAt *time.Time      `json:"last_reviewed_at,omitempty"`
	NextReviewAt   *time.Time      `gorm:"index" json:"next_review_at,omitempty"`
	ReviewedByID   *uint           `json:"reviewed_by_id,omitempty"`
	ReviewedBy     *User           `gorm:"constraint:OnDelete:SET NULL" json:"-"`
}

package models

import (
	"gorm.io/gorm"

	"regtrack/internal/apperr"
)

type RiskCategory string
type RiskStatus string

const (
	CategoryOperational  RiskCategory = "operational"
	CategoryCredit       RiskCategory = "credit"
	CategoryMarket       RiskCategory = "market"
	CategoryLiquidity    RiskCategory = "liquidity"
	CategoryCompliance   RiskCategory = "compliance"
	CategoryCyber        RiskCategory = "cyber"
	CategoryStrategic    RiskCategory = "strategic"
	CategoryReputational RiskCategory = "reputational"

	RiskOpen      RiskStatus = "open"
	RiskMitigated RiskStatus = "mitigated"
	RiskAccepted  RiskStatus = "accepted"
	RiskClosed    RiskStatus = "closed"
)

// ScaleMin and ScaleMax bound probability, impact and control effectiveness.
const (
	ScaleMin = 1
	ScaleMax = 5
)

func (c RiskCategory) Valid() bool {
	return oneOf(c, CategoryOperational, CategoryCredit, CategoryMarket, CategoryLiquidity,
		CategoryCompliance, CategoryCyber, CategoryStrategic, CategoryReputational)
}

func (s RiskStatus) Valid() bool {
	return oneOf(s, RiskOpen, RiskMitigated, RiskAccepted, RiskClosed)
}

// CanTransitionTo allows any move between the working states; closed is terminal.
func (s RiskStatus) CanTransitionTo(next RiskStatus) bool {
	if !next.Valid() || next == s {
		return false
	}
	switch s {
	case RiskOpen, RiskMitigated, RiskAccepted:
		return true
	case RiskClosed:
		return false
	default:
		return false
	}
}

func ValidateScale(field string, v int) error {
	if v < ScaleMin || v > ScaleMax {
		return apperr.Newf(apperr.CodeValidation, "%s must be an integer between %d and %d", field, ScaleMin, ScaleMax)
	}
	return nil
}

type Risk struct {
	Base
	TenantID      uint         `gorm:"not null;index" json:"tenant_id"`
	Tenant        *Tenant      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Title         string       `gorm:"size:255;not null" json:"title"`
	Description   string       `gorm:"type:text" json:"description"`
	Category      RiskCategory `gorm:"type:varchar(20);not null;check:category IN ('operational','credit','market','liquidity','compliance','cyber','strategic','reputational')" json:"category"`
	Probability   int          `gorm:"not null;check:probability BETWEEN 1 AND 5" json:"probability"`
	Impact        int          `gorm:"not null;check:impact BETWEEN 1 AND 5" json:"impact"`
	RiskScore     int          `gorm:"not null;index" json:"risk_score"`
	Status        RiskStatus   `gorm:"type:varchar(20);not null;check:status IN ('open','mitigated','accepted','closed')" json:"status"`
	RequirementID *uint        `gorm:"index" json:"requirement_id,omitempty"`
	Requirement   *Requirement `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	OwnerID       *uint        `json:"owner_id,omitempty"`
	Owner         *User        `gorm:"constraint:OnDelete:SET NULL" json:"-"`
}

// BeforeSave keeps RiskScore derived from probability and impact. Risks must be
// written through Create or Save so the hook sees the whole row.
func (r *Risk) BeforeSave(*gorm.DB) error {
	if err := ValidateScale("probability", r.Probability); err != nil {
		return err
	}
	if err := ValidateScale("impact", r.Impact); err != nil {
		return err
	}
	r.RiskScore = r.Probability * r.Impact
	return nil
}

package models

import "time"

type Module string
type Frequency string
type Priority string

const (
	ModuleGovernance         Module = "governance"
	ModuleRiskManagement     Module = "risk_management"
	ModuleCompliance         Module = "compliance"
	ModuleOutsourcing        Module = "outsourcing"
	ModuleCyber              Module = "cyber"
	ModuleBusinessContinuity Module = "business_continuity"

	FrequencyOneTime   Frequency = "one_time"
	FrequencyAnnual    Frequency = "annual"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyBiennial  Frequency = "biennial"
	Frequency36Months  Frequency = "36_months"

	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
)

var AllModules = []Module{
	ModuleGovernance,
	ModuleRiskManagement,
	ModuleCompliance,
	ModuleOutsourcing,
	ModuleCyber,
	ModuleBusinessContinuity,
}

func (m Module) Valid() bool {
	return oneOf(m, AllModules...)
}

func (f Frequency) Valid() bool {
	return oneOf(f, FrequencyOneTime, FrequencyAnnual, FrequencyQuarterly, FrequencyBiennial, Frequency36Months)
}

// NextReview returns when an obligation reviewed at from is due again, or nil
// for one-time obligations.
func (f Frequency) NextReview(from time.Time) *time.Time {
	var next time.Time
	switch f {
	case FrequencyAnnual:
		next = from.AddDate(1, 0, 0)
	case FrequencyQuarterly:
		next = from.AddDate(0, 3, 0)
	case FrequencyBiennial:
		next = from.AddDate(2, 0, 0)
	case Frequency36Months:
		next = from.AddDate(0, 36, 0)
	case FrequencyOneTime:
		return nil
	default:
		return nil
	}
	return &next
}

func (p Priority) Valid() bool {
	return oneOf(p, PriorityP0, PriorityP1, PriorityP2)
}

// Regulation is the root of the shared, tenant-agnostic reference graph. A new
// version of a circular is a new row; older versions stay for the statuses
// that reference their requirements.
type Regulation struct {
	Base
	Code          string     `gorm:"size:64;not null;uniqueIndex:idx_regulation_code_version,priority:1" json:"code"`
	Version       string     `gorm:"size:32;not null;uniqueIndex:idx_regulation_code_version,priority:2" json:"version"`
	Title         string     `gorm:"size:500;not null" json:"title"`
	Issuer        string     `gorm:"size:255" json:"issuer"`
	EffectiveFrom *time.Time `json:"effective_from,omitempty"`
}

// Section nests through ParentID. SortOrder is assigned depth-first at import
// so a flat sort reproduces the authored tree order.
type Section struct {
	Base
	RegulationID uint        `gorm:"not null;index" json:"regulation_id"`
	Regulation   *Regulation `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ParentID     *uint       `gorm:"index" json:"parent_id,omitempty"`
	Parent       *Section    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Ref          string      `gorm:"size:64" json:"ref"`
	Title        string      `gorm:"size:500;not null" json:"title"`
	SortOrder    int         `gorm:"not null" json:"sort_order"`
}

type Requirement struct {
	Base
	RegulationID uint             `gorm:"not null;index" json:"regulation_id"`
	Regulation   *Regulation      `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	SectionID    uint             `gorm:"not null;index" json:"section_id"`
	Section      *Section         `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	Code         string           `gorm:"size:64;not null" json:"code"`
	Title        string           `gorm:"size:500;not null" json:"title"`
	Description  string           `gorm:"type:text" json:"description"`
	Frequency    Frequency        `gorm:"type:varchar(20);not null;check:frequency IN ('one_time','annual','quarterly','biennial','36_months')" json:"frequency"`
	Priority     Priority         `gorm:"type:varchar(4);not null;check:priority IN ('P0','P1','P2')" json:"priority"`
	MinTier      SubscriptionTier `gorm:"type:varchar(20);not null;check:min_tier IN ('starter','pro','enterprise')" json:"min_tier"`
	Module       Module           `gorm:"type:varchar(32);not null;index;check:module IN ('governance','risk_management','compliance','outsourcing','cyber','business_continuity')" json:"module"`
}

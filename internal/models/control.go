package models

import "time"

type ControlType string
type Effectiveness string

const (
	ControlPreventive ControlType = "preventive"
	ControlDetective  ControlType = "detective"
	ControlCorrective ControlType = "corrective"

	EffectivenessUntested           Effectiveness = "untested"
	EffectivenessIneffective        Effectiveness = "ineffective"
	EffectivenessLargelyIneffective Effectiveness = "largely_ineffective"
	EffectivenessPartiallyEffective Effectiveness = "partially_effective"
	EffectivenessLargelyEffective   Effectiveness = "largely_effective"
	EffectivenessEffective          Effectiveness = "effective"
)

func (t ControlType) Valid() bool {
	return oneOf(t, ControlPreventive, ControlDetective, ControlCorrective)
}

func (e Effectiveness) Valid() bool {
	_, numeric := e.Score()
	return numeric || e == EffectivenessUntested
}

// Score maps a rating onto the 1–5 ordinal scale. Untested has no score.
func (e Effectiveness) Score() (int, bool) {
	switch e {
	case EffectivenessIneffective:
		return 1, true
	case EffectivenessLargelyIneffective:
		return 2, true
	case EffectivenessPartiallyEffective:
		return 3, true
	case EffectivenessLargelyEffective:
		return 4, true
	case EffectivenessEffective:
		return 5, true
	case EffectivenessUntested:
		return 0, false
	default:
		return 0, false
	}
}

func EffectivenessFromScore(score int) (Effectiveness, error) {
	if err := ValidateScale("effectiveness", score); err != nil {
		return "", err
	}
	switch score {
	case 1:
		return EffectivenessIneffective, nil
	case 2:
		return EffectivenessLargelyIneffective, nil
	case 3:
		return EffectivenessPartiallyEffective, nil
	case 4:
		return EffectivenessLargelyEffective, nil
	default:
		return EffectivenessEffective, nil
	}
}

type Control struct {
	Base
	TenantID      uint          `gorm:"not null;index" json:"tenant_id"`
	Tenant        *Tenant       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Title         string        `gorm:"size:255;not null" json:"title"`
	Description   string        `gorm:"type:text" json:"description"`
	Type          ControlType   `gorm:"type:varchar(20);not null;check:type IN ('preventive','detective','corrective')" json:"type"`
	Frequency     Frequency     `gorm:"type:varchar(20);not null;check:frequency IN ('one_time','annual','quarterly','biennial','36_months')" json:"frequency"`
	Effectiveness Effectiveness `gorm:"type:varchar(24);not null;check:effectiveness IN ('untested','ineffective','largely_ineffective','partially_effective','largely_effective','effective')" json:"effectiveness"`
	LastTestedAt  *time.Time    `json:"last_tested_at,omitempty"`
	OwnerID       *uint         `json:"owner_id,omitempty"`
	Owner         *User         `gorm:"constraint:OnDelete:SET NULL" json:"-"`
}

// RiskControl links a risk to a mitigating control. A pair appears at most once.
type RiskControl struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	TenantID  uint      `gorm:"not null;index" json:"tenant_id"`
	Tenant    *Tenant   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	RiskID    uint      `gorm:"not null;uniqueIndex:idx_risk_control,priority:1" json:"risk_id"`
	Risk      *Risk     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ControlID uint      `gorm:"not null;uniqueIndex:idx_risk_control,priority:2;index" json:"control_id"`
	Control   *Control  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

package models

import "time"

type KRIDirection string
type KRIStatus string

const (
	// KRIAbove breaches when the value rises to the threshold.
	KRIAbove KRIDirection = "above"
	// KRIBelow breaches when the value falls to the threshold.
	KRIBelow KRIDirection = "below"

	KRIOk      KRIStatus = "ok"
	KRIWarning KRIStatus = "warning"
	KRIBreach  KRIStatus = "breach"
)

func (d KRIDirection) Valid() bool {
	return oneOf(d, KRIAbove, KRIBelow)
}

// ThresholdsOrdered reports whether the warning level is reached before the
// breach level for direction d.
func (d KRIDirection) ThresholdsOrdered(warning, breach float64) bool {
	switch d {
	case KRIAbove:
		return warning <= breach
	case KRIBelow:
		return warning >= breach
	default:
		return false
	}
}

type KRI struct {
	Base
	TenantID         uint         `gorm:"not null;index" json:"tenant_id"`
	Tenant           *Tenant      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Name             string       `gorm:"size:255;not null" json:"name"`
	Unit             string       `gorm:"size:32" json:"unit"`
	Direction        KRIDirection `gorm:"type:varchar(8);not null;check:direction IN ('above','below')" json:"direction"`
	WarningThreshold float64      `gorm:"not null" json:"warning_threshold"`
	BreachThreshold  float64      `gorm:"not null" json:"breach_threshold"`
	CurrentValue     *float64     `json:"current_value,omitempty"`
	Status           KRIStatus    `gorm:"type:varchar(8);not null;check:status IN ('ok','warning','breach')" json:"status"`
	LastMeasuredAt   *time.Time   `json:"last_measured_at,omitempty"`
	RiskID           *uint        `gorm:"index" json:"risk_id,omitempty"`
	Risk             *Risk        `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
}

// Evaluate classifies value against the KRI's thresholds.
func (k *KRI) Evaluate(value float64) KRIStatus {
	switch k.Direction {
	case KRIAbove:
		if value >= k.BreachThreshold {
			return KRIBreach
		}
		if value >= k.WarningThreshold {
			return KRIWarning
		}
	case KRIBelow:
		if value <= k.BreachThreshold {
			return KRIBreach
		}
		if value <= k.WarningThreshold {
			return KRIWarning
		}
	}
	return KRIOk
}

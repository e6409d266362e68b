package models

import "time"

type Severity string
type IncidentStatus string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"

	IncidentDetected      IncidentStatus = "detected"
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentContained     IncidentStatus = "contained"
	IncidentResolved      IncidentStatus = "resolved"
	IncidentClosed        IncidentStatus = "closed"
)

func (s Severity) Valid() bool {
	return oneOf(s, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical)
}

func (s IncidentStatus) Valid() bool {
	return s.rank() > 0
}

func (s IncidentStatus) rank() int {
	switch s {
	case IncidentDetected:
		return 1
	case IncidentInvestigating:
		return 2
	case IncidentContained:
		return 3
	case IncidentResolved:
		return 4
	case IncidentClosed:
		return 5
	default:
		return 0
	}
}

// After reports whether s lies strictly later in the lifecycle than other.
func (s IncidentStatus) After(other IncidentStatus) bool {
	return s.rank() > other.rank()
}

type CyberIncident struct {
	Base
	TenantID    uint           `gorm:"not null;index" json:"tenant_id"`
	Tenant      *Tenant        `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Severity    Severity       `gorm:"type:varchar(20);not null;check:severity IN ('low','medium','high','critical')" json:"severity"`
	Status      IncidentStatus `gorm:"type:varchar(20);not null;check:status IN ('detected','investigating','contained','resolved','closed')" json:"status"`
	DetectedAt  time.Time      `gorm:"not null" json:"detected_at"`
	ContainedAt *time.Time     `json:"contained_at,omitempty"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
	ClosedAt    *time.Time     `json:"closed_at,omitempty"`
	RiskID      *uint          `gorm:"index" json:"risk_id,omitempty"`
	Risk        *Risk          `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
}

// Advance moves the incident forward to next, stamping every milestone it
// passes. A target equal to or before the current state leaves the incident
// untouched and returns false.
func (i *CyberIncident) Advance(next IncidentStatus, now time.Time) bool {
	if !next.Valid() || !next.After(i.Status) {
		return false
	}
	stamp := func(milestone IncidentStatus, field **time.Time) {
		if !milestone.After(next) && *field == nil {
			t := now
			*field = &t
		}
	}
	stamp(IncidentContained, &i.ContainedAt)
	stamp(IncidentResolved, &i.ResolvedAt)
	stamp(IncidentClosed, &i.ClosedAt)
	i.Status = next
	return true
}

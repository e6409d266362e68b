package models

import "time"

type LossEventStatus string
type PenTestStatus string
type DocumentKind string
type DocumentStatus string

const (
	LossReported  LossEventStatus = "reported"
	LossConfirmed LossEventStatus = "confirmed"
	LossClosed    LossEventStatus = "closed"

	PenTestPlanned    PenTestStatus = "planned"
	PenTestInProgress PenTestStatus = "in_progress"
	PenTestCompleted  PenTestStatus = "completed"

	DocumentPolicy    DocumentKind = "policy"
	DocumentProcedure DocumentKind = "procedure"
	DocumentReport    DocumentKind = "report"
	DocumentEvidence  DocumentKind = "evidence"
	DocumentMinutes   DocumentKind = "minutes"

	DocumentDraft    DocumentStatus = "draft"
	DocumentApproved DocumentStatus = "approved"
	DocumentArchived DocumentStatus = "archived"
)

func (s LossEventStatus) Valid() bool { return s.rank() > 0 }

func (s LossEventStatus) rank() int {
	switch s {
	case LossReported:
		return 1
	case LossConfirmed:
		return 2
	case LossClosed:
		return 3
	default:
		return 0
	}
}

func (s LossEventStatus) CanTransitionTo(next LossEventStatus) bool {
	return next.Valid() && next.rank() > s.rank()
}

func (s PenTestStatus) Valid() bool { return s.rank() > 0 }

func (s PenTestStatus) rank() int {
	switch s {
	case PenTestPlanned:
		return 1
	case PenTestInProgress:
		return 2
	case PenTestCompleted:
		return 3
	default:
		return 0
	}
}

func (s PenTestStatus) CanTransitionTo(next PenTestStatus) bool {
	return next.Valid() && next.rank() > s.rank()
}

func (k DocumentKind) Valid() bool {
	return oneOf(k, DocumentPolicy, DocumentProcedure, DocumentReport, DocumentEvidence, DocumentMinutes)
}

func (s DocumentStatus) Valid() bool {
	return oneOf(s, DocumentDraft, DocumentApproved, DocumentArchived)
}

// CanTransitionTo: draft ⇄ approved, either → archived (terminal).
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	switch s {
	case DocumentDraft:
		return next == DocumentApproved || next == DocumentArchived
	case DocumentApproved:
		return next == DocumentDraft || next == DocumentArchived
	case DocumentArchived:
		return false
	default:
		return false
	}
}

// LossEvent amounts are in minor currency units.
type LossEvent struct {
	Base
	TenantID        uint            `gorm:"not null;index" json:"tenant_id"`
	Tenant          *Tenant         `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Title           string          `gorm:"size:255;not null" json:"title"`
	Category        RiskCategory    `gorm:"type:varchar(20);not null;check:category IN ('operational','credit','market','liquidity','compliance','cyber','strategic','reputational')" json:"category"`
	GrossAmount     int64           `gorm:"not null;check:gross_amount >= 0" json:"gross_amount"`
	RecoveredAmount int64           `gorm:"not null;default:0;check:recovered_amount >= 0" json:"recovered_amount"`
	Currency        string          `gorm:"size:3;not null" json:"currency"`
	OccurredAt      time.Time       `gorm:"not null" json:"occurred_at"`
	Status          LossEventStatus `gorm:"type:varchar(20);not null;check:status IN ('reported','confirmed','closed')" json:"status"`
	RiskID          *uint           `gorm:"index" json:"risk_id,omitempty"`
	Risk            *Risk           `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
}

// FindingCounts groups security findings by severity.
type FindingCounts struct {
	Critical int `gorm:"not null;default:0" json:"critical"`
	High     int `gorm:"not null;default:0" json:"high"`
	Medium   int `gorm:"not null;default:0" json:"medium"`
	Low      int `gorm:"not null;default:0" json:"low"`
}

func (f FindingCounts) Valid() bool {
	return f.Critical >= 0 && f.High >= 0 && f.Medium >= 0 && f.Low >= 0
}

type PenTest struct {
	Base
	TenantID    uint          `gorm:"not null;index" json:"tenant_id"`
	Tenant      *Tenant       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Title       string        `gorm:"size:255;not null" json:"title"`
	Provider    string        `gorm:"size:255" json:"provider"`
	Status      PenTestStatus `gorm:"type:varchar(20);not null;check:status IN ('planned','in_progress','completed')" json:"status"`
	PerformedAt *time.Time    `json:"performed_at,omitempty"`
	Findings    FindingCounts `gorm:"embedded;embeddedPrefix:findings_" json:"findings"`
}

type VulnScan struct {
	Base
	TenantID  uint          `gorm:"not null;index" json:"tenant_id"`
	Tenant    *Tenant       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Scanner   string        `gorm:"size:255;not null" json:"scanner"`
	Target    string        `gorm:"size:255;not null" json:"target"`
	ScannedAt time.Time     `gorm:"not null" json:"scanned_at"`
	Findings  FindingCounts `gorm:"embedded;embeddedPrefix:findings_" json:"findings"`
}

type Document struct {
	Base
	TenantID uint           `gorm:"not null;index" json:"tenant_id"`
	Tenant   *Tenant        `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Title    string         `gorm:"size:255;not null" json:"title"`
	Kind     DocumentKind   `gorm:"type:varchar(20);not null;check:kind IN ('policy','procedure','report','evidence','minutes')" json:"kind"`
	Version  string         `gorm:"size:32" json:"version"`
	Status   DocumentStatus `gorm:"type:varchar(20);not null;check:status IN ('draft','approved','archived')" json:"status"`
	OwnerID  *uint          `json:"owner_id,omitempty"`
	Owner    *User          `gorm:"constraint:OnDelete:SET NULL" json:"-"`
}

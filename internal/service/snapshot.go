package service

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/gorm"

	"regtrack/internal/models"
)

// Snapshot is the plain-data view the report generator renders from. Every
// derived value in it is computed while the snapshot is taken.
type Snapshot struct {
	TakenAt      time.Time                 `json:"taken_at"`
	Tenant       models.Tenant             `json:"tenant"`
	Risks        []RiskView                `json:"risks"`
	Controls     []models.Control          `json:"controls"`
	Statuses     []models.ComplianceStatus `json:"statuses"`
	ModuleScores []ModuleScore             `json:"module_scores"`
	Tasks        []TaskView                `json:"tasks"`
	Incidents    []models.CyberIncident    `json:"incidents"`
	KRIs         []models.KRI              `json:"kris"`
	Meetings     []MeetingView             `json:"meetings"`
}

// Snapshot loads the tenant's report data. Every section is read in one
// read-only transaction, so the sections agree with each other.
func (s *Service) Snapshot(ctx context.Context, tc TenantContext) (*Snapshot, error) {
	start := time.Now()
	var snap *Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		snap, err = s.snapshot(tx, tc)
		return err
	}, snapshotTxOptions(s.db)...)
	err = translate(err)
	s.observe("snapshot", start, err)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// snapshotTxOptions pins Postgres to one repeatable-read view. SQLite
// transactions are already serializable.
func snapshotTxOptions(db *gorm.DB) []*sql.TxOptions {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return []*sql.TxOptions{{Isolation: sql.LevelRepeatableRead, ReadOnly: true}}
}

func (s *Service) snapshot(tx *gorm.DB, tc TenantContext) (*Snapshot, error) {
	a, err := s.authorize(tx, tc, permRead)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{TakenAt: s.clock(), Tenant: a.tenant}
	tenantID := a.tenant.ID

	if snap.Risks, err = listRiskViews(tx, tenantID, RiskFilter{}); err != nil {
		return nil, err
	}
	if err := scoped(tx, tenantID).Order("id").Find(&snap.Controls).Error; err != nil {
		return nil, err
	}
	if snap.Statuses, err = listStatuses(tx, tenantID, ""); err != nil {
		return nil, err
	}
	if snap.ModuleScores, err = overview(tx, a.tenant); err != nil {
		return nil, err
	}

	var tasks []models.Task
	if err := scoped(tx, tenantID).Order("due_date, id").Find(&tasks).Error; err != nil {
		return nil, err
	}
	snap.Tasks = make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		snap.Tasks = append(snap.Tasks, taskView(t, snap.TakenAt))
	}

	if err := scoped(tx, tenantID).Order("detected_at DESC, id DESC").Find(&snap.Incidents).Error; err != nil {
		return nil, err
	}
	if err := scoped(tx, tenantID).Order("id").Find(&snap.KRIs).Error; err != nil {
		return nil, err
	}

	var meetings []models.BoardMeeting
	if err := scoped(tx, tenantID).Order("scheduled_at DESC, id DESC").Find(&meetings).Error; err != nil {
		return nil, err
	}
	if snap.Meetings, err = meetingViews(tx, tenantID, meetings); err != nil {
		return nil, err
	}
	return snap, nil
}

package service_test

import (
	"sync"
	"time"

	"gorm.io/gorm"

	"regtrack/internal/models"
	"regtrack/internal/scoring"
	"regtrack/internal/service"
)

func (s *ServiceSuite) TestSnapshotCollectsTenantData() {
	reqs := s.seedCatalog()
	alpha, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	beta, _ := s.onboard("beta", models.LicenseBasic, models.TierPro)

	risk := s.newRisk(alpha, 5, 5)
	s.link(alpha, risk.ID, s.newControl(alpha, 2).ID)
	s.link(alpha, risk.ID, s.newControl(alpha, 3).ID)
	s.newRisk(beta, 1, 1)
	s.setStatus(alpha, reqs["CMP-1"], models.StatusCompliant)
	s.setStatus(alpha, reqs["CMP-2"], models.StatusCompliant)
	s.newTask(alpha, "late", s.now.Add(-time.Hour))
	_, err := s.svc.ReportIncident(s.ctx, alpha, service.IncidentInput{Title: "outage", Severity: models.SeverityMedium})
	s.Require().NoError(err)
	s.completedMeeting(alpha)

	snap, err := s.svc.Snapshot(s.ctx, alpha)
	s.Require().NoError(err)

	s.Equal("alpha", snap.Tenant.Name)
	s.True(snap.TakenAt.Equal(s.now))
	s.Require().Len(snap.Risks, 1)
	s.Equal(4, snap.Risks[0].Residual)
	s.Len(snap.Controls, 2)
	s.Len(snap.Statuses, 2)
	s.Require().Len(snap.Tasks, 1)
	s.True(snap.Tasks[0].Overdue)
	s.Len(snap.Incidents, 1)
	s.Empty(snap.KRIs)
	s.Len(snap.Meetings, 1)

	s.Require().Len(snap.ModuleScores, 4)
	for _, ms := range snap.ModuleScores {
		if ms.Module == models.ModuleCompliance {
			s.Equal(50, ms.Pct)
		}
	}
}

func (s *ServiceSuite) TestSnapshotIgnoresWritesCommittedWhileReading() {
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	risk := s.newRisk(tc, 5, 5)
	control := s.newControl(tc, 1)
	s.link(tc, risk.ID, control.ID)

	var once sync.Once
	written := make(chan error, 1)
	s.Require().NoError(s.db.Callback().Query().After("gorm:query").Register("test:concurrent_control_write", func(db *gorm.DB) {
		if db.Statement.Table != "controls" {
			return
		}
		once.Do(func() {
			go func() {
				written <- s.db.Exec("UPDATE controls SET effectiveness = ? WHERE id = ?",
					models.EffectivenessEffective, control.ID).Error
			}()
			time.Sleep(50 * time.Millisecond)
		})
	}))

	snap, err := s.svc.Snapshot(s.ctx, tc)
	s.Require().NoError(err)

	select {
	case err := <-written:
		s.Require().NoError(err)
	case <-time.After(5 * time.Second):
		s.FailNow("concurrent write never committed")
	}

	s.Require().Len(snap.Controls, 1)
	s.Require().Len(snap.Risks, 1)
	s.Require().Len(snap.Risks[0].Controls, 1)
	s.Equal(models.EffectivenessIneffective, snap.Controls[0].Effectiveness)
	s.Equal(snap.Controls[0].Effectiveness, snap.Risks[0].Controls[0].Effectiveness)
	_, residual, err := scoring.RiskLevels(snap.Risks[0].Risk, snap.Controls)
	s.Require().NoError(err)
	s.Equal(residual, snap.Risks[0].Residual)

	view, err := s.svc.GetRisk(s.ctx, tc, risk.ID)
	s.Require().NoError(err)
	s.Equal(models.EffectivenessEffective, view.Controls[0].Effectiveness, "the write lands after the snapshot")
}

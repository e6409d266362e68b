package service_test

import (
	"time"

	"gorm.io/gorm"

	"regtrack/internal/apperr"
	"regtrack/internal/models"
	"regtrack/internal/service"
)

func (s *ServiceSuite) newTask(tc service.TenantContext, title string, due time.Time) *service.TaskView {
	s.T().Helper()
	v, err := s.svc.CreateTask(s.ctx, tc, service.TaskInput{Title: title, DueDate: due})
	s.Require().NoError(err)
	return v
}

func (s *ServiceSuite) notificationCount(tenantID uint, kind models.NotificationKind) int64 {
	var n int64
	s.Require().NoError(s.db.Model(&models.Notification{}).
		Where("tenant_id = ? AND kind = ?", tenantID, kind).Count(&n).Error)
	return n
}

func (s *ServiceSuite) TestOverdueIsDerived() {
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	late := s.newTask(tc, "late", s.now.Add(-24*time.Hour))
	soon := s.newTask(tc, "soon", s.now.Add(24*time.Hour))

	s.True(late.Overdue)
	s.Equal(models.TaskOverdue, late.DisplayStatus)
	s.Equal(models.TaskPending, late.Status)
	s.False(soon.Overdue)
	s.Equal(string(models.TaskPending), soon.DisplayStatus)

	overdue, err := s.svc.ListTasks(s.ctx, tc, service.TaskFilter{OverdueOnly: true})
	s.Require().NoError(err)
	s.Require().Len(overdue, 1)
	s.Equal(late.ID, overdue[0].ID)

	s.now = s.now.Add(48 * time.Hour)
	all, err := s.svc.ListTasks(s.ctx, tc, service.TaskFilter{OverdueOnly: true})
	s.Require().NoError(err)
	s.Len(all, 2, "overdue follows the clock without a write")
}

func (s *ServiceSuite) TestTaskStatusMovesForward() {
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	task := s.newTask(tc, "file report", s.now.Add(-time.Hour))

	_, err := s.svc.SetTaskStatus(s.ctx, tc, task.ID, models.TaskOverdue)
	s.requireCode(err, apperr.CodeValidation)

	_, err = s.svc.SetTaskStatus(s.ctx, tc, task.ID, models.TaskCompleted)
	s.requireCode(err, apperr.CodeInvalidTransition)

	started, err := s.svc.SetTaskStatus(s.ctx, tc, task.ID, models.TaskInProgress)
	s.Require().NoError(err)
	s.Nil(started.CompletedAt)

	done, err := s.svc.SetTaskStatus(s.ctx, tc, task.ID, models.TaskCompleted)
	s.Require().NoError(err)
	s.Require().NotNil(done.CompletedAt)
	s.False(done.Overdue, "completed tasks are never overdue")

	_, err = s.svc.SetTaskStatus(s.ctx, tc, task.ID, models.TaskInProgress)
	s.requireCode(err, apperr.CodeInvalidTransition)
}

func (s *ServiceSuite) TestCreateTaskReferences() {
	alpha, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	beta, _ := s.onboard("beta", models.LicenseBasic, models.TierPro)
	foreign := s.newRisk(beta, 2, 2)

	_, err := s.svc.CreateTask(s.ctx, alpha, service.TaskInput{Title: "t", DueDate: s.now, RiskID: &foreign.ID})
	s.requireCode(err, apperr.CodeCrossTenant)

	_, err = s.svc.CreateTask(s.ctx, alpha, service.TaskInput{Title: "t"})
	s.requireCode(err, apperr.CodeValidation)
}

func (s *ServiceSuite) TestFlagOverdueTasksNotifiesOnce() {
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	s.newTask(tc, "late one", s.now.Add(-2*time.Hour))
	s.newTask(tc, "late two", s.now.Add(-time.Hour))
	s.newTask(tc, "future", s.now.Add(time.Hour))
	finished := s.newTask(tc, "finished", s.now.Add(-3*time.Hour))
	_, err := s.svc.SetTaskStatus(s.ctx, tc, finished.ID, models.TaskInProgress)
	s.Require().NoError(err)
	_, err = s.svc.SetTaskStatus(s.ctx, tc, finished.ID, models.TaskCompleted)
	s.Require().NoError(err)

	var updates []string
	s.Require().NoError(s.db.Callback().Update().After("gorm:update").Register("test:capture_task_updates", func(db *gorm.DB) {
		if db.Statement.Table == "tasks" {
			updates = append(updates, db.Statement.SQL.String())
		}
	}))

	n, err := s.svc.FlagOverdueTasks(s.ctx, tc)
	s.Require().NoError(err)
	s.Equal(2, n)
	s.Require().Len(updates, 2)
	for _, sql := range updates {
		s.Contains(sql, "tenant_id", "flag writes carry the tenant predicate")
	}

	var flagged int64
	s.Require().NoError(s.db.Model(&models.Task{}).
		Where("tenant_id = ? AND overdue_notified_at IS NOT NULL", tc.TenantID).
		Count(&flagged).Error)
	s.EqualValues(2, flagged)

	n, err = s.svc.FlagOverdueTasks(s.ctx, tc)
	s.Require().NoError(err)
	s.Zero(n)
	s.EqualValues(2, s.notificationCount(tc.TenantID, models.NotifyTaskOverdue))
	s.EqualValues(2, s.auditCount(tc.TenantID, "task", "flag_overdue"))
}

func (s *ServiceSuite) TestSweepOverdueTasksSkipsInactiveTenants() {
	alpha, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	beta, _ := s.onboard("beta", models.LicenseBasic, models.TierPro)
	s.newTask(alpha, "a", s.now.Add(-time.Hour))
	s.newTask(beta, "b", s.now.Add(-time.Hour))
	_, err := s.svc.SetTenantStatus(s.ctx, beta, models.TenantSuspended)
	s.Require().NoError(err)

	n, err := s.svc.SweepOverdueTasks(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
	s.EqualValues(1, s.notificationCount(alpha.TenantID, models.NotifyTaskOverdue))
	s.EqualValues(0, s.notificationCount(beta.TenantID, models.NotifyTaskOverdue))
}

package service_test

import (
	"time"

	"regtrack/internal/apperr"
	"regtrack/internal/models"
	"regtrack/internal/service"
)

func (s *ServiceSuite) completedMeeting(tc service.TenantContext) *models.BoardMeeting {
	s.T().Helper()
	m, err := s.svc.ScheduleMeeting(s.ctx, tc, service.MeetingInput{Title: "Q1 board", ScheduledAt: s.now.Add(-2 * time.Hour)})
	s.Require().NoError(err)
	m, err = s.svc.CompleteMeeting(s.ctx, tc, m.ID, "Minutes of the Q1 meeting")
	s.Require().NoError(err)
	return m
}

func (s *ServiceSuite) TestProtocolNeedsEveryApproval() {
	admin, res := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	directors := []uint{res.Directors[0].ID, res.Directors[1].ID}
	for _, name := range []string{"Director Three", "Director Four"} {
		d, err := s.svc.AddDirector(s.ctx, admin, service.PersonInput{Name: name})
		s.Require().NoError(err)
		directors = append(directors, d.ID)
	}
	m := s.completedMeeting(admin)

	empty, err := s.svc.ProtocolStatus(s.ctx, admin, m.ID)
	s.Require().NoError(err)
	s.False(empty.Approved, "a protocol without approvers is not approved")

	sum, err := s.svc.RequestProtocolApprovals(s.ctx, admin, m.ID)
	s.Require().NoError(err)
	s.Equal(4, sum.Total)
	s.Equal(4, sum.Pending)
	s.EqualValues(4, s.notificationCount(admin.TenantID, models.NotifyApprovalRequested))

	for _, id := range directors[:3] {
		_, err := s.svc.SetProtocolApproval(s.ctx, admin, m.ID, id, models.ApprovalApproved, "")
		s.Require().NoError(err)
	}
	_, err = s.svc.SetProtocolApproval(s.ctx, admin, m.ID, directors[3], models.ApprovalCommented, "typo in item 4")
	s.Require().NoError(err)

	sum, err = s.svc.ProtocolStatus(s.ctx, admin, m.ID)
	s.Require().NoError(err)
	s.False(sum.Approved)
	s.Equal(3, sum.Approvals)
	s.Equal(1, sum.Commented)

	_, err = s.svc.SetProtocolApproval(s.ctx, admin, m.ID, directors[3], models.ApprovalApproved, "")
	s.Require().NoError(err)
	sum, err = s.svc.ProtocolStatus(s.ctx, admin, m.ID)
	s.Require().NoError(err)
	s.True(sum.Approved)
	s.Equal(4, sum.Approvals)
}

func (s *ServiceSuite) TestRequestProtocolApprovalsFillsGaps() {
	admin, res := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	m := s.completedMeeting(admin)

	_, err := s.svc.RequestProtocolApprovals(s.ctx, admin, m.ID)
	s.Require().NoError(err)

	_, err = s.svc.AddDirector(s.ctx, admin, service.PersonInput{Name: "Late Joiner"})
	s.Require().NoError(err)
	_, err = s.svc.SetDirectorActive(s.ctx, admin, res.Directors[1].ID, false)
	s.Require().NoError(err)

	sum, err := s.svc.RequestProtocolApprovals(s.ctx, admin, m.ID)
	s.Require().NoError(err)
	s.Equal(3, sum.Total)
	s.EqualValues(3, s.notificationCount(admin.TenantID, models.NotifyApprovalRequested))

	_, err = s.svc.AddProtocolApprover(s.ctx, admin, m.ID, res.Directors[0].ID)
	s.requireCode(err, apperr.CodeUniqueness)

	_, err = s.svc.AddProtocolApprover(s.ctx, admin, m.ID, 9999)
	s.requireCode(err, apperr.CodeReferential)
}

func (s *ServiceSuite) TestRequestProtocolApprovalsNeedsDirectors() {
	admin, res := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	for _, d := range res.Directors {
		_, err := s.svc.SetDirectorActive(s.ctx, admin, d.ID, false)
		s.Require().NoError(err)
	}
	m := s.completedMeeting(admin)

	_, err := s.svc.RequestProtocolApprovals(s.ctx, admin, m.ID)
	s.requireCode(err, apperr.CodeValidation)
}

func (s *ServiceSuite) TestProtocolAnswerRules() {
	admin, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	member := s.addUser(admin, models.RoleViewer)
	own, err := s.svc.AddDirector(s.ctx, admin, service.PersonInput{Name: "Member", UserID: &member.ActorID})
	s.Require().NoError(err)
	other, err := s.svc.AddDirector(s.ctx, admin, service.PersonInput{Name: "Other"})
	s.Require().NoError(err)

	scheduled, err := s.svc.ScheduleMeeting(s.ctx, admin, service.MeetingInput{Title: "Q2", ScheduledAt: s.now.Add(time.Hour)})
	s.Require().NoError(err)
	_, err = s.svc.RequestProtocolApprovals(s.ctx, admin, scheduled.ID)
	s.requireCode(err, apperr.CodeInvalidTransition)

	m := s.completedMeeting(admin)
	_, err = s.svc.RequestProtocolApprovals(s.ctx, admin, m.ID)
	s.Require().NoError(err)

	answer, err := s.svc.SetProtocolApproval(s.ctx, member, m.ID, own.ID, models.ApprovalRejected, "quorum missing")
	s.Require().NoError(err)
	s.Equal(models.ApprovalRejected, answer.State)
	s.NotNil(answer.DecidedAt)

	_, err = s.svc.SetProtocolApproval(s.ctx, member, m.ID, other.ID, models.ApprovalApproved, "")
	s.requireCode(err, apperr.CodeForbidden)

	_, err = s.svc.SetProtocolApproval(s.ctx, admin, m.ID, other.ID, models.ApprovalCommented, "  ")
	s.requireCode(err, apperr.CodeValidation)

	_, err = s.svc.SetProtocolApproval(s.ctx, admin, m.ID, other.ID, models.ApprovalPending, "")
	s.requireCode(err, apperr.CodeValidation)
}

func (s *ServiceSuite) TestMeetingLifecycleAndDecisions() {
	admin, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	scheduled, err := s.svc.ScheduleMeeting(s.ctx, admin, service.MeetingInput{Title: "Q3", ScheduledAt: s.now})
	s.Require().NoError(err)

	_, err = s.svc.AddDecision(s.ctx, admin, scheduled.ID, service.DecisionInput{Title: "too early"})
	s.requireCode(err, apperr.CodeInvalidTransition)

	_, err = s.svc.CancelMeeting(s.ctx, admin, scheduled.ID)
	s.Require().NoError(err)
	_, err = s.svc.CompleteMeeting(s.ctx, admin, scheduled.ID, "late minutes")
	s.requireCode(err, apperr.CodeInvalidTransition)

	m := s.completedMeeting(admin)
	s.Equal("Minutes of the Q1 meeting", m.Minutes)
	s.NotNil(m.CompletedAt)

	d, err := s.svc.AddDecision(s.ctx, admin, m.ID, service.DecisionInput{
		Title: "Adopt new ICT policy",
		Task:  &service.TaskInput{Title: "Roll out ICT policy", DueDate: s.now.AddDate(0, 1, 0)},
	})
	s.Require().NoError(err)
	s.Require().NotNil(d.TaskID)
	s.Equal(models.DecisionPending, d.Status)

	tasks, err := s.svc.ListTasks(s.ctx, admin, service.TaskFilter{})
	s.Require().NoError(err)
	s.Require().Len(tasks, 1)
	s.Equal(*d.TaskID, tasks[0].ID)

	_, err = s.svc.SetDecisionStatus(s.ctx, admin, d.ID, models.DecisionDone)
	s.requireCode(err, apperr.CodeInvalidTransition)
	d, err = s.svc.SetDecisionStatus(s.ctx, admin, d.ID, models.DecisionInProgress)
	s.Require().NoError(err)
	d, err = s.svc.SetDecisionStatus(s.ctx, admin, d.ID, models.DecisionDone)
	s.Require().NoError(err)
	_, err = s.svc.SetDecisionStatus(s.ctx, admin, d.ID, models.DecisionInProgress)
	s.requireCode(err, apperr.CodeInvalidTransition)

	existing := uint(9999)
	_, err = s.svc.AddDecision(s.ctx, admin, m.ID, service.DecisionInput{Title: "x", TaskID: &existing})
	s.requireCode(err, apperr.CodeReferential)

	view, err := s.svc.GetMeeting(s.ctx, admin, m.ID)
	s.Require().NoError(err)
	s.Len(view.Decisions, 1)
	s.False(view.Protocol.Approved)

	meetings, err := s.svc.ListMeetings(s.ctx, admin)
	s.Require().NoError(err)
	s.Len(meetings, 2)
}

package service_test

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"regtrack/internal/apperr"
	"regtrack/internal/models"
	"regtrack/internal/service"
)

func (s *ServiceSuite) TestIncidentMovesOnlyForward() {
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)

	inc, err := s.svc.ReportIncident(s.ctx, tc, service.IncidentInput{Title: "phishing wave", Severity: models.SeverityHigh})
	s.Require().NoError(err)
	s.Equal(models.IncidentDetected, inc.Status)
	s.WithinDuration(s.now, inc.DetectedAt, time.Second)
	s.EqualValues(1, s.notificationCount(tc.TenantID, models.NotifyIncidentCreated))

	inc, err = s.svc.AdvanceIncident(s.ctx, tc, inc.ID, models.IncidentContained)
	s.Require().NoError(err)
	s.Equal(models.IncidentContained, inc.Status)
	s.NotNil(inc.ContainedAt)
	s.Nil(inc.ResolvedAt)

	inc, err = s.svc.AdvanceIncident(s.ctx, tc, inc.ID, models.IncidentInvestigating)
	s.Require().NoError(err)
	s.Equal(models.IncidentContained, inc.Status, "backward moves are ignored")
	s.EqualValues(1, s.auditCount(tc.TenantID, "cyber_incident", "status_change"))

	inc, err = s.svc.AdvanceIncident(s.ctx, tc, inc.ID, models.IncidentClosed)
	s.Require().NoError(err)
	s.Equal(models.IncidentClosed, inc.Status)
	s.NotNil(inc.ResolvedAt)
	s.NotNil(inc.ClosedAt)

	_, err = s.svc.AdvanceIncident(s.ctx, tc, inc.ID, "archived")
	s.requireCode(err, apperr.CodeValidation)
}

func (s *ServiceSuite) TestVendorLifecycle() {
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	v, err := s.svc.CreateVendor(s.ctx, tc, service.VendorInput{Name: "Cloud Co", Criticality: models.SeverityCritical})
	s.Require().NoError(err)
	s.Equal(models.VendorActive, v.Status)

	for _, next := range []models.VendorStatus{models.VendorUnderReview, models.VendorActive, models.VendorTerminated} {
		v, err = s.svc.SetVendorStatus(s.ctx, tc, v.ID, next)
		s.Require().NoError(err)
		s.Equal(next, v.Status)
	}
	_, err = s.svc.SetVendorStatus(s.ctx, tc, v.ID, models.VendorActive)
	s.requireCode(err, apperr.CodeInvalidTransition)

	vendors, err := s.svc.ListVendors(s.ctx, tc)
	s.Require().NoError(err)
	s.Require().Len(vendors, 1)
	s.Equal(models.VendorTerminated, vendors[0].Status)
}

func (s *ServiceSuite) TestLossEvents() {
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	base := service.LossEventInput{
		Title:       "wire fraud",
		Category:    models.CategoryOperational,
		GrossAmount: 50000,
		Currency:    " chf ",
		OccurredAt:  s.now.Add(-72 * time.Hour),
	}

	over := base
	over.RecoveredAmount = 60000
	_, err := s.svc.RecordLossEvent(s.ctx, tc, over)
	s.requireCode(err, apperr.CodeValidation)

	bad := base
	bad.Currency = "CHFR"
	_, err = s.svc.RecordLossEvent(s.ctx, tc, bad)
	s.requireCode(err, apperr.CodeValidation)

	ev, err := s.svc.RecordLossEvent(s.ctx, tc, base)
	s.Require().NoError(err)
	s.Equal("CHF", ev.Currency)
	s.Equal(models.LossReported, ev.Status)

	ev, err = s.svc.SetLossEventStatus(s.ctx, tc, ev.ID, models.LossClosed)
	s.Require().NoError(err)
	_, err = s.svc.SetLossEventStatus(s.ctx, tc, ev.ID, models.LossConfirmed)
	s.requireCode(err, apperr.CodeInvalidTransition)
}

func (s *ServiceSuite) TestSecurityTesting() {
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	pt, err := s.svc.RecordPenTest(s.ctx, tc, service.PenTestInput{Title: "external perimeter", Provider: "RedTeam AG"})
	s.Require().NoError(err)
	s.Equal(models.PenTestPlanned, pt.Status)

	findings := &models.FindingCounts{Critical: 1, High: 2}
	_, err = s.svc.SetPenTestStatus(s.ctx, tc, pt.ID, models.PenTestInProgress, findings)
	s.requireCode(err, apperr.CodeValidation)

	pt, err = s.svc.SetPenTestStatus(s.ctx, tc, pt.ID, models.PenTestCompleted, findings)
	s.Require().NoError(err)
	s.NotNil(pt.PerformedAt)
	s.Equal(2, pt.Findings.High)

	tests, err := s.svc.ListPenTests(s.ctx, tc)
	s.Require().NoError(err)
	s.Require().Len(tests, 1)
	s.Equal(1, tests[0].Findings.Critical)

	scan, err := s.svc.RecordVulnScan(s.ctx, tc, service.VulnScanInput{Scanner: "nessus", Target: "10.0.0.0/24"})
	s.Require().NoError(err)
	s.WithinDuration(s.now, scan.ScannedAt, time.Second)

	_, err = s.svc.RecordVulnScan(s.ctx, tc, service.VulnScanInput{Scanner: "nessus", Target: "x", Findings: models.FindingCounts{Low: -1}})
	s.requireCode(err, apperr.CodeValidation)
}

func (s *ServiceSuite) TestDocumentLifecycle() {
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	doc, err := s.svc.CreateDocument(s.ctx, tc, service.DocumentInput{Title: "ICT policy", Kind: models.DocumentPolicy, Version: "2.1"})
	s.Require().NoError(err)
	s.Equal(models.DocumentDraft, doc.Status)

	for _, next := range []models.DocumentStatus{models.DocumentApproved, models.DocumentDraft, models.DocumentArchived} {
		doc, err = s.svc.SetDocumentStatus(s.ctx, tc, doc.ID, next)
		s.Require().NoError(err)
	}
	_, err = s.svc.SetDocumentStatus(s.ctx, tc, doc.ID, models.DocumentDraft)
	s.requireCode(err, apperr.CodeInvalidTransition)
}

func (s *ServiceSuite) TestKRIBreachNotifiesOnEntry() {
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)

	_, err := s.svc.CreateKRI(s.ctx, tc, service.KRIInput{Name: "x", Direction: models.KRIAbove, WarningThreshold: 10, BreachThreshold: 5})
	s.requireCode(err, apperr.CodeValidation)

	kri, err := s.svc.CreateKRI(s.ctx, tc, service.KRIInput{
		Name: "failed logins", Unit: "count", Direction: models.KRIAbove, WarningThreshold: 5, BreachThreshold: 10,
	})
	s.Require().NoError(err)
	s.Equal(models.KRIOk, kri.Status)

	steps := []struct {
		value float64
		want  models.KRIStatus
	}{
		{3, models.KRIOk},
		{7, models.KRIWarning},
		{12, models.KRIBreach},
		{15, models.KRIBreach},
		{2, models.KRIOk},
		{10, models.KRIBreach},
	}
	for _, st := range steps {
		kri, err = s.svc.RecordKRIValue(s.ctx, tc, kri.ID, st.value)
		s.Require().NoError(err)
		s.Equal(st.want, kri.Status, "value %v", st.value)
	}
	s.EqualValues(2, s.notificationCount(tc.TenantID, models.NotifyKRIBreach))

	_, err = s.svc.RecordKRIValue(s.ctx, tc, kri.ID, math.NaN())
	s.requireCode(err, apperr.CodeValidation)

	below, err := s.svc.CreateKRI(s.ctx, tc, service.KRIInput{
		Name: "liquidity ratio", Direction: models.KRIBelow, WarningThreshold: 120, BreachThreshold: 100,
	})
	s.Require().NoError(err)
	below, err = s.svc.RecordKRIValue(s.ctx, tc, below.ID, 110)
	s.Require().NoError(err)
	s.Equal(models.KRIWarning, below.Status)
}

func (s *ServiceSuite) TestNotificationOutbox() {
	alpha, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	beta, _ := s.onboard("beta", models.LicenseBasic, models.TierPro)
	_, err := s.svc.ReportIncident(s.ctx, alpha, service.IncidentInput{Title: "a", Severity: models.SeverityLow})
	s.Require().NoError(err)
	_, err = s.svc.ReportIncident(s.ctx, beta, service.IncidentInput{Title: "b", Severity: models.SeverityLow})
	s.Require().NoError(err)

	pending, err := s.svc.PendingNotifications(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(alpha.TenantID, pending[0].TenantID)

	s.Require().NoError(s.svc.MarkNotificationDelivered(s.ctx, pending[0].ID))
	first := s.now
	s.now = s.now.Add(time.Hour)
	s.Require().NoError(s.svc.MarkNotificationDelivered(s.ctx, pending[0].ID))
	s.requireCode(s.svc.MarkNotificationDelivered(s.ctx, 9999), apperr.CodeNotFound)

	var stored models.Notification
	s.Require().NoError(s.db.First(&stored, pending[0].ID).Error)
	s.Require().NotNil(stored.DeliveredAt)
	s.WithinDuration(first, *stored.DeliveredAt, time.Second)

	pending, err = s.svc.PendingNotifications(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(beta.TenantID, pending[0].TenantID)

	own, err := s.svc.ListNotifications(s.ctx, beta, 0)
	s.Require().NoError(err)
	s.Require().Len(own, 1)
	s.Equal("b", own[0].Payload["title"])
}

func (s *ServiceSuite) TestAuditCommitsWithTheWrite() {
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	risk := s.newRisk(tc, 2, 2)
	control := s.newControl(tc, 0)
	s.link(tc, risk.ID, control.ID)

	_, err := s.svc.LinkControl(s.ctx, tc, risk.ID, control.ID)
	s.requireCode(err, apperr.CodeUniqueness)
	s.EqualValues(1, s.auditCount(tc.TenantID, "risk", "link_control"), "a failed write leaves no audit record")

	logs, err := s.svc.ListAuditLog(s.ctx, tc, 2)
	s.Require().NoError(err)
	s.Require().Len(logs, 2)
	s.Equal("link_control", logs[0].Action)
	s.Require().NotNil(logs[0].ActorID)
	s.Equal(tc.ActorID, *logs[0].ActorID)
	s.Equal(json.Number(strconv.FormatUint(uint64(control.ID), 10)), logs[0].Details["control_id"], "JSON details read back numbers as json.Number")
}

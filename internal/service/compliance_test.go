package service_test

import (
	"sync"
	"time"

	"regtrack/internal/apperr"
	"regtrack/internal/models"
	"regtrack/internal/service"
)

func (s *ServiceSuite) setStatus(tc service.TenantContext, req models.Requirement, state models.ComplianceState) *models.ComplianceStatus {
	s.T().Helper()
	st, err := s.svc.UpdateStatus(s.ctx, tc, req.ID, service.StatusUpdate{Status: state})
	s.Require().NoError(err)
	return st
}

func (s *ServiceSuite) TestGetOrCreateStatusIsIdempotent() {
	reqs := s.seedCatalog()
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)

	first, err := s.svc.GetOrCreateStatus(s.ctx, tc, reqs["GOV-1"].ID)
	s.Require().NoError(err)
	s.Equal(models.StatusNotStarted, first.Status)

	second, err := s.svc.GetOrCreateStatus(s.ctx, tc, reqs["GOV-1"].ID)
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)
	s.EqualValues(1, s.auditCount(tc.TenantID, "compliance_status", "create"))
}

func (s *ServiceSuite) TestGetOrCreateStatusConcurrent() {
	reqs := s.seedCatalog()
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)

	const callers = 8
	ids := make([]uint, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st, err := s.svc.GetOrCreateStatus(s.ctx, tc, reqs["CMP-1"].ID)
			errs[i] = err
			if st != nil {
				ids[i] = st.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range errs {
		s.Require().NoError(errs[i])
		s.Equal(ids[0], ids[i])
	}
	var n int64
	s.Require().NoError(s.db.Model(&models.ComplianceStatus{}).
		Where("tenant_id = ? AND requirement_id = ?", tc.TenantID, reqs["CMP-1"].ID).
		Count(&n).Error)
	s.EqualValues(1, n)
}

func (s *ServiceSuite) TestUpdateStatusSchedulesNextReview() {
	reqs := s.seedCatalog()
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)

	refs := []string{" policy.pdf ", "", "minutes-2026-01"}
	st, err := s.svc.UpdateStatus(s.ctx, tc, reqs["GOV-1"].ID, service.StatusUpdate{
		Status:       models.StatusCompliant,
		EvidenceRefs: &refs,
	})
	s.Require().NoError(err)
	s.Equal([]string{"policy.pdf", "minutes-2026-01"}, st.EvidenceRefs)
	s.Require().NotNil(st.LastReviewedAt)
	s.Require().NotNil(st.NextReviewAt)
	s.WithinDuration(s.now, *st.LastReviewedAt, time.Second)
	s.WithinDuration(s.now.AddDate(1, 0, 0), *st.NextReviewAt, time.Second)
	s.Require().NotNil(st.ReviewedByID)
	s.Equal(tc.ActorID, *st.ReviewedByID)

	once := s.setStatus(tc, reqs["GOV-2"], models.StatusCompliant)
	s.NotNil(once.LastReviewedAt)
	s.Nil(once.NextReviewAt, "one-time requirements are not rescheduled")

	progress := s.setStatus(tc, reqs["CMP-1"], models.StatusInProgress)
	s.Nil(progress.LastReviewedAt)

	stored, err := s.svc.ListStatuses(s.ctx, tc, models.ModuleGovernance)
	s.Require().NoError(err)
	s.Require().Len(stored, 2)
	s.Equal([]string{"policy.pdf", "minutes-2026-01"}, stored[0].EvidenceRefs)
	s.EqualValues(3, s.auditCount(tc.TenantID, "compliance_status", "status_change"))
}

func (s *ServiceSuite) TestUpdateStatusRespectsLicenseAndTier() {
	reqs := s.seedCatalog()
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)

	_, err := s.svc.UpdateStatus(s.ctx, tc, reqs["CYB-1"].ID, service.StatusUpdate{Status: models.StatusCompliant})
	s.requireCode(err, apperr.CodeForbidden)

	_, err = s.svc.UpdateStatus(s.ctx, tc, reqs["CMP-ENT"].ID, service.StatusUpdate{Status: models.StatusCompliant})
	s.requireCode(err, apperr.CodeForbidden)

	_, err = s.svc.GetOrCreateStatus(s.ctx, tc, 9999)
	s.requireCode(err, apperr.CodeReferential)

	_, err = s.svc.UpdateStatus(s.ctx, tc, reqs["CMP-1"].ID, service.StatusUpdate{Status: "done"})
	s.requireCode(err, apperr.CodeValidation)

	viewer := s.addUser(tc, models.RoleViewer)
	_, err = s.svc.GetOrCreateStatus(s.ctx, viewer, reqs["CMP-1"].ID)
	s.requireCode(err, apperr.CodeForbidden)
}

func (s *ServiceSuite) TestModulePct() {
	reqs := s.seedCatalog()
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)

	empty, err := s.svc.ModulePct(s.ctx, tc, models.ModuleCompliance)
	s.Require().NoError(err)
	s.Equal(0, empty.Pct)
	s.Equal(4, empty.Applicable)

	s.setStatus(tc, reqs["CMP-1"], models.StatusCompliant)
	s.setStatus(tc, reqs["CMP-2"], models.StatusCompliant)
	s.setStatus(tc, reqs["CMP-3"], models.StatusInProgress)

	score, err := s.svc.ModulePct(s.ctx, tc, models.ModuleCompliance)
	s.Require().NoError(err)
	s.Equal(50, score.Pct)
	s.Equal(2, score.Compliant)
	s.Equal(4, score.Applicable)

	s.setStatus(tc, reqs["CMP-4"], models.StatusNotApplicable)
	score, err = s.svc.ModulePct(s.ctx, tc, models.ModuleCompliance)
	s.Require().NoError(err)
	s.Equal(67, score.Pct)
	s.Equal(1, score.NotApplicable)

	_, err = s.svc.ModulePct(s.ctx, tc, models.ModuleCyber)
	s.requireCode(err, apperr.CodeForbidden)
}

func (s *ServiceSuite) TestComplianceIsTenantIsolated() {
	reqs := s.seedCatalog()
	alpha, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	beta, _ := s.onboard("beta", models.LicenseBasic, models.TierPro)

	s.setStatus(alpha, reqs["CMP-1"], models.StatusInProgress)
	for _, code := range []string{"CMP-1", "CMP-2", "CMP-3", "CMP-4"} {
		s.setStatus(beta, reqs[code], models.StatusCompliant)
	}

	rows, err := s.svc.ListStatuses(s.ctx, alpha, "")
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(alpha.TenantID, rows[0].TenantID)
	s.Equal(models.StatusInProgress, rows[0].Status)

	alphaScore, err := s.svc.ModulePct(s.ctx, alpha, models.ModuleCompliance)
	s.Require().NoError(err)
	s.Equal(0, alphaScore.Pct)

	betaScore, err := s.svc.ModulePct(s.ctx, beta, models.ModuleCompliance)
	s.Require().NoError(err)
	s.Equal(100, betaScore.Pct)
}

func (s *ServiceSuite) TestDueForReview() {
	reqs := s.seedCatalog()
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)

	s.setStatus(tc, reqs["CMP-1"], models.StatusCompliant)
	s.setStatus(tc, reqs["GOV-2"], models.StatusCompliant)

	due, err := s.svc.DueForReview(s.ctx, tc, s.now.AddDate(0, 6, 0))
	s.Require().NoError(err)
	s.Empty(due)

	due, err = s.svc.DueForReview(s.ctx, tc, s.now.AddDate(1, 0, 1))
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Equal(reqs["CMP-1"].ID, due[0].RequirementID)
}

func (s *ServiceSuite) TestComplianceOverviewCoversLicensedModules() {
	reqs := s.seedCatalog()
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	s.setStatus(tc, reqs["GOV-1"], models.StatusCompliant)

	scores, err := s.svc.ComplianceOverview(s.ctx, tc)
	s.Require().NoError(err)
	s.Require().Len(scores, 4)
	s.Equal(models.ModuleGovernance, scores[0].Module)
	s.Equal(50, scores[0].Pct)
	s.Equal(models.ModuleRiskManagement, scores[1].Module)
	s.Equal(1, scores[1].Applicable)
	s.Equal(models.ModuleOutsourcing, scores[3].Module)
	s.Equal(0, scores[3].Applicable)
}

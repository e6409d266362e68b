package service_test

import (
	"regtrack/internal/apperr"
	"regtrack/internal/models"
	"regtrack/internal/service"
)

func (s *ServiceSuite) link(tc service.TenantContext, riskID, controlID uint) {
	s.T().Helper()
	_, err := s.svc.LinkControl(s.ctx, tc, riskID, controlID)
	s.Require().NoError(err)
}

func (s *ServiceSuite) residual(tc service.TenantContext, riskID uint) int {
	s.T().Helper()
	level, err := s.svc.ResidualRisk(s.ctx, tc, riskID)
	s.Require().NoError(err)
	return level
}

func (s *ServiceSuite) TestResidualRoundsMeanEffectiveness() {
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	risk := s.newRisk(tc, 5, 5)
	s.link(tc, risk.ID, s.newControl(tc, 2).ID)
	s.link(tc, risk.ID, s.newControl(tc, 3).ID)

	view, err := s.svc.GetRisk(s.ctx, tc, risk.ID)
	s.Require().NoError(err)
	s.Equal(5, view.Inherent)
	s.Equal(4, view.Residual)
	s.Len(view.Controls, 2)
}

func (s *ServiceSuite) TestResidualWithoutControlsIsInherent() {
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	risk := s.newRisk(tc, 3, 3)

	s.Equal(3, s.residual(tc, risk.ID))

	s.link(tc, risk.ID, s.newControl(tc, 0).ID)
	s.Equal(3, s.residual(tc, risk.ID), "untested controls carry no rating")
}

func (s *ServiceSuite) TestResidualFollowsControlChanges() {
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	risk := s.newRisk(tc, 5, 5)
	control := s.newControl(tc, 5)
	s.link(tc, risk.ID, control.ID)
	s.Equal(2, s.residual(tc, risk.ID))

	_, err := s.svc.SetControlEffectiveness(s.ctx, tc, control.ID, 1)
	s.Require().NoError(err)
	s.Equal(5, s.residual(tc, risk.ID))

	untested, err := s.svc.MarkControlUntested(s.ctx, tc, control.ID)
	s.Require().NoError(err)
	s.Equal(models.EffectivenessUntested, untested.Effectiveness)
	s.Equal(5, s.residual(tc, risk.ID))

	s.Require().NoError(s.svc.UnlinkControl(s.ctx, tc, risk.ID, control.ID))
	s.requireCode(s.svc.UnlinkControl(s.ctx, tc, risk.ID, control.ID), apperr.CodeNotFound)
	s.EqualValues(3, s.auditCount(tc.TenantID, "control", "effectiveness_change"))
	s.EqualValues(1, s.auditCount(tc.TenantID, "risk", "unlink_control"))
}

func (s *ServiceSuite) TestInherentLevelOneStaysOne() {
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	risk := s.newRisk(tc, 1, 1)
	s.link(tc, risk.ID, s.newControl(tc, 1).ID)
	s.Equal(1, s.residual(tc, risk.ID))
}

func (s *ServiceSuite) TestControlEffectivenessValidation() {
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	control := s.newControl(tc, 0)

	_, err := s.svc.SetControlEffectiveness(s.ctx, tc, control.ID, 6)
	s.requireCode(err, apperr.CodeValidation)

	_, err = s.svc.SetControlEffectiveness(s.ctx, tc, 9999, 3)
	s.requireCode(err, apperr.CodeNotFound)

	rated, err := s.svc.SetControlEffectiveness(s.ctx, tc, control.ID, 4)
	s.Require().NoError(err)
	s.Equal(models.EffectivenessLargelyEffective, rated.Effectiveness)
	s.NotNil(rated.LastTestedAt)
}

func (s *ServiceSuite) TestLinkControlRules() {
	alpha, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	beta, _ := s.onboard("beta", models.LicenseBasic, models.TierPro)
	risk := s.newRisk(alpha, 2, 2)
	control := s.newControl(alpha, 3)
	foreign := s.newControl(beta, 3)

	s.link(alpha, risk.ID, control.ID)
	_, err := s.svc.LinkControl(s.ctx, alpha, risk.ID, control.ID)
	s.requireCode(err, apperr.CodeUniqueness)

	_, err = s.svc.LinkControl(s.ctx, alpha, risk.ID, foreign.ID)
	s.requireCode(err, apperr.CodeCrossTenant)

	_, err = s.svc.LinkControl(s.ctx, alpha, 9999, control.ID)
	s.requireCode(err, apperr.CodeNotFound)

	var n int64
	s.Require().NoError(s.db.Model(&models.RiskControl{}).Count(&n).Error)
	s.EqualValues(1, n)
}

func (s *ServiceSuite) TestRisksAreTenantIsolated() {
	alpha, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	beta, _ := s.onboard("beta", models.LicenseBasic, models.TierPro)
	risk := s.newRisk(alpha, 4, 4)
	s.newRisk(beta, 1, 1)

	_, err := s.svc.GetRisk(s.ctx, beta, risk.ID)
	s.requireCode(err, apperr.CodeCrossTenant)

	_, err = s.svc.SetRiskStatus(s.ctx, beta, risk.ID, models.RiskAccepted)
	s.requireCode(err, apperr.CodeCrossTenant)

	risks, err := s.svc.ListRisks(s.ctx, beta, service.RiskFilter{})
	s.Require().NoError(err)
	s.Require().Len(risks, 1)
	s.Equal(beta.TenantID, risks[0].TenantID)
}

func (s *ServiceSuite) TestListRisksOrdersByScore() {
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	low := s.newRisk(tc, 2, 2)
	high := s.newRisk(tc, 5, 5)
	mid := s.newRisk(tc, 3, 3)

	risks, err := s.svc.ListRisks(s.ctx, tc, service.RiskFilter{})
	s.Require().NoError(err)
	s.Require().Len(risks, 3)
	s.Equal([]uint{high.ID, mid.ID, low.ID}, []uint{risks[0].ID, risks[1].ID, risks[2].ID})

	_, err = s.svc.SetRiskStatus(s.ctx, tc, mid.ID, models.RiskMitigated)
	s.Require().NoError(err)
	mitigated, err := s.svc.ListRisks(s.ctx, tc, service.RiskFilter{Status: models.RiskMitigated})
	s.Require().NoError(err)
	s.Require().Len(mitigated, 1)
	s.Equal(mid.ID, mitigated[0].ID)
}

func (s *ServiceSuite) TestRiskAssessmentLifecycle() {
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	risk := s.newRisk(tc, 2, 2)
	s.Equal(4, risk.RiskScore)

	updated, err := s.svc.UpdateRiskAssessment(s.ctx, tc, risk.ID, 4, 3)
	s.Require().NoError(err)
	s.Equal(12, updated.RiskScore)
	s.EqualValues(1, s.auditCount(tc.TenantID, "risk", "reassess"))

	_, err = s.svc.UpdateRiskAssessment(s.ctx, tc, risk.ID, 6, 3)
	s.requireCode(err, apperr.CodeValidation)

	_, err = s.svc.SetRiskStatus(s.ctx, tc, risk.ID, models.RiskClosed)
	s.Require().NoError(err)

	_, err = s.svc.UpdateRiskAssessment(s.ctx, tc, risk.ID, 1, 1)
	s.requireCode(err, apperr.CodeInvalidTransition)

	_, err = s.svc.SetRiskStatus(s.ctx, tc, risk.ID, models.RiskOpen)
	s.requireCode(err, apperr.CodeInvalidTransition)
}

func (s *ServiceSuite) TestCreateRiskReferences() {
	reqs := s.seedCatalog()
	alpha, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	beta, _ := s.onboard("beta", models.LicenseBasic, models.TierPro)

	missing := uint(9999)
	_, err := s.svc.CreateRisk(s.ctx, alpha, service.RiskInput{
		Title: "r", Category: models.CategoryCompliance, Probability: 2, Impact: 2, RequirementID: &missing,
	})
	s.requireCode(err, apperr.CodeReferential)

	_, err = s.svc.CreateRisk(s.ctx, alpha, service.RiskInput{
		Title: "r", Category: models.CategoryCompliance, Probability: 2, Impact: 2, OwnerID: &beta.ActorID,
	})
	s.requireCode(err, apperr.CodeCrossTenant)

	reqID := reqs["GOV-1"].ID
	risk, err := s.svc.CreateRisk(s.ctx, alpha, service.RiskInput{
		Title: "r", Category: models.CategoryCompliance, Probability: 2, Impact: 2,
		RequirementID: &reqID, OwnerID: &alpha.ActorID,
	})
	s.Require().NoError(err)
	s.Equal(models.RiskOpen, risk.Status)

	_, err = s.svc.CreateRisk(s.ctx, alpha, service.RiskInput{Title: "r", Category: "weather", Probability: 2, Impact: 2})
	s.requireCode(err, apperr.CodeValidation)
}

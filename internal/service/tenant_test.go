package service_test

import (
	"regtrack/internal/apperr"
	"regtrack/internal/models"
	"regtrack/internal/service"
)

func (s *ServiceSuite) TestOnboardSeedsTenant() {
	tc, res := s.onboard("alpha", models.LicenseBasic, models.TierPro)

	s.Equal(models.TenantActive, res.Tenant.Status)
	s.Equal(models.RoleAdmin, res.Admin.Role)
	s.Len(res.Directors, 2)
	s.Len(res.RiskOfficers, 1)
	for _, d := range res.Directors {
		s.True(d.Active)
		s.Equal(tc.TenantID, d.TenantID)
	}

	directors, err := s.svc.ListDirectors(s.ctx, tc)
	s.Require().NoError(err)
	s.Len(directors, 2)
	s.EqualValues(1, s.auditCount(tc.TenantID, "tenant", "create"))
	s.EqualValues(2, s.auditCount(tc.TenantID, "director", "create"))
}

func (s *ServiceSuite) TestOnboardIsAtomic() {
	s.onboard("alpha", models.LicenseBasic, models.TierPro)

	_, err := s.svc.Onboard(s.ctx, service.OnboardingRequest{
		Tenant: service.TenantProfile{Name: "beta", LicenseTier: models.LicenseBasic, SubscriptionTier: models.TierPro},
		Admin:  service.UserProfile{ExternalID: "admin-alpha"},
	})
	s.requireCode(err, apperr.CodeUniqueness)

	var n int64
	s.Require().NoError(s.db.Model(&models.Tenant{}).Where("name = ?", "beta").Count(&n).Error)
	s.Zero(n, "tenant must roll back with the failed admin insert")
}

func (s *ServiceSuite) TestCreateUserReferences() {
	_, err := s.svc.CreateUser(s.ctx, 999, service.UserProfile{ExternalID: "x", Role: models.RoleViewer})
	s.requireCode(err, apperr.CodeReferential)

	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	_, err = s.svc.CreateUser(s.ctx, tc.TenantID, service.UserProfile{ExternalID: "admin-alpha", Role: models.RoleViewer})
	s.requireCode(err, apperr.CodeUniqueness)

	_, err = s.svc.CreateUser(s.ctx, tc.TenantID, service.UserProfile{ExternalID: "y", Role: "owner"})
	s.requireCode(err, apperr.CodeValidation)
}

func (s *ServiceSuite) TestRoleChangeTakesEffectOnNextCall() {
	admin, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	manager := s.addUser(admin, models.RoleRiskManager)

	s.newRisk(manager, 2, 2)

	_, err := s.svc.ChangeUserRole(s.ctx, admin, manager.ActorID, models.RoleViewer)
	s.Require().NoError(err)

	_, err = s.svc.CreateRisk(s.ctx, manager, service.RiskInput{
		Title: "late", Category: models.CategoryCyber, Probability: 1, Impact: 1,
	})
	s.requireCode(err, apperr.CodeForbidden)

	risks, err := s.svc.ListRisks(s.ctx, manager, service.RiskFilter{})
	s.Require().NoError(err)
	s.Len(risks, 1)
}

func (s *ServiceSuite) TestRolePermissions() {
	admin, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	viewer := s.addUser(admin, models.RoleViewer)
	auditor := s.addUser(admin, models.RoleAuditor)
	manager := s.addUser(admin, models.RoleRiskManager)

	_, err := s.svc.CreateControl(s.ctx, viewer, service.ControlInput{Title: "c", Type: models.ControlDetective, Frequency: models.FrequencyAnnual})
	s.requireCode(err, apperr.CodeForbidden)

	_, err = s.svc.ListAuditLog(s.ctx, manager, 10)
	s.requireCode(err, apperr.CodeForbidden)

	logs, err := s.svc.ListAuditLog(s.ctx, auditor, 10)
	s.Require().NoError(err)
	s.NotEmpty(logs)

	_, err = s.svc.InviteUser(s.ctx, manager, service.UserProfile{ExternalID: "z", Role: models.RoleAdmin})
	s.requireCode(err, apperr.CodeForbidden)
}

func (s *ServiceSuite) TestActorFromAnotherTenantIsRejected() {
	alpha, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	beta, _ := s.onboard("beta", models.LicenseBasic, models.TierPro)

	forged := service.TenantContext{TenantID: alpha.TenantID, ActorID: beta.ActorID}
	_, err := s.svc.ListRisks(s.ctx, forged, service.RiskFilter{})
	s.requireCode(err, apperr.CodeCrossTenant)
}

func (s *ServiceSuite) TestTenantStatusLifecycle() {
	admin, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)

	_, err := s.svc.SetTenantStatus(s.ctx, admin, models.TenantSuspended)
	s.Require().NoError(err)

	_, err = s.svc.CreateRisk(s.ctx, admin, service.RiskInput{Title: "r", Category: models.CategoryCyber, Probability: 1, Impact: 1})
	s.requireCode(err, apperr.CodeForbidden)

	_, err = s.svc.ListRisks(s.ctx, admin, service.RiskFilter{})
	s.Require().NoError(err, "suspended tenants keep read access")

	tenant, err := s.svc.SetTenantStatus(s.ctx, admin, models.TenantClosed)
	s.Require().NoError(err)
	s.Equal(models.TenantClosed, tenant.Status)

	_, err = s.svc.SetTenantStatus(s.ctx, admin, models.TenantActive)
	s.requireCode(err, apperr.CodeForbidden)

	var stored models.Tenant
	s.Require().NoError(s.db.First(&stored, admin.TenantID).Error)
	s.Equal(models.TenantClosed, stored.Status)
}

func (s *ServiceSuite) TestUpdateTenantSettings() {
	admin, _ := s.onboard("alpha", models.LicenseStarter, models.TierStarter)

	lic := models.LicenseService
	tenant, err := s.svc.UpdateTenantSettings(s.ctx, admin, service.TenantSettings{LicenseTier: &lic})
	s.Require().NoError(err)
	s.Equal(models.LicenseService, tenant.LicenseTier)
	s.Equal("alpha", tenant.Name)
	s.EqualValues(1, s.auditCount(admin.TenantID, "tenant", "update_settings"))

	bad := models.LicenseTier("platinum")
	_, err = s.svc.UpdateTenantSettings(s.ctx, admin, service.TenantSettings{LicenseTier: &bad})
	s.requireCode(err, apperr.CodeValidation)
}

func (s *ServiceSuite) TestLastAdminCannotDemoteThemselves() {
	admin, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)

	_, err := s.svc.ChangeUserRole(s.ctx, admin, admin.ActorID, models.RoleViewer)
	s.requireCode(err, apperr.CodeValidation)

	s.addUser(admin, models.RoleAdmin)
	u, err := s.svc.ChangeUserRole(s.ctx, admin, admin.ActorID, models.RoleViewer)
	s.Require().NoError(err)
	s.Equal(models.RoleViewer, u.Role)
}

func (s *ServiceSuite) TestUserByExternalID() {
	admin, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)

	u, err := s.svc.UserByExternalID(s.ctx, "admin-alpha")
	s.Require().NoError(err)
	s.Equal(admin.ActorID, u.ID)

	_, err = s.svc.UserByExternalID(s.ctx, "nobody")
	s.requireCode(err, apperr.CodeNotFound)
}

func (s *ServiceSuite) TestDirectorUserLinkMustStayInTenant() {
	alpha, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)
	beta, _ := s.onboard("beta", models.LicenseBasic, models.TierPro)

	_, err := s.svc.AddDirector(s.ctx, alpha, service.PersonInput{Name: "Guest", UserID: &beta.ActorID})
	s.requireCode(err, apperr.CodeCrossTenant)

	missing := uint(4242)
	_, err = s.svc.AddRiskOfficer(s.ctx, alpha, service.PersonInput{Name: "Ghost", UserID: &missing})
	s.requireCode(err, apperr.CodeReferential)

	d, err := s.svc.AddDirector(s.ctx, alpha, service.PersonInput{Name: "Self", UserID: &alpha.ActorID})
	s.Require().NoError(err)
	s.True(d.Active)
}

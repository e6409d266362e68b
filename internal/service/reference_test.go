package service_test

import (
	"regtrack/internal/apperr"
	"regtrack/internal/models"
	"regtrack/internal/service"
)

func codes(reqs []models.Requirement) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.Code)
	}
	return out
}

func (s *ServiceSuite) TestListRequirementsFollowsSectionOrder() {
	s.seedCatalog()

	reqs, err := s.svc.ListRequirements(s.ctx, service.RequirementFilter{})
	s.Require().NoError(err)
	s.Equal([]string{
		"GOV-1", "GOV-2", "CYB-1",
		"CMP-1", "CMP-2", "CMP-3", "CMP-4", "CMP-ENT", "RSK-PRO",
	}, codes(reqs))
}

func (s *ServiceSuite) TestListRequirementsFilters() {
	s.seedCatalog()

	reqs, err := s.svc.ListRequirements(s.ctx, service.RequirementFilter{Module: models.ModuleCompliance})
	s.Require().NoError(err)
	s.Equal([]string{"CMP-1", "CMP-2", "CMP-3", "CMP-4", "CMP-ENT"}, codes(reqs))

	reqs, err = s.svc.ListRequirements(s.ctx, service.RequirementFilter{Tier: models.TierStarter})
	s.Require().NoError(err)
	s.NotContains(codes(reqs), "CMP-ENT")
	s.NotContains(codes(reqs), "RSK-PRO")
	s.Len(reqs, 7)

	_, err = s.svc.ListRequirements(s.ctx, service.RequirementFilter{Module: "payments"})
	s.requireCode(err, apperr.CodeValidation)
}

func (s *ServiceSuite) TestListRequirementsUsesLatestVersion() {
	s.seedCatalog()

	for _, version := range []string{"1.10.0", "1.9.0"} {
		reg := models.Regulation{Code: "CIRC-2024", Version: version, Title: "Operational resilience"}
		s.Require().NoError(s.db.Create(&reg).Error)
		sec := models.Section{RegulationID: reg.ID, Ref: "1", Title: "All", SortOrder: 1}
		s.Require().NoError(s.db.Create(&sec).Error)
		s.Require().NoError(s.db.Create(&models.Requirement{
			RegulationID: reg.ID,
			SectionID:    sec.ID,
			Code:         "V-" + version,
			Title:        version,
			Frequency:    models.FrequencyAnnual,
			Priority:     models.PriorityP0,
			MinTier:      models.TierStarter,
			Module:       models.ModuleGovernance,
		}).Error)
	}

	reqs, err := s.svc.ListRequirements(s.ctx, service.RequirementFilter{RegulationCode: "CIRC-2024"})
	s.Require().NoError(err)
	s.Equal([]string{"V-1.10.0"}, codes(reqs))

	regs, err := s.svc.ListRegulations(s.ctx)
	s.Require().NoError(err)
	s.Len(regs, 3, "older versions stay stored")
}

func (s *ServiceSuite) TestListRequirementsForTenant() {
	s.seedCatalog()
	tc, _ := s.onboard("alpha", models.LicenseBasic, models.TierPro)

	reqs, err := s.svc.ListRequirementsForTenant(s.ctx, tc, service.RequirementFilter{})
	s.Require().NoError(err)
	s.Equal([]string{"GOV-1", "GOV-2", "CMP-1", "CMP-2", "CMP-3", "CMP-4", "RSK-PRO"}, codes(reqs))

	reqs, err = s.svc.ListRequirementsForTenant(s.ctx, tc, service.RequirementFilter{Module: models.ModuleCyber})
	s.Require().NoError(err)
	s.Empty(reqs)

	reqs, err = s.svc.ListRequirementsForTenant(s.ctx, tc, service.RequirementFilter{Tier: models.TierEnterprise})
	s.Require().NoError(err)
	s.NotContains(codes(reqs), "CMP-ENT")
}

func (s *ServiceSuite) TestListSections() {
	reqs := s.seedCatalog()

	sections, err := s.svc.ListSections(s.ctx, reqs["GOV-1"].RegulationID)
	s.Require().NoError(err)
	s.Require().Len(sections, 2)
	s.Equal("A", sections[0].Ref)
	s.Equal("B", sections[1].Ref)

	_, err = s.svc.ListSections(s.ctx, 9999)
	s.requireCode(err, apperr.CodeNotFound)

	req, err := s.svc.GetRequirement(s.ctx, reqs["CYB-1"].ID)
	s.Require().NoError(err)
	s.Equal(models.ModuleCyber, req.Module)
}

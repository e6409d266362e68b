package service

import (
	"context"

	"github.com/Masterminds/semver/v3"
	"gorm.io/gorm"

	"regtrack/internal/apperr"
	"regtrack/internal/models"
)

// RequirementFilter narrows the shared reference graph. Zero fields match
// everything; Tier keeps requirements whose minimum tier it covers.
type RequirementFilter struct {
	Module         models.Module           `form:"module"`
	Tier           models.SubscriptionTier `form:"tier"`
	RegulationCode string                  `form:"regulation"`
}

func (f RequirementFilter) validate() error {
	if f.Module != "" && !f.Module.Valid() {
		return apperr.Newf(apperr.CodeValidation, "invalid module %q", f.Module)
	}
	if f.Tier != "" && !f.Tier.Valid() {
		return apperr.Newf(apperr.CodeValidation, "invalid subscription tier %q", f.Tier)
	}
	return nil
}

// requirementQuery is the resolved form of a filter against the store.
type requirementQuery struct {
	regulationIDs []uint
	modules       []models.Module
	tiers         []models.SubscriptionTier
}

// latestRegulations returns the id of the highest semantic version of every
// regulation, optionally restricted to one code.
func latestRegulations(tx *gorm.DB, code string) ([]uint, error) {
	var regs []models.Regulation
	q := tx.Select("id", "code", "version")
	if code != "" {
		q = q.Where("code = ?", code)
	}
	if err := q.Order("id").Find(&regs).Error; err != nil {
		return nil, err
	}

	type best struct {
		id      uint
		version *semver.Version
	}
	latest := map[string]best{}
	var order []string
	for _, r := range regs {
		v, err := semver.NewVersion(r.Version)
		if err != nil {
			// unparsable versions never win over a parsable one
			v = semver.MustParse("0.0.0")
		}
		cur, seen := latest[r.Code]
		if !seen {
			order = append(order, r.Code)
		}
		if !seen || v.GreaterThan(cur.version) {
			latest[r.Code] = best{id: r.ID, version: v}
		}
	}

	ids := make([]uint, 0, len(order))
	for _, c := range order {
		ids = append(ids, latest[c].id)
	}
	return ids, nil
}

func findRequirements(tx *gorm.DB, rq requirementQuery) ([]models.Requirement, error) {
	var reqs []models.Requirement
	if len(rq.regulationIDs) == 0 {
		return reqs, nil
	}
	q := tx.Model(&models.Requirement{}).
		Select("requirements.*").
		Joins("JOIN sections ON sections.id = requirements.section_id").
		Where("requirements.regulation_id IN ?", rq.regulationIDs)
	if rq.modules != nil {
		if len(rq.modules) == 0 {
			return reqs, nil
		}
		q = q.Where("requirements.module IN ?", rq.modules)
	}
	if rq.tiers != nil {
		if len(rq.tiers) == 0 {
			return reqs, nil
		}
		q = q.Where("requirements.min_tier IN ?", rq.tiers)
	}
	err := q.Order("requirements.regulation_id, sections.sort_order, requirements.id").Find(&reqs).Error
	return reqs, err
}

func resolveFilter(tx *gorm.DB, f RequirementFilter) (requirementQuery, error) {
	var rq requirementQuery
	ids, err := latestRegulations(tx, f.RegulationCode)
	if err != nil {
		return rq, err
	}
	rq.regulationIDs = ids
	if f.Module != "" {
		rq.modules = []models.Module{f.Module}
	}
	if f.Tier != "" {
		rq.tiers = models.TiersUpTo(f.Tier)
	}
	return rq, nil
}

// forTenant narrows rq to what the tenant's license and subscription see.
func (rq requirementQuery) forTenant(t models.Tenant) requirementQuery {
	licensed := t.LicenseTier.Modules()
	if rq.modules == nil {
		rq.modules = licensed
	} else {
		var keep []models.Module
		for _, m := range rq.modules {
			if t.LicenseTier.Includes(m) {
				keep = append(keep, m)
			}
		}
		rq.modules = append([]models.Module{}, keep...)
	}

	covered := models.TiersUpTo(t.SubscriptionTier)
	if rq.tiers == nil {
		rq.tiers = covered
	} else {
		var keep []models.SubscriptionTier
		for _, tier := range rq.tiers {
			if t.SubscriptionTier.Covers(tier) {
				keep = append(keep, tier)
			}
		}
		rq.tiers = append([]models.SubscriptionTier{}, keep...)
	}
	return rq
}

// ListRequirements lists the latest version of every matching regulation's
// requirements in authored order: regulation, section, then insertion.
func (s *Service) ListRequirements(ctx context.Context, f RequirementFilter) ([]models.Requirement, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	var reqs []models.Requirement
	err := s.inTx(ctx, "list_requirements", func(tx *gorm.DB) error {
		rq, err := resolveFilter(tx, f)
		if err != nil {
			return err
		}
		reqs, err = findRequirements(tx, rq)
		return err
	})
	return reqs, err
}

// ListRequirementsForTenant is ListRequirements restricted to the modules the
// tenant's license unlocks and the tiers its subscription covers.
func (s *Service) ListRequirementsForTenant(ctx context.Context, tc TenantContext, f RequirementFilter) ([]models.Requirement, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	var reqs []models.Requirement
	err := s.inTx(ctx, "list_requirements_for_tenant", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		rq, err := resolveFilter(tx, f)
		if err != nil {
			return err
		}
		reqs, err = findRequirements(tx, rq.forTenant(a.tenant))
		return err
	})
	return reqs, err
}

// ListRegulations returns every stored version, newest import last.
func (s *Service) ListRegulations(ctx context.Context) ([]models.Regulation, error) {
	var regs []models.Regulation
	err := s.inTx(ctx, "list_regulations", func(tx *gorm.DB) error {
		return tx.Order("code, id").Find(&regs).Error
	})
	return regs, err
}

func (s *Service) ListSections(ctx context.Context, regulationID uint) ([]models.Section, error) {
	var sections []models.Section
	err := s.inTx(ctx, "list_sections", func(tx *gorm.DB) error {
		var reg models.Regulation
		if err := tx.First(&reg, regulationID).Error; err != nil {
			return err
		}
		return tx.Where("regulation_id = ?", regulationID).Order("sort_order, id").Find(&sections).Error
	})
	return sections, err
}

func (s *Service) GetRequirement(ctx context.Context, id uint) (*models.Requirement, error) {
	var req models.Requirement
	err := s.inTx(ctx, "get_requirement", func(tx *gorm.DB) error {
		return tx.First(&req, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

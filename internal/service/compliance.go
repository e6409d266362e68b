package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"regtrack/internal/apperr"
	"regtrack/internal/models"
	"regtrack/internal/scoring"
)

type StatusUpdate struct {
	Status       models.ComplianceState `json:"status"`
	EvidenceRefs *[]string              `json:"evidence_refs,omitempty"`
	Notes        *string                `json:"notes,omitempty"`
}

// ModuleScore is recomputed from the current statuses on every call.
type ModuleScore struct {
	Module        models.Module `json:"module"`
	Pct           int           `json:"pct"`
	Compliant     int           `json:"compliant"`
	Applicable    int           `json:"applicable"`
	NotApplicable int           `json:"not_applicable"`
}

// visibleRequirement loads a requirement and checks that the tenant's license
// and subscription expose it.
func visibleRequirement(tx *gorm.DB, t models.Tenant, requirementID uint) (*models.Requirement, error) {
	var req models.Requirement
	if err := tx.Limit(1).Find(&req, requirementID).Error; err != nil {
		return nil, err
	}
	if req.ID == 0 {
		return nil, apperr.Newf(apperr.CodeReferential, "requirement %d not found", requirementID)
	}
	if !t.LicenseTier.Includes(req.Module) {
		return nil, apperr.Newf(apperr.CodeForbidden, "module %s is not licensed", req.Module)
	}
	if !t.SubscriptionTier.Covers(req.MinTier) {
		return nil, apperr.Newf(apperr.CodeForbidden, "requirement %s needs the %s tier", req.Code, req.MinTier)
	}
	return &req, nil
}

// ensureStatus inserts the (tenant, requirement) row unless it exists and
// returns the stored row. Concurrent callers converge on the unique index.
func ensureStatus(tx *gorm.DB, a *actor, req *models.Requirement, lock bool) (*models.ComplianceStatus, error) {
	row := models.ComplianceStatus{
		TenantID:      a.tenant.ID,
		RequirementID: req.ID,
		Status:        models.StatusNotStarted,
		EvidenceRefs:  []string{},
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "requirement_id"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 1 {
		if err := a.audit(tx, "compliance_status", row.ID, "create", map[string]any{
			"requirement_id": req.ID,
			"status":         row.Status,
		}); err != nil {
			return nil, err
		}
	}

	var stored models.ComplianceStatus
	q := scoped(tx, a.tenant.ID)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.Where("requirement_id = ?", req.ID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetOrCreateStatus is idempotent: repeated or concurrent calls for the same
// requirement return the same row.
func (s *Service) GetOrCreateStatus(ctx context.Context, tc TenantContext, requirementID uint) (*models.ComplianceStatus, error) {
	var st *models.ComplianceStatus
	err := s.inTx(ctx, "get_or_create_status", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		req, err := visibleRequirement(tx, a.tenant, requirementID)
		if err != nil {
			return err
		}
		st, err = ensureStatus(tx, a, req, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func cleanRefs(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// UpdateStatus records a review action. Reaching compliant or non_compliant
// stamps the review and schedules the next one from the requirement's
// frequency; one-time requirements are never rescheduled.
func (s *Service) UpdateStatus(ctx context.Context, tc TenantContext, requirementID uint, in StatusUpdate) (*models.ComplianceStatus, error) {
	if err := validEnum(in.Status.Valid(), "compliance status", in.Status); err != nil {
		return nil, err
	}
	var st *models.ComplianceStatus
	err := s.inTx(ctx, "update_status", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		req, err := visibleRequirement(tx, a.tenant, requirementID)
		if err != nil {
			return err
		}
		if st, err = ensureStatus(tx, a, req, true); err != nil {
			return err
		}

		from := st.Status
		st.Status = in.Status
		if in.EvidenceRefs != nil {
			st.EvidenceRefs = cleanRefs(*in.EvidenceRefs)
		}
		if in.Notes != nil {
			st.Notes = strings.TrimSpace(*in.Notes)
		}
		if in.Status.IsReviewOutcome() {
			now := s.clock()
			st.LastReviewedAt = &now
			st.NextReviewAt = req.Frequency.NextReview(now)
			st.ReviewedByID = a.userID()
		}
		if err := tx.Save(st).Error; err != nil {
			return err
		}
		return a.audit(tx, "compliance_status", st.ID, "status_change", map[string]any{
			"requirement_id": req.ID,
			"from":           from,
			"to":             st.Status,
			"evidence_refs":  st.EvidenceRefs,
		})
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// ListStatuses returns the tenant's status rows, optionally for one module.
func (s *Service) ListStatuses(ctx context.Context, tc TenantContext, module models.Module) ([]models.ComplianceStatus, error) {
	if module != "" && !module.Valid() {
		return nil, apperr.Newf(apperr.CodeValidation, "invalid module %q", module)
	}
	var out []models.ComplianceStatus
	err := s.inTx(ctx, "list_statuses", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		out, err = listStatuses(tx, a.tenant.ID, module)
		return err
	})
	return out, err
}

func listStatuses(tx *gorm.DB, tenantID uint, module models.Module) ([]models.ComplianceStatus, error) {
	var out []models.ComplianceStatus
	q := scoped(tx, tenantID).Model(&models.ComplianceStatus{}).Select("compliance_statuses.*")
	if module != "" {
		q = q.Joins("JOIN requirements ON requirements.id = compliance_statuses.requirement_id").
			Where("requirements.module = ?", module)
	}
	err := q.Order("compliance_statuses.requirement_id").Find(&out).Error
	return out, err
}

// DueForReview lists statuses whose next review falls on or before asOf,
// soonest first.
func (s *Service) DueForReview(ctx context.Context, tc TenantContext, asOf time.Time) ([]models.ComplianceStatus, error) {
	var due []models.ComplianceStatus
	err := s.inTx(ctx, "due_for_review", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		var all []models.ComplianceStatus
		if err := scoped(tx, a.tenant.ID).Where("next_review_at IS NOT NULL").Find(&all).Error; err != nil {
			return err
		}
		for _, st := range all {
			if !st.NextReviewAt.After(asOf) {
				due = append(due, st)
			}
		}
		sort.SliceStable(due, func(i, j int) bool {
			if !due[i].NextReviewAt.Equal(*due[j].NextReviewAt) {
				return due[i].NextReviewAt.Before(*due[j].NextReviewAt)
			}
			return due[i].ID < due[j].ID
		})
		return nil
	})
	return due, err
}

func moduleScore(tx *gorm.DB, t models.Tenant, module models.Module) (ModuleScore, error) {
	score := ModuleScore{Module: module}

	rq, err := resolveFilter(tx, RequirementFilter{Module: module})
	if err != nil {
		return score, err
	}
	reqs, err := findRequirements(tx, rq.forTenant(t))
	if err != nil {
		return score, err
	}
	ids := make([]uint, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.ID)
	}

	statuses := map[uint]models.ComplianceState{}
	if len(ids) > 0 {
		var rows []models.ComplianceStatus
		if err := scoped(tx, t.ID).Select("requirement_id", "status").
			Where("requirement_id IN ?", ids).Find(&rows).Error; err != nil {
			return score, err
		}
		for _, r := range rows {
			statuses[r.RequirementID] = r.Status
		}
	}

	tally := scoring.TallyModule(ids, statuses)
	score.Pct = tally.Pct()
	score.Compliant = tally.Compliant
	score.Applicable = tally.Applicable
	score.NotApplicable = tally.NotApplicable
	return score, nil
}

// ModulePct is the share of the module's applicable requirements the tenant
// reports as compliant. Requirements above the tenant's tier are excluded.
func (s *Service) ModulePct(ctx context.Context, tc TenantContext, module models.Module) (*ModuleScore, error) {
	if err := validEnum(module.Valid(), "module", module); err != nil {
		return nil, err
	}
	var score ModuleScore
	err := s.inTx(ctx, "module_pct", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		if !a.tenant.LicenseTier.Includes(module) {
			return apperr.Newf(apperr.CodeForbidden, "module %s is not licensed", module)
		}
		score, err = moduleScore(tx, a.tenant, module)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &score, nil
}

// ComplianceOverview scores every module the tenant is licensed for.
func (s *Service) ComplianceOverview(ctx context.Context, tc TenantContext) ([]ModuleScore, error) {
	var out []ModuleScore
	err := s.inTx(ctx, "compliance_overview", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		out, err = overview(tx, a.tenant)
		return err
	})
	return out, err
}

func overview(tx *gorm.DB, t models.Tenant) ([]ModuleScore, error) {
	var out []ModuleScore
	for _, m := range t.LicenseTier.Modules() {
		score, err := moduleScore(tx, t, m)
		if err != nil {
			return nil, err
		}
		out = append(out, score)
	}
	return out, nil
}

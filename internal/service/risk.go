package service

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"regtrack/internal/apperr"
	"regtrack/internal/models"
	"regtrack/internal/scoring"
)

type RiskInput struct {
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Category      models.RiskCategory `json:"category"`
	Probability   int                 `json:"probability"`
	Impact        int                 `json:"impact"`
	RequirementID *uint               `json:"requirement_id,omitempty"`
	OwnerID       *uint               `json:"owner_id,omitempty"`
}

func (in *RiskInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if err := requireText("title", in.Title); err != nil {
		return err
	}
	if err := validEnum(in.Category.Valid(), "risk category", in.Category); err != nil {
		return err
	}
	if err := models.ValidateScale("probability", in.Probability); err != nil {
		return err
	}
	return models.ValidateScale("impact", in.Impact)
}

// RiskView carries the derived levels next to the stored risk. Inherent and
// Residual are computed on read and never stored.
type RiskView struct {
	models.Risk
	Inherent int              `json:"inherent"`
	Residual int              `json:"residual"`
	Controls []models.Control `json:"controls"`
}

type RiskFilter struct {
	Status   models.RiskStatus   `form:"status"`
	Category models.RiskCategory `form:"category"`
}

type ControlInput struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Type        models.ControlType `json:"type"`
	Frequency   models.Frequency   `json:"frequency"`
	OwnerID     *uint              `json:"owner_id,omitempty"`
}

func (in *ControlInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if err := requireText("title", in.Title); err != nil {
		return err
	}
	if err := validEnum(in.Type.Valid(), "control type", in.Type); err != nil {
		return err
	}
	return validEnum(in.Frequency.Valid(), "frequency", in.Frequency)
}

// ====== RISKS ======

func (s *Service) CreateRisk(ctx context.Context, tc TenantContext, in RiskInput) (*models.Risk, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var risk models.Risk
	err := s.inTx(ctx, "create_risk", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		if err := requirementRef(tx, in.RequirementID); err != nil {
			return err
		}
		if err := ref[models.User](tx, a.tenant.ID, in.OwnerID, "owner"); err != nil {
			return err
		}
		risk = models.Risk{
			TenantID:      a.tenant.ID,
			Title:         in.Title,
			Description:   strings.TrimSpace(in.Description),
			Category:      in.Category,
			Probability:   in.Probability,
			Impact:        in.Impact,
			Status:        models.RiskOpen,
			RequirementID: in.RequirementID,
			OwnerID:       in.OwnerID,
		}
		if err := tx.Create(&risk).Error; err != nil {
			return err
		}
		return a.audit(tx, "risk", risk.ID, "create", map[string]any{
			"title":       risk.Title,
			"probability": risk.Probability,
			"impact":      risk.Impact,
		})
	})
	if err != nil {
		return nil, err
	}
	return &risk, nil
}

// UpdateRiskAssessment rescores a risk. RiskScore follows from the save hook.
func (s *Service) UpdateRiskAssessment(ctx context.Context, tc TenantContext, riskID uint, probability, impact int) (*models.Risk, error) {
	if err := models.ValidateScale("probability", probability); err != nil {
		return nil, err
	}
	if err := models.ValidateScale("impact", impact); err != nil {
		return nil, err
	}
	var risk *models.Risk
	err := s.inTx(ctx, "update_risk_assessment", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		if risk, err = loadForUpdate[models.Risk](tx, a.tenant.ID, riskID, "risk"); err != nil {
			return err
		}
		if risk.Status == models.RiskClosed {
			return apperr.New(apperr.CodeInvalidTransition, "a closed risk cannot be reassessed")
		}
		before := map[string]any{"probability": risk.Probability, "impact": risk.Impact, "risk_score": risk.RiskScore}
		risk.Probability = probability
		risk.Impact = impact
		if err := tx.Save(risk).Error; err != nil {
			return err
		}
		return a.audit(tx, "risk", risk.ID, "reassess", map[string]any{
			"from": before,
			"to":   map[string]any{"probability": risk.Probability, "impact": risk.Impact, "risk_score": risk.RiskScore},
		})
	})
	if err != nil {
		return nil, err
	}
	return risk, nil
}

func (s *Service) SetRiskStatus(ctx context.Context, tc TenantContext, riskID uint, status models.RiskStatus) (*models.Risk, error) {
	if err := validEnum(status.Valid(), "risk status", status); err != nil {
		return nil, err
	}
	var risk *models.Risk
	err := s.inTx(ctx, "set_risk_status", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		if risk, err = loadForUpdate[models.Risk](tx, a.tenant.ID, riskID, "risk"); err != nil {
			return err
		}
		if !risk.Status.CanTransitionTo(status) {
			return badTransition("risk", risk.Status, status)
		}
		from := risk.Status
		risk.Status = status
		if err := tx.Save(risk).Error; err != nil {
			return err
		}
		return a.audit(tx, "risk", risk.ID, "status_change", map[string]any{"from": from, "to": status})
	})
	if err != nil {
		return nil, err
	}
	return risk, nil
}

// linkedControls returns the controls linked to each of riskIDs, by risk.
func linkedControls(tx *gorm.DB, tenantID uint, riskIDs []uint) (map[uint][]models.Control, error) {
	out := make(map[uint][]models.Control, len(riskIDs))
	if len(riskIDs) == 0 {
		return out, nil
	}
	var links []models.RiskControl
	if err := scoped(tx, tenantID).Where("risk_id IN ?", riskIDs).Order("id").Find(&links).Error; err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return out, nil
	}
	controlIDs := make([]uint, 0, len(links))
	for _, l := range links {
		controlIDs = append(controlIDs, l.ControlID)
	}
	var controls []models.Control
	if err := scoped(tx, tenantID).Where("id IN ?", controlIDs).Find(&controls).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Control, len(controls))
	for _, c := range controls {
		byID[c.ID] = c
	}
	for _, l := range links {
		if c, ok := byID[l.ControlID]; ok {
			out[l.RiskID] = append(out[l.RiskID], c)
		}
	}
	return out, nil
}

func riskViews(tx *gorm.DB, tenantID uint, risks []models.Risk) ([]RiskView, error) {
	ids := make([]uint, 0, len(risks))
	for _, r := range risks {
		ids = append(ids, r.ID)
	}
	controls, err := linkedControls(tx, tenantID, ids)
	if err != nil {
		return nil, err
	}
	views := make([]RiskView, 0, len(risks))
	for _, r := range risks {
		linked := controls[r.ID]
		if linked == nil {
			linked = []models.Control{}
		}
		inherent, residual, err := scoring.RiskLevels(r, linked)
		if err != nil {
			return nil, err
		}
		views = append(views, RiskView{Risk: r, Inherent: inherent, Residual: residual, Controls: linked})
	}
	return views, nil
}

func (s *Service) GetRisk(ctx context.Context, tc TenantContext, riskID uint) (*RiskView, error) {
	var view RiskView
	err := s.inTx(ctx, "get_risk", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		risk, err := load[models.Risk](tx, a.tenant.ID, riskID, "risk")
		if err != nil {
			return err
		}
		views, err := riskViews(tx, a.tenant.ID, []models.Risk{*risk})
		if err != nil {
			return err
		}
		view = views[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// ListRisks orders by raw risk score, highest first.
func (s *Service) ListRisks(ctx context.Context, tc TenantContext, f RiskFilter) ([]RiskView, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Newf(apperr.CodeValidation, "invalid risk status %q", f.Status)
	}
	if f.Category != "" && !f.Category.Valid() {
		return nil, apperr.Newf(apperr.CodeValidation, "invalid risk category %q", f.Category)
	}
	var views []RiskView
	err := s.inTx(ctx, "list_risks", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		views, err = listRiskViews(tx, a.tenant.ID, f)
		return err
	})
	return views, err
}

func listRiskViews(tx *gorm.DB, tenantID uint, f RiskFilter) ([]RiskView, error) {
	q := scoped(tx, tenantID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	var risks []models.Risk
	if err := q.Order("risk_score DESC, id").Find(&risks).Error; err != nil {
		return nil, err
	}
	return riskViews(tx, tenantID, risks)
}

// ResidualRisk returns the 1–5 residual level of a risk from its current
// inputs.
func (s *Service) ResidualRisk(ctx context.Context, tc TenantContext, riskID uint) (int, error) {
	view, err := s.GetRisk(ctx, tc, riskID)
	if err != nil {
		return 0, err
	}
	return view.Residual, nil
}

// ====== CONTROLS ======

func (s *Service) CreateControl(ctx context.Context, tc TenantContext, in ControlInput) (*models.Control, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var c models.Control
	err := s.inTx(ctx, "create_control", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		if err := ref[models.User](tx, a.tenant.ID, in.OwnerID, "owner"); err != nil {
			return err
		}
		c = models.Control{
			TenantID:      a.tenant.ID,
			Title:         in.Title,
			Description:   strings.TrimSpace(in.Description),
			Type:          in.Type,
			Frequency:     in.Frequency,
			Effectiveness: models.EffectivenessUntested,
			OwnerID:       in.OwnerID,
		}
		if err := tx.Create(&c).Error; err != nil {
			return err
		}
		return a.audit(tx, "control", c.ID, "create", map[string]any{"title": c.Title, "type": c.Type})
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SetControlEffectiveness records a test result on the 1–5 scale. Residual
// levels of linked risks change with it because they are derived on read.
func (s *Service) SetControlEffectiveness(ctx context.Context, tc TenantContext, controlID uint, score int) (*models.Control, error) {
	eff, err := models.EffectivenessFromScore(score)
	if err != nil {
		return nil, err
	}
	return s.setEffectiveness(ctx, tc, "set_control_effectiveness", controlID, eff)
}

// MarkControlUntested withdraws a control's rating, for instance after a
// material change to the control.
func (s *Service) MarkControlUntested(ctx context.Context, tc TenantContext, controlID uint) (*models.Control, error) {
	return s.setEffectiveness(ctx, tc, "mark_control_untested", controlID, models.EffectivenessUntested)
}

func (s *Service) setEffectiveness(ctx context.Context, tc TenantContext, op string, controlID uint, eff models.Effectiveness) (*models.Control, error) {
	var c *models.Control
	err := s.inTx(ctx, op, func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		if c, err = loadForUpdate[models.Control](tx, a.tenant.ID, controlID, "control"); err != nil {
			return err
		}
		from := c.Effectiveness
		c.Effectiveness = eff
		if eff != models.EffectivenessUntested {
			now := s.clock()
			c.LastTestedAt = &now
		}
		if err := tx.Save(c).Error; err != nil {
			return err
		}
		return a.audit(tx, "control", c.ID, "effectiveness_change", map[string]any{"from": from, "to": eff})
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) ListControls(ctx context.Context, tc TenantContext) ([]models.Control, error) {
	var out []models.Control
	err := s.inTx(ctx, "list_controls", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		return scoped(tx, a.tenant.ID).Order("id").Find(&out).Error
	})
	return out, err
}

// ====== LINKS ======

// LinkControl attaches a control to a risk. Linking the same pair twice is a
// uniqueness violation, not a silent merge.
func (s *Service) LinkControl(ctx context.Context, tc TenantContext, riskID, controlID uint) (*models.RiskControl, error) {
	var link models.RiskControl
	err := s.inTx(ctx, "link_control", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		if _, err := load[models.Risk](tx, a.tenant.ID, riskID, "risk"); err != nil {
			return err
		}
		if _, err := load[models.Control](tx, a.tenant.ID, controlID, "control"); err != nil {
			return err
		}
		link = models.RiskControl{TenantID: a.tenant.ID, RiskID: riskID, ControlID: controlID}
		if err := tx.Create(&link).Error; err != nil {
			return err
		}
		return a.audit(tx, "risk", riskID, "link_control", map[string]any{"control_id": controlID})
	})
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (s *Service) UnlinkControl(ctx context.Context, tc TenantContext, riskID, controlID uint) error {
	return s.inTx(ctx, "unlink_control", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		if _, err := load[models.Risk](tx, a.tenant.ID, riskID, "risk"); err != nil {
			return err
		}
		if _, err := load[models.Control](tx, a.tenant.ID, controlID, "control"); err != nil {
			return err
		}
		res := scoped(tx, a.tenant.ID).
			Where("risk_id = ? AND control_id = ?", riskID, controlID).
			Delete(&models.RiskControl{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Newf(apperr.CodeNotFound, "control %d is not linked to risk %d", controlID, riskID)
		}
		return a.audit(tx, "risk", riskID, "unlink_control", map[string]any{"control_id": controlID})
	})
}

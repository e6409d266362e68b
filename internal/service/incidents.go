package service

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"regtrack/internal/models"
)

type IncidentInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Severity    models.Severity `json:"severity"`
	DetectedAt  *time.Time      `json:"detected_at,omitempty"`
	RiskID      *uint           `json:"risk_id,omitempty"`
}

// ReportIncident records a detected incident and leaves an incident_created
// notification for the dispatcher.
func (s *Service) ReportIncident(ctx context.Context, tc TenantContext, in IncidentInput) (*models.CyberIncident, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := requireText("title", in.Title); err != nil {
		return nil, err
	}
	if err := validEnum(in.Severity.Valid(), "severity", in.Severity); err != nil {
		return nil, err
	}
	var inc models.CyberIncident
	err := s.inTx(ctx, "report_incident", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		if err := ref[models.Risk](tx, a.tenant.ID, in.RiskID, "risk"); err != nil {
			return err
		}
		detected := s.clock()
		if in.DetectedAt != nil {
			detected = in.DetectedAt.UTC()
		}
		inc = models.CyberIncident{
			TenantID:    a.tenant.ID,
			Title:       in.Title,
			Description: strings.TrimSpace(in.Description),
			Severity:    in.Severity,
			Status:      models.IncidentDetected,
			DetectedAt:  detected,
			RiskID:      in.RiskID,
		}
		if err := tx.Create(&inc).Error; err != nil {
			return err
		}
		if err := a.audit(tx, "cyber_incident", inc.ID, "create", map[string]any{"title": inc.Title, "severity": inc.Severity}); err != nil {
			return err
		}
		return notify(tx, a.tenant.ID, models.NotifyIncidentCreated, "cyber_incident", inc.ID, map[string]any{
			"title":    inc.Title,
			"severity": inc.Severity,
		})
	})
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

// AdvanceIncident moves an incident forward. A target equal to or before the
// current state is accepted and changes nothing, so replayed updates are safe.
func (s *Service) AdvanceIncident(ctx context.Context, tc TenantContext, incidentID uint, status models.IncidentStatus) (*models.CyberIncident, error) {
	if err := validEnum(status.Valid(), "incident status", status); err != nil {
		return nil, err
	}
	var inc *models.CyberIncident
	err := s.inTx(ctx, "advance_incident", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		if inc, err = loadForUpdate[models.CyberIncident](tx, a.tenant.ID, incidentID, "cyber incident"); err != nil {
			return err
		}
		from := inc.Status
		if !inc.Advance(status, s.clock()) {
			return nil
		}
		if err := tx.Save(inc).Error; err != nil {
			return err
		}
		return a.audit(tx, "cyber_incident", inc.ID, "status_change", map[string]any{"from": from, "to": inc.Status})
	})
	if err != nil {
		return nil, err
	}
	return inc, nil
}

func (s *Service) ListIncidents(ctx context.Context, tc TenantContext) ([]models.CyberIncident, error) {
	var out []models.CyberIncident
	err := s.inTx(ctx, "list_incidents", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		return scoped(tx, a.tenant.ID).Order("detected_at DESC, id DESC").Find(&out).Error
	})
	return out, err
}

package service

import (
	"context"
	"math"
	"strings"

	"gorm.io/gorm"

	"regtrack/internal/apperr"
	"regtrack/internal/models"
)

type KRIInput struct {
	Name             string              `json:"name"`
	Unit             string              `json:"unit"`
	Direction        models.KRIDirection `json:"direction"`
	WarningThreshold float64             `json:"warning_threshold"`
	BreachThreshold  float64             `json:"breach_threshold"`
	RiskID           *uint               `json:"risk_id,omitempty"`
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (in *KRIInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if err := requireText("name", in.Name); err != nil {
		return err
	}
	if err := validEnum(in.Direction.Valid(), "kri direction", in.Direction); err != nil {
		return err
	}
	if !finite(in.WarningThreshold) || !finite(in.BreachThreshold) {
		return apperr.New(apperr.CodeValidation, "thresholds must be finite numbers")
	}
	if !in.Direction.ThresholdsOrdered(in.WarningThreshold, in.BreachThreshold) {
		return apperr.Newf(apperr.CodeValidation, "warning threshold must be reached before the breach threshold for direction %s", in.Direction)
	}
	return nil
}

func (s *Service) CreateKRI(ctx context.Context, tc TenantContext, in KRIInput) (*models.KRI, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var k models.KRI
	err := s.inTx(ctx, "create_kri", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		if err := ref[models.Risk](tx, a.tenant.ID, in.RiskID, "risk"); err != nil {
			return err
		}
		k = models.KRI{
			TenantID:         a.tenant.ID,
			Name:             in.Name,
			Unit:             strings.TrimSpace(in.Unit),
			Direction:        in.Direction,
			WarningThreshold: in.WarningThreshold,
			BreachThreshold:  in.BreachThreshold,
			Status:           models.KRIOk,
			RiskID:           in.RiskID,
		}
		if err := tx.Create(&k).Error; err != nil {
			return err
		}
		return a.audit(tx, "kri", k.ID, "create", map[string]any{"name": k.Name})
	})
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// RecordKRIValue stores a measurement and re-derives the status from the
// thresholds. Entering breach leaves a kri_breach notification; staying in
// breach does not repeat it.
func (s *Service) RecordKRIValue(ctx context.Context, tc TenantContext, kriID uint, value float64) (*models.KRI, error) {
	if !finite(value) {
		return nil, apperr.New(apperr.CodeValidation, "value must be a finite number")
	}
	var k *models.KRI
	err := s.inTx(ctx, "record_kri_value", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		if k, err = loadForUpdate[models.KRI](tx, a.tenant.ID, kriID, "kri"); err != nil {
			return err
		}
		from := k.Status
		now := s.clock()
		v := value
		k.CurrentValue = &v
		k.LastMeasuredAt = &now
		k.Status = k.Evaluate(value)
		if err := tx.Save(k).Error; err != nil {
			return err
		}
		if err := a.audit(tx, "kri", k.ID, "measure", map[string]any{"value": value, "from": from, "to": k.Status}); err != nil {
			return err
		}
		if k.Status == models.KRIBreach && from != models.KRIBreach {
			return notify(tx, a.tenant.ID, models.NotifyKRIBreach, "kri", k.ID, map[string]any{
				"name":      k.Name,
				"value":     value,
				"threshold": k.BreachThreshold,
				"direction": k.Direction,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return k, nil
}

func (s *Service) ListKRIs(ctx context.Context, tc TenantContext) ([]models.KRI, error) {
	var out []models.KRI
	err := s.inTx(ctx, "list_kris", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		return scoped(tx, a.tenant.ID).Order("id").Find(&out).Error
	})
	return out, err
}

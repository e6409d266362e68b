package service

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"regtrack/internal/models"
)

type VendorInput struct {
	Name        string          `json:"name"`
	Service     string          `json:"service"`
	Criticality models.Severity `json:"criticality"`
	ContractEnd *time.Time      `json:"contract_end,omitempty"`
}

func (s *Service) CreateVendor(ctx context.Context, tc TenantContext, in VendorInput) (*models.Vendor, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := requireText("vendor name", in.Name); err != nil {
		return nil, err
	}
	if err := validEnum(in.Criticality.Valid(), "criticality", in.Criticality); err != nil {
		return nil, err
	}
	var v models.Vendor
	err := s.inTx(ctx, "create_vendor", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		v = models.Vendor{
			TenantID:    a.tenant.ID,
			Name:        in.Name,
			Service:     strings.TrimSpace(in.Service),
			Criticality: in.Criticality,
			Status:      models.VendorActive,
			ContractEnd: in.ContractEnd,
		}
		if err := tx.Create(&v).Error; err != nil {
			return err
		}
		return a.audit(tx, "vendor", v.ID, "create", map[string]any{"name": v.Name, "criticality": v.Criticality})
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Service) SetVendorStatus(ctx context.Context, tc TenantContext, vendorID uint, status models.VendorStatus) (*models.Vendor, error) {
	if err := validEnum(status.Valid(), "vendor status", status); err != nil {
		return nil, err
	}
	var v *models.Vendor
	err := s.inTx(ctx, "set_vendor_status", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		if v, err = loadForUpdate[models.Vendor](tx, a.tenant.ID, vendorID, "vendor"); err != nil {
			return err
		}
		if !v.Status.CanTransitionTo(status) {
			return badTransition("vendor", v.Status, status)
		}
		from := v.Status
		v.Status = status
		if err := tx.Save(v).Error; err != nil {
			return err
		}
		return a.audit(tx, "vendor", v.ID, "status_change", map[string]any{"from": from, "to": status})
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) ListVendors(ctx context.Context, tc TenantContext) ([]models.Vendor, error) {
	var out []models.Vendor
	err := s.inTx(ctx, "list_vendors", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		return scoped(tx, a.tenant.ID).Order("name, id").Find(&out).Error
	})
	return out, err
}

package service

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"regtrack/internal/apperr"
	"regtrack/internal/models"
)

// ====== LOSS EVENTS ======

type LossEventInput struct {
	Title           string              `json:"title"`
	Category        models.RiskCategory `json:"category"`
	GrossAmount     int64               `json:"gross_amount"`
	RecoveredAmount int64               `json:"recovered_amount"`
	Currency        string              `json:"currency"`
	OccurredAt      time.Time           `json:"occurred_at"`
	RiskID          *uint               `json:"risk_id,omitempty"`
}

func (in *LossEventInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if err := requireText("title", in.Title); err != nil {
		return err
	}
	if err := validEnum(in.Category.Valid(), "risk category", in.Category); err != nil {
		return err
	}
	if in.GrossAmount < 0 || in.RecoveredAmount < 0 {
		return apperr.New(apperr.CodeValidation, "amounts cannot be negative")
	}
	if in.RecoveredAmount > in.GrossAmount {
		return apperr.New(apperr.CodeValidation, "recovered amount exceeds gross amount")
	}
	if len(in.Currency) != 3 {
		return apperr.Newf(apperr.CodeValidation, "invalid currency %q", in.Currency)
	}
	for _, r := range in.Currency {
		if r < 'A' || r > 'Z' {
			return apperr.Newf(apperr.CodeValidation, "invalid currency %q", in.Currency)
		}
	}
	if in.OccurredAt.IsZero() {
		return apperr.New(apperr.CodeValidation, "occurred at is required")
	}
	in.OccurredAt = in.OccurredAt.UTC()
	return nil
}

func (s *Service) RecordLossEvent(ctx context.Context, tc TenantContext, in LossEventInput) (*models.LossEvent, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var ev models.LossEvent
	err := s.inTx(ctx, "record_loss_event", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		if err := ref[models.Risk](tx, a.tenant.ID, in.RiskID, "risk"); err != nil {
			return err
		}
		ev = models.LossEvent{
			TenantID:        a.tenant.ID,
			Title:           in.Title,
			Category:        in.Category,
			GrossAmount:     in.GrossAmount,
			RecoveredAmount: in.RecoveredAmount,
			Currency:        in.Currency,
			OccurredAt:      in.OccurredAt,
			Status:          models.LossReported,
			RiskID:          in.RiskID,
		}
		if err := tx.Create(&ev).Error; err != nil {
			return err
		}
		return a.audit(tx, "loss_event", ev.ID, "create", map[string]any{
			"gross_amount": ev.GrossAmount,
			"currency":     ev.Currency,
			"risk_id":      ev.RiskID,
		})
	})
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *Service) SetLossEventStatus(ctx context.Context, tc TenantContext, id uint, status models.LossEventStatus) (*models.LossEvent, error) {
	if err := validEnum(status.Valid(), "loss event status", status); err != nil {
		return nil, err
	}
	var ev *models.LossEvent
	err := s.inTx(ctx, "set_loss_event_status", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		if ev, err = loadForUpdate[models.LossEvent](tx, a.tenant.ID, id, "loss event"); err != nil {
			return err
		}
		if !ev.Status.CanTransitionTo(status) {
			return badTransition("loss event", ev.Status, status)
		}
		from := ev.Status
		ev.Status = status
		if err := tx.Save(ev).Error; err != nil {
			return err
		}
		return a.audit(tx, "loss_event", ev.ID, "status_change", map[string]any{"from": from, "to": status})
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *Service) ListLossEvents(ctx context.Context, tc TenantContext) ([]models.LossEvent, error) {
	var out []models.LossEvent
	err := s.inTx(ctx, "list_loss_events", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		return scoped(tx, a.tenant.ID).Order("occurred_at DESC, id DESC").Find(&out).Error
	})
	return out, err
}

// ====== SECURITY TESTING ======

type PenTestInput struct {
	Title    string `json:"title"`
	Provider string `json:"provider"`
}

func (s *Service) RecordPenTest(ctx context.Context, tc TenantContext, in PenTestInput) (*models.PenTest, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := requireText("title", in.Title); err != nil {
		return nil, err
	}
	var pt models.PenTest
	err := s.inTx(ctx, "record_pen_test", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		pt = models.PenTest{
			TenantID: a.tenant.ID,
			Title:    in.Title,
			Provider: strings.TrimSpace(in.Provider),
			Status:   models.PenTestPlanned,
		}
		if err := tx.Create(&pt).Error; err != nil {
			return err
		}
		return a.audit(tx, "pen_test", pt.ID, "create", map[string]any{"title": pt.Title})
	})
	if err != nil {
		return nil, err
	}
	return &pt, nil
}

// SetPenTestStatus moves a test forward. Findings are recorded with the move
// to completed and stamp the performed date.
func (s *Service) SetPenTestStatus(ctx context.Context, tc TenantContext, id uint, status models.PenTestStatus, findings *models.FindingCounts) (*models.PenTest, error) {
	if err := validEnum(status.Valid(), "pen test status", status); err != nil {
		return nil, err
	}
	if findings != nil && !findings.Valid() {
		return nil, apperr.New(apperr.CodeValidation, "finding counts cannot be negative")
	}
	if findings != nil && status != models.PenTestCompleted {
		return nil, apperr.New(apperr.CodeValidation, "findings are recorded when the test completes")
	}
	var pt *models.PenTest
	err := s.inTx(ctx, "set_pen_test_status", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		if pt, err = loadForUpdate[models.PenTest](tx, a.tenant.ID, id, "pen test"); err != nil {
			return err
		}
		if !pt.Status.CanTransitionTo(status) {
			return badTransition("pen test", pt.Status, status)
		}
		from := pt.Status
		pt.Status = status
		if status == models.PenTestCompleted {
			now := s.clock()
			pt.PerformedAt = &now
			if findings != nil {
				pt.Findings = *findings
			}
		}
		if err := tx.Save(pt).Error; err != nil {
			return err
		}
		return a.audit(tx, "pen_test", pt.ID, "status_change", map[string]any{"from": from, "to": status})
	})
	if err != nil {
		return nil, err
	}
	return pt, nil
}

func (s *Service) ListPenTests(ctx context.Context, tc TenantContext) ([]models.PenTest, error) {
	var out []models.PenTest
	err := s.inTx(ctx, "list_pen_tests", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		return scoped(tx, a.tenant.ID).Order("id DESC").Find(&out).Error
	})
	return out, err
}

type VulnScanInput struct {
	Scanner   string               `json:"scanner"`
	Target    string               `json:"target"`
	ScannedAt time.Time            `json:"scanned_at"`
	Findings  models.FindingCounts `json:"findings"`
}

func (s *Service) RecordVulnScan(ctx context.Context, tc TenantContext, in VulnScanInput) (*models.VulnScan, error) {
	in.Scanner = strings.TrimSpace(in.Scanner)
	in.Target = strings.TrimSpace(in.Target)
	if err := requireText("scanner", in.Scanner); err != nil {
		return nil, err
	}
	if err := requireText("target", in.Target); err != nil {
		return nil, err
	}
	if !in.Findings.Valid() {
		return nil, apperr.New(apperr.CodeValidation, "finding counts cannot be negative")
	}
	var scan models.VulnScan
	err := s.inTx(ctx, "record_vuln_scan", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		scanned := in.ScannedAt.UTC()
		if in.ScannedAt.IsZero() {
			scanned = s.clock()
		}
		scan = models.VulnScan{
			TenantID:  a.tenant.ID,
			Scanner:   in.Scanner,
			Target:    in.Target,
			ScannedAt: scanned,
			Findings:  in.Findings,
		}
		if err := tx.Create(&scan).Error; err != nil {
			return err
		}
		return a.audit(tx, "vuln_scan", scan.ID, "create", map[string]any{
			"target":   scan.Target,
			"critical": scan.Findings.Critical,
			"high":     scan.Findings.High,
		})
	})
	if err != nil {
		return nil, err
	}
	return &scan, nil
}

func (s *Service) ListVulnScans(ctx context.Context, tc TenantContext) ([]models.VulnScan, error) {
	var out []models.VulnScan
	err := s.inTx(ctx, "list_vuln_scans", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		return scoped(tx, a.tenant.ID).Order("scanned_at DESC, id DESC").Find(&out).Error
	})
	return out, err
}

// ====== DOCUMENTS ======

type DocumentInput struct {
	Title   string              `json:"title"`
	Kind    models.DocumentKind `json:"kind"`
	Version string              `json:"version"`
	OwnerID *uint               `json:"owner_id,omitempty"`
}

func (s *Service) CreateDocument(ctx context.Context, tc TenantContext, in DocumentInput) (*models.Document, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := requireText("title", in.Title); err != nil {
		return nil, err
	}
	if err := validEnum(in.Kind.Valid(), "document kind", in.Kind); err != nil {
		return nil, err
	}
	var doc models.Document
	err := s.inTx(ctx, "create_document", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		if err := ref[models.User](tx, a.tenant.ID, in.OwnerID, "owner"); err != nil {
			return err
		}
		doc = models.Document{
			TenantID: a.tenant.ID,
			Title:    in.Title,
			Kind:     in.Kind,
			Version:  strings.TrimSpace(in.Version),
			Status:   models.DocumentDraft,
			OwnerID:  in.OwnerID,
		}
		if err := tx.Create(&doc).Error; err != nil {
			return err
		}
		return a.audit(tx, "document", doc.ID, "create", map[string]any{"title": doc.Title, "kind": doc.Kind})
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Service) SetDocumentStatus(ctx context.Context, tc TenantContext, id uint, status models.DocumentStatus) (*models.Document, error) {
	if err := validEnum(status.Valid(), "document status", status); err != nil {
		return nil, err
	}
	var doc *models.Document
	err := s.inTx(ctx, "set_document_status", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		if doc, err = loadForUpdate[models.Document](tx, a.tenant.ID, id, "document"); err != nil {
			return err
		}
		if !doc.Status.CanTransitionTo(status) {
			return badTransition("document", doc.Status, status)
		}
		from := doc.Status
		doc.Status = status
		if err := tx.Save(doc).Error; err != nil {
			return err
		}
		return a.audit(tx, "document", doc.ID, "status_change", map[string]any{"from": from, "to": status})
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Service) ListDocuments(ctx context.Context, tc TenantContext) ([]models.Document, error) {
	var out []models.Document
	err := s.inTx(ctx, "list_documents", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		return scoped(tx, a.tenant.ID).Order("id").Find(&out).Error
	})
	return out, err
}

package service

import (
	"context"

	"gorm.io/gorm"

	"regtrack/internal/models"
)

const (
	defaultAuditLimit = 200
	maxAuditLimit     = 1000
)

// ListAuditLog returns the tenant's most recent audit records. The log has
// no update or delete path.
func (s *Service) ListAuditLog(ctx context.Context, tc TenantContext, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	var logs []models.AuditLog
	err := s.inTx(ctx, "list_audit_log", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permAudit)
		if err != nil {
			return err
		}
		return scoped(tx, a.tenant.ID).
			Order("created_at DESC, id DESC").
			Limit(limit).
			Find(&logs).Error
	})
	return logs, err
}

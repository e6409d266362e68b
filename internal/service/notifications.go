package service

import (
	"context"

	"gorm.io/gorm"

	"regtrack/internal/apperr"
	"regtrack/internal/models"
)

// PendingNotifications returns undelivered outbox rows across all tenants,
// oldest first. It serves the dispatcher relay and has no tenant context.
func (s *Service) PendingNotifications(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []models.Notification
	err := s.inTx(ctx, "pending_notifications", func(tx *gorm.DB) error {
		return tx.Where("delivered_at IS NULL").Order("id").Limit(limit).Find(&out).Error
	})
	return out, err
}

// MarkNotificationDelivered stamps a row once the relay has published it.
// Marking an already delivered row keeps the first timestamp.
func (s *Service) MarkNotificationDelivered(ctx context.Context, id uint) error {
	return s.inTx(ctx, "mark_notification_delivered", func(tx *gorm.DB) error {
		res := tx.Model(&models.Notification{}).
			Where("id = ? AND delivered_at IS NULL", id).
			Update("delivered_at", s.clock())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.Notification{}).Where("id = ?", id).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return apperr.Newf(apperr.CodeNotFound, "notification %d not found", id)
			}
		}
		return nil
	})
}

// ListNotifications shows the tenant's outbox, newest first.
func (s *Service) ListNotifications(ctx context.Context, tc TenantContext, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []models.Notification
	err := s.inTx(ctx, "list_notifications", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		return scoped(tx, a.tenant.ID).Order("id DESC").Limit(limit).Find(&out).Error
	})
	return out, err
}

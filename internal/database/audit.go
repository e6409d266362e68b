package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"regtrack/internal/models"
)

// AppendAudit writes an audit record on tx. It must run inside the same
// transaction as the change it records so both commit or neither does.
func AppendAudit(tx *gorm.DB, tenantID uint, actorID *uint, entity string, entityID uint, action string, details map[string]any) error {
	record := models.AuditLog{
		TenantID: tenantID,
		ActorID:  actorID,
		Entity:   entity,
		EntityID: entityID,
		Action:   action,
		Details:  datatypes.JSONMap(details),
	}
	return tx.Create(&record).Error
}

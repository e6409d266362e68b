package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog is append-only; no code path updates or deletes a row.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	TenantID uint    `gorm:"not null;index" json:"tenant_id"`
	Tenant   *Tenant `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ActorID  *uint   `json:"actor_id,omitempty"`
	Actor    *User   `gorm:"constraint:OnDelete:SET NULL" json:"-"`

	Entity   string            `gorm:"size:50;not null" json:"entity"` // "risk", "control", "task" ...
	EntityID uint              `json:"entity_id"`
	Action   string            `gorm:"size:50;not null" json:"action"` // "create", "status_change" ...
	Details  datatypes.JSONMap `json:"details,omitempty"`
}

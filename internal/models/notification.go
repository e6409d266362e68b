package models

import (
	"time"

	"gorm.io/datatypes"
)

type NotificationKind string

const (
	NotifyTaskOverdue       NotificationKind = "task_overdue"
	NotifyKRIBreach         NotificationKind = "kri_breach"
	NotifyIncidentCreated   NotificationKind = "incident_created"
	NotifyApprovalRequested NotificationKind = "protocol_approval_requested"
)

func (k NotificationKind) Valid() bool {
	return oneOf(k, NotifyTaskOverdue, NotifyKRIBreach, NotifyIncidentCreated, NotifyApprovalRequested)
}

// Notification is the outbox row a state transition leaves for the dispatcher.
// DeliveredAt stays nil until a relay has published it.
type Notification struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time         `json:"created_at"`
	TenantID    uint              `gorm:"not null;index" json:"tenant_id"`
	Tenant      *Tenant           `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Kind        NotificationKind  `gorm:"type:varchar(40);not null;check:kind IN ('task_overdue','kri_breach','incident_created','protocol_approval_requested')" json:"kind"`
	Entity      string            `gorm:"size:50;not null" json:"entity"`
	EntityID    uint              `json:"entity_id"`
	Payload     datatypes.JSONMap `json:"payload,omitempty"`
	DeliveredAt *time.Time        `gorm:"index" json:"delivered_at,omitempty"`
}

package models

import "time"

// Base holds the columns every table shares.
type Base struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func oneOf[T ~string](v T, set ...T) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}

// All lists every persisted model in migration order.
func All() []any {
	return []any{
		&Tenant{},
		&User{},
		&Director{},
		&RiskOfficer{},
		&Regulation{},
		&Section{},
		&Requirement{},
		&ComplianceStatus{},
		&Risk{},
		&Control{},
		&RiskControl{},
		&Task{},
		&CyberIncident{},
		&Vendor{},
		&LossEvent{},
		&PenTest{},
		&VulnScan{},
		&Document{},
		&KRI{},
		&BoardMeeting{},
		&BoardDecision{},
		&ProtocolApproval{},
		&AuditLog{},
		&Notification{},
	}
}

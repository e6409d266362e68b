package models

import "time"

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"

	// TaskOverdue is a read-side label only; it is never stored.
	TaskOverdue = "overdue"
)

func (s TaskStatus) Valid() bool {
	return oneOf(s, TaskPending, TaskInProgress, TaskCompleted)
}

func (s TaskStatus) rank() int {
	switch s {
	case TaskPending:
		return 1
	case TaskInProgress:
		return 2
	case TaskCompleted:
		return 3
	default:
		return 0
	}
}

// CanTransitionTo moves one step at a time: pending → in_progress → completed.
// A task cannot be completed without first being started.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	return next.Valid() && next.rank() == s.rank()+1
}

type Task struct {
	Base
	TenantID          uint         `gorm:"not null;index" json:"tenant_id"`
	Tenant            *Tenant      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Title             string       `gorm:"size:255;not null" json:"title"`
	Description       string       `gorm:"type:text" json:"description"`
	DueDate           time.Time    `gorm:"not null;index" json:"due_date"`
	Status            TaskStatus   `gorm:"type:varchar(20);not null;check:status IN ('pending','in_progress','completed')" json:"status"`
	AssigneeID        *uint        `json:"assignee_id,omitempty"`
	Assignee          *User        `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	RiskID            *uint        `gorm:"index" json:"risk_id,omitempty"`
	Risk              *Risk        `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	RequirementID     *uint        `json:"requirement_id,omitempty"`
	Requirement       *Requirement `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	CompletedAt       *time.Time   `json:"completed_at,omitempty"`
	OverdueNotifiedAt *time.Time   `json:"overdue_notified_at,omitempty"`
}

// IsOverdue is derived on every read: past due and not completed.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Status != TaskCompleted && now.After(t.DueDate)
}

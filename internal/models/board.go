package models

import "time"

type MeetingStatus string
type DecisionStatus string
type ApprovalState string

const (
	MeetingScheduled MeetingStatus = "scheduled"
	MeetingCompleted MeetingStatus = "completed"
	MeetingCancelled MeetingStatus = "cancelled"

	DecisionPending    DecisionStatus = "pending"
	DecisionInProgress DecisionStatus = "in_progress"
	DecisionDone       DecisionStatus = "done"

	ApprovalPending   ApprovalState = "pending"
	ApprovalApproved  ApprovalState = "approved"
	ApprovalCommented ApprovalState = "commented"
	ApprovalRejected  ApprovalState = "rejected"
)

func (s MeetingStatus) Valid() bool {
	return oneOf(s, MeetingScheduled, MeetingCompleted, MeetingCancelled)
}

// CanTransitionTo: scheduled → completed | cancelled, both terminal.
func (s MeetingStatus) CanTransitionTo(next MeetingStatus) bool {
	switch s {
	case MeetingScheduled:
		return next == MeetingCompleted || next == MeetingCancelled
	case MeetingCompleted, MeetingCancelled:
		return false
	default:
		return false
	}
}

func (s DecisionStatus) Valid() bool { return s.rank() > 0 }

func (s DecisionStatus) rank() int {
	switch s {
	case DecisionPending:
		return 1
	case DecisionInProgress:
		return 2
	case DecisionDone:
		return 3
	default:
		return 0
	}
}

// CanTransitionTo moves one step at a time: pending → in_progress → done.
func (s DecisionStatus) CanTransitionTo(next DecisionStatus) bool {
	return next.Valid() && next.rank() == s.rank()+1
}

func (s ApprovalState) Valid() bool {
	return oneOf(s, ApprovalPending, ApprovalApproved, ApprovalCommented, ApprovalRejected)
}

// NeedsComment reports whether a director must explain the state.
func (s ApprovalState) NeedsComment() bool {
	switch s {
	case ApprovalCommented, ApprovalRejected:
		return true
	case ApprovalPending, ApprovalApproved:
		return false
	default:
		return false
	}
}

// Director is a board member. UserID optionally ties the director to a login
// so they can sign protocols themselves.
type Director struct {
	Base
	TenantID uint    `gorm:"not null;index" json:"tenant_id"`
	Tenant   *Tenant `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Name     string  `gorm:"size:255;not null" json:"name"`
	Email    string  `gorm:"size:255" json:"email"`
	Active   bool    `gorm:"not null;default:true" json:"active"`
	UserID   *uint   `json:"user_id,omitempty"`
	User     *User   `gorm:"constraint:OnDelete:SET NULL" json:"-"`
}

type BoardMeeting struct {
	Base
	TenantID    uint          `gorm:"not null;index" json:"tenant_id"`
	Tenant      *Tenant       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Title       string        `gorm:"size:255;not null" json:"title"`
	ScheduledAt time.Time     `gorm:"not null" json:"scheduled_at"`
	Status      MeetingStatus `gorm:"type:varchar(20);not null;check:status IN ('scheduled','completed','cancelled')" json:"status"`
	Minutes     string        `gorm:"type:text" json:"minutes"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

type BoardDecision struct {
	Base
	TenantID    uint           `gorm:"not null;index" json:"tenant_id"`
	Tenant      *Tenant        `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	MeetingID   uint           `gorm:"not null;index" json:"meeting_id"`
	Meeting     *BoardMeeting  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Status      DecisionStatus `gorm:"type:varchar(20);not null;check:status IN ('pending','in_progress','done')" json:"status"`
	TaskID      *uint          `json:"task_id,omitempty"`
	Task        *Task          `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	DueDate     *time.Time     `json:"due_date,omitempty"`
}

// ProtocolApproval is one director's sign-off on a meeting's minutes; one row
// per (meeting, director).
type ProtocolApproval struct {
	Base
	TenantID   uint          `gorm:"not null;index" json:"tenant_id"`
	Tenant     *Tenant       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	MeetingID  uint          `gorm:"not null;uniqueIndex:idx_protocol_meeting_director,priority:1" json:"meeting_id"`
	Meeting    *BoardMeeting `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	DirectorID uint          `gorm:"not null;uniqueIndex:idx_protocol_meeting_director,priority:2" json:"director_id"`
	Director   *Director     `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	State      ApprovalState `gorm:"type:varchar(20);not null;check:state IN ('pending','approved','commented','rejected')" json:"state"`
	Comment    string        `gorm:"type:text" json:"comment"`
	DecidedAt  *time.Time    `json:"decided_at,omitempty"`
}

package service

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"regtrack/internal/apperr"
	"regtrack/internal/models"
	"regtrack/internal/scoring"
)

type MeetingInput struct {
	Title       string    `json:"title"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// DecisionInput optionally ties the decision to an execution task: either an
// existing one by TaskID or a new one described by Task.
type DecisionInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	TaskID      *uint      `json:"task_id,omitempty"`
	Task        *TaskInput `json:"task,omitempty"`
}

// ProtocolSummary is the fan-in over a meeting's approvals, computed from
// every row on each call.
type ProtocolSummary struct {
	MeetingID uint                      `json:"meeting_id"`
	Approved  bool                      `json:"approved"`
	Total     int                       `json:"total"`
	Approvals int                       `json:"approvals"`
	Commented int                       `json:"commented"`
	Rejected  int                       `json:"rejected"`
	Pending   int                       `json:"pending"`
	Rows      []models.ProtocolApproval `json:"rows"`
}

type MeetingView struct {
	models.BoardMeeting
	Decisions []models.BoardDecision `json:"decisions"`
	Protocol  ProtocolSummary        `json:"protocol"`
}

// ====== MEETINGS ======

func (s *Service) ScheduleMeeting(ctx context.Context, tc TenantContext, in MeetingInput) (*models.BoardMeeting, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := requireText("title", in.Title); err != nil {
		return nil, err
	}
	if in.ScheduledAt.IsZero() {
		return nil, apperr.New(apperr.CodeValidation, "scheduled at is required")
	}
	var m models.BoardMeeting
	err := s.inTx(ctx, "schedule_meeting", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		m = models.BoardMeeting{
			TenantID:    a.tenant.ID,
			Title:       in.Title,
			ScheduledAt: in.ScheduledAt.UTC(),
			Status:      models.MeetingScheduled,
		}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		return a.audit(tx, "board_meeting", m.ID, "create", map[string]any{"title": m.Title, "scheduled_at": m.ScheduledAt})
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) CompleteMeeting(ctx context.Context, tc TenantContext, meetingID uint, minutes string) (*models.BoardMeeting, error) {
	return s.closeMeeting(ctx, tc, "complete_meeting", meetingID, models.MeetingCompleted, strings.TrimSpace(minutes))
}

func (s *Service) CancelMeeting(ctx context.Context, tc TenantContext, meetingID uint) (*models.BoardMeeting, error) {
	return s.closeMeeting(ctx, tc, "cancel_meeting", meetingID, models.MeetingCancelled, "")
}

func (s *Service) closeMeeting(ctx context.Context, tc TenantContext, op string, meetingID uint, status models.MeetingStatus, minutes string) (*models.BoardMeeting, error) {
	var m *models.BoardMeeting
	err := s.inTx(ctx, op, func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		if m, err = loadForUpdate[models.BoardMeeting](tx, a.tenant.ID, meetingID, "board meeting"); err != nil {
			return err
		}
		if !m.Status.CanTransitionTo(status) {
			return badTransition("board meeting", m.Status, status)
		}
		from := m.Status
		m.Status = status
		if status == models.MeetingCompleted {
			now := s.clock()
			m.CompletedAt = &now
			m.Minutes = minutes
		}
		if err := tx.Save(m).Error; err != nil {
			return err
		}
		return a.audit(tx, "board_meeting", m.ID, "status_change", map[string]any{"from": from, "to": status})
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) ListMeetings(ctx context.Context, tc TenantContext) ([]models.BoardMeeting, error) {
	var out []models.BoardMeeting
	err := s.inTx(ctx, "list_meetings", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		return scoped(tx, a.tenant.ID).Order("scheduled_at DESC, id DESC").Find(&out).Error
	})
	return out, err
}

func (s *Service) GetMeeting(ctx context.Context, tc TenantContext, meetingID uint) (*MeetingView, error) {
	var view MeetingView
	err := s.inTx(ctx, "get_meeting", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		m, err := load[models.BoardMeeting](tx, a.tenant.ID, meetingID, "board meeting")
		if err != nil {
			return err
		}
		views, err := meetingViews(tx, a.tenant.ID, []models.BoardMeeting{*m})
		if err != nil {
			return err
		}
		view = views[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func meetingViews(tx *gorm.DB, tenantID uint, meetings []models.BoardMeeting) ([]MeetingView, error) {
	ids := make([]uint, 0, len(meetings))
	for _, m := range meetings {
		ids = append(ids, m.ID)
	}
	decisions := map[uint][]models.BoardDecision{}
	approvals := map[uint][]models.ProtocolApproval{}
	if len(ids) > 0 {
		var ds []models.BoardDecision
		if err := scoped(tx, tenantID).Where("meeting_id IN ?", ids).Order("id").Find(&ds).Error; err != nil {
			return nil, err
		}
		for _, d := range ds {
			decisions[d.MeetingID] = append(decisions[d.MeetingID], d)
		}
		var as []models.ProtocolApproval
		if err := scoped(tx, tenantID).Where("meeting_id IN ?", ids).Order("director_id").Find(&as).Error; err != nil {
			return nil, err
		}
		for _, ap := range as {
			approvals[ap.MeetingID] = append(approvals[ap.MeetingID], ap)
		}
	}
	out := make([]MeetingView, 0, len(meetings))
	for _, m := range meetings {
		ds := decisions[m.ID]
		if ds == nil {
			ds = []models.BoardDecision{}
		}
		out = append(out, MeetingView{
			BoardMeeting: m,
			Decisions:    ds,
			Protocol:     summarize(m.ID, approvals[m.ID]),
		})
	}
	return out, nil
}

// ====== DECISIONS ======

// AddDecision records a decision taken at a completed meeting.
func (s *Service) AddDecision(ctx context.Context, tc TenantContext, meetingID uint, in DecisionInput) (*models.BoardDecision, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := requireText("title", in.Title); err != nil {
		return nil, err
	}
	if in.TaskID != nil && in.Task != nil {
		return nil, apperr.New(apperr.CodeValidation, "give either an existing task or a new one, not both")
	}
	if in.Task != nil {
		if err := in.Task.validate(); err != nil {
			return nil, err
		}
	}
	var d models.BoardDecision
	err := s.inTx(ctx, "add_decision", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		m, err := load[models.BoardMeeting](tx, a.tenant.ID, meetingID, "board meeting")
		if err != nil {
			return err
		}
		if m.Status != models.MeetingCompleted {
			return apperr.Newf(apperr.CodeInvalidTransition, "decisions belong to completed meetings; meeting is %s", m.Status)
		}
		taskID := in.TaskID
		if err := ref[models.Task](tx, a.tenant.ID, taskID, "task"); err != nil {
			return err
		}
		if in.Task != nil {
			task, err := createTask(tx, a, *in.Task)
			if err != nil {
				return err
			}
			taskID = &task.ID
		}
		var due *time.Time
		if in.DueDate != nil {
			t := in.DueDate.UTC()
			due = &t
		}
		d = models.BoardDecision{
			TenantID:    a.tenant.ID,
			MeetingID:   m.ID,
			Title:       in.Title,
			Description: strings.TrimSpace(in.Description),
			Status:      models.DecisionPending,
			TaskID:      taskID,
			DueDate:     due,
		}
		if err := tx.Create(&d).Error; err != nil {
			return err
		}
		return a.audit(tx, "board_decision", d.ID, "create", map[string]any{"meeting_id": m.ID, "title": d.Title, "task_id": d.TaskID})
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Service) SetDecisionStatus(ctx context.Context, tc TenantContext, decisionID uint, status models.DecisionStatus) (*models.BoardDecision, error) {
	if err := validEnum(status.Valid(), "decision status", status); err != nil {
		return nil, err
	}
	var d *models.BoardDecision
	err := s.inTx(ctx, "set_decision_status", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		if d, err = loadForUpdate[models.BoardDecision](tx, a.tenant.ID, decisionID, "board decision"); err != nil {
			return err
		}
		if !d.Status.CanTransitionTo(status) {
			return badTransition("board decision", d.Status, status)
		}
		from := d.Status
		d.Status = status
		if err := tx.Save(d).Error; err != nil {
			return err
		}
		return a.audit(tx, "board_decision", d.ID, "status_change", map[string]any{"from": from, "to": status})
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ====== PROTOCOL APPROVALS ======

func completedMeeting(tx *gorm.DB, tenantID, meetingID uint) (*models.BoardMeeting, error) {
	m, err := load[models.BoardMeeting](tx, tenantID, meetingID, "board meeting")
	if err != nil {
		return nil, err
	}
	if m.Status != models.MeetingCompleted {
		return nil, apperr.Newf(apperr.CodeInvalidTransition, "protocol approval needs a completed meeting; meeting is %s", m.Status)
	}
	return m, nil
}

func requestApproval(tx *gorm.DB, a *actor, m *models.BoardMeeting, director models.Director) (bool, error) {
	row := models.ProtocolApproval{
		TenantID:   a.tenant.ID,
		MeetingID:  m.ID,
		DirectorID: director.ID,
		State:      models.ApprovalPending,
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "meeting_id"}, {Name: "director_id"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil || res.RowsAffected == 0 {
		return false, res.Error
	}
	if err := a.audit(tx, "protocol_approval", row.ID, "request", map[string]any{"meeting_id": m.ID, "director_id": director.ID}); err != nil {
		return false, err
	}
	return true, notify(tx, a.tenant.ID, models.NotifyApprovalRequested, "board_meeting", m.ID, map[string]any{
		"meeting_title": m.Title,
		"director_id":   director.ID,
		"director_user": director.UserID,
	})
}

// RequestProtocolApprovals opens a pending approval for every active director
// that has none yet. Calling it again only fills gaps.
func (s *Service) RequestProtocolApprovals(ctx context.Context, tc TenantContext, meetingID uint) (*ProtocolSummary, error) {
	var sum ProtocolSummary
	err := s.inTx(ctx, "request_protocol_approvals", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		m, err := completedMeeting(tx, a.tenant.ID, meetingID)
		if err != nil {
			return err
		}
		var directors []models.Director
		if err := scoped(tx, a.tenant.ID).Where("active = ?", true).Order("id").Find(&directors).Error; err != nil {
			return err
		}
		if len(directors) == 0 {
			return apperr.New(apperr.CodeValidation, "tenant has no active directors")
		}
		for _, d := range directors {
			if _, err := requestApproval(tx, a, m, d); err != nil {
				return err
			}
		}
		sum, err = protocolSummary(tx, a.tenant.ID, m.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// AddProtocolApprover adds one director to a meeting's sign-off. A director
// already on the protocol is a uniqueness violation.
func (s *Service) AddProtocolApprover(ctx context.Context, tc TenantContext, meetingID, directorID uint) (*models.ProtocolApproval, error) {
	var row models.ProtocolApproval
	err := s.inTx(ctx, "add_protocol_approver", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		m, err := completedMeeting(tx, a.tenant.ID, meetingID)
		if err != nil {
			return err
		}
		director, err := fetch[models.Director](tx, a.tenant.ID, directorID, "director", false, apperr.CodeReferential)
		if err != nil {
			return err
		}
		row = models.ProtocolApproval{
			TenantID:   a.tenant.ID,
			MeetingID:  m.ID,
			DirectorID: director.ID,
			State:      models.ApprovalPending,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if err := a.audit(tx, "protocol_approval", row.ID, "request", map[string]any{"meeting_id": m.ID, "director_id": director.ID}); err != nil {
			return err
		}
		return notify(tx, a.tenant.ID, models.NotifyApprovalRequested, "board_meeting", m.ID, map[string]any{
			"meeting_title": m.Title,
			"director_id":   director.ID,
			"director_user": director.UserID,
		})
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SetProtocolApproval records a director's answer. Only the director's own
// user or a tenant admin may answer; commented and rejected answers carry a
// comment.
func (s *Service) SetProtocolApproval(ctx context.Context, tc TenantContext, meetingID, directorID uint, state models.ApprovalState, comment string) (*models.ProtocolApproval, error) {
	if err := validEnum(state.Valid() && state != models.ApprovalPending, "approval state", state); err != nil {
		return nil, err
	}
	comment = strings.TrimSpace(comment)
	if state.NeedsComment() && comment == "" {
		return nil, apperr.Newf(apperr.CodeValidation, "a %s answer needs a comment", state)
	}
	var row models.ProtocolApproval
	err := s.inTx(ctx, "set_protocol_approval", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		if !a.tenant.IsActive() {
			return apperr.Newf(apperr.CodeForbidden, "tenant is %s", a.tenant.Status)
		}
		director, err := load[models.Director](tx, a.tenant.ID, directorID, "director")
		if err != nil {
			return err
		}
		isSelf := director.UserID != nil && *director.UserID == a.user.ID
		if !isSelf && a.user.Role != models.RoleAdmin {
			return apperr.New(apperr.CodeForbidden, "only the director or an admin may answer for this director")
		}
		if _, err := completedMeeting(tx, a.tenant.ID, meetingID); err != nil {
			return err
		}
		err = scoped(tx, a.tenant.ID).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("meeting_id = ? AND director_id = ?", meetingID, directorID).
			First(&row).Error
		if err != nil {
			if apperr.HasCode(translate(err), apperr.CodeNotFound) {
				return apperr.Newf(apperr.CodeNotFound, "director %d is not on the protocol of meeting %d", directorID, meetingID)
			}
			return err
		}
		from := row.State
		now := s.clock()
		row.State = state
		row.Comment = comment
		row.DecidedAt = &now
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		return a.audit(tx, "protocol_approval", row.ID, "answer", map[string]any{
			"meeting_id":  meetingID,
			"director_id": directorID,
			"from":        from,
			"to":          state,
			"on_behalf":   !isSelf,
		})
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func summarize(meetingID uint, rows []models.ProtocolApproval) ProtocolSummary {
	sum := ProtocolSummary{MeetingID: meetingID, Total: len(rows), Rows: rows}
	if sum.Rows == nil {
		sum.Rows = []models.ProtocolApproval{}
	}
	states := make([]models.ApprovalState, 0, len(rows))
	for _, r := range rows {
		states = append(states, r.State)
		switch r.State {
		case models.ApprovalApproved:
			sum.Approvals++
		case models.ApprovalCommented:
			sum.Commented++
		case models.ApprovalRejected:
			sum.Rejected++
		case models.ApprovalPending:
			sum.Pending++
		}
	}
	sum.Approved = scoring.ProtocolApproved(states)
	return sum
}

func protocolSummary(tx *gorm.DB, tenantID, meetingID uint) (ProtocolSummary, error) {
	var rows []models.ProtocolApproval
	if err := scoped(tx, tenantID).Where("meeting_id = ?", meetingID).Order("director_id").Find(&rows).Error; err != nil {
		return ProtocolSummary{}, err
	}
	return summarize(meetingID, rows), nil
}

// ProtocolStatus reports whether the meeting's minutes are approved: true only
// when at least one approval exists and every one is approved.
func (s *Service) ProtocolStatus(ctx context.Context, tc TenantContext, meetingID uint) (*ProtocolSummary, error) {
	var sum ProtocolSummary
	err := s.inTx(ctx, "protocol_status", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		if _, err := load[models.BoardMeeting](tx, a.tenant.ID, meetingID, "board meeting"); err != nil {
			return err
		}
		sum, err = protocolSummary(tx, a.tenant.ID, meetingID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

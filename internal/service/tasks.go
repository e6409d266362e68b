package service

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"regtrack/internal/apperr"
	"regtrack/internal/database"
	"regtrack/internal/models"
)

type TaskInput struct {
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	DueDate       time.Time `json:"due_date"`
	AssigneeID    *uint     `json:"assignee_id,omitempty"`
	RiskID        *uint     `json:"risk_id,omitempty"`
	RequirementID *uint     `json:"requirement_id,omitempty"`
}

func (in *TaskInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if err := requireText("title", in.Title); err != nil {
		return err
	}
	if in.DueDate.IsZero() {
		return apperr.New(apperr.CodeValidation, "due date is required")
	}
	in.DueDate = in.DueDate.UTC()
	return nil
}

// TaskView exposes the derived overdue flag. DisplayStatus is the stored
// status, or "overdue" while the task is late.
type TaskView struct {
	models.Task
	Overdue       bool   `json:"overdue"`
	DisplayStatus string `json:"display_status"`
}

func taskView(t models.Task, now time.Time) TaskView {
	v := TaskView{Task: t, Overdue: t.IsOverdue(now), DisplayStatus: string(t.Status)}
	if v.Overdue {
		v.DisplayStatus = models.TaskOverdue
	}
	return v
}

type TaskFilter struct {
	Status      models.TaskStatus `form:"status"`
	OverdueOnly bool              `form:"overdue"`
}

func createTask(tx *gorm.DB, a *actor, in TaskInput) (models.Task, error) {
	task := models.Task{
		TenantID:      a.tenant.ID,
		Title:         in.Title,
		Description:   strings.TrimSpace(in.Description),
		DueDate:       in.DueDate,
		Status:        models.TaskPending,
		AssigneeID:    in.AssigneeID,
		RiskID:        in.RiskID,
		RequirementID: in.RequirementID,
	}
	if err := ref[models.User](tx, a.tenant.ID, in.AssigneeID, "assignee"); err != nil {
		return task, err
	}
	if err := ref[models.Risk](tx, a.tenant.ID, in.RiskID, "risk"); err != nil {
		return task, err
	}
	if err := requirementRef(tx, in.RequirementID); err != nil {
		return task, err
	}
	if err := tx.Create(&task).Error; err != nil {
		return task, err
	}
	return task, a.audit(tx, "task", task.ID, "create", map[string]any{
		"title":    task.Title,
		"due_date": task.DueDate,
	})
}

func (s *Service) CreateTask(ctx context.Context, tc TenantContext, in TaskInput) (*TaskView, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var task models.Task
	err := s.inTx(ctx, "create_task", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		task, err = createTask(tx, a, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	v := taskView(task, s.clock())
	return &v, nil
}

// SetTaskStatus moves a task forward. Overdue is derived, so it is not a
// status a caller can set.
func (s *Service) SetTaskStatus(ctx context.Context, tc TenantContext, taskID uint, status models.TaskStatus) (*TaskView, error) {
	if string(status) == models.TaskOverdue {
		return nil, apperr.New(apperr.CodeValidation, "overdue is derived from the due date and cannot be set")
	}
	if err := validEnum(status.Valid(), "task status", status); err != nil {
		return nil, err
	}
	var task *models.Task
	err := s.inTx(ctx, "set_task_status", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		if task, err = loadForUpdate[models.Task](tx, a.tenant.ID, taskID, "task"); err != nil {
			return err
		}
		if !task.Status.CanTransitionTo(status) {
			return badTransition("task", task.Status, status)
		}
		from := task.Status
		task.Status = status
		if status == models.TaskCompleted {
			now := s.clock()
			task.CompletedAt = &now
		}
		if err := tx.Save(task).Error; err != nil {
			return err
		}
		return a.audit(tx, "task", task.ID, "status_change", map[string]any{"from": from, "to": status})
	})
	if err != nil {
		return nil, err
	}
	v := taskView(*task, s.clock())
	return &v, nil
}

func (s *Service) ListTasks(ctx context.Context, tc TenantContext, f TaskFilter) ([]TaskView, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Newf(apperr.CodeValidation, "invalid task status %q", f.Status)
	}
	var out []TaskView
	err := s.inTx(ctx, "list_tasks", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		q := scoped(tx, a.tenant.ID)
		if f.Status != "" {
			q = q.Where("status = ?", f.Status)
		}
		var tasks []models.Task
		if err := q.Order("due_date, id").Find(&tasks).Error; err != nil {
			return err
		}
		now := s.clock()
		out = make([]TaskView, 0, len(tasks))
		for _, t := range tasks {
			v := taskView(t, now)
			if f.OverdueOnly && !v.Overdue {
				continue
			}
			out = append(out, v)
		}
		return nil
	})
	return out, err
}

// flagOverdue leaves one task_overdue notification per late task. The marker
// column keeps repeated sweeps from notifying twice.
func flagOverdue(tx *gorm.DB, tenantID uint, actorID *uint, now time.Time) (int, error) {
	var open []models.Task
	err := scoped(tx, tenantID).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("status <> ? AND overdue_notified_at IS NULL", models.TaskCompleted).
		Order("id").
		Find(&open).Error
	if err != nil {
		return 0, err
	}
	flagged := 0
	for i := range open {
		t := &open[i]
		if !t.IsOverdue(now) {
			continue
		}
		if err := scoped(tx, tenantID).Model(t).Update("overdue_notified_at", now).Error; err != nil {
			return flagged, err
		}
		if err := notify(tx, tenantID, models.NotifyTaskOverdue, "task", t.ID, map[string]any{
			"title":       t.Title,
			"due_date":    t.DueDate,
			"assignee_id": t.AssigneeID,
		}); err != nil {
			return flagged, err
		}
		if err := database.AppendAudit(tx, tenantID, actorID, "task", t.ID, "flag_overdue", nil); err != nil {
			return flagged, err
		}
		flagged++
	}
	return flagged, nil
}

// FlagOverdueTasks sweeps the caller's tenant and reports how many tasks were
// newly flagged.
func (s *Service) FlagOverdueTasks(ctx context.Context, tc TenantContext) (int, error) {
	var n int
	err := s.inTx(ctx, "flag_overdue_tasks", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permWrite)
		if err != nil {
			return err
		}
		n, err = flagOverdue(tx, a.tenant.ID, a.userID(), s.clock())
		return err
	})
	return n, err
}

// SweepOverdueTasks runs the overdue sweep for every active tenant, one
// transaction per tenant. It is driven by the dispatcher loop, not by users.
func (s *Service) SweepOverdueTasks(ctx context.Context) (int, error) {
	var tenantIDs []uint
	if err := s.db.WithContext(ctx).Model(&models.Tenant{}).
		Where("status = ?", models.TenantActive).Order("id").Pluck("id", &tenantIDs).Error; err != nil {
		return 0, translate(err)
	}
	total := 0
	for _, tenantID := range tenantIDs {
		var n int
		err := s.inTx(ctx, "sweep_overdue_tasks", func(tx *gorm.DB) error {
			var err error
			n, err = flagOverdue(tx, tenantID, nil, s.clock())
			return err
		})
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

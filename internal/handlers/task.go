package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"regtrack/internal/models"
	"regtrack/internal/service"
)

func (h *Handler) ListTasks(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	var f service.TaskFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		h.badRequest(c, err)
		return
	}
	tasks, err := h.svc.ListTasks(c.Request.Context(), tc, f)
	h.respond(c, http.StatusOK, tasks, err)
}

func (h *Handler) CreateTask(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	var in service.TaskInput
	if !h.bind(c, &in) {
		return
	}
	task, err := h.svc.CreateTask(c.Request.Context(), tc, in)
	h.respond(c, http.StatusCreated, task, err)
}

func (h *Handler) SetTaskStatus(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	taskID, ok := h.id(c, "id")
	if !ok {
		return
	}
	var in statusBody[models.TaskStatus]
	if !h.bind(c, &in) {
		return
	}
	task, err := h.svc.SetTaskStatus(c.Request.Context(), tc, taskID, in.Status)
	h.respond(c, http.StatusOK, task, err)
}

func (h *Handler) FlagOverdueTasks(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	n, err := h.svc.FlagOverdueTasks(c.Request.Context(), tc)
	h.respond(c, http.StatusOK, gin.H{"flagged": n}, err)
}

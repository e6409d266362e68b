package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"regtrack/internal/models"
	"regtrack/internal/service"
)

func (h *Handler) ListMeetings(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	rows, err := h.svc.ListMeetings(c.Request.Context(), tc)
	h.respond(c, http.StatusOK, rows, err)
}

func (h *Handler) ScheduleMeeting(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	var in service.MeetingInput
	if !h.bind(c, &in) {
		return
	}
	m, err := h.svc.ScheduleMeeting(c.Request.Context(), tc, in)
	h.respond(c, http.StatusCreated, m, err)
}

func (h *Handler) GetMeeting(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	view, err := h.svc.GetMeeting(c.Request.Context(), tc, id)
	h.respond(c, http.StatusOK, view, err)
}

func (h *Handler) CompleteMeeting(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	var in struct {
		Minutes string `json:"minutes"`
	}
	if !h.bind(c, &in) {
		return
	}
	m, err := h.svc.CompleteMeeting(c.Request.Context(), tc, id, in.Minutes)
	h.respond(c, http.StatusOK, m, err)
}

func (h *Handler) CancelMeeting(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	m, err := h.svc.CancelMeeting(c.Request.Context(), tc, id)
	h.respond(c, http.StatusOK, m, err)
}

func (h *Handler) AddDecision(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	var in service.DecisionInput
	if !h.bind(c, &in) {
		return
	}
	d, err := h.svc.AddDecision(c.Request.Context(), tc, id, in)
	h.respond(c, http.StatusCreated, d, err)
}

func (h *Handler) SetDecisionStatus(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	var in statusBody[models.DecisionStatus]
	if !h.bind(c, &in) {
		return
	}
	d, err := h.svc.SetDecisionStatus(c.Request.Context(), tc, id, in.Status)
	h.respond(c, http.StatusOK, d, err)
}

func (h *Handler) ProtocolStatus(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	sum, err := h.svc.ProtocolStatus(c.Request.Context(), tc, id)
	h.respond(c, http.StatusOK, sum, err)
}

// RequestProtocolApprovals opens a pending approval for every active
// director that has none yet.
func (h *Handler) RequestProtocolApprovals(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	sum, err := h.svc.RequestProtocolApprovals(c.Request.Context(), tc, id)
	h.respond(c, http.StatusOK, sum, err)
}

func (h *Handler) AddProtocolApprover(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	var in struct {
		DirectorID uint `json:"director_id" binding:"required"`
	}
	if !h.bind(c, &in) {
		return
	}
	row, err := h.svc.AddProtocolApprover(c.Request.Context(), tc, id, in.DirectorID)
	h.respond(c, http.StatusCreated, row, err)
}

func (h *Handler) SetProtocolApproval(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	meetingID, ok := h.id(c, "id")
	if !ok {
		return
	}
	directorID, ok := h.id(c, "director_id")
	if !ok {
		return
	}
	var in struct {
		State   models.ApprovalState `json:"state" binding:"required"`
		Comment string               `json:"comment"`
	}
	if !h.bind(c, &in) {
		return
	}
	row, err := h.svc.SetProtocolApproval(c.Request.Context(), tc, meetingID, directorID, in.State, in.Comment)
	h.respond(c, http.StatusOK, row, err)
}

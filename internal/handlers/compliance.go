package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"regtrack/internal/apperr"
	"regtrack/internal/models"
	"regtrack/internal/service"
)

func (h *Handler) ListStatuses(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	rows, err := h.svc.ListStatuses(c.Request.Context(), tc, models.Module(c.Query("module")))
	h.respond(c, http.StatusOK, rows, err)
}

// GetStatus returns the tenant's status row for a requirement, creating the
// not_started row on first access.
func (h *Handler) GetStatus(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	reqID, ok := h.id(c, "id")
	if !ok {
		return
	}
	row, err := h.svc.GetOrCreateStatus(c.Request.Context(), tc, reqID)
	h.respond(c, http.StatusOK, row, err)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	reqID, ok := h.id(c, "id")
	if !ok {
		return
	}
	var in service.StatusUpdate
	if !h.bind(c, &in) {
		return
	}
	row, err := h.svc.UpdateStatus(c.Request.Context(), tc, reqID, in)
	h.respond(c, http.StatusOK, row, err)
}

func (h *Handler) DueForReview(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	asOf := time.Now().UTC()
	if raw := c.Query("as_of"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.fail(c, apperr.Wrap(err, apperr.CodeValidation, "as_of must be RFC 3339"))
			return
		}
		asOf = t
	}
	rows, err := h.svc.DueForReview(c.Request.Context(), tc, asOf)
	h.respond(c, http.StatusOK, rows, err)
}

func (h *Handler) ComplianceOverview(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	scores, err := h.svc.ComplianceOverview(c.Request.Context(), tc)
	h.respond(c, http.StatusOK, scores, err)
}

func (h *Handler) ModulePct(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	score, err := h.svc.ModulePct(c.Request.Context(), tc, models.Module(c.Param("module")))
	h.respond(c, http.StatusOK, score, err)
}

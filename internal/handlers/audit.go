package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListAuditLogs returns the newest audit rows; admin and auditor only.
func (h *Handler) ListAuditLogs(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	limit, ok := h.limit(c, 200)
	if !ok {
		return
	}
	logs, err := h.svc.ListAuditLog(c.Request.Context(), tc, limit)
	h.respond(c, http.StatusOK, logs, err)
}

// Snapshot returns the consistent tenant view the report generator renders.
func (h *Handler) Snapshot(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	snap, err := h.svc.Snapshot(c.Request.Context(), tc)
	h.respond(c, http.StatusOK, snap, err)
}

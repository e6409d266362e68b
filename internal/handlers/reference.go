package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"regtrack/internal/service"
)

func (h *Handler) ListRegulations(c *gin.Context) {
	regs, err := h.svc.ListRegulations(c.Request.Context())
	h.respond(c, http.StatusOK, regs, err)
}

func (h *Handler) ListSections(c *gin.Context) {
	regID, ok := h.id(c, "id")
	if !ok {
		return
	}
	sections, err := h.svc.ListSections(c.Request.Context(), regID)
	h.respond(c, http.StatusOK, sections, err)
}

// ListRequirements lists the latest catalog. With applicable=true the list
// is narrowed to the caller's license and subscription tier.
func (h *Handler) ListRequirements(c *gin.Context) {
	var q struct {
		service.RequirementFilter
		Applicable bool `form:"applicable"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return
	}
	if !q.Applicable {
		reqs, err := h.svc.ListRequirements(c.Request.Context(), q.RequirementFilter)
		h.respond(c, http.StatusOK, reqs, err)
		return
	}
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	reqs, err := h.svc.ListRequirementsForTenant(c.Request.Context(), tc, q.RequirementFilter)
	h.respond(c, http.StatusOK, reqs, err)
}

func (h *Handler) GetRequirement(c *gin.Context) {
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	req, err := h.svc.GetRequirement(c.Request.Context(), id)
	h.respond(c, http.StatusOK, req, err)
}

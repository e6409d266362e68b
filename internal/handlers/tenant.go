package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"regtrack/internal/middleware"
	"regtrack/internal/models"
	"regtrack/internal/service"
)

const onboardingHeader = "X-Onboarding-Token"

// Onboard provisions a tenant with its first admin, directors and risk
// officers. It runs before any user exists, so it is guarded by a shared
// operator token instead of a bearer token.
func (h *Handler) Onboard(c *gin.Context) {
	if h.onboardingToken == "" {
		middleware.Abort(c, http.StatusNotFound, "not_found", "onboarding is disabled")
		return
	}
	given := c.GetHeader(onboardingHeader)
	if subtle.ConstantTimeCompare([]byte(given), []byte(h.onboardingToken)) != 1 {
		middleware.Abort(c, http.StatusUnauthorized, "unauthenticated", "invalid onboarding token")
		return
	}

	var req service.OnboardingRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.svc.Onboard(c.Request.Context(), req)
	h.respond(c, http.StatusCreated, res, err)
}

func (h *Handler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		middleware.Abort(c, http.StatusUnauthorized, "unauthenticated", "missing caller")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) GetTenant(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	t, err := h.svc.GetTenant(c.Request.Context(), tc)
	h.respond(c, http.StatusOK, t, err)
}

func (h *Handler) UpdateTenantSettings(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	var in service.TenantSettings
	if !h.bind(c, &in) {
		return
	}
	t, err := h.svc.UpdateTenantSettings(c.Request.Context(), tc, in)
	h.respond(c, http.StatusOK, t, err)
}

func (h *Handler) SetTenantStatus(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	var in statusBody[models.TenantStatus]
	if !h.bind(c, &in) {
		return
	}
	t, err := h.svc.SetTenantStatus(c.Request.Context(), tc, in.Status)
	h.respond(c, http.StatusOK, t, err)
}

func (h *Handler) ListUsers(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	users, err := h.svc.ListUsers(c.Request.Context(), tc)
	h.respond(c, http.StatusOK, users, err)
}

func (h *Handler) InviteUser(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	var in service.UserProfile
	if !h.bind(c, &in) {
		return
	}
	u, err := h.svc.InviteUser(c.Request.Context(), tc, in)
	h.respond(c, http.StatusCreated, u, err)
}

func (h *Handler) ChangeUserRole(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	userID, ok := h.id(c, "id")
	if !ok {
		return
	}
	var in struct {
		Role models.UserRole `json:"role" binding:"required"`
	}
	if !h.bind(c, &in) {
		return
	}
	u, err := h.svc.ChangeUserRole(c.Request.Context(), tc, userID, in.Role)
	h.respond(c, http.StatusOK, u, err)
}

func (h *Handler) ListDirectors(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	ds, err := h.svc.ListDirectors(c.Request.Context(), tc)
	h.respond(c, http.StatusOK, ds, err)
}

func (h *Handler) AddDirector(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	var in service.PersonInput
	if !h.bind(c, &in) {
		return
	}
	d, err := h.svc.AddDirector(c.Request.Context(), tc, in)
	h.respond(c, http.StatusCreated, d, err)
}

func (h *Handler) SetDirectorActive(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	directorID, ok := h.id(c, "id")
	if !ok {
		return
	}
	var in struct {
		Active *bool `json:"active" binding:"required"`
	}
	if !h.bind(c, &in) {
		return
	}
	d, err := h.svc.SetDirectorActive(c.Request.Context(), tc, directorID, *in.Active)
	h.respond(c, http.StatusOK, d, err)
}

func (h *Handler) ListRiskOfficers(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	officers, err := h.svc.ListRiskOfficers(c.Request.Context(), tc)
	h.respond(c, http.StatusOK, officers, err)
}

func (h *Handler) AddRiskOfficer(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	var in service.PersonInput
	if !h.bind(c, &in) {
		return
	}
	o, err := h.svc.AddRiskOfficer(c.Request.Context(), tc, in)
	h.respond(c, http.StatusCreated, o, err)
}

// Package handlers is the JSON API over the tenant-scoped service. Handlers
// only bind input and map errors; authorization happens in the service.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"regtrack/internal/apperr"
	"regtrack/internal/middleware"
	"regtrack/internal/service"
)

type Handler struct {
	svc             *service.Service
	log             *zap.Logger
	onboardingToken string
}

// New builds the API handlers. An empty onboardingToken disables the
// onboarding endpoint.
func New(svc *service.Service, log *zap.Logger, onboardingToken string) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log, onboardingToken: onboardingToken}
}

// fail writes err as the shared error body. Internal failures are logged and
// their detail withheld from the client.
func (h *Handler) fail(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	status := apperr.HTTPStatus(code)

	message := "internal error"
	var ae *apperr.Error
	if code != apperr.CodeInternal && errors.As(err, &ae) {
		message = ae.Message
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	middleware.Abort(c, status, string(code), message)
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	h.fail(c, apperr.Wrap(err, apperr.CodeValidation, "malformed request: "+err.Error()))
}

// tenant returns the caller context set by the auth middleware.
func (h *Handler) tenant(c *gin.Context) (service.TenantContext, bool) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		middleware.Abort(c, http.StatusUnauthorized, "unauthenticated", "missing caller")
	}
	return tc, ok
}

func (h *Handler) id(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		h.fail(c, apperr.Newf(apperr.CodeValidation, "%s must be a positive integer", name))
		return 0, false
	}
	return uint(n), true
}

func (h *Handler) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		h.badRequest(c, err)
		return false
	}
	return true
}

func (h *Handler) limit(c *gin.Context, def int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		h.fail(c, apperr.New(apperr.CodeValidation, "limit must be a positive integer"))
		return 0, false
	}
	return n, true
}

// respond writes v, or the error when err is set.
func (h *Handler) respond(c *gin.Context, status int, v any, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(status, v)
}

type statusBody[T ~string] struct {
	Status T `json:"status" binding:"required"`
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"regtrack/internal/apperr"
	"regtrack/internal/models"
	"regtrack/internal/service"
)

const (
	currentUserKey   = "CurrentUser"
	tenantContextKey = "TenantContext"
)

// TokenVerifier returns the external user id carried by a bearer token.
type TokenVerifier interface {
	Subject(token string) (string, error)
}

// UserResolver maps an external user id to the local user.
type UserResolver interface {
	UserByExternalID(ctx context.Context, externalID string) (*models.User, error)
}

// RequireAuth verifies the bearer token and loads the caller. The user's role
// is not trusted from here on: the service re-reads it on every call.
func RequireAuth(v TokenVerifier, users UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			Abort(c, http.StatusUnauthorized, "unauthenticated", "missing bearer token")
			return
		}

		sub, err := v.Subject(strings.TrimSpace(token))
		if err != nil {
			Abort(c, http.StatusUnauthorized, "unauthenticated", "invalid bearer token")
			return
		}

		user, err := users.UserByExternalID(c.Request.Context(), sub)
		switch {
		case apperr.HasCode(err, apperr.CodeNotFound):
			Abort(c, http.StatusUnauthorized, "unauthenticated", "unknown user")
			return
		case err != nil:
			code := apperr.CodeOf(err)
			Abort(c, apperr.HTTPStatus(code), string(code), "resolve user")
			return
		}

		c.Set(currentUserKey, *user)
		c.Set(tenantContextKey, service.TenantContext{TenantID: user.TenantID, ActorID: user.ID})
		c.Next()
	}
}

// CurrentUser returns the user loaded by RequireAuth.
func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return models.User{}, false
	}
	u, ok := v.(models.User)
	return u, ok
}

// Tenant returns the caller's tenant context set by RequireAuth.
func Tenant(c *gin.Context) (service.TenantContext, bool) {
	v, ok := c.Get(tenantContextKey)
	if !ok {
		return service.TenantContext{}, false
	}
	tc, ok := v.(service.TenantContext)
	return tc, ok
}

// Abort writes the JSON error body shared by the whole API.
func Abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

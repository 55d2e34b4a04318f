package http

import (
	"github.com/gin-gonic/gin"

	"contest-engine/internal/domain"
)

const principalKey = "principal"

// Header names set by the upstream auth gateway. Authentication itself is an
// external collaborator; this service only consumes the resolved principal.
const (
	headerUserID   = "X-User-Id"
	headerUserRole = "X-User-Role"
)

// Principal extracts the authenticated identity from gateway headers.
func Principal(c *gin.Context) {
	id := c.GetHeader(headerUserID)
	if id == "" {
		c.Next()
		return
	}
	role := c.GetHeader(headerUserRole)
	if role == "" {
		role = domain.RoleUser
	}
	c.Set(principalKey, domain.Principal{ID: id, Role: role})
	c.Next()
}

// RequireAuth aborts with 401 when no principal is attached.
func RequireAuth(c *gin.Context) {
	if _, ok := principalFrom(c); !ok {
		abortWithError(c, domain.ErrUnauthorized)
		return
	}
	c.Next()
}

// RequireAdmin aborts with 403 unless the principal holds the ADMIN role.
func RequireAdmin(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		abortWithError(c, domain.ErrUnauthorized)
		return
	}
	if principal.Role != domain.RoleAdmin {
		abortWithError(c, domain.ErrForbidden)
		return
	}
	c.Next()
}

func principalFrom(c *gin.Context) (domain.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := v.(domain.Principal)
	return principal, ok
}

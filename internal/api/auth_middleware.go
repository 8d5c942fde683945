package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"guest-visits-backend/internal/access"
)

const principalKey = "principal"

// bearerToken reads the access token from the Authorization header, or from
// the token query parameter for clients that cannot set headers.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return c.Query("token")
}

// Authenticate resolves the caller's principal and stores it in the context.
func (h *Handler) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := h.resolver.Resolve(c.Request.Context(), bearerToken(c))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// RequirePermission rejects callers that do not hold code.
func RequirePermission(code access.Code) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := access.Authorize(GetPrincipal(c), code); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// GetPrincipal returns the principal set by Authenticate. Without one it
// returns the zero principal, which holds nothing.
func GetPrincipal(c *gin.Context) access.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return access.Principal{}
	}
	p, _ := v.(access.Principal)
	return p
}

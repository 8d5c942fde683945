package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"guest-visits-backend/internal/access"
)

type meResponse struct {
	ID          string        `json:"id"`
	Username    string        `json:"username"`
	FullName    string        `json:"full_name"`
	IsAdmin     bool          `json:"is_admin"`
	Role        *string       `json:"role"`
	Permissions []access.Code `json:"permissions"`
}

// GetMe describes the caller. Only display permissions are listed.
func (h *Handler) GetMe(c *gin.Context) {
	p := GetPrincipal(c)
	resp := meResponse{
		ID:          p.ID,
		Username:    p.Username,
		FullName:    p.DisplayName,
		IsAdmin:     p.IsAdmin,
		Permissions: p.UIPermissions(),
	}
	if p.RoleName != "" {
		role := p.RoleName
		resp.Role = &role
	}
	c.JSON(http.StatusOK, resp)
}

// GetCalendarWeek returns the day structure around the reference date.
// Structures built from fallback answers, and the undated "current week"
// form whose meaning changes at midnight, are marked no-store.
func (h *Handler) GetCalendarWeek(c *gin.Context) {
	ref := referenceDate(c)
	cal, err := h.visits.Calendar(c.Request.Context(), GetPrincipal(c), ref)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if cal.Degraded || ref == "" {
		c.Header("Cache-Control", "no-store")
	}
	c.JSON(http.StatusOK, cal)
}

// Health reports liveness and the number of realtime subscribers.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "subscribers": h.hub.Len()})
}

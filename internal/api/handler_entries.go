package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"guest-visits-backend/internal/apperr"
	"guest-visits-backend/internal/visits"
)

// referenceDate reads the reference date query, accepting the older
// "today" name as well.
func referenceDate(c *gin.Context) string {
	if d := c.Query("date"); d != "" {
		return d
	}
	return c.Query("today")
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		AbortWithError(c, apperr.BadRequest("invalid request: %v", err))
		return false
	}
	return true
}

// ListEntries returns the window around the reference date.
func (h *Handler) ListEntries(c *gin.Context) {
	w, err := h.visits.Window(c.Request.Context(), GetPrincipal(c), referenceDate(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// GetEntry returns one entry, deleted or not.
func (h *Handler) GetEntry(c *gin.Context) {
	view, err := h.visits.Get(c.Request.Context(), GetPrincipal(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type createEntryRequest struct {
	Name        string  `json:"name" binding:"required"`
	Responsible *string `json:"responsible"`
	DateTime    string  `json:"datetime" binding:"required"`
}

// CreateEntry handles the creation of a visit entry.
func (h *Handler) CreateEntry(c *gin.Context) {
	var req createEntryRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.visits.Create(c.Request.Context(), GetPrincipal(c), visits.CreateInput{
		Name:        req.Name,
		Responsible: req.Responsible,
		DateTime:    req.DateTime,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

type updateEntryRequest struct {
	Name        string  `json:"name" binding:"required"`
	Responsible *string `json:"responsible"`
}

// UpdateEntry replaces the name and responsible party.
func (h *Handler) UpdateEntry(c *gin.Context) {
	var req updateEntryRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.visits.Update(c.Request.Context(), GetPrincipal(c), c.Param("id"), visits.UpdateInput{
		Name:        req.Name,
		Responsible: req.Responsible,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type completedRequest struct {
	IsCompleted *bool `json:"is_completed" binding:"required"`
}

// SetCompleted marks or clears the guest's arrival.
func (h *Handler) SetCompleted(c *gin.Context) {
	var req completedRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.visits.SetCompleted(c.Request.Context(), GetPrincipal(c), c.Param("id"), *req.IsCompleted)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type cancelledRequest struct {
	IsCancelled *bool `json:"is_cancelled" binding:"required"`
}

// SetCancelled marks or clears the visit's cancellation.
func (h *Handler) SetCancelled(c *gin.Context) {
	var req cancelledRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.visits.SetCancelled(c.Request.Context(), GetPrincipal(c), c.Param("id"), *req.IsCancelled)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type moveRequest struct {
	DateTime string `json:"datetime" binding:"required"`
}

// MoveEntry reschedules an entry.
func (h *Handler) MoveEntry(c *gin.Context) {
	var req moveRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.visits.Move(c.Request.Context(), GetPrincipal(c), c.Param("id"), req.DateTime)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteEntry soft-deletes an entry.
func (h *Handler) DeleteEntry(c *gin.Context) {
	if err := h.visits.Delete(c.Request.Context(), GetPrincipal(c), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteAllEntries irrecoverably removes every entry.
func (h *Handler) DeleteAllEntries(c *gin.Context) {
	n, err := h.visits.DeleteAll(c.Request.Context(), GetPrincipal(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted_count": n})
}

// DeleteFutureEntries soft-deletes entries from the given date onwards.
func (h *Handler) DeleteFutureEntries(c *gin.Context) {
	from := referenceDate(c)
	if from == "" {
		AbortWithError(c, apperr.BadRequest("date is required"))
		return
	}
	n, err := h.visits.DeleteFuture(c.Request.Context(), GetPrincipal(c), from)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted_count": n, "from_date": from})
}

// OrderPass requests a new access pass for an entry.
func (h *Handler) OrderPass(c *gin.Context) {
	view, err := h.visits.OrderPass(c.Request.Context(), GetPrincipal(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RevokePass revokes an entry's current pass.
func (h *Handler) RevokePass(c *gin.Context) {
	view, err := h.visits.RevokePass(c.Request.Context(), GetPrincipal(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SuggestResponsible autocompletes the responsible field from the caller's own entries.
func (h *Handler) SuggestResponsible(c *gin.Context) {
	suggestions, err := h.visits.Suggest(c.Request.Context(), GetPrincipal(c), c.Query("q"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"guest-visits-backend/config"
	"guest-visits-backend/internal/access"
	"guest-visits-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()
	r.Use(ErrorHandler())

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	caching := mw.Cache(cache.New(ttl, 2*ttl), ttl)

	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	v1.Use(rateLimiter)
	{
		// The websocket authenticates itself so it can answer with a close frame.
		v1.GET("/ws/entries", h.SubscribeEntries)
		v1.GET("/push/vapid_public_key", h.GetVAPIDPublicKey)

		authed := v1.Group("")
		authed.Use(h.Authenticate())

		authed.GET("/me", h.GetMe)
		authed.GET("/calendar/week", RequirePermission(access.CanView), caching, h.GetCalendarWeek)

		entries := authed.Group("/entries")
		entries.GET("", h.ListEntries)
		entries.POST("", h.CreateEntry)
		entries.GET("/responsible-autocomplete", h.SuggestResponsible)
		entries.DELETE("/all", h.DeleteAllEntries)
		entries.DELETE("/future", h.DeleteFutureEntries)
		entries.GET("/:id", h.GetEntry)
		entries.PUT("/:id", h.UpdateEntry)
		entries.DELETE("/:id", h.DeleteEntry)
		entries.PATCH("/:id/completed", h.SetCompleted)
		entries.PATCH("/:id/cancelled", h.SetCancelled)
		entries.PATCH("/:id/move", h.MoveEntry)
		entries.POST("/:id/pass", h.OrderPass)
		entries.DELETE("/:id/pass", h.RevokePass)

		authed.GET("/push/subscriptions", h.GetSubscription)
		authed.PUT("/push/subscriptions", h.PutSubscription)
		authed.DELETE("/push/subscriptions", h.DeleteSubscription)
	}

	return r
}

package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"guest-visits-backend/config"
	"guest-visits-backend/internal/auth"
	"guest-visits-backend/internal/realtime"
	"guest-visits-backend/internal/store"
	"guest-visits-backend/internal/visits"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	visits   *visits.Service
	store    store.Store
	resolver *auth.Resolver
	hub      *realtime.Broadcaster
	webpush  *webpush.Options
	realtime config.RealtimeConfig
}

// NewHandler creates a new API handler.
func NewHandler(svc *visits.Service, s store.Store, resolver *auth.Resolver, hub *realtime.Broadcaster, webpushOptions *webpush.Options, rt config.RealtimeConfig) *Handler {
	return &Handler{
		visits:   svc,
		store:    s,
		resolver: resolver,
		hub:      hub,
		webpush:  webpushOptions,
		realtime: rt,
	}
}

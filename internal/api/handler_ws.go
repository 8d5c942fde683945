package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"guest-visits-backend/internal/access"
	"guest-visits-backend/internal/realtime"
)

// SubscribeEntries upgrades to a websocket and streams broadcast envelopes.
// The token is checked after the upgrade so a rejected client receives a
// policy-violation close frame instead of an HTTP error.
func (h *Handler) SubscribeEntries(c *gin.Context) {
	ws, err := realtime.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}
	conn := realtime.NewWSConn(ws, h.realtime.WriteTimeout)

	p, err := h.resolver.Resolve(c.Request.Context(), c.Query("token"))
	if err == nil {
		err = access.Authorize(p, access.CanView)
	}
	if err != nil {
		slog.Info("rejecting websocket subscriber", "error", err)
		conn.Close(websocket.ClosePolicyViolation, "unauthorized")
		return
	}

	slog.Debug("websocket subscriber connected", "conn", conn.ID(), "user", p.Username)
	realtime.Serve(c.Request.Context(), h.hub, conn, h.realtime.PingInterval)
}

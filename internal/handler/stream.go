package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"roimonitor/internal/service"
	"roimonitor/internal/stream"
)

// StreamHandler upgrades dashboard connections and relays job events.
type StreamHandler struct {
	Hub      *stream.Hub
	Logger   *zap.Logger
	Settings *service.SystemSettingsService
}

func (h *StreamHandler) Register(r *gin.Engine) {
	r.GET("/ws/events", h.events)
}

// @Summary WebSocket stream of job lifecycle events
// @Tags stream
// @Router /ws/events [get]
func (h *StreamHandler) events(c *gin.Context) {
	if h.Hub == nil {
		Error(c, http.StatusServiceUnavailable, "stream unavailable", nil)
		return
	}
	if !h.Settings.IsEnabled(c.Request.Context(), service.FeatureEventStream, true) {
		Error(c, http.StatusServiceUnavailable, "event stream disabled", nil)
		return
	}
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		// Dashboards are served from a different origin in dev.
		InsecureSkipVerify: true,
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("websocket accept failed", zap.Error(err))
		}
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	events, cancel := h.Hub.Subscribe()
	defer cancel()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			writeCtx, done := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, event)
			done()
			if err != nil {
				return
			}
		}
	}
}

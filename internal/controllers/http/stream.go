package http

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"orderflow/internal/domain"
)

// heartbeatInterval keeps intermediary proxies from closing idle streams.
const heartbeatInterval = 25 * time.Second

// StreamOrders serves the per-account SSE changefeed. The stream carries
// deltas only; clients snapshot current state via GET /accounts/:id/orders
// before relying on it. The subscription is released on client disconnect,
// and an upstream changefeed failure terminates the stream with an "error"
// event instead of hanging.
func (h *Handler) StreamOrders(c *gin.Context) {
	accountID, ok := pathID(c, "accountId")
	if !ok {
		return
	}
	filter := domain.Status(c.Query("status"))
	if filter != "" && !domain.ValidStatus(filter) {
		h.respondError(c, domain.ErrInvalidStatus)
		return
	}

	sub := h.broadcaster.Subscribe(accountID, filter)
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case <-h.broadcaster.Failed():
			c.SSEvent("error", gin.H{"code": "STREAM_FAILED", "message": "changefeed unavailable"})
			return false
		case change := <-sub.Events():
			c.SSEvent("order."+string(change.Kind), change)
			return true
		case <-ticker.C:
			// Comment frame; not a named event, just keepalive.
			w.Write([]byte(": ping\n\n"))
			return true
		}
	})
}

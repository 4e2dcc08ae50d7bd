package handler

import (
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/sse"
)

const defaultHeartbeat = 30 * time.Second

// SSEHandler 检查单进度事件流
type SSEHandler struct {
	hub       *sse.Hub
	heartbeat time.Duration
	buffer    int
}

func NewSSEHandler(hub *sse.Hub) *SSEHandler {
	return &SSEHandler{hub: hub, heartbeat: defaultHeartbeat, buffer: 64}
}

// Stream GET /api/v1/events?token=xxx[&orden=orderId]
// Without orden the stream receives updates of every order.
func (h *SSEHandler) Stream(c *gin.Context) {
	client := &sse.Client{
		ID:      uuid.NewString(),
		UserID:  GetUserID(c),
		OrderID: c.Query("orden"),
		Events:  make(chan sse.Event, h.buffer),
	}
	h.hub.Register(client)
	defer h.hub.Unregister(client.ID)

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"client_id\":%q}\n\n", client.ID)
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev, ok := <-client.Events:
			if !ok {
				return false
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.EventType, ev.Data)
			return true
		case <-ticker.C:
			io.WriteString(w, ": keepalive\n\n")
			return true
		}
	})
}

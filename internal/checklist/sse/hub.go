// Package sse fans checklist progress out to open event streams. A stream
// may follow one order or everything its user can see.
package sse

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// EventChecklistUpdate is sent on every save, photo upload and finalize.
const EventChecklistUpdate = "checklist_update"

// Event is one frame on the stream.
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client 一个打开的事件流。OrderID 为空表示订阅全部订单
type Client struct {
	ID      string
	UserID  string
	OrderID string
	Events  chan Event
}

func (c *Client) follows(orderID string) bool {
	return c.OrderID == "" || c.OrderID == orderID
}

// ChecklistUpdate 检查单进度事件
type ChecklistUpdate struct {
	InstanceID string `json:"instance_id"`
	Orden      string `json:"orden"`
	ItemID     string `json:"item_id,omitempty"`
	Action     string `json:"action"`
	Estado     string `json:"estado"`
}

// Hub 连接表
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger.Named("sse"),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("stream opened",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.String("order_id", client.OrderID),
		zap.Int("total", total))
}

// Unregister drops the client and closes its channel. Unknown ids are ignored.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	client, ok := h.clients[clientID]
	if ok {
		close(client.Events)
		delete(h.clients, clientID)
	}
	total := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.logger.Debug("stream closed", zap.String("client_id", clientID), zap.Int("total", total))
	}
}

// Count 当前连接数
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// deliver never blocks: a client with a full buffer misses the event.
func (h *Hub) deliver(event Event, match func(*Client) bool) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for _, client := range h.clients {
		if !match(client) {
			continue
		}
		select {
		case client.Events <- event:
			sent++
		default:
			h.logger.Warn("stream buffer full, event dropped", zap.String("client_id", client.ID), zap.String("event", event.EventType))
		}
	}
	return sent
}

// Broadcast 发给所有连接
func (h *Hub) Broadcast(event Event) {
	h.deliver(event, func(*Client) bool { return true })
}

// SendToUser 只发给该用户的连接
func (h *Hub) SendToUser(userID string, event Event) {
	h.deliver(event, func(c *Client) bool { return c.UserID == userID })
}

// PublishChecklistUpdate sends a checklist_update to every stream following
// the order. A non-empty userID narrows it to that user's streams.
func (h *Hub) PublishChecklistUpdate(userID string, u ChecklistUpdate) {
	data, err := json.Marshal(u)
	if err != nil {
		h.logger.Error("marshal checklist_update", zap.Error(err))
		return
	}
	ev := Event{EventType: EventChecklistUpdate, Data: string(data)}
	sent := h.deliver(ev, func(c *Client) bool {
		return c.follows(u.Orden) && (userID == "" || c.UserID == userID)
	})
	h.logger.Debug("checklist_update published",
		zap.String("instance_id", u.InstanceID),
		zap.String("item_id", u.ItemID),
		zap.String("action", u.Action),
		zap.Int("streams", sent))
}

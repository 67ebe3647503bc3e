// internal/api/sync_handler.go
package api

import (
	"alcyxob/fitflow/internal/tabsync"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBuffer = 16
	writeWait  = 5 * time.Second
)

// Hub pushes record updates to every tab connected over WebSocket. Updates come from
// two places: writes made through this process, and the sync channel (other contexts).
// It is the Broadcaster the record store reports to.
type Hub struct {
	channel *tabsync.Channel
	logger  *zap.Logger
	dispose func()

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub starts relaying updates received on channel.
func NewHub(channel *tabsync.Channel, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		channel: channel,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
	h.dispose = channel.OnUpdate(func(key string, value json.RawMessage) {
		h.push(tabsync.Message{
			Type:      tabsync.MessageType,
			Key:       key,
			Value:     value,
			Timestamp: time.Now().UnixMilli(),
		})
	})
	return h
}

// Broadcast tells other contexts and the local tabs about a mutation.
func (h *Hub) Broadcast(key string, value any) {
	h.channel.Broadcast(key, value)
	msg, err := tabsync.NewMessage(h.channel.Origin(), key, value, time.Now())
	if err != nil {
		h.logger.Error("failed to encode update for tabs", zap.String("key", key), zap.Error(err))
		return
	}
	h.push(msg)
}

// Origin is the sync channel's origin; the record store tags its writes with it.
func (h *Hub) Origin() string { return h.channel.Origin() }

// Clients is the number of connected tabs.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close stops relaying and disconnects every tab.
func (h *Hub) Close() {
	h.dispose()
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) push(msg tabsync.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal update", zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// A tab that cannot keep up misses the update and re-reads on its next request.
			h.logger.Warn("tab send buffer full, dropping update", zap.String("key", msg.Key))
		}
	}
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.logger.Debug("tab connected", zap.Int("tabs", len(h.clients)))
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
		h.logger.Debug("tab disconnected", zap.Int("tabs", len(h.clients)))
	}
}

var upgrader = websocket.Upgrader{
	// The service listens on loopback for a single local user.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Sync godoc
// @Summary Live record updates
// @Description Upgrades to a WebSocket that receives {type, key, value, timestamp} messages.
// @Tags Sync
// @Router /sync [get]
func (h *Hub) Sync(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &wsClient{conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(client)

	go h.writeLoop(client)

	// The read loop only detects the tab going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(client)
}

func (h *Hub) writeLoop(c *wsClient) {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

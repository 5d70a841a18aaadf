package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"media_pipeline/internal/notification/domain"
	pipeline "media_pipeline/internal/pipeline/domain"
	"media_pipeline/pkg/logger"
	"media_pipeline/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

var errClientClosed = errors.New("websocket client closed")

const (
	writeWait    = 5 * time.Second
	pingInterval = time.Minute
)

type wsClient struct {
	identity string
	conn     *websocket.Conn
	mu       sync.Mutex // 同一條連線一次只能有一個 writer
	closed   bool
}

func (c *wsClient) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientClosed
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// fiber 在 handler 結束後會回收 conn, 之後不能再寫
func (c *wsClient) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Hub keeps the websocket connections of every identity and pushes events to the owner's ones.
// It is also a Sink, an owner with no open connection is not an error.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*wsClient]struct{}
}

// NewHub create an empty hub
func NewHub() *Hub {
	return &Hub{clients: map[string]map[*wsClient]struct{}{}}
}

var _ domain.Sink = (*Hub)(nil)

// Name sink name
func (h *Hub) Name() string { return SinkWebsocket }

// Clients number of open connections of identity
func (h *Hub) Clients(identity string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[identity])
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.identity] == nil {
		h.clients[c.identity] = map[*wsClient]struct{}{}
	}
	h.clients[c.identity][c] = struct{}{}
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients[c.identity], c)
	if len(h.clients[c.identity]) == 0 {
		delete(h.clients, c.identity)
	}
}

func (h *Hub) snapshot(identity string) []*wsClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*wsClient, 0, len(h.clients[identity]))
	for c := range h.clients[identity] {
		out = append(out, c)
	}
	return out
}

// Deliver push ev to every connection of its owner, a broken connection is dropped
func (h *Hub) Deliver(ctx context.Context, ev pipeline.NotificationEvent) error {
	data, err := json.Marshal(domain.WSMessage{Type: domain.WSTypeConversion, Event: ev})
	if err != nil {
		return err
	}

	for _, c := range h.snapshot(ev.OwnerIdentity) {
		if err := c.write(websocket.TextMessage, data); err != nil {
			logger.Log.Warn("websocket write failed, dropping client",
				zap.String("identity", c.identity), zap.Error(err))
			h.unregister(c)
		}
	}
	return nil
}

// HandleConnection 是 WebSocket 連線的進入點, the identity comes from JWTMiddleware
func (h *Hub) HandleConnection(conn *websocket.Conn) {
	identity, _ := conn.Locals(middlewares.TokenIdentity).(string)
	if identity == "" {
		conn.Close()
		return
	}

	c := &wsClient{identity: identity, conn: conn}
	h.register(c)
	logger.Log.Info("websocket open", zap.String("identity", identity))

	done := make(chan struct{})
	defer func() {
		close(done)
		h.unregister(c)
		c.markClosed()
		conn.Close()
		logger.Log.Info("websocket close", zap.String("identity", identity))
	}()

	// 定期發送 Ping
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.write(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	// client 不需要送資料, 讀到錯誤就是斷線
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				logger.Log.Debug("websocket read error", zap.String("identity", identity), zap.Error(err))
			}
			return
		}
	}
}

package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 8
	pingInterval   = 30 * time.Second
)

// changedFrame is the only message the change feed carries. It is a dirty
// signal: subscribers refetch, they do not merge.
var changedFrame = []byte(`{"type":"changed"}`)

// hub tracks connected change-feed clients and fans the dirty signal out to
// all of them.
type hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*feedClient]struct{}
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		logger:  logger,
		clients: make(map[*feedClient]struct{}),
	}
}

func (h *hub) register(c *feedClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) unregister(c *feedClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// broadcastChanged queues the dirty signal for every connected client.
// Clients with a full buffer are skipped: they already have an undelivered
// signal queued, and one pending signal is as good as many.
func (h *hub) broadcastChanged() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- changedFrame:
		default:
		}
	}
}

func (h *hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// feedClient is one WebSocket subscriber to the change feed.
type feedClient struct {
	hub  *hub
	conn *ws.Conn
	send chan []byte
}

func newFeedClient(h *hub, conn *ws.Conn) *feedClient {
	return &feedClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// run registers the client, pumps outgoing frames, and blocks until the
// connection drops. Clients never send meaningful data; the read loop only
// detects disconnects.
func (c *feedClient) run(ctx context.Context) {
	c.hub.register(c)
	c.hub.logger.Debug("change feed client connected", "clients", c.hub.clientCount())
	defer func() {
		c.hub.unregister(c)
		c.hub.logger.Debug("change feed client disconnected", "clients", c.hub.clientCount())
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

func (c *feedClient) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

func (c *feedClient) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

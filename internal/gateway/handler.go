package gateway

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"liveclass/pkg/interfaces"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is deployment policy, not handled here.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Config holds the gateway's per-connection tuning. OwnerLabel is the
// display name written on rooms created through this server.
type Config struct {
	OwnerLabel   string
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BufferSize   int
}

// DefaultConfig returns classroom-sized gateway settings.
func DefaultConfig() Config {
	return Config{
		OwnerLabel:   "Professor",
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		BufferSize:   100,
	}
}

// Handler upgrades HTTP requests and runs one Client per socket.
type Handler struct {
	store    interfaces.Store
	registry *Registry
	cfg      Config
}

// NewHandler creates a gateway handler.
func NewHandler(store interfaces.Store, registry *Registry, cfg Config) *Handler {
	return &Handler{
		store:    store,
		registry: registry,
		cfg:      cfg,
	}
}

// HandleWebSocket upgrades the request and serves the connection until the
// peer disconnects.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	wsConn := NewConnection(conn, h.cfg.BufferSize, h.cfg.WriteTimeout)
	client := NewClient(h.store, wsConn, h.cfg.OwnerLabel)
	h.registry.Register(wsConn)

	go h.handleConnection(wsConn, client)
}

// handleConnection is the per-socket read pump with heartbeat monitoring.
// It dispatches every text frame to the client and tears the session down
// on disconnect.
func (h *Handler) handleConnection(conn *Connection, client *Client) {
	defer func() {
		h.registry.Unregister(conn)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client.Shutdown(ctx)
		_ = conn.Close()
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		if messageType == websocket.TextMessage {
			client.Dispatch(conn.ctx, data)
		}
	}
}

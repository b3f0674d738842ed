// Package ws hosts the persistent-connection transport: it accepts
// WebSockets, assigns connection ids, feeds lifecycle and message events to
// the app router, and implements the Sender side of the relay.
package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/peersignal/relay/internal/app"
	"github.com/peersignal/relay/internal/config"
	"github.com/peersignal/relay/internal/core"
	"github.com/peersignal/relay/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrUnreachable  = errors.New("connection unreachable")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrUnreachable
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// Hub tracks live sockets by connection id. It is the process-local view of
// the transport; room membership lives in the Directory, never here.
type Hub struct {
	Router *app.Router

	cfg *config.Config

	mu    sync.RWMutex
	conns map[domain.ConnID]*WsConn
}

func NewHub(cfg *config.Config) *Hub {
	return &Hub{
		cfg:   cfg,
		conns: make(map[domain.ConnID]*WsConn),
	}
}

// SendTo implements core.Sender. The send is non-blocking: a full outbound
// buffer counts as a delivery failure rather than stalling the fan-out.
func (h *Hub) SendTo(_ context.Context, connID domain.ConnID, data core.Frame) error {
	h.mu.RLock()
	conn, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return ErrUnreachable
	}
	return conn.TrySend(data)
}

func (h *Hub) register(connID domain.ConnID, conn *WsConn) {
	h.mu.Lock()
	h.conns[connID] = conn
	h.mu.Unlock()
}

func (h *Hub) unregister(connID domain.ConnID) {
	h.mu.Lock()
	delete(h.conns, connID)
	h.mu.Unlock()
}

// HandleWS accepts one signaling connection. roomId comes from the query
// string, matching the sample client's `?roomId=` join.
func (h *Hub) HandleWS(ctx context.Context, c *gin.Context) {
	roomID := c.Query("roomId")
	if roomID == "" {
		c.String(http.StatusBadRequest, "roomId required")
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(h.cfg.ReadLimit)

	connID := domain.ConnID(uuid.NewString())
	conn := &WsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	h.register(connID, conn)
	log.Info().Str("module", "ws").Str("conn", string(connID)).Str("room", roomID).Msg("new connection")

	if status := h.Router.Dispatch(ctx, app.Event{
		Kind: app.EventConnect,
		Conn: connID,
		Room: domain.RoomID(roomID),
	}); status != app.StatusAccepted {
		log.Warn().Str("module", "ws").Str("conn", string(connID)).Int("status", int(status)).Msg("connect rejected")
		h.unregister(connID)
		conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	go h.writePump(ctx, conn)
	go h.readPump(ctx, cancel, connID, conn)
}

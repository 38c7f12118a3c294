package server

import (
	"fmt"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/segmentio/ksuid"

	"github.com/nguyentranbao-ct/chat-desk/internal/config"
	"github.com/nguyentranbao-ct/chat-desk/internal/models"
	"github.com/nguyentranbao-ct/chat-desk/internal/usecase"
	"github.com/nguyentranbao-ct/chat-desk/pkg/logger"
)

var _ usecase.Broadcaster = (*Hub)(nil)

const (
	EventList          = "list"
	EventState         = "state"
	EventNotifications = "notifications"

	clientBuffer = 64
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

// Frame is what renderers receive over /ws.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans state out to every connected renderer. The last frame of each
// type is replayed to new clients so they start from the current state.
type Hub struct {
	upgrader websocket.Upgrader
	log      *logger.Logger

	mu      sync.RWMutex
	clients map[string]*client
	last    map[string][]byte
	order   []string
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

func NewHub(conf *config.Config) (*Hub, error) {
	origins, err := regexp.Compile(conf.Server.CORSOrigins)
	if err != nil {
		return nil, fmt.Errorf("compile cors origins: %w", err)
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins.MatchString(origin)
			},
		},
		log:     logger.MustNamed("hub"),
		clients: make(map[string]*client),
		last:    make(map[string][]byte),
		order:   []string{EventState, EventList, EventNotifications},
	}, nil
}

func (h *Hub) BroadcastList(update models.ListUpdate) {
	h.broadcast(EventList, update)
}

func (h *Hub) BroadcastState(event models.StateEvent) {
	h.broadcast(EventState, event)
}

func (h *Hub) BroadcastNotifications(list []models.Notification) {
	h.broadcast(EventNotifications, list)
}

func (h *Hub) broadcast(typ string, data any) {
	payload, err := json.Marshal(Frame{Type: typ, Data: data})
	if err != nil {
		h.log.Errorw("marshal frame failed", "type", typ, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last[typ] = payload
	for id, c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// a renderer that cannot keep up is dropped and must reconnect
			h.log.Warnw("client too slow, dropping", "client_id", id)
			delete(h.clients, id)
			c.close()
		}
	}
}

// Clients returns the number of connected renderers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and streams frames until the peer leaves.
func (h *Hub) ServeWS(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote the error response
		h.log.Debugw("upgrade failed", "error", err)
		return nil
	}

	cl := &client{
		id:   ksuid.New().String(),
		conn: conn,
		send: make(chan []byte, clientBuffer),
	}
	h.register(cl)
	h.log.Infow("client connected", "client_id", cl.id, "remote", c.RealIP())

	go h.writePump(cl)
	h.readPump(cl)
	return nil
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, typ := range h.order {
		if payload, ok := h.last[typ]; ok {
			cl.send <- payload
		}
	}
	h.clients[cl.id] = cl
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl.id]; ok {
		delete(h.clients, cl.id)
		cl.close()
	}
	h.mu.Unlock()
}

// readPump only watches for the peer closing; renderers send commands over
// the HTTP API.
func (h *Hub) readPump(cl *client) {
	defer func() {
		h.unregister(cl)
		_ = cl.conn.Close()
		h.log.Infow("client disconnected", "client_id", cl.id)
	}()

	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warnw("read failed", "client_id", cl.id, "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.log.Debugw("write failed", "client_id", cl.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every renderer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		c.close()
	}
}

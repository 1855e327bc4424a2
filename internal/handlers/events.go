package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/example/foodscan/internal/session"
)

const (
	clientBuffer = 16
	writeTimeout = 5 * time.Second
)

// EventMessage is one session event as sent to websocket clients.
type EventMessage struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type eventClient struct {
	conn *websocket.Conn
	send chan EventMessage
}

// EventHub fans session events out to connected websocket clients. Slow
// clients drop messages instead of blocking the session.
type EventHub struct {
	logger   *zap.Logger
	origins  map[string]struct{}
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*eventClient]struct{}
}

// NewEventHub subscribes to every event of state. Browsers may connect from
// the server's own origin or from one of allowedOrigins.
func NewEventHub(state *session.State, allowedOrigins []string, logger *zap.Logger) *EventHub {
	hub := &EventHub{
		logger:  logger.Named("event_hub"),
		origins: make(map[string]struct{}, len(allowedOrigins)),
		clients: make(map[*eventClient]struct{}),
	}
	for _, origin := range allowedOrigins {
		if origin = strings.TrimRight(strings.ToLower(strings.TrimSpace(origin)), "/"); origin != "" {
			hub.origins[origin] = struct{}{}
		}
	}
	hub.upgrader = websocket.Upgrader{CheckOrigin: hub.checkOrigin}
	for _, event := range session.AllEvents() {
		name := event.String()
		state.On(event, func(data interface{}) {
			hub.Broadcast(EventMessage{Event: name, Data: data, Timestamp: time.Now().UTC()})
		})
	}
	return hub
}

// Broadcast queues msg for every client.
func (h *EventHub) Broadcast(msg EventMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			h.logger.Warn("dropping event for slow client", zap.String("event", msg.Event))
		}
	}
}

// Clients returns the number of connected clients.
func (h *EventHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Serve upgrades the request and streams events until the client disconnects.
func (h *EventHub) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade to websocket", zap.Error(err))
		return
	}

	client := &eventClient{conn: conn, send: make(chan EventMessage, clientBuffer)}
	h.register(client)
	h.logger.Info("event client connected", zap.String("remote", c.Request.RemoteAddr))

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(client)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket error", zap.Error(err))
			}
			break
		}
	}

	h.unregister(client)
	<-done
	conn.Close()
	h.logger.Info("event client disconnected", zap.String("remote", c.Request.RemoteAddr))
}

// checkOrigin accepts requests without an Origin header, which only
// non-browser clients send.
func (h *EventHub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	_, ok := h.origins[strings.TrimRight(strings.ToLower(origin), "/")]
	if !ok {
		h.logger.Warn("rejected websocket origin", zap.String("origin", origin))
	}
	return ok
}

func (h *EventHub) writeLoop(client *eventClient) {
	for msg := range client.send {
		_ = client.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := client.conn.WriteJSON(msg); err != nil {
			h.logger.Warn("failed to write event", zap.String("event", msg.Event), zap.Error(err))
			client.conn.Close()
			for range client.send {
			}
			return
		}
	}
}

func (h *EventHub) register(client *eventClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
}

func (h *EventHub) unregister(client *eventClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
}

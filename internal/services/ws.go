package services

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/benmeehan/shuttle-tracker/internal/models"
	"github.com/benmeehan/shuttle-tracker/internal/tracker"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

// Websocket message types.
const (
	MessageMapReady = "map_ready"
	MessageMap      = "map"
	MessageAddress  = "address"
)

const wsWriteTimeout = 5 * time.Second

// ClientMessage is sent by the browser.
type ClientMessage struct {
	Type string `json:"type"`
}

// ServerMessage is sent to the browser: a map frame or an address.
type ServerMessage struct {
	Type    string           `json:"type"`
	Frame   *models.MapFrame `json:"frame,omitempty"`
	Address *string          `json:"address,omitempty"`
}

// wsRenderer draws a view by sending its frames to the browser.
type wsRenderer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (r *wsRenderer) RenderMap(frame models.MapFrame) error {
	return r.write(ServerMessage{Type: MessageMap, Frame: &frame})
}

func (r *wsRenderer) RenderAddress(address string) error {
	return r.write(ServerMessage{Type: MessageAddress, Address: &address})
}

func (r *wsRenderer) write(msg ServerMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return r.conn.WriteJSON(msg)
}

// ViewFactory creates the tracking view of one connection.
type ViewFactory func(id string, renderer tracker.Renderer) *tracker.View

type viewer struct {
	view *tracker.View
	conn *websocket.Conn
}

// Hub serves tracking views over websockets. Every connection owns one view for its lifetime.
type Hub struct {
	upgrader websocket.Upgrader
	newView  ViewFactory
	viewers  cmap.ConcurrentMap[string, *viewer]
	logger   zerolog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewHub creates a Hub. An empty allowedOrigins accepts every origin.
func NewHub(newView ViewFactory, allowedOrigins []string, logger zerolog.Logger) *Hub {
	h := &Hub{
		newView: newView,
		viewers: cmap.New[*viewer](),
		logger:  logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}

// Count returns the number of connected viewers.
func (h *Hub) Count() int {
	return h.viewers.Count()
}

// ServeHTTP upgrades the request and runs the connection's view until the browser goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.track() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.wg.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	view := h.newView(id, &wsRenderer{conn: conn})
	if err := view.Activate(context.Background()); err != nil {
		h.logger.Error().Err(err).Str("view_id", id).Msg("Failed to activate view")
		return
	}
	h.viewers.Set(id, &viewer{view: view, conn: conn})
	h.logger.Info().Str("view_id", id).Str("remote", r.RemoteAddr).Msg("Viewer connected")

	defer func() {
		h.viewers.Remove(id)
		if err := view.Deactivate(); err != nil && !errors.Is(err, tracker.ErrNotActive) {
			h.logger.Warn().Err(err).Str("view_id", id).Msg("Failed to deactivate view")
		}
		h.logger.Info().Str("view_id", id).Msg("Viewer disconnected")
	}()

	// Close may have swept the viewers before this one was added
	if h.isClosed() {
		return
	}

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, net.ErrClosed) {
				h.logger.Debug().Err(err).Str("view_id", id).Msg("Websocket read ended")
			}
			return
		}

		switch msg.Type {
		case MessageMapReady:
			view.MapReady()
		default:
			h.logger.Debug().Str("view_id", id).Str("type", msg.Type).Msg("Ignoring client message")
		}
	}
}

// track registers a connection unless the hub is closed.
func (h *Hub) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.wg.Add(1)
	return true
}

func (h *Hub) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Close disconnects every viewer and waits for their views to be torn down.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	for item := range h.viewers.IterBuffered() {
		_ = item.Val.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = item.Val.conn.Close()
	}
	h.wg.Wait()
}

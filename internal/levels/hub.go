// ABOUTME: WebSocket level feed
// ABOUTME: Broadcasts per-buffer peaks and format changes to connected clients
package levels

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spimeter/spimeter/pkg/audio"
	"github.com/spimeter/spimeter/pkg/meter"
	"github.com/spimeter/spimeter/pkg/stream"
)

const (
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
	clientQueue   = 32
)

// LevelsMessage carries the peaks of one buffer
type LevelsMessage struct {
	Type    string    `json:"type"`
	Peaks   []float32 `json:"peaks"`
	Samples int       `json:"samples"`
}

// FormatMessage announces the negotiated format
type FormatMessage struct {
	Type     string `json:"type"`
	Rate     int    `json:"rate"`
	Channels int    `json:"channels"`
}

// Hub fans observer events out to WebSocket clients
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	events chan interface{}

	clients   map[*client]struct{}
	clientsMu sync.Mutex

	// last format message, replayed to new clients
	format []byte

	dropped atomic.Uint64
}

type client struct {
	conn     *websocket.Conn
	sendChan chan []byte
}

var _ stream.Observer = (*Hub)(nil)

// NewHub creates a hub. Run must be started for events to reach clients.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger.With(slog.String("component", "levels")),
		upgrader: websocket.Upgrader{
			// the feed is read only
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		events:  make(chan interface{}, 64),
		clients: make(map[*client]struct{}),
	}
}

// FormatChanged queues a format message
func (h *Hub) FormatChanged(f audio.Format) {
	h.enqueue(FormatMessage{Type: "format", Rate: f.SampleRate, Channels: f.Channels})
}

// FrameProcessed queues a levels message with a copy of the peaks
func (h *Hub) FrameProcessed(f meter.Frame, _ stream.Stats) {
	c := f.Clone()
	h.enqueue(LevelsMessage{Type: "levels", Peaks: c.Peaks, Samples: c.SamplesPerChannel})
}

func (h *Hub) BufferSkipped(stream.SkipReason) {}

// enqueue never blocks, events are dropped when the hub falls behind
func (h *Hub) enqueue(msg interface{}) {
	select {
	case h.events <- msg:
	default:
		h.dropped.Add(1)
	}
}

// Run distributes queued events until ctx is cancelled, then disconnects every client
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			if n := h.dropped.Load(); n > 0 {
				h.logger.Info("level feed dropped events", slog.Uint64("dropped", n))
			}
			return
		case msg := <-h.events:
			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Warn("failed to marshal level message", slog.String("error", err.Error()))
				continue
			}
			if _, ok := msg.(FormatMessage); ok {
				h.clientsMu.Lock()
				h.format = data
				h.clientsMu.Unlock()
			}
			h.broadcast(data)
		}
	}
}

func (h *Hub) broadcast(data []byte) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	for c := range h.clients {
		select {
		case c.sendChan <- data:
		default:
			// slow client, skip this frame
		}
	}
}

// Dropped returns the number of events discarded because the hub fell behind
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams messages until the client goes away
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{conn: conn, sendChan: make(chan []byte, clientQueue)}

	h.clientsMu.Lock()
	if h.format != nil {
		c.sendChan <- h.format
	}
	h.clients[c] = struct{}{}
	h.clientsMu.Unlock()

	h.logger.Info("level client connected", slog.String("remote", r.RemoteAddr))

	go h.clientWriter(c)

	// reads only detect the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket error", slog.String("error", err.Error()))
			}
			break
		}
	}

	h.remove(c)
	h.logger.Info("level client disconnected", slog.String("remote", r.RemoteAddr))
}

func (h *Hub) remove(c *client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.sendChan)
	}
}

func (h *Hub) closeAll() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	for c := range h.clients {
		delete(h.clients, c)
		close(c.sendChan)
	}
}

// clientWriter sends queued messages and keeps the connection alive
func (h *Hub) clientWriter(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case data, ok := <-c.sendChan:
			if !ok {
				c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(writeDeadline))
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("error writing level message", slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

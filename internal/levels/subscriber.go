// ABOUTME: WebSocket client for the level feed
// ABOUTME: Connects to a bridge's /levels endpoint and routes decoded messages
package levels

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Message is one decoded feed message. Exactly one of Format and Levels is set.
type Message struct {
	Format *FormatMessage
	Levels *LevelsMessage
}

// Subscriber reads the level feed of one bridge
type Subscriber struct {
	conn   *websocket.Conn
	logger *slog.Logger

	// Messages delivers feed messages in arrival order. It is closed when the connection ends.
	Messages chan Message

	mu     sync.Mutex
	err    error
	ctx    context.Context
	cancel context.CancelFunc
}

// FeedURL turns "host:port", "http://host:port" or a ws URL into the feed URL
func FeedURL(addr string) (string, error) {
	if !strings.Contains(addr, "://") {
		addr = "ws://" + addr
	}

	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("invalid feed address %q: %w", addr, err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("feed address %q has no host", addr)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/levels"
	}
	return u.String(), nil
}

// Subscribe connects to the feed at addr and starts reading
func Subscribe(ctx context.Context, addr string, logger *slog.Logger) (*Subscriber, error) {
	feed, err := FeedURL(addr)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "levels"), slog.String("feed", feed))

	logger.Info("connecting to level feed")
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, feed, nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Subscriber{
		conn:     conn,
		logger:   logger,
		Messages: make(chan Message, clientQueue),
		ctx:      sctx,
		cancel:   cancel,
	}

	go func() {
		<-sctx.Done()
		conn.Close()
	}()
	go s.readMessages()

	return s, nil
}

// readMessages reads and routes incoming messages
func (s *Subscriber) readMessages() {
	defer close(s.Messages)
	defer s.cancel()

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.setErr(err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		msg, err := decodeMessage(data)
		if err != nil {
			s.logger.Debug("ignoring feed message", slog.String("error", err.Error()))
			continue
		}

		select {
		case s.Messages <- msg:
		case <-s.ctx.Done():
			return
		}
	}
}

func decodeMessage(data []byte) (Message, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Message{}, fmt.Errorf("failed to parse message: %w", err)
	}

	switch head.Type {
	case "format":
		var f FormatMessage
		if err := json.Unmarshal(data, &f); err != nil {
			return Message{}, fmt.Errorf("failed to parse format: %w", err)
		}
		return Message{Format: &f}, nil
	case "levels":
		var l LevelsMessage
		if err := json.Unmarshal(data, &l); err != nil {
			return Message{}, fmt.Errorf("failed to parse levels: %w", err)
		}
		return Message{Levels: &l}, nil
	default:
		return Message{}, fmt.Errorf("unknown message type %q", head.Type)
	}
}

func (s *Subscriber) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Err returns the read error that ended the feed, nil after a clean close
func (s *Subscriber) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close disconnects. Messages is closed once the reader exits.
func (s *Subscriber) Close() {
	s.cancel()
}

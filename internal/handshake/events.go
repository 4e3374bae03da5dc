package handshake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// ErrSourceClosed is returned by Subscribe after Close.
var ErrSourceClosed = errors.New("handshake: event source closed")

// subscriberBuffer bounds each subscriber channel. The read loop never
// blocks on a slow subscriber; overflow frames are dropped and logged.
const subscriberBuffer = 8

// eventFrame is the wire shape of one backend event. It is the same shape
// the dashboard's authorization callback page posts to its opener:
// {"type": "gmail_connected", "success": true, "payload": {...}}.
type eventFrame struct {
	Type    string         `json:"type"`
	Success bool           `json:"success"`
	Payload map[string]any `json:"payload,omitempty"`
}

// EventSource subscribes to the backend's WebSocket event stream and fans
// frames out to per-type subscribers. The connection is dialed lazily on
// the first Subscribe and torn down by Close.
type EventSource struct {
	url    string
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	subs   map[int]*subscription
	nextID int
	closed bool
}

type subscription struct {
	messageType string
	ch          chan Message
}

// NewEventSource creates a source for the given ws:// or wss:// URL.
func NewEventSource(url string, logger *slog.Logger) *EventSource {
	if logger == nil {
		logger = slog.Default()
	}

	return &EventSource{
		url:    url,
		logger: logger,
		subs:   make(map[int]*subscription),
	}
}

// Subscribe returns a stream of messages whose type matches messageType,
// plus an unsubscribe func that is safe to call any number of times.
// The first Subscribe dials the backend.
func (s *EventSource) Subscribe(messageType string) (<-chan Message, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil, ErrSourceClosed
	}

	if s.conn == nil {
		if err := s.dialLocked(); err != nil {
			return nil, nil, err
		}
	}

	id := s.nextID
	s.nextID++

	sub := &subscription{
		messageType: messageType,
		ch:          make(chan Message, subscriberBuffer),
	}
	s.subs[id] = sub

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if existing, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(existing.ch)
		}
	}

	return sub.ch, unsubscribe, nil
}

// dialLocked establishes the WebSocket connection and starts the read loop.
// Caller holds s.mu.
func (s *EventSource) dialLocked() error {
	ctx, cancel := context.WithCancel(context.Background())

	conn, _, err := websocket.Dial(ctx, s.url, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("handshake: dialing event stream %s: %w", s.url, err)
	}

	s.conn = conn
	s.cancel = cancel

	s.logger.Debug("event stream connected", slog.String("url", s.url))

	go s.readLoop(ctx, conn)

	return nil
}

// readLoop decodes frames and dispatches them until the connection dies.
func (s *EventSource) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var frame eventFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("event stream read failed",
					slog.String("error", err.Error()),
				)
			}

			s.dropConn(conn)

			return
		}

		s.dispatch(frame)
	}
}

// dispatch fans a frame out to subscribers of its type. Never blocks:
// a full subscriber buffer drops the frame.
func (s *EventSource) dispatch(frame eventFrame) {
	msg := Message{
		Type:    frame.Type,
		Success: frame.Success,
		Payload: frame.Payload,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		if sub.messageType != frame.Type {
			continue
		}

		select {
		case sub.ch <- msg:
		default:
			s.logger.Warn("subscriber buffer full, dropping event",
				slog.String("type", frame.Type),
			)
		}
	}
}

// dropConn releases the dead connection so a later Subscribe can redial.
func (s *EventSource) dropConn(conn *websocket.Conn) {
	_ = conn.CloseNow()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == conn {
		s.conn = nil
	}
}

// Close tears down the connection and rejects future subscriptions.
// Existing subscriber channels stay open (their owners unsubscribe).
func (s *EventSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	if s.cancel != nil {
		s.cancel()
	}

	if s.conn != nil {
		// The read loop is already stopping, so nobody is left to finish a
		// close handshake. Drop the connection immediately.
		_ = s.conn.CloseNow()
		s.conn = nil
	}

	return nil
}

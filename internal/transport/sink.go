package transport

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/matchforge/relay/internal/config"
	"github.com/matchforge/relay/internal/relay"
)

// wsSink adapts a websocket connection into the relay's Sink. Sends enqueue
// into a buffered channel consumed by a single write pump, so delivery order
// per connection matches enqueue order and the relay never blocks on the
// socket.
type wsSink struct {
	conn   *websocket.Conn
	cfg    config.TransportConfig
	logger *slog.Logger

	send chan relay.Message
	done chan struct{}

	closeOnce sync.Once
}

func newSink(conn *websocket.Conn, cfg config.TransportConfig, logger *slog.Logger) *wsSink {
	return &wsSink{
		conn:   conn,
		cfg:    cfg,
		logger: logger,
		send:   make(chan relay.Message, cfg.SendBuffer),
		done:   make(chan struct{}),
	}
}

// Send enqueues a message for the write pump. A full buffer fails the send
// rather than blocking the broadcasting room; the room isolates the failure
// to this connection.
func (s *wsSink) Send(msg relay.Message) error {
	select {
	case <-s.done:
		return ErrStreamClosed
	default:
	}

	select {
	case s.send <- msg:
		return nil
	default:
		return fmt.Errorf("send buffer full (%d)", cap(s.send))
	}
}

// close stops the write pump. Idempotent; safe to call concurrently with Send.
func (s *wsSink) close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// writePump is the only goroutine writing to the websocket connection.
func (s *wsSink) writePump() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteJSON(envelopeFrom(msg)); err != nil {
				s.logger.Debug("write failed, stopping pump", "error", err)
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("ping failed, stopping pump", "error", err)
				return
			}

		case <-s.done:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			s.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				deadline,
			)
			return
		}
	}
}

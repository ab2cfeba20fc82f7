package pianod

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	// ErrDisconnected is returned when the socket broke during a send or receive.
	// The session is back in the disconnected state and reconnects on next use.
	ErrDisconnected = errors.New("pianod: session disconnected")

	// ErrReceiveTimeout is returned when the expected response did not arrive in time
	ErrReceiveTimeout = errors.New("pianod: timed out waiting for response")

	// ErrTooManyMessages is returned when too many unrelated messages arrived
	// before the expected response
	ErrTooManyMessages = errors.New("pianod: expected response never arrived")
)

// Session is one persistent text-protocol connection to the controller.
// It is either connected or disconnected; any transport error drops the
// socket and the next EnsureConnected dials a new one.
type Session struct {
	url            string
	dialer         *websocket.Dialer
	logger         *zap.Logger
	receiveTimeout time.Duration
	maxDiscarded   int

	mu   sync.Mutex
	conn *websocket.Conn
}

// SessionOption customizes a Session
type SessionOption func(*Session)

// WithDialer replaces the default WebSocket dialer
func WithDialer(dialer *websocket.Dialer) SessionOption {
	return func(s *Session) {
		s.dialer = dialer
	}
}

// WithReceiveTimeout bounds how long ReceiveUntil waits for its response
func WithReceiveTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		s.receiveTimeout = d
	}
}

// WithMaxDiscarded bounds how many unrelated messages ReceiveUntil skips
func WithMaxDiscarded(n int) SessionOption {
	return func(s *Session) {
		s.maxDiscarded = n
	}
}

// NewSession creates a disconnected session for the controller at url
func NewSession(url string, logger *zap.Logger, opts ...SessionOption) *Session {
	s := &Session{
		url:            url,
		dialer:         websocket.DefaultDialer,
		logger:         logger.Named("pianod"),
		receiveTimeout: 10 * time.Second,
		maxDiscarded:   256,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect dials the controller, replacing any existing socket
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx)
}

func (s *Session) connectLocked(ctx context.Context) error {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}

	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to pianod: %w", err)
	}

	s.conn = conn
	s.logger.Debug("Connected to pianod", zap.String("url", s.url))
	return nil
}

// Connected reports whether the session currently holds a socket
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// EnsureConnected returns the live socket, reconnecting if necessary
func (s *Session) EnsureConnected(ctx context.Context) (*websocket.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		if err := s.connectLocked(ctx); err != nil {
			return nil, err
		}
	}
	return s.conn, nil
}

// Send writes one text command. It does not wait for a reply.
func (s *Session) Send(ctx context.Context, text string) error {
	conn, err := s.EnsureConnected(ctx)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(s.receiveTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetWriteDeadline(deadline)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		s.drop(conn)
		return fmt.Errorf("%w: send %q: %v", ErrDisconnected, text, err)
	}

	s.logger.Debug("Sent pianod command", zap.String("command", text))
	return nil
}

// ReceiveUntil reads messages until one carries the expected code and
// returns it. Messages with other codes, without a code, or that fail to
// decode are discarded. The wait is bounded by the receive timeout (or
// ctx, whichever ends first) and by the discard limit; hitting either
// drops the socket so the next call starts from a clean connection.
func (s *Session) ReceiveUntil(ctx context.Context, code int) (*Message, error) {
	conn, err := s.EnsureConnected(ctx)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(s.receiveTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)

	// Unblock the read as soon as ctx is cancelled
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	discarded := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.drop(conn)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, fmt.Errorf("%w: code %d", ErrReceiveTimeout, code)
			}
			return nil, fmt.Errorf("%w: receive: %v", ErrDisconnected, err)
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("Discarding undecodable pianod message",
				zap.Int("size", len(data)),
				zap.Error(err))
		} else if msg.HasCode(code) {
			return &msg, nil
		}

		discarded++
		if discarded >= s.maxDiscarded {
			s.drop(conn)
			return nil, fmt.Errorf("%w: code %d after %d messages", ErrTooManyMessages, code, discarded)
		}
	}
}

// Close closes the socket if one is open
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := s.conn.Close()
	s.conn = nil
	return err
}

// drop forgets conn if it is still the current socket
func (s *Session) drop(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn.Close()
	if s.conn == conn {
		s.conn = nil
		s.logger.Warn("pianod socket dropped, will reconnect on next use")
	}
}

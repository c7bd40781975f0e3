// Package client owns the connection to the simulation agent backend: the
// Supervisor manages the websocket lifecycle and the Session ties the
// transport to the transcript reconciler.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/time/rate"

	"github.com/chemtalk/chemtalk/internal/log"
	"github.com/chemtalk/chemtalk/internal/protocol"
)

// ConnState is the connection lifecycle state.
type ConnState int

// Connection states.
const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrNotConnected is returned by Send while the connection is not open.
// Sends are never queued; the caller must wait for reconnection.
var ErrNotConnected = errors.New("not connected")

// Handler receives decoded inbound frames in delivery order. It is invoked
// from the supervisor's single read goroutine, one frame at a time, so the
// downstream reconciler is never re-entered.
type Handler func(protocol.Frame)

// SupervisorConfig configures a Supervisor.
type SupervisorConfig struct {
	URL            string
	ReconnectDelay time.Duration // fixed delay between attempts; no backoff
	SendRate       float64       // outbound messages per second; 0 disables limiting
	Handler        Handler
	OnState        func(ConnState) // optional; called on every state change
	Logger         log.Logger
}

// Supervisor owns the websocket lifecycle: it dials, forwards inbound
// frames in the exact order received, and on abnormal close schedules
// exactly one reconnection attempt per fixed delay, indefinitely, until
// its context is canceled. Transport failures never reach the transcript;
// they only flip the connection state.
type Supervisor struct {
	url     string
	delay   time.Duration
	handler Handler
	onState func(ConnState)
	limiter *rate.Limiter
	logger  log.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	state ConnState
}

// NewSupervisor creates a supervisor. Run must be called to connect.
func NewSupervisor(cfg SupervisorConfig) (*Supervisor, error) {
	if cfg.URL == "" {
		return nil, errors.New("client.NewSupervisor: URL is required")
	}
	if cfg.Handler == nil {
		return nil, errors.New("client.NewSupervisor: Handler is required")
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 3 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.SendRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), 1)
	}

	return &Supervisor{
		url:     cfg.URL,
		delay:   cfg.ReconnectDelay,
		handler: cfg.Handler,
		onState: cfg.OnState,
		limiter: limiter,
		logger:  logger.With("component", "supervisor"),
		state:   StateClosed,
	}, nil
}

// State returns the current connection state.
func (s *Supervisor) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run connects and forwards frames until ctx is canceled. On abnormal
// close it waits the fixed reconnect delay and dials again; there is no
// retry cap. Blocking; callers usually run it in a goroutine.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		s.setState(StateConnecting)

		conn, _, err := websocket.Dial(ctx, s.url, nil)
		if err != nil {
			s.logger.Warn("dial failed", "url", s.url, "error", err)
		} else {
			// Frames from the simulator backend can be large (full result
			// sheets serialized into tool results).
			conn.SetReadLimit(16 << 20)

			s.setConn(conn)
			s.setState(StateOpen)
			s.logger.Info("connected", "url", s.url)

			s.readLoop(ctx, conn)

			s.setConn(nil)
			_ = conn.CloseNow()
		}

		s.setState(StateClosed)

		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.delay):
		}
	}
}

// readLoop forwards inbound frames until the connection fails. Malformed
// frames are logged and dropped here, at the ingestion boundary, so they
// never reach the reconciler.
func (s *Supervisor) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("connection lost", "error", err)
			}
			return
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			s.logger.Warn("discarding malformed frame", "error", err, "bytes", len(data))
			continue
		}

		s.handler(frame)
	}
}

// Send transmits one user submission. Fails with ErrNotConnected while the
// connection is not open — no outbound buffering is implemented.
func (s *Supervisor) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	conn, state := s.conn, s.state
	s.mu.Unlock()

	if state != StateOpen || conn == nil {
		return fmt.Errorf("send %q: %w", truncate(text, 32), ErrNotConnected)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("send rate limit: %w", err)
		}
	}

	data, err := protocol.EncodeUserMessage(text)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

func (s *Supervisor) setConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

func (s *Supervisor) setState(state ConnState) {
	s.mu.Lock()
	changed := s.state != state
	s.state = state
	s.mu.Unlock()

	if changed && s.onState != nil {
		s.onState(state)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

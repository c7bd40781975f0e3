package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chemtalk/chemtalk/internal/log"
	"github.com/chemtalk/chemtalk/internal/protocol"
	"github.com/chemtalk/chemtalk/internal/transcript"
)

// ErrSessionClosed is returned by Send after Close.
var ErrSessionClosed = errors.New("session closed")

// SessionConfig configures a Session.
type SessionConfig struct {
	URL            string
	Mode           transcript.Mode
	ReconnectDelay time.Duration
	SendRate       float64
	Logger         log.Logger

	// OnChange is invoked at most once per applied frame, after the
	// mutation is fully applied. It runs on the supervisor's read
	// goroutine and must not block.
	OnChange func()

	// OnState is invoked on connection state changes. Same constraints.
	OnState func(ConnState)
}

// Session is one open connection's worth of conversation: the transcript
// store, the tool-call ledger, the frame builder and the connection
// supervisor, owned together. Reconnection keeps the session — and the
// displayed transcript — intact; the supervisor keeps feeding the same
// builder on the fresh connection.
//
// All transcript access from other goroutines goes through Session
// methods, which synchronize against the supervisor's read goroutine.
type Session struct {
	ID uuid.UUID

	mu      sync.Mutex
	store   *transcript.Store
	ledger  *transcript.Ledger
	builder *transcript.Builder
	sup     *Supervisor
	logger  log.Logger

	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// NewSession assembles a session. Start must be called to connect.
func NewSession(cfg SessionConfig) (*Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	id := uuid.New()
	// Every log line below the session carries the session id, so reconnect
	// and ingest warnings are attributable when several consoles share a
	// log file.
	logger = logger.With("session_id", id.String())

	s := &Session{
		ID:     id,
		store:  transcript.NewStore(),
		logger: logger.With("component", "session"),
	}
	s.ledger = transcript.NewLedger(logger)
	s.builder = transcript.NewBuilder(s.store, s.ledger, cfg.Mode, logger)
	s.store.SetOnChange(cfg.OnChange)

	sup, err := NewSupervisor(SupervisorConfig{
		URL:            cfg.URL,
		ReconnectDelay: cfg.ReconnectDelay,
		SendRate:       cfg.SendRate,
		Handler:        s.ingest,
		OnState:        cfg.OnState,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	s.sup = sup
	return s, nil
}

// Start launches the connection supervisor. The session keeps connecting
// until Close is called.
func (s *Session) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.sup.Run(ctx)
	}()
}

// Close tears the session down: cancels any pending reconnection and stops
// frame forwarding. In-flight sends are not retried.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

// ingest applies one inbound frame. Called from the supervisor's read
// goroutine only.
func (s *Session) ingest(f protocol.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builder.Ingest(f)
}

// Send transmits a user submission and, on success, appends the optimistic
// local echo — the backend does not echo the user's own message back.
func (s *Session) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}

	if err := s.sup.Send(ctx, text); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.builder.AppendUser(text)
	return nil
}

// Snapshot returns a deep copy of the transcript for rendering. Safe to
// use from any goroutine.
func (s *Session) Snapshot() []transcript.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.store.Turns()
	out := make([]transcript.Turn, len(turns))
	for i, t := range turns {
		ct := *t
		if len(t.ToolCalls) > 0 {
			ct.ToolCalls = make([]*transcript.ToolCallRecord, len(t.ToolCalls))
			for j, rec := range t.ToolCalls {
				cr := *rec
				ct.ToolCalls[j] = &cr
			}
		}
		out[i] = ct
	}
	return out
}

// ToggleCollapse flips a turn's display state.
func (s *Session) ToggleCollapse(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.ToggleCollapse(id)
}

// Busy reports whether a request/response cycle is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builder.Busy()
}

// LastError returns the most recent agent error frame message, if any.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builder.LastError()
}

// ConnState returns the supervisor's connection state.
func (s *Session) ConnState() ConnState {
	return s.sup.State()
}

// PendingCalls returns the number of unresolved tool calls.
func (s *Session) PendingCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.PendingCount()
}

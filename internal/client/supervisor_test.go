package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/goleak"

	"github.com/chemtalk/chemtalk/internal/log"
	"github.com/chemtalk/chemtalk/internal/protocol"
)

// goleakOptions filters goroutines owned by the test HTTP stack.
func goleakOptions() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	}
}

// wsURL converts an httptest server URL to its websocket form.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSupervisor_ForwardsFramesInOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		ctx := r.Context()
		_ = c.Write(ctx, websocket.MessageText, []byte(`{"thought":"first"}`))
		_ = c.Write(ctx, websocket.MessageText, []byte(`not json at all`))
		_ = c.Write(ctx, websocket.MessageText, []byte(`{"content":"second"}`))
		_ = c.Write(ctx, websocket.MessageText, []byte(`{"type":"done"}`))
		_ = c.Close(websocket.StatusNormalClosure, "")
	}))
	defer srv.Close()

	frames := make(chan protocol.Frame, 8)
	sup, err := NewSupervisor(SupervisorConfig{
		URL:            wsURL(srv),
		ReconnectDelay: time.Hour, // no reconnect within this test
		Handler:        func(f protocol.Frame) { frames <- f },
		Logger:         log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(ctx)
	}()

	var got []protocol.Frame
	for {
		select {
		case f := <-frames:
			got = append(got, f)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out with %d frames", len(got))
		}
		if len(got) == 3 {
			break
		}
	}

	// The malformed frame is dropped at the boundary; order is preserved.
	if got[0].Thought != "first" || got[1].Content != "second" || !got[2].IsDone() {
		t.Errorf("frames out of order: %+v", got)
	}

	cancel()
	<-done
}

func TestSupervisor_ReconnectsAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		n := conns.Add(1)
		if n == 1 {
			// Simulate an abnormal transport failure on the first connection.
			c.CloseNow()
			return
		}
		defer c.CloseNow()
		_ = c.Write(r.Context(), websocket.MessageText, []byte(`{"content":"after reconnect"}`))
		_ = c.Close(websocket.StatusNormalClosure, "")
	}))
	defer srv.Close()

	frames := make(chan protocol.Frame, 1)
	sup, err := NewSupervisor(SupervisorConfig{
		URL:            wsURL(srv),
		ReconnectDelay: 20 * time.Millisecond,
		Handler: func(f protocol.Frame) {
			select {
			case frames <- f:
			default:
			}
		},
		Logger: log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(ctx)
	}()

	select {
	case f := <-frames:
		if f.Content != "after reconnect" {
			t.Errorf("frame = %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame after reconnect")
	}
	if got := conns.Load(); got < 2 {
		t.Errorf("server saw %d connections, want >= 2", got)
	}

	cancel()
	<-done
}

func TestSupervisor_SendWhileDisconnected(t *testing.T) {
	sup, err := NewSupervisor(SupervisorConfig{
		URL:     "ws://localhost:1/ws/chat",
		Handler: func(protocol.Frame) {},
		Logger:  log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}

	// Never ran: state is closed, send must fail visibly, not queue.
	err = sup.Send(context.Background(), "hello")
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send = %v, want ErrNotConnected", err)
	}
}

func TestSupervisor_StateTransitions(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		<-release
	}))
	defer srv.Close()

	states := make(chan ConnState, 8)
	sup, err := NewSupervisor(SupervisorConfig{
		URL:            wsURL(srv),
		ReconnectDelay: time.Hour,
		Handler:        func(protocol.Frame) {},
		OnState:        func(s ConnState) { states <- s },
		Logger:         log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(ctx)
	}()

	waitState := func(want ConnState) {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case s := <-states:
				if s == want {
					return
				}
			case <-deadline:
				t.Fatalf("never reached state %v", want)
			}
		}
	}

	waitState(StateConnecting)
	waitState(StateOpen)
	if got := sup.State(); got != StateOpen {
		t.Errorf("State() = %v, want open", got)
	}

	close(release)
	cancel()
	<-done

	if got := sup.State(); got != StateClosed {
		t.Errorf("State() after shutdown = %v, want closed", got)
	}
}

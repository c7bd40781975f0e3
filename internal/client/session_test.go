package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/goleak"

	"github.com/chemtalk/chemtalk/internal/log"
	"github.com/chemtalk/chemtalk/internal/protocol"
	"github.com/chemtalk/chemtalk/internal/transcript"
)

// agentScript replies to one user message with a canned tool-call cycle,
// the way the simulation backend narrates a run.
func agentScript(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		ctx := r.Context()

		_, data, err := c.Read(ctx)
		if err != nil {
			return
		}
		var msg protocol.UserMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Errorf("bad outbound frame: %s", data)
			return
		}

		write := func(raw string) { _ = c.Write(ctx, websocket.MessageText, []byte(raw)) }
		write(`{"role":"assistant","type":"update","thought":"need the flowsheet schema"}`)
		write(`{"status":"tool_calling","tool_calls":[{"id":"c1","function_name":"run_simulation","args":{"blocks":[]}}]}`)
		write(`{"status":"tool_executed","tool_results":[{"call_id":"c1","result":"{\"success\":true}","is_error":false,"file_paths":[{"path":"runs/flow.bkp","type":"aspen"}]}]}`)
		write(`{"role":"assistant","type":"update","content":"Simulation converged."}`)
		write(`{"role":"system","type":"file_download","file_paths":[{"path":"runs/flow.bkp","type":"aspen"},{"path":"runs/out.xlsx","type":"result"}]}`)
		write(`{"type":"done"}`)

		// Hold the connection until the client goes away.
		_, _, _ = c.Read(ctx)
	}
}

func TestSession_EndToEndCycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	srv := httptest.NewServer(agentScript(t))
	defer srv.Close()

	changes := make(chan struct{}, 64)
	sess, err := NewSession(SessionConfig{
		URL:            wsURL(srv),
		Mode:           transcript.ModeIncremental,
		ReconnectDelay: time.Hour,
		Logger:         log.NewNop(),
		OnChange: func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		},
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	ctx := context.Background()
	sess.Start(ctx)
	defer sess.Close()

	// Wait for the connection to open before sending.
	waitFor(t, func() bool { return sess.ConnState() == StateOpen })

	if err := sess.Send(ctx, "run the flash drum case"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	// Busy flips on at the echo and off at the backend's done frame.
	waitFor(t, func() bool { return !sess.Busy() && len(sess.Snapshot()) == 3 })

	turns := sess.Snapshot()
	if len(turns) != 3 {
		t.Fatalf("got %d turns, want 3 (user, agent, files): %+v", len(turns), turns)
	}

	user := turns[0]
	if user.Role != transcript.RoleUser || user.Content != "run the flash drum case" {
		t.Errorf("user turn = %+v", user)
	}

	agent := turns[1]
	if agent.Thought != "need the flowsheet schema" {
		t.Errorf("agent thought = %q", agent.Thought)
	}
	if agent.Content != "Simulation converged." {
		t.Errorf("agent content = %q", agent.Content)
	}
	if len(agent.ToolCalls) != 1 {
		t.Fatalf("agent tool calls = %+v", agent.ToolCalls)
	}
	rec := agent.ToolCalls[0]
	if !rec.Resolved() || rec.IsError {
		t.Errorf("tool call unresolved: %+v", rec)
	}
	if len(rec.Files) != 1 || rec.Files[0].Kind != transcript.FileKindSimulation {
		t.Errorf("tool call files = %+v", rec.Files)
	}

	files := turns[2]
	if files.Kind != transcript.KindFiles || len(files.Files) != 2 {
		t.Errorf("files turn = %+v", files)
	}

	if sess.PendingCalls() != 0 {
		t.Errorf("pending calls = %d, want 0", sess.PendingCalls())
	}
	if len(changes) == 0 {
		t.Error("no change notifications delivered")
	}
}

func TestSession_SendFailsWithoutConnection(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	sess, err := NewSession(SessionConfig{
		URL:    "ws://localhost:1/ws/chat",
		Logger: log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	// Not started: the send fails visibly and no optimistic echo appears.
	err = sess.Send(context.Background(), "hello")
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send = %v, want ErrNotConnected", err)
	}
	if got := len(sess.Snapshot()); got != 0 {
		t.Errorf("failed send left %d turns", got)
	}
}

func TestSession_LogsCarrySessionID(t *testing.T) {
	var buf bytes.Buffer
	sess, err := NewSession(SessionConfig{
		URL:    "ws://localhost:1/ws/chat",
		Logger: log.NewWithWriter(&buf, log.Config{}),
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	// An orphaned result is warned about through the session's logger.
	sess.ingest(protocol.Frame{
		ToolResults: []protocol.ToolResult{{CallID: "ghost", Result: "{}"}},
	})

	out := buf.String()
	if !strings.Contains(out, "session_id") || !strings.Contains(out, sess.ID.String()) {
		t.Errorf("log output missing session id %s: %s", sess.ID, out)
	}
}

func TestSession_CloseAfterClose(t *testing.T) {
	sess, err := NewSession(SessionConfig{
		URL:    "ws://localhost:1/ws/chat",
		Logger: log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	sess.Start(context.Background())
	sess.Close()
	sess.Close() // idempotent

	if err := sess.Send(context.Background(), "x"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Send after close = %v, want ErrSessionClosed", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

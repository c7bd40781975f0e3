package transcript

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chemtalk/chemtalk/internal/log"
)

func TestLedger_ResolveIdempotent(t *testing.T) {
	l := NewLedger(log.NewNop())
	rec := &ToolCallRecord{CallID: "c1", FunctionName: "run_simulation"}

	if !l.Register(rec) {
		t.Fatal("Register failed")
	}
	if got := l.Resolve("c1", "r1", false, nil); got == nil {
		t.Fatal("first Resolve returned nil")
	}
	if got := l.Resolve("c1", "r2", true, nil); got != nil {
		t.Fatal("second Resolve should return nil")
	}
	if *rec.Result != "r1" || rec.IsError {
		t.Errorf("record = %+v, want first result retained", rec)
	}
}

func TestLedger_RegisterRejectsReusedID(t *testing.T) {
	l := NewLedger(log.NewNop())

	if !l.Register(&ToolCallRecord{CallID: "c1"}) {
		t.Fatal("first Register failed")
	}
	if l.Register(&ToolCallRecord{CallID: "c1"}) {
		t.Error("duplicate pending id accepted")
	}

	l.Resolve("c1", "done", false, nil)
	if l.Register(&ToolCallRecord{CallID: "c1"}) {
		t.Error("resolved id accepted for re-registration")
	}
}

func TestLedger_OrphanAndDuplicateLogDifferently(t *testing.T) {
	var buf bytes.Buffer
	l := NewLedger(log.NewWithWriter(&buf, log.Config{}))

	l.Resolve("ghost", "x", false, nil)
	if !strings.Contains(buf.String(), "orphaned") {
		t.Errorf("expected orphan warning, got %q", buf.String())
	}

	buf.Reset()
	l.Register(&ToolCallRecord{CallID: "c1"})
	l.Resolve("c1", "x", false, nil)
	l.Resolve("c1", "y", false, nil)
	if !strings.Contains(buf.String(), "duplicate") {
		t.Errorf("expected duplicate warning, got %q", buf.String())
	}
}

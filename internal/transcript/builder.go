package transcript

import (
	"github.com/chemtalk/chemtalk/internal/log"
	"github.com/chemtalk/chemtalk/internal/protocol"
)

// Mode selects how agent frames are shaped into turns.
type Mode int

const (
	// ModeDiscrete spawns an independently collapsible sub-entry turn per
	// thought and per tool call, parented to the open agent turn.
	ModeDiscrete Mode = iota

	// ModeIncremental concatenates thought/content fragments onto the open
	// agent turn and appends tool calls to its shared slice.
	ModeIncremental
)

// Builder applies inbound frames to the transcript. It is the only writer
// of the Store and the Ledger.
//
// The builder is a two-state machine: either no turn is open, or exactly
// one agent turn is. A user submission closes the open agent turn; the
// next agent-origin frame opens a fresh one. Thought, tool-call and
// content effects may all land on the same open turn, because the agent
// legitimately interleaves them within one response cycle.
type Builder struct {
	mode   Mode
	store  *Store
	ledger *Ledger
	logger log.Logger

	open    *Turn // current open agent turn; nil when none
	busy    bool
	lastErr string
}

// NewBuilder creates a builder writing into store and ledger.
func NewBuilder(store *Store, ledger *Ledger, mode Mode, logger log.Logger) *Builder {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Builder{
		mode:   mode,
		store:  store,
		ledger: ledger,
		logger: logger,
	}
}

// AppendUser appends the local echo of a user submission. The previously
// open agent turn, if any, becomes immutable; the user turn itself is
// immutable from the moment it is appended.
func (b *Builder) AppendUser(text string) *Turn {
	b.open = nil
	b.busy = true
	b.lastErr = ""
	t := b.store.append(&Turn{
		Role:    RoleUser,
		Kind:    KindMessage,
		Content: text,
	})
	b.store.flush()
	return t
}

// Busy reports whether a request/response cycle is in flight (between the
// user submission and the backend's done frame).
func (b *Builder) Busy() bool { return b.busy }

// LastError returns the message of the most recent error frame, cleared on
// the next user submission. Error frames never touch the transcript itself.
func (b *Builder) LastError() string { return b.lastErr }

// fieldHandler applies one wire field's effect to the transcript.
type fieldHandler struct {
	name  string
	apply func(protocol.Frame)
}

// Ingest applies one inbound frame. Fields are applied independently in a
// fixed order — a frame may carry several at once — and each handler is
// fault-isolated so a failure in one never blocks the rest. Ingest never
// panics and fires at most one store notification.
func (b *Builder) Ingest(f protocol.Frame) {
	defer b.store.flush()

	handlers := []fieldHandler{
		{"file_download", b.applyFileBundle},
		{"thought", b.applyThought},
		{"tool_calling", b.applyToolCalls},
		{"tool_executed", b.applyToolResults},
		{"content", b.applyContent},
		{"done", b.applyDone},
		{"error", b.applyError},
	}
	for _, h := range handlers {
		b.applyField(h, f)
	}
}

func (b *Builder) applyField(h fieldHandler, f protocol.Frame) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("frame field application panicked", "field", h.name, "panic", r)
		}
	}()
	h.apply(f)
}

// ensureOpen returns the current open agent turn, opening one if needed.
func (b *Builder) ensureOpen() *Turn {
	if b.open == nil {
		b.open = b.store.append(&Turn{
			Role: RoleAgent,
			Kind: KindMessage,
		})
	}
	return b.open
}

// applyFileBundle appends a file-listing turn. File bundles are
// out-of-band: they neither open nor close the current turn.
func (b *Builder) applyFileBundle(f protocol.Frame) {
	if !f.IsFileBundle() || len(f.FilePaths) == 0 {
		return
	}
	files := make([]FileRef, 0, len(f.FilePaths))
	for _, fp := range f.FilePaths {
		files = append(files, FileRef{Path: fp.Path, Kind: FileKindFromWire(fp.Type)})
	}
	b.store.append(&Turn{
		Role:  RoleAgent,
		Kind:  KindFiles,
		Files: files,
	})
}

func (b *Builder) applyThought(f protocol.Frame) {
	if f.Thought == "" {
		return
	}
	open := b.ensureOpen()
	switch b.mode {
	case ModeDiscrete:
		b.store.append(&Turn{
			ParentID:  open.ID,
			Role:      RoleAgent,
			Kind:      KindThought,
			Thought:   f.Thought,
			Collapsed: true,
		})
	case ModeIncremental:
		open.Thought += f.Thought
		b.store.markDirty()
	}
}

func (b *Builder) applyToolCalls(f protocol.Frame) {
	if len(f.ToolCalls) == 0 {
		return
	}
	open := b.ensureOpen()
	for _, tc := range f.ToolCalls {
		rec := &ToolCallRecord{
			CallID:       tc.ID,
			FunctionName: tc.FunctionName,
			Args:         tc.Args,
		}
		if !b.ledger.Register(rec) {
			continue
		}
		switch b.mode {
		case ModeDiscrete:
			b.store.append(&Turn{
				ParentID:  open.ID,
				Role:      RoleAgent,
				Kind:      KindTool,
				ToolCalls: []*ToolCallRecord{rec},
				Collapsed: true,
			})
		case ModeIncremental:
			open.ToolCalls = append(open.ToolCalls, rec)
			b.store.markDirty()
		}
	}
}

// applyToolResults resolves records in place. Results never open a turn:
// an orphaned result must not promote itself into visible transcript
// state, and a legitimate one already has a registered record to land in.
func (b *Builder) applyToolResults(f protocol.Frame) {
	for _, tr := range f.ToolResults {
		files := make([]FileRef, 0, len(tr.FilePaths))
		for _, fp := range tr.FilePaths {
			files = append(files, FileRef{Path: fp.Path, Kind: FileKindFromWire(fp.Type)})
		}
		if rec := b.ledger.Resolve(tr.CallID, tr.Result, tr.IsError, files); rec != nil {
			b.store.markDirty()
		}
	}
}

// applyContent sets (discrete) or appends (incremental) the agent's reply
// text. The turn stays open: trailing tool calls may still follow, and
// only the done frame or the next user submission ends the cycle.
func (b *Builder) applyContent(f protocol.Frame) {
	if f.Content == "" {
		return
	}
	open := b.ensureOpen()
	switch b.mode {
	case ModeDiscrete:
		open.Content = f.Content
	case ModeIncremental:
		open.Content += f.Content
	}
	b.store.markDirty()
}

func (b *Builder) applyDone(f protocol.Frame) {
	if !f.IsDone() {
		return
	}
	b.busy = false
}

func (b *Builder) applyError(f protocol.Frame) {
	if !f.IsError() {
		return
	}
	b.busy = false
	b.lastErr = f.Message
	b.logger.Warn("agent error frame", "message", f.Message)
}

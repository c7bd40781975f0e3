// Package transcript reconstructs a coherent conversation transcript from
// the agent backend's event stream.
//
// The package has three parts: the Store holds the ordered, append-only
// list of turns a renderer observes; the Ledger tracks outstanding tool
// calls by id; the Builder ingests wire frames one at a time and applies
// their effects to both. There is exactly one writer per session, so none
// of the types take locks.
package transcript

import (
	"encoding/json"
	"time"

	"github.com/chemtalk/chemtalk/internal/protocol"
)

// Role identifies who a turn belongs to.
type Role string

// Turn roles.
const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Kind identifies what a turn renders as. In discrete mode, thoughts and
// tool calls become sub-entry turns of their own kind; in incremental mode
// everything merges into a single message turn.
type Kind string

// Turn kinds.
const (
	KindMessage Kind = "message"
	KindThought Kind = "thought"
	KindTool    Kind = "tool"
	KindFiles   Kind = "files"
)

// FileKind classifies a downloadable artifact.
type FileKind string

// Artifact kinds. The backend's "aspen" wire type is the simulation
// flowsheet file.
const (
	FileKindSimulation  FileKind = "simulation"
	FileKindConfig      FileKind = "config"
	FileKindResult      FileKind = "result"
	FileKindUnspecified FileKind = "unspecified"
)

// FileKindFromWire maps the backend's file type strings onto FileKind.
func FileKindFromWire(s string) FileKind {
	switch s {
	case protocol.FileTypeAspen:
		return FileKindSimulation
	case protocol.FileTypeConfig:
		return FileKindConfig
	case protocol.FileTypeResult:
		return FileKindResult
	default:
		return FileKindUnspecified
	}
}

// FileRef references one downloadable artifact. Purely descriptive; the
// artifact package handles retrieval.
type FileRef struct {
	Path string
	Kind FileKind
}

// ToolCallRecord tracks one tool invocation from request to result.
// Result stays nil until the matching tool result arrives; it transitions
// to a value exactly once. A record with a nil Result indefinitely means
// the tool never responded — no timeout is imposed here.
type ToolCallRecord struct {
	CallID       string
	FunctionName string
	Args         json.RawMessage
	Result       *string
	IsError      bool
	Files        []FileRef
}

// Resolved reports whether the record has received its result.
func (r *ToolCallRecord) Resolved() bool { return r.Result != nil }

// Turn is one renderable unit of the transcript.
//
// A user turn is immutable once appended. An agent turn is mutable only
// while it is the builder's current open turn; a later user turn closes it.
// ParentID is non-zero for discrete-mode sub-entries (thought/tool turns
// attached to an open agent turn).
type Turn struct {
	ID        int64
	ParentID  int64
	Role      Role
	Kind      Kind
	Thought   string
	Content   string
	ToolCalls []*ToolCallRecord
	Files     []FileRef
	Collapsed bool
	CreatedAt time.Time
}

// Collapsible reports whether the turn supports collapse toggling:
// discrete-mode sub-entries always do, and an incremental-mode agent turn
// does once it carries thought text (one flag for the whole turn).
func (t *Turn) Collapsible() bool {
	if t.Kind == KindThought || t.Kind == KindTool {
		return true
	}
	return t.Kind == KindMessage && t.Role == RoleAgent && t.Thought != ""
}

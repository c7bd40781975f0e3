// Package protocol defines the wire format spoken by the simulation agent
// backend over its websocket chat endpoint.
//
// Inbound frames are JSON objects in which any subset of fields may be
// present at once: a single frame can carry a thought, tool calls and
// content together. Consumers must therefore treat the fields as
// independent, not as mutually exclusive variants.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Frame type discriminators. Most frames carry no Type at all and are
// identified purely by which payload fields are set.
const (
	TypeDone         = "done"
	TypeFileDownload = "file_download"
	TypeError        = "error"
	TypeUpdate       = "update"
)

// Tool execution status values carried on the status field.
const (
	StatusToolCalling  = "tool_calling"
	StatusToolExecuted = "tool_executed"
)

// File kind strings as sent by the backend. "aspen" denotes the simulation
// flowsheet file itself.
const (
	FileTypeAspen  = "aspen"
	FileTypeConfig = "config"
	FileTypeResult = "result"
)

// ErrMalformedFrame indicates the inbound bytes were not a valid frame.
var ErrMalformedFrame = errors.New("malformed frame")

// ToolCall is one tool invocation requested by the agent. Args is the raw
// argument payload; its shape belongs to the tool's own schema and is passed
// through opaquely.
type ToolCall struct {
	ID           string          `json:"id"`
	FunctionName string          `json:"function_name"`
	Args         json.RawMessage `json:"args"`
}

// ToolResult is the outcome of a previously requested tool call, matched to
// its request by CallID.
type ToolResult struct {
	CallID    string     `json:"call_id"`
	Result    string     `json:"result"`
	IsError   bool       `json:"is_error,omitempty"`
	FilePaths []FilePath `json:"file_paths,omitempty"`
}

// FilePath references a downloadable artifact produced by a simulation run.
type FilePath struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// Frame is one inbound message on the chat connection.
type Frame struct {
	Type        string       `json:"type,omitempty"`
	Role        string       `json:"role,omitempty"`
	Thought     string       `json:"thought,omitempty"`
	Content     string       `json:"content,omitempty"`
	Status      string       `json:"status,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
	FilePaths   []FilePath   `json:"file_paths,omitempty"`
	Message     string       `json:"message,omitempty"` // error detail on type=error frames
}

// IsDone reports whether the frame terminates the current request/response
// cycle.
func (f Frame) IsDone() bool { return f.Type == TypeDone }

// IsFileBundle reports whether the frame announces downloadable artifacts.
func (f Frame) IsFileBundle() bool { return f.Type == TypeFileDownload }

// IsError reports whether the frame signals an agent-side failure.
func (f Frame) IsError() bool { return f.Type == TypeError }

// Decode parses one inbound frame. Malformed input yields a wrapped
// ErrMalformedFrame; it never panics.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return f, nil
}

// UserMessage is the single outbound frame shape: one user submission.
type UserMessage struct {
	Message string `json:"message"`
}

// EncodeUserMessage serializes a user submission for the wire.
func EncodeUserMessage(text string) ([]byte, error) {
	data, err := json.Marshal(UserMessage{Message: text})
	if err != nil {
		return nil, fmt.Errorf("encode user message: %w", err)
	}
	return data, nil
}

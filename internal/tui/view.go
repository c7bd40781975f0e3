package tui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/chemtalk/chemtalk/internal/client"
	"github.com/chemtalk/chemtalk/internal/transcript"
)

// View implements tea.Model.
func (t *TUI) View() tea.View {
	t.viewBuf.Reset()

	_, _ = t.viewBuf.WriteString(t.viewport.View())
	_, _ = t.viewBuf.WriteString("\n")

	_, _ = t.viewBuf.WriteString(t.renderSeparator())
	_, _ = t.viewBuf.WriteString("\n")

	_, _ = t.viewBuf.WriteString(t.styles.Prompt.Render("> "))
	_, _ = t.viewBuf.WriteString(t.input.View())
	_, _ = t.viewBuf.WriteString("\n")

	_, _ = t.viewBuf.WriteString(t.renderSeparator())
	_, _ = t.viewBuf.WriteString("\n")

	_, _ = t.viewBuf.WriteString(t.renderStatusBar())

	v := tea.NewView(t.viewBuf.String())
	v.AltScreen = true
	return v
}

// rebuildViewportContent reconstructs the viewport from the transcript
// snapshot. Called once per change notification.
func (t *TUI) rebuildViewportContent() {
	var b strings.Builder

	turns := t.session.Snapshot()

	if len(turns) == 0 {
		_, _ = b.WriteString(t.styles.RenderBanner())
		_, _ = b.WriteString("\n")
		_, _ = b.WriteString(t.styles.RenderWelcomeTips())
		_, _ = b.WriteString("\n")
	}

	children := childIndex(turns)
	for i := range turns {
		if turns[i].ParentID != 0 {
			continue // rendered under their anchor turn
		}
		t.renderTurn(&b, &turns[i], turns, children)
	}

	if t.session.Busy() {
		_, _ = b.WriteString(t.spinner.View())
		_, _ = b.WriteString(" Working...\n\n")
	}

	if lastErr := t.session.LastError(); lastErr != "" {
		_, _ = b.WriteString(t.styles.Error.Render("Agent error: " + lastErr))
		_, _ = b.WriteString("\n\n")
	}

	for _, note := range t.notes {
		_, _ = b.WriteString(t.styles.System.Render(note))
		_, _ = b.WriteString("\n")
	}

	t.viewport.SetContent(b.String())
}

// childIndex maps an anchor turn id to the indexes of its sub-entry turns,
// in arrival order.
func childIndex(turns []transcript.Turn) map[int64][]int {
	m := make(map[int64][]int)
	for i := range turns {
		if p := turns[i].ParentID; p != 0 {
			m[p] = append(m[p], i)
		}
	}
	return m
}

func (t *TUI) renderTurn(b *strings.Builder, turn *transcript.Turn, turns []transcript.Turn, children map[int64][]int) {
	switch turn.Kind {
	case transcript.KindMessage:
		t.renderMessage(b, turn, turns, children)
	case transcript.KindThought:
		t.renderThought(b, turn)
	case transcript.KindTool:
		for _, rec := range turn.ToolCalls {
			t.renderToolCall(b, rec, turn.Collapsed)
		}
	case transcript.KindFiles:
		t.renderFiles(b, turn)
	}
}

func (t *TUI) renderMessage(b *strings.Builder, turn *transcript.Turn, turns []transcript.Turn, children map[int64][]int) {
	if turn.Role == transcript.RoleUser {
		_, _ = b.WriteString(t.styles.User.Render("You> "))
		_, _ = b.WriteString(turn.Content)
		_, _ = b.WriteString("\n\n")
		return
	}

	// Incremental mode carries thought and tool calls on the turn itself;
	// the turn's single collapse flag folds the thought section.
	if turn.Thought != "" {
		if turn.Collapsed {
			_, _ = b.WriteString(t.styles.Thought.Render(foldHeader("thought", turn.Thought)))
			_, _ = b.WriteString("\n")
		} else {
			_, _ = b.WriteString(t.styles.Thought.Render("· " + turn.Thought))
			_, _ = b.WriteString("\n")
		}
	}
	for _, rec := range turn.ToolCalls {
		t.renderToolCall(b, rec, false)
	}

	// Discrete-mode sub-entries render before the reply text: the thoughts
	// and tool calls arrived first and produced it.
	for _, ci := range children[turn.ID] {
		t.renderTurn(b, &turns[ci], turns, children)
	}

	if turn.Content != "" {
		_, _ = b.WriteString(t.styles.Agent.Render("Agent> "))
		_, _ = b.WriteString(t.markdown.Render(turn.Content))
		_, _ = b.WriteString("\n")
	}
	_, _ = b.WriteString("\n")
}

func (t *TUI) renderThought(b *strings.Builder, turn *transcript.Turn) {
	if turn.Collapsed {
		_, _ = b.WriteString(t.styles.Thought.Render(foldHeader("thought", turn.Thought)))
	} else {
		_, _ = b.WriteString(t.styles.Thought.Render("▾ thought\n  " + strings.ReplaceAll(turn.Thought, "\n", "\n  ")))
	}
	_, _ = b.WriteString("\n")
}

func (t *TUI) renderToolCall(b *strings.Builder, rec *transcript.ToolCallRecord, collapsed bool) {
	style := t.styles.Tool
	status := "…"
	switch {
	case rec.Resolved() && rec.IsError:
		style = t.styles.ToolError
		status = "✗"
	case rec.Resolved():
		status = "✓"
	}

	_, _ = b.WriteString(style.Render(fmt.Sprintf("%s %s(%s)", status, rec.FunctionName, argsDigest(rec.Args))))
	_, _ = b.WriteString("\n")

	if !collapsed && rec.Resolved() && *rec.Result != "" {
		_, _ = b.WriteString(t.styles.System.Render("  " + truncateLine(*rec.Result, 200)))
		_, _ = b.WriteString("\n")
	}
	for _, f := range rec.Files {
		_, _ = b.WriteString(t.styles.Files.Render(fmt.Sprintf("  ⇣ %s (%s)", f.Path, f.Kind)))
		_, _ = b.WriteString("\n")
	}
}

func (t *TUI) renderFiles(b *strings.Builder, turn *transcript.Turn) {
	_, _ = b.WriteString(t.styles.Files.Render("Artifacts ready (Ctrl+F to download):"))
	_, _ = b.WriteString("\n")
	for _, f := range turn.Files {
		_, _ = b.WriteString(t.styles.Files.Render(fmt.Sprintf("  ⇣ %s (%s)", f.Path, f.Kind)))
		_, _ = b.WriteString("\n")
	}
	_, _ = b.WriteString("\n")
}

// foldHeader is the one-line summary for a collapsed entry.
func foldHeader(kind, body string) string {
	return fmt.Sprintf("▸ %s (%d chars)", kind, len(body))
}

// argsDigest renders a short preview of an opaque args payload.
func argsDigest(args []byte) string {
	s := strings.TrimSpace(string(args))
	if s == "" || s == "null" {
		return ""
	}
	return truncateLine(s, 48)
}

func truncateLine(s string, n int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " ..."
	}
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

func (t *TUI) renderSeparator() string {
	width := t.width
	if width <= 0 {
		width = 80
	}
	return t.styles.Separator.Render(strings.Repeat("─", width))
}

// renderStatusBar shows connection state, pending tool calls and key help.
func (t *TUI) renderStatusBar() string {
	var state string
	switch t.connState {
	case client.StateOpen:
		state = "● " + t.connState.String()
	case client.StateConnecting:
		state = "◌ " + t.connState.String()
	default:
		state = "○ " + t.connState.String()
	}
	if n := t.session.PendingCalls(); n > 0 {
		state += fmt.Sprintf(" · %d tool call(s) pending", n)
	}

	bindings := []key.Binding{
		t.keys.Submit, t.keys.Collapse, t.keys.Download,
		t.keys.History, t.keys.ScrollUp, t.keys.Quit,
	}
	return t.styles.StatusBar.Render(state) + "  " + t.help.ShortHelpView(bindings)
}

package tui

import (
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/chemtalk/chemtalk/internal/transcript"
)

// Slash command constants.
const (
	cmdHelp     = "/help"
	cmdDownload = "/download"
	cmdExit     = "/exit"
	cmdQuit     = "/quit"
)

// keyMap holds key bindings for help bar display.
type keyMap struct {
	Submit     key.Binding
	NewLine    key.Binding
	History    key.Binding
	Collapse   key.Binding
	Download   key.Binding
	Cancel     key.Binding
	Quit       key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		NewLine:    key.NewBinding(key.WithKeys("shift+enter"), key.WithHelp("s+enter", "newline")),
		History:    key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "history")),
		Collapse:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "fold entry")),
		Download:   key.NewBinding(key.WithKeys("ctrl+f"), key.WithHelp("ctrl+f", "download files")),
		Cancel:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "clear/quit")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "exit")),
		ScrollUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		ScrollDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
	}
}

func (t *TUI) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	k := msg.Key()

	if k.Mod&tea.ModCtrl != 0 {
		switch k.Code {
		case 'c':
			return t.handleCtrlC()
		case 'd':
			return t, t.cleanup()
		case 'f':
			return t.handleDownload()
		}
	}

	switch k.Code {
	case tea.KeyEnter:
		if k.Mod&tea.ModShift == 0 {
			return t.handleSubmit()
		}

	case tea.KeyTab:
		t.toggleLatestCollapsible()
		return t, nil

	case tea.KeyUp:
		if t.input.Line() == 0 {
			return t.navigateHistory(-1)
		}

	case tea.KeyDown:
		if t.input.Line() == t.input.LineCount()-1 {
			return t.navigateHistory(1)
		}

	case tea.KeyPgUp:
		t.viewport.PageUp()
		return t, nil

	case tea.KeyPgDown:
		t.viewport.PageDown()
		return t, nil
	}

	var cmd tea.Cmd
	t.input, cmd = t.input.Update(msg)
	return t, cmd
}

func (t *TUI) handleCtrlC() (tea.Model, tea.Cmd) {
	now := time.Now()

	// Double Ctrl+C within 1 second = quit
	if now.Sub(t.lastCtrlC) < time.Second {
		return t, t.cleanup()
	}
	t.lastCtrlC = now

	t.input.Reset()
	return t, nil
}

func (t *TUI) handleSubmit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(t.input.Value())
	if text == "" {
		return t, nil
	}

	if strings.HasPrefix(text, "/") {
		return t.handleSlashCommand(text)
	}

	t.history = append(t.history, text)
	if len(t.history) > maxHistory {
		t.history = t.history[len(t.history)-maxHistory:]
	}
	t.historyIdx = len(t.history)

	t.input.Reset()

	return t, tea.Batch(t.spinner.Tick, t.sendMessage(text))
}

func (t *TUI) handleSlashCommand(cmd string) (tea.Model, tea.Cmd) {
	defer t.input.Reset()

	switch cmd {
	case cmdHelp:
		t.addNote("Commands: " + cmdHelp + ", " + cmdDownload + ", " + cmdExit +
			"\nShortcuts: Enter send · Tab fold entry · Ctrl+F download · PgUp/PgDn scroll · Ctrl+D exit")
		t.rebuildViewportContent()
		return t, nil
	case cmdDownload:
		return t.handleDownload()
	case cmdExit, cmdQuit:
		return t, t.cleanup()
	default:
		t.addNote("Unknown command: " + cmd)
		t.rebuildViewportContent()
		return t, nil
	}
}

// handleDownload fetches the artifacts of the most recent file bundle.
func (t *TUI) handleDownload() (tea.Model, tea.Cmd) {
	refs := t.latestFiles()
	if len(refs) == 0 {
		t.addNote("no downloadable artifacts yet")
		t.rebuildViewportContent()
		return t, nil
	}
	t.addNote("downloading...")
	t.rebuildViewportContent()
	return t, t.downloadFiles(refs)
}

// latestFiles returns the artifacts of the most recent files turn.
func (t *TUI) latestFiles() []transcript.FileRef {
	turns := t.session.Snapshot()
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Kind == transcript.KindFiles {
			return turns[i].Files
		}
	}
	return nil
}

// toggleLatestCollapsible folds or unfolds the most recent collapsible
// entry (display state only).
func (t *TUI) toggleLatestCollapsible() {
	turns := t.session.Snapshot()
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Collapsible() {
			t.session.ToggleCollapse(turns[i].ID)
			return
		}
	}
}

func (t *TUI) navigateHistory(delta int) (tea.Model, tea.Cmd) {
	if len(t.history) == 0 {
		return t, nil
	}

	t.historyIdx += delta
	if t.historyIdx < 0 {
		t.historyIdx = 0
	}
	if t.historyIdx > len(t.history) {
		t.historyIdx = len(t.history)
	}

	if t.historyIdx == len(t.history) {
		t.input.SetValue("")
	} else {
		t.input.SetValue(t.history[t.historyIdx])
		t.input.CursorEnd()
	}

	return t, nil
}

// Package tui provides the Bubble Tea terminal interface for chemtalk.
//
// The TUI is a pure observer of the session transcript: every change
// notification triggers one snapshot and one viewport rebuild. All
// conversational state lives in the session; the TUI only owns display
// concerns (input, scrollback, collapse toggling, downloads).
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/chemtalk/chemtalk/internal/artifact"
	"github.com/chemtalk/chemtalk/internal/client"
)

// Memory bounds to prevent unbounded growth.
const (
	maxHistory = 100 // command history entries
	maxNotes   = 20  // transient system notes
)

// changeBufferSize absorbs notification bursts during render delays.
// Notifications are edge-triggered — the renderer re-snapshots the whole
// transcript — so dropping excess ones is safe.
const changeBufferSize = 64

// Layout constants for viewport height calculation.
const (
	separatorLines = 2
	helpLines      = 1
	promptLines    = 1
	minViewport    = 3
)

// Config assembles a TUI.
type Config struct {
	// Session is the connection/session configuration. OnChange and
	// OnState are set by New; values provided here are ignored.
	Session client.SessionConfig

	// Downloader fetches artifacts announced on the stream.
	Downloader *artifact.Client
}

// TUI is the Bubble Tea model for the chemtalk console.
type TUI struct {
	// Input
	input      textarea.Model
	history    []string
	historyIdx int
	lastCtrlC  time.Time

	// Output
	spinner  spinner.Model
	viewBuf  strings.Builder
	viewport viewport.Model
	help     help.Model
	keys     keyMap
	styles   Styles
	markdown *markdownRenderer

	// Transient UI-only notes (send failures, download results)
	notes []string

	// Session plumbing
	session    *client.Session
	downloader *artifact.Client
	connState  client.ConnState
	changeCh   chan struct{}
	stateCh    chan client.ConnState

	ctx       context.Context
	ctxCancel context.CancelFunc

	width  int
	height int
}

// New creates the TUI and its session. The session is not connected until
// Init runs inside the Bubble Tea program.
//
// ctx must be the same context passed to tea.WithContext for consistent
// cancellation behavior.
func New(ctx context.Context, cfg Config) (*TUI, error) {
	if ctx == nil {
		return nil, errors.New("tui.New: ctx is required")
	}
	if cfg.Downloader == nil {
		return nil, errors.New("tui.New: downloader is required")
	}

	ctx, cancel := context.WithCancel(ctx)

	t := &TUI{
		downloader: cfg.Downloader,
		connState:  client.StateClosed,
		changeCh:   make(chan struct{}, changeBufferSize),
		stateCh:    make(chan client.ConnState, changeBufferSize),
		ctx:        ctx,
		ctxCancel:  cancel,
		keys:       newKeyMap(),
		styles:     DefaultStyles(),
		history:    make([]string, 0, maxHistory),
		markdown:   newMarkdownRenderer(80),
		width:      80,
	}

	sessCfg := cfg.Session
	sessCfg.OnChange = func() {
		select {
		case t.changeCh <- struct{}{}:
		default: // edge-triggered; a pending notification already covers this
		}
	}
	sessCfg.OnState = func(st client.ConnState) {
		select {
		case t.stateCh <- st:
		default:
		}
	}

	sess, err := client.NewSession(sessCfg)
	if err != nil {
		cancel()
		return nil, err
	}
	t.session = sess

	ta := textarea.New()
	ta.Placeholder = "Describe a simulation task..."
	ta.SetHeight(1)
	ta.SetWidth(120)
	ta.MaxWidth = 0
	ta.ShowLineNumbers = false

	cleanStyle := textarea.StyleState{
		Base:        lipgloss.NewStyle(),
		Text:        lipgloss.NewStyle(),
		Placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Prompt:      lipgloss.NewStyle(),
	}
	ta.SetStyles(textarea.Styles{Focused: cleanStyle, Blurred: cleanStyle})
	ta.Focus()
	t.input = ta

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	t.spinner = sp

	vp := viewport.New(viewport.WithWidth(80), viewport.WithHeight(20))
	vp.MouseWheelEnabled = true
	vp.SoftWrap = true
	vp.KeyMap = viewport.KeyMap{} // keys are routed explicitly in handleKey
	t.viewport = vp

	t.help = help.New()

	return t, nil
}

// Session exposes the underlying session, mainly for the owner's cleanup.
func (t *TUI) Session() *client.Session { return t.session }

// Init implements tea.Model. It starts the connection supervisor and the
// notification listeners.
func (t *TUI) Init() tea.Cmd {
	t.session.Start(t.ctx)
	t.rebuildViewportContent()
	return tea.Batch(
		textarea.Blink,
		t.spinner.Tick,
		t.input.Focus(),
		listenForChange(t.changeCh),
		listenForState(t.stateCh),
	)
}

// Update implements tea.Model.
func (t *TUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return t.handleKey(msg)

	case tea.WindowSizeMsg:
		t.width = msg.Width
		t.height = msg.Height

		inputHeight := t.input.Height() + promptLines
		fixedHeight := separatorLines + inputHeight + helpLines
		vpHeight := max(msg.Height-fixedHeight, minViewport)

		t.viewport.SetWidth(msg.Width)
		t.viewport.SetHeight(vpHeight)
		t.input.SetWidth(msg.Width - 4)
		t.help.SetWidth(msg.Width)
		t.markdown.UpdateWidth(msg.Width)

		t.rebuildViewportContent()
		return t, nil

	case tea.MouseWheelMsg:
		var cmd tea.Cmd
		t.viewport, cmd = t.viewport.Update(msg)
		return t, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		t.spinner, cmd = t.spinner.Update(msg)
		if t.session.Busy() {
			t.rebuildViewportContent()
		}
		return t, cmd

	case transcriptChangedMsg:
		t.rebuildViewportContent()
		t.viewport.GotoBottom()
		return t, listenForChange(t.changeCh)

	case connStateMsg:
		t.connState = msg.state
		switch msg.state {
		case client.StateOpen:
			t.addNote("(connected)")
		case client.StateClosed:
			t.addNote("(connection lost - retrying)")
		}
		t.rebuildViewportContent()
		return t, listenForState(t.stateCh)

	case sendFailedMsg:
		t.addNote("send failed: " + msg.err.Error())
		t.rebuildViewportContent()
		return t, nil

	case sentMsg:
		t.rebuildViewportContent()
		t.viewport.GotoBottom()
		return t, t.spinner.Tick

	case downloadDoneMsg:
		if msg.err != nil {
			t.addNote("download failed: " + msg.err.Error())
		} else {
			t.addNote("downloaded " + strings.Join(msg.paths, ", "))
		}
		t.rebuildViewportContent()
		return t, nil
	}

	var cmd tea.Cmd
	t.input, cmd = t.input.Update(msg)
	return t, cmd
}

// addNote appends a transient system note, bounded by maxNotes.
func (t *TUI) addNote(note string) {
	t.notes = append(t.notes, note)
	if len(t.notes) > maxNotes {
		t.notes = t.notes[len(t.notes)-maxNotes:]
	}
}

// cleanup tears the session down and returns the quit command.
func (t *TUI) cleanup() tea.Cmd {
	if t.ctxCancel != nil {
		t.ctxCancel()
		t.ctxCancel = nil
	}
	t.session.Close()
	return tea.Quit
}

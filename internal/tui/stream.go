package tui

import (
	tea "charm.land/bubbletea/v2"

	"github.com/chemtalk/chemtalk/internal/client"
	"github.com/chemtalk/chemtalk/internal/transcript"
)

// Messages produced by the session listeners and async commands.
type (
	transcriptChangedMsg struct{}
	connStateMsg         struct{ state client.ConnState }
	sentMsg              struct{}
	sendFailedMsg        struct{ err error }
	downloadDoneMsg      struct {
		paths []string
		err   error
	}
)

// listenForChange waits for the next transcript change notification.
// One notification per applied frame; the renderer re-snapshots the whole
// transcript, so coalesced notifications lose nothing.
func listenForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if ch == nil {
			return nil
		}
		if _, ok := <-ch; !ok {
			return nil
		}
		return transcriptChangedMsg{}
	}
}

// listenForState waits for the next connection state change.
func listenForState(ch <-chan client.ConnState) tea.Cmd {
	return func() tea.Msg {
		if ch == nil {
			return nil
		}
		st, ok := <-ch
		if !ok {
			return nil
		}
		return connStateMsg{state: st}
	}
}

// sendMessage transmits a user submission off the UI goroutine. The
// optimistic echo lands in the transcript on success; failures surface as
// a visible note, never as silent queuing.
func (t *TUI) sendMessage(text string) tea.Cmd {
	return func() tea.Msg {
		if err := t.session.Send(t.ctx, text); err != nil {
			return sendFailedMsg{err: err}
		}
		return sentMsg{}
	}
}

// downloadFiles fetches the given artifacts sequentially.
func (t *TUI) downloadFiles(refs []transcript.FileRef) tea.Cmd {
	return func() tea.Msg {
		paths := make([]string, 0, len(refs))
		for _, ref := range refs {
			dest, err := t.downloader.Fetch(t.ctx, ref)
			if err != nil {
				return downloadDoneMsg{paths: paths, err: err}
			}
			paths = append(paths, dest)
		}
		return downloadDoneMsg{paths: paths}
	}
}

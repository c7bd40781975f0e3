package transcript

import "time"

// Store is the ordered, append-only sequence of turns — the single source
// of truth a renderer observes. All conversational mutation goes through
// the Builder; the only operation a renderer may call directly is
// ToggleCollapse, which flips display state and never touches content.
//
// The store fires at most one change notification per ingest: mutations
// mark it dirty and the builder flushes once after the whole frame has
// been applied, so an observer never sees a half-updated turn.
type Store struct {
	turns    []*Turn
	byID     map[int64]*Turn
	nextID   int64
	onChange func()
	dirty    bool
}

// NewStore creates an empty transcript store.
func NewStore() *Store {
	return &Store{byID: make(map[int64]*Turn)}
}

// SetOnChange registers the single observer callback. It is invoked at most
// once per applied frame, after the mutation is fully applied.
func (s *Store) SetOnChange(fn func()) { s.onChange = fn }

// Turns returns a snapshot of the turn sequence. The slice is a copy; the
// turns themselves are shared and must be treated as read-only by callers.
func (s *Store) Turns() []*Turn {
	out := make([]*Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Turn looks up a turn by id.
func (s *Store) Turn(id int64) (*Turn, bool) {
	t, ok := s.byID[id]
	return t, ok
}

// Len returns the number of turns.
func (s *Store) Len() int { return len(s.turns) }

// Last returns the most recent turn, or nil for an empty transcript.
func (s *Store) Last() *Turn {
	if len(s.turns) == 0 {
		return nil
	}
	return s.turns[len(s.turns)-1]
}

// ToggleCollapse flips the display state of a collapsible turn. Returns
// false if the id is unknown or the turn is not collapsible.
func (s *Store) ToggleCollapse(id int64) bool {
	t, ok := s.byID[id]
	if !ok || !t.Collapsible() {
		return false
	}
	t.Collapsed = !t.Collapsed
	s.markDirty()
	s.flush()
	return true
}

// append assigns the next monotonic id and adds the turn to the sequence.
func (s *Store) append(t *Turn) *Turn {
	s.nextID++
	t.ID = s.nextID
	t.CreatedAt = time.Now()
	s.turns = append(s.turns, t)
	s.byID[t.ID] = t
	s.markDirty()
	return t
}

func (s *Store) markDirty() { s.dirty = true }

// flush delivers the pending change notification, if any.
func (s *Store) flush() {
	if !s.dirty {
		return
	}
	s.dirty = false
	if s.onChange != nil {
		s.onChange()
	}
}

package transcript

import "github.com/chemtalk/chemtalk/internal/log"

// Ledger tracks outstanding tool-call requests by call id and merges
// matching results into their records. Lookups are O(1) by identifier.
//
// Guarantees: each call id resolves at most once; a duplicate request id is
// skipped (the later request is invisible to the ledger); an orphaned or
// duplicate result is discarded with a logged warning.
type Ledger struct {
	pending  map[string]*ToolCallRecord
	resolved map[string]struct{}
	logger   log.Logger
}

// NewLedger creates an empty ledger.
func NewLedger(logger log.Logger) *Ledger {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Ledger{
		pending:  make(map[string]*ToolCallRecord),
		resolved: make(map[string]struct{}),
		logger:   logger,
	}
}

// Register inserts a new outstanding request. A call id already known to
// the ledger (pending or resolved) is a protocol violation: the record is
// not registered and false is returned.
func (l *Ledger) Register(rec *ToolCallRecord) bool {
	if _, dup := l.pending[rec.CallID]; dup {
		l.logger.Warn("duplicate tool call id, registration skipped", "call_id", rec.CallID, "function", rec.FunctionName)
		return false
	}
	if _, dup := l.resolved[rec.CallID]; dup {
		l.logger.Warn("tool call id reused after resolution, registration skipped", "call_id", rec.CallID, "function", rec.FunctionName)
		return false
	}
	l.pending[rec.CallID] = rec
	return true
}

// Resolve moves the matching record from pending to resolved, setting its
// result exactly once. Returns the record, or nil when the result was
// orphaned (unknown id) or a duplicate (already resolved); both cases are
// logged and otherwise ignored, so the first result always wins.
func (l *Ledger) Resolve(callID, result string, isError bool, files []FileRef) *ToolCallRecord {
	rec, ok := l.pending[callID]
	if !ok {
		if _, done := l.resolved[callID]; done {
			l.logger.Warn("duplicate tool result ignored", "call_id", callID)
		} else {
			l.logger.Warn("orphaned tool result discarded", "call_id", callID)
		}
		return nil
	}

	r := result
	rec.Result = &r
	rec.IsError = isError
	rec.Files = files

	delete(l.pending, callID)
	l.resolved[callID] = struct{}{}
	return rec
}

// PendingCount returns the number of unresolved calls.
func (l *Ledger) PendingCount() int { return len(l.pending) }

// Pending looks up an unresolved record by call id.
func (l *Ledger) Pending(callID string) (*ToolCallRecord, bool) {
	rec, ok := l.pending[callID]
	return rec, ok
}

package coverage

import "sync"

// Tracker collects executed lines. It is safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	lines LineSet
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{lines: make(LineSet)}
}

// Record marks lines as executed. Non-positive lines are ignored.
func (t *Tracker) Record(lines ...int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, l := range lines {
		if l > 0 {
			t.lines[l] = struct{}{}
		}
	}
}

// Lines returns a snapshot of the executed lines. Later calls to Record do
// not affect it.
func (t *Tracker) Lines() LineSet {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(LineSet, len(t.lines))
	for l := range t.lines {
		out[l] = struct{}{}
	}
	return out
}

// Reset forgets every recorded line.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = make(LineSet)
}

package feed

import "sync"

// Recorded is one captured publication.
type Recorded struct {
	Scope  string
	Change Change
}

// Recorder is a Publisher for tests: it captures publications instead
// of fanning them out.
type Recorder struct {
	mu      sync.Mutex
	changes []Recorded
	removed []string
}

func (r *Recorder) Publish(scope string, change Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, Recorded{Scope: scope, Change: change})
}

func (r *Recorder) Remove(scope string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, scope)
}

func (r *Recorder) Changes() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.changes))
	copy(out, r.changes)
	return out
}

func (r *Recorder) Removed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.removed))
	copy(out, r.removed)
	return out
}

package contextcomp

import "sync"

// Trigger counts logged conversation turns and fires every nth one. A
// session owns one trigger; firing resets the count so a failed
// summarization is retried by its own worker, not by re-firing.
type Trigger struct {
	mu    sync.Mutex
	every int
	count int
}

// NewTrigger returns a trigger firing every n turns. n <= 0 disables it.
func NewTrigger(n int) *Trigger {
	return &Trigger{every: n}
}

// Observe records one logged turn and reports whether a summarization
// pass is due.
func (t *Trigger) Observe() bool {
	if t.every <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count++
	if t.count >= t.every {
		t.count = 0
		return true
	}
	return false
}

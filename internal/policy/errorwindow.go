package policy

import (
	"sync"
	"time"
)

// ErrorWindow tracks provider error timestamps inside a rolling window.
// Entries older than the window are purged before any read, so the count
// always reflects the current window.
type ErrorWindow struct {
	mu      sync.Mutex
	window  time.Duration
	entries []time.Time
}

// NewErrorWindow creates a window of the given length.
func NewErrorWindow(window time.Duration) *ErrorWindow {
	if window <= 0 {
		window = 10 * time.Minute
	}
	return &ErrorWindow{window: window}
}

// Record adds an error at the current time.
func (w *ErrorWindow) Record() {
	w.recordAt(time.Now())
}

func (w *ErrorWindow) recordAt(ts time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.purgeLocked(ts)
	w.entries = append(w.entries, ts)
}

// Count returns the number of errors still inside the window.
func (w *ErrorWindow) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.purgeLocked(time.Now())
	return len(w.entries)
}

// Reset discards all recorded errors.
func (w *ErrorWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = nil
}

// purgeLocked drops entries older than the window. Must be called with the
// lock held.
func (w *ErrorWindow) purgeLocked(now time.Time) {
	cutoff := now.Add(-w.window)
	kept := w.entries[:0]
	for _, ts := range w.entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.entries = kept
}

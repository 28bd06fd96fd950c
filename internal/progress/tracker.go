// Package progress tracks the progress of chunked transfers.
package progress

import "sync"

// Callback is called to report progress: cumulative bytes settled and the
// total expected.
type Callback func(bytesTransferred, totalBytes int64)

// Tracker accumulates progress reported by concurrent workers.
// Callbacks are serialized and observe monotonically increasing totals.
type Tracker struct {
	mu       sync.Mutex
	callback Callback
	total    int64
	done     int64
}

// NewTracker creates a tracker expecting total bytes.
// A nil callback is allowed.
func NewTracker(total int64, callback Callback) *Tracker {
	return &Tracker{callback: callback, total: total}
}

// Add records n more bytes and reports the new cumulative count.
func (t *Tracker) Add(n int64) {
	if t == nil || n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done += n
	if t.callback != nil {
		t.callback(t.done, t.total)
	}
}

// Done returns the bytes recorded so far.
func (t *Tracker) Done() int64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

package player

import (
	"sync"
	"time"
)

// DefaultCommandRetries is how many times a control command is attempted
// before giving up.
const DefaultCommandRetries = 5

// retryTask runs a fallible function up to a bounded number of attempts
// with linearly increasing delay between them. Delivery is best-effort:
// exhausting the attempts is not an error anyone observes. Canceling stops
// future attempts; it is safe to cancel after completion or from the
// attempt goroutine itself.
type retryTask struct {
	fn       func() error
	attempts int
	delay    time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	canceled bool
}

// newRetryTask schedules fn immediately and then every delay*n until it
// returns nil or attempts run out.
func newRetryTask(fn func() error, attempts int, delay time.Duration) *retryTask {
	if attempts <= 0 {
		attempts = DefaultCommandRetries
	}
	t := &retryTask{fn: fn, attempts: attempts, delay: delay}
	go t.attempt(1)
	return t
}

func (t *retryTask) attempt(n int) {
	t.mu.Lock()
	if t.canceled {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	if t.fn() == nil || n >= t.attempts {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.canceled {
		return
	}
	t.timer = time.AfterFunc(t.delay*time.Duration(n), func() {
		t.attempt(n + 1)
	})
}

// cancel stops any pending attempt
func (t *retryTask) cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.canceled = true
	if t.timer != nil {
		t.timer.Stop()
	}
}

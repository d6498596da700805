package parental

import (
	"sync"
	"time"
)

// Timer counts down the remaining daily watch allowance while playback is
// active. It ticks once per second; pausing playback pauses the countdown.
// Callbacks run on the timer goroutine and must not block.
type Timer struct {
	mu        sync.Mutex
	remaining time.Duration
	running   bool
	done      chan struct{}

	onTick   func(remaining time.Duration)
	onExpire func()
}

// NewTimer creates a countdown over the given allowance. Either callback
// may be nil.
func NewTimer(remaining time.Duration, onTick func(time.Duration), onExpire func()) *Timer {
	return &Timer{
		remaining: remaining,
		done:      make(chan struct{}),
		onTick:    onTick,
		onExpire:  onExpire,
	}
}

// Start begins or resumes the countdown
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.running = true
	go t.run()
}

// Pause suspends the countdown without losing the remaining time
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Stop ends the countdown permanently
func (t *Timer) Stop() {
	t.Pause()
}

// Remaining returns the time left on the allowance
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

func (t *Timer) stopLocked() {
	if !t.running {
		return
	}
	t.running = false
	close(t.done)
	t.done = make(chan struct{})
}

func (t *Timer) run() {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			t.mu.Lock()
			if !t.running {
				t.mu.Unlock()
				return
			}
			t.remaining -= time.Second
			remaining := t.remaining
			expired := remaining <= 0
			if expired {
				t.stopLocked()
			}
			t.mu.Unlock()

			if t.onTick != nil {
				t.onTick(remaining)
			}
			if expired {
				if t.onExpire != nil {
					t.onExpire()
				}
				return
			}
		}
	}
}

// Package schedule runs a function once after a delay, with a handle that
// cancels it deterministically.
package schedule

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Task is a pending call. Once Cancel returns true the function will not run.
type Task struct {
	mu        sync.Mutex
	timer     *clock.Timer
	cancelled bool
	fired     bool
}

// After schedules fn to run on its own goroutine after d on clk.
func After(clk clock.Clock, d time.Duration, fn func()) *Task {
	t := &Task{}
	timer := clk.AfterFunc(d, func() {
		t.mu.Lock()
		if t.cancelled {
			t.mu.Unlock()
			return
		}
		t.fired = true
		t.mu.Unlock()
		fn()
	})
	t.mu.Lock()
	t.timer = timer
	t.mu.Unlock()
	return t
}

// Cancel stops the task. It reports false if the function already started.
// Cancelling a nil or finished task is safe.
func (t *Task) Cancel() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired {
		return false
	}
	t.cancelled = true
	if t.timer != nil {
		t.timer.Stop()
	}
	return true
}

// Pending reports whether the task has neither fired nor been cancelled.
func (t *Task) Pending() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.fired && !t.cancelled
}

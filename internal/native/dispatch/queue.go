// Package dispatch provides the callback queue behind
// calendar.NativeStore.RunDispatch.
package dispatch

import "time"

const defaultCapacity = 16

// Queue holds callbacks posted by background work until the owning goroutine
// services them. Callbacks always run on the goroutine calling Run.
type Queue struct {
	ch chan func()
}

func New() *Queue {
	return &Queue{ch: make(chan func(), defaultCapacity)}
}

// Post enqueues fn. It blocks when the queue is full.
func (q *Queue) Post(fn func()) {
	q.ch <- fn
}

// Run executes at most one queued callback, waiting up to d for one to
// arrive. It reports whether a callback ran.
func (q *Queue) Run(d time.Duration) bool {
	select {
	case fn := <-q.ch:
		fn()
		return true
	default:
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case fn := <-q.ch:
		fn()
		return true
	case <-timer.C:
		return false
	}
}

// Pending returns the number of queued callbacks
func (q *Queue) Pending() int {
	return len(q.ch)
}

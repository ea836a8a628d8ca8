package engine

import "sync"

// Queue carries events from the build worker to a front end. Publish never
// blocks; the consumer polls with Drain or waits on Wait.
type Queue struct {
	mu      sync.Mutex
	items   []Event
	closed  bool
	drained bool

	// Notification channel: close-and-replace pattern.
	// Consumers call Wait() to get the current channel, then block on it.
	// Every publish closes the old channel and replaces it with a new one.
	notify chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{})}
}

// Publish appends an event. It reports false once the queue is closed, in
// which case the event is dropped.
func (q *Queue) Publish(ev Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, ev)
	q.signal()
	return true
}

// Close publishes the DONE token. Only the first call has an effect.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, newEvent(KindDone, "", "", "Finished"))
	q.closed = true
	q.signal()
}

// Drain removes and returns everything queued so far. It may return nil.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	if q.closed {
		q.drained = true
	}
	return out
}

// Wait returns a channel that will be closed when the next event is published.
func (q *Queue) Wait() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.notify
}

// Done reports whether the DONE token has been drained.
func (q *Queue) Done() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drained
}

// signal must be called with q.mu held.
func (q *Queue) signal() {
	close(q.notify)
	q.notify = make(chan struct{})
}

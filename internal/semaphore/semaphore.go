// Package semaphore provides the minimal binary/counting semaphore the
// storage scheduler and streaming loader use to sleep until a producer
// signals new work (or a consumer frees a buffer). It is the Go stand-in
// for the "Semaphore with wait/post" external collaborator the spec
// delegates to the platform (§6): Go has no stdlib semaphore type, so we
// provide the smallest one that satisfies wait/post semantics on top of a
// buffered channel.
//
// © 2025 assetpipe authors. MIT License.
package semaphore

// Semaphore is a counting semaphore. Post increments the count (waking one
// waiter if any is blocked); Wait blocks until the count is positive, then
// decrements it.
type Semaphore struct {
	ch chan struct{}
}

// New creates a semaphore with the given initial count.
func New(initial int) *Semaphore {
	if initial < 0 {
		initial = 0
	}
	// The channel capacity bounds how many outstanding "posts" can be
	// buffered before a waiter arrives; the scheduler and streaming loader
	// only ever need a handful in flight, so a generous fixed buffer keeps
	// Post non-blocking in practice without requiring unbounded memory.
	s := &Semaphore{ch: make(chan struct{}, 1<<20)}
	for i := 0; i < initial; i++ {
		s.ch <- struct{}{}
	}
	return s
}

// Wait blocks until the semaphore has a positive count, then consumes one.
func (s *Semaphore) Wait() {
	<-s.ch
}

// Post increments the semaphore's count, waking at most one blocked Wait.
func (s *Semaphore) Post() {
	select {
	case s.ch <- struct{}{}:
	default:
		// Buffer saturated: a very large number of posts are already
		// pending delivery. Dropping further posts here would be unsound,
		// but at 2^20 buffered wakeups this indicates a stuck consumer
		// rather than a normal workload, so we block instead of panicking.
		s.ch <- struct{}{}
	}
}

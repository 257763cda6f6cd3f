// Package storage implements the storage scheduler (component 4.E): a
// single dedicated I/O goroutine that services per-group file-load requests
// submitted by any number of caller goroutines, preferring to stay on the
// same storage group across consecutive dispatches (group affinity) and
// falling back to plain heap allocation with a logged diagnostic when its
// fixed pools are exhausted.
//
// Grounded on original_source/src/assetstorage.c: the same prepend-at-head
// enqueue, same-group-preferred dequeue loop, and pool/overflow split for
// both the per-request and per-group-node records. Go replaces the C
// pointer-range "is this record in the pool?" test with an explicit tag on
// each record, and replaces manual free() of overflow records with letting
// them become unreachable for the GC.
//
// © 2025 assetpipe authors. MIT License.
package storage

import (
	"sync"

	"github.com/tatwood-go/assetpipe/asset"
	"github.com/tatwood-go/assetpipe/internal/semaphore"
)

type reqTag int

const (
	tagPool reqTag = iota
	tagOverflow
)

// request wraps a single caller-submitted file request together with the
// bookkeeping the scheduler needs: which pool it was allocated from, and
// its intrusive singly-linked position within its groupNode's list.
type request struct {
	fr   asset.FileRequest
	tag  reqTag
	next *request
}

// groupNode queues every pending request for one storage group. Requests
// are prepended (O(1), matches the C source) and reversed into enqueue
// order only when the I/O loop is ready to dispatch them.
type groupNode struct {
	group *asset.StorageGroup
	head  *request
	tag   reqTag
	next  *groupNode
}

// Storage is the scheduler described in §4.E. Construct with New and stop
// with Stop (graceful, lets the current Load finish and drops anything
// still queued) or Close (Stop then wait for the loop goroutine to exit).
type Storage struct {
	mu   sync.Mutex
	cfg  *config
	wake *semaphore.Semaphore

	pendingHead *groupNode
	pendingTail *groupNode

	reqFreeStack  []*request
	nodeFreeStack []*groupNode

	quit bool
	done chan struct{}

	// lastGroup is touched only by ioLoop's own goroutine; it never needs
	// the mutex.
	lastGroup *asset.StorageGroup
}

// New creates a scheduler with fixed pools of reqPoolSize requests and
// nodePoolSize group nodes, then starts its dedicated I/O goroutine.
// Requests beyond either pool size are served from the heap (overflow) and
// reported through the configured metrics sink, never blocking the caller.
func New(reqPoolSize, nodePoolSize int, opts ...Option) *Storage {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	s := &Storage{
		cfg:           cfg,
		wake:          semaphore.New(0),
		reqFreeStack:  make([]*request, 0, reqPoolSize),
		nodeFreeStack: make([]*groupNode, 0, nodePoolSize),
		done:          make(chan struct{}),
	}
	for i := 0; i < reqPoolSize; i++ {
		s.reqFreeStack = append(s.reqFreeStack, &request{tag: tagPool})
	}
	for i := 0; i < nodePoolSize; i++ {
		s.nodeFreeStack = append(s.nodeFreeStack, &groupNode{tag: tagPool})
	}
	go s.ioLoop()
	return s
}

// RequestFile enqueues a single file request against group's pending node,
// creating that node if the group has nothing else queued right now. It
// never blocks: pool exhaustion falls back to overflow allocation with a
// logged warning, matching §7's CapacityExhausted handling.
func (s *Storage) RequestFile(group *asset.StorageGroup, fr *asset.FileRequest) {
	s.mu.Lock()

	if s.quit {
		s.mu.Unlock()
		return
	}

	req := s.popRequestLocked()
	req.fr = *fr

	var node *groupNode
	for n := s.pendingHead; n != nil; n = n.next {
		if n.group == group {
			node = n
			break
		}
	}
	if node == nil {
		node = s.popNodeLocked()
		node.group = group
		node.head = nil
		node.next = nil
		if s.pendingTail == nil {
			s.pendingHead = node
			s.pendingTail = node
		} else {
			s.pendingTail.next = node
			s.pendingTail = node
		}
	}
	req.next = node.head
	node.head = req

	s.mu.Unlock()
	s.wake.Post()
}

// popRequestLocked returns a free request record, preferring the fixed
// pool and falling back to a plain heap allocation (tagged tagOverflow)
// once the pool is empty. Caller holds s.mu.
func (s *Storage) popRequestLocked() *request {
	if n := len(s.reqFreeStack); n > 0 {
		r := s.reqFreeStack[n-1]
		s.reqFreeStack = s.reqFreeStack[:n-1]
		return r
	}
	s.cfg.metrics.incOverflowRequest()
	s.cfg.logger.Warn("storage: request pool exhausted, allocating overflow record")
	return &request{tag: tagOverflow}
}

// popNodeLocked is popRequestLocked's counterpart for group nodes.
func (s *Storage) popNodeLocked() *groupNode {
	if n := len(s.nodeFreeStack); n > 0 {
		g := s.nodeFreeStack[n-1]
		s.nodeFreeStack = s.nodeFreeStack[:n-1]
		return g
	}
	s.cfg.metrics.incOverflowNode()
	s.cfg.logger.Warn("storage: group-node pool exhausted, allocating overflow record")
	return &groupNode{tag: tagOverflow}
}

// releaseRequestLocked returns a serviced request to the pool if it was
// pool-allocated; overflow records are simply dropped for GC. Caller holds
// s.mu.
func (s *Storage) releaseRequestLocked(r *request) {
	r.fr = asset.FileRequest{}
	r.next = nil
	if r.tag == tagPool {
		s.reqFreeStack = append(s.reqFreeStack, r)
	}
}

func (s *Storage) releaseNodeLocked(n *groupNode) {
	n.group = nil
	n.head = nil
	n.next = nil
	if n.tag == tagPool {
		s.nodeFreeStack = append(s.nodeFreeStack, n)
	}
}

// detachNextNodeLocked removes and returns the next node to service,
// preferring one whose group matches s.lastGroup (affinity) and otherwise
// taking the list head, so that a burst of requests against the same group
// is serviced as one run before the loop moves on. Caller holds s.mu.
func (s *Storage) detachNextNodeLocked() *groupNode {
	if s.pendingHead == nil {
		return nil
	}
	var prev *groupNode
	cur := s.pendingHead
	var matchPrev *groupNode
	var match *groupNode
	for n := s.pendingHead; n != nil; n = n.next {
		if n.group == s.lastGroup {
			matchPrev = prev
			match = n
			break
		}
		prev = n
	}
	target := cur
	targetPrev := (*groupNode)(nil)
	if match != nil {
		target = match
		targetPrev = matchPrev
		s.cfg.metrics.incAffinityHit()
	}
	if targetPrev == nil {
		s.pendingHead = target.next
	} else {
		targetPrev.next = target.next
	}
	if target == s.pendingTail {
		s.pendingTail = targetPrev
	}
	target.next = nil
	return target
}

// orderedRequests reverses a node's prepend-built list into enqueue order
// and returns the raw *asset.FileRequest slice the group's Load callback
// expects, per §4.E's ordering guarantee.
func orderedRequests(n *groupNode) []*asset.FileRequest {
	var reqs []*request
	for r := n.head; r != nil; r = r.next {
		reqs = append(reqs, r)
	}
	out := make([]*asset.FileRequest, len(reqs))
	for i, r := range reqs {
		out[len(reqs)-1-i] = &r.fr
	}
	return out
}

// ioLoop is the scheduler's single dedicated goroutine. It blocks on wake
// until work is queued or Stop is called, then drains pending nodes in
// affinity order. On shutdown it drops (without invoking any parse
// callback) whatever is still queued, per §7's "queued-but-not-started
// requests are dropped silently" rule; an in-flight Load already detached
// before quit was set is allowed to finish normally.
func (s *Storage) ioLoop() {
	defer close(s.done)
	for {
		s.wake.Wait()

		s.mu.Lock()
		if s.quit {
			s.dropAllLocked()
			s.mu.Unlock()
			return
		}
		node := s.detachNextNodeLocked()
		if node != nil {
			// Recorded at detach time, not after Load returns, so that
			// further requests for the group currently in flight keep
			// their affinity even while that Load call is still running.
			s.lastGroup = node.group
		}
		s.mu.Unlock()

		if node == nil {
			continue
		}

		reqs := orderedRequests(node)
		if node.group != nil && node.group.Load != nil {
			node.group.Load(node.group, reqs)
		}
		s.cfg.metrics.incGroupsProcessed()

		s.mu.Lock()
		for r := node.head; r != nil; {
			next := r.next
			s.releaseRequestLocked(r)
			r = next
		}
		s.releaseNodeLocked(node)
		s.mu.Unlock()
	}
}

// dropAllLocked discards every still-pending node and request without
// calling Load or any parse function. Caller holds s.mu.
func (s *Storage) dropAllLocked() {
	for n := s.pendingHead; n != nil; {
		next := n.next
		for r := n.head; r != nil; {
			rn := r.next
			s.releaseRequestLocked(r)
			r = rn
		}
		s.releaseNodeLocked(n)
		n = next
	}
	s.pendingHead = nil
	s.pendingTail = nil
}

// Stop signals the I/O loop to finish its current dispatch (if any) and
// then drop everything still queued, without waiting for the goroutine to
// actually exit. Use Close to wait.
func (s *Storage) Stop() {
	s.mu.Lock()
	if s.quit {
		s.mu.Unlock()
		return
	}
	s.quit = true
	s.mu.Unlock()
	s.wake.Post()
}

// Close stops the scheduler and blocks until its goroutine has exited.
func (s *Storage) Close() {
	s.Stop()
	<-s.done
}

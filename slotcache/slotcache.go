// Package slotcache implements the fixed-slot asset cache (component C): a
// fixed array of N reusable slots managed through pin/unpin/repin, backed
// by a free list that reclaims in FIFO order (the reclamation order is the
// free list's own order, oldest-released first).
//
// Grounded on original_source/src/assetcache.c for the pin/repin/unpin
// algorithm and on design note #9's recommendation to use an index-based
// doubly linked list with a dedicated sentinel slot rather than raw
// pointer-chasing through {prev,next} fields — the sentinel here is index
// N (one past the last real slot), matching the "anchor is slot N" note
// verbatim.
//
// © 2025 assetpipe authors. MIT License.
package slotcache

import "sync"

type node struct {
	prev, next int
	asset      any
	pinned     bool
}

// Cache is the fixed-N slot cache described in §4.C. Every slot is either
// pinned or on the free list, never both; pin takes the free list's head,
// unpin appends to its tail, repin reclaims a slot still on the free list
// without disturbing its position relative to other free slots beyond
// removing it.
type Cache struct {
	mu    sync.Mutex
	nodes []node // index 0..N-1 are real slots; index N is the anchor
	n     int
}

// New creates a cache of n fixed slots, all initially free (in index
// order, so the first Pin returns slot 0).
func New(n int) *Cache {
	if n <= 0 {
		panic("slotcache: size must be > 0")
	}
	c := &Cache{nodes: make([]node, n+1), n: n}
	anchor := n
	c.nodes[anchor].prev = anchor
	c.nodes[anchor].next = anchor
	for i := 0; i < n; i++ {
		c.pushTailLocked(i)
	}
	return c
}

func (c *Cache) anchor() int { return c.n }

// pushTailLocked appends slot i to the tail of the free list (just before
// the anchor). Caller holds c.mu.
func (c *Cache) pushTailLocked(i int) {
	a := c.anchor()
	tail := c.nodes[a].prev
	c.nodes[i].prev = tail
	c.nodes[i].next = a
	c.nodes[tail].next = i
	c.nodes[a].prev = i
	c.nodes[i].pinned = false
}

// removeLocked unlinks slot i from wherever it currently sits in the free
// list. Caller holds c.mu and must have already verified i is on the list.
func (c *Cache) removeLocked(i int) {
	p, nx := c.nodes[i].prev, c.nodes[i].next
	c.nodes[p].next = nx
	c.nodes[nx].prev = p
}

func (c *Cache) onFreeListLocked(i int) bool {
	return !c.nodes[i].pinned
}

// Pin takes the slot at the head of the free list (the least-recently
// released slot) and marks it pinned. It returns ok=false if every slot is
// currently pinned (CapacityExhausted per §7; callers fall back to an
// overflow allocation). The returned asset is whatever was last associated
// with the slot via SetEntry — possibly nil.
func (c *Cache) Pin() (idx int, assetOut any, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.anchor()
	head := c.nodes[a].next
	if head == a {
		return -1, nil, false
	}
	c.removeLocked(head)
	c.nodes[head].pinned = true
	return head, c.nodes[head].asset, true
}

// Repin reclaims slot idx if it is still on the free list (i.e. nobody has
// Pinned it since it was Unpinned). It returns ok=false if the slot is
// currently pinned by someone else, per the "reclaim a slot it previously
// released if no other client has taken it in the meantime" contract.
func (c *Cache) Repin(idx int) (assetOut any, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkIdx(idx)
	if !c.onFreeListLocked(idx) {
		return nil, false
	}
	c.removeLocked(idx)
	c.nodes[idx].pinned = true
	return c.nodes[idx].asset, true
}

// Unpin returns slot idx to the tail of the free list. Callers must
// guarantee balanced Pin/Unpin calls; unpinning an already-free slot is
// undefined behavior per §4.C and panics here rather than silently
// corrupting the list.
func (c *Cache) Unpin(idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkIdx(idx)
	if !c.nodes[idx].pinned {
		panic("slotcache: Unpin called on a slot that is not pinned")
	}
	c.pushTailLocked(idx)
}

// SetEntry associates payload with slot idx. The association persists
// across free/repin cycles until SetEntry is called again for the same
// index (by whichever client next Pins it).
func (c *Cache) SetEntry(idx int, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkIdx(idx)
	c.nodes[idx].asset = payload
}

// Len returns the total number of slots (N).
func (c *Cache) Len() int { return c.n }

// FreeLen returns the number of slots currently on the free list. Useful
// for diagnostics/tests; not part of the core pin/unpin contract.
func (c *Cache) FreeLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for i := c.nodes[c.anchor()].next; i != c.anchor(); i = c.nodes[i].next {
		n++
	}
	return n
}

func (c *Cache) checkIdx(idx int) {
	if idx < 0 || idx >= c.n {
		panic("slotcache: index out of range")
	}
}

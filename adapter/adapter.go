// Package adapter implements the client adapter pattern (component 4.G):
// a generic, per-asset-type wrapper around the registry, slot cache, and
// storage scheduler that gives callers a cached-lifecycle contract —
// Acquire, Release, Poll — independent of what kind of payload is being
// cached.
//
// Grounded on original_source/src/assetcache.c (pin/repin/unpin, already
// reused directly by package slotcache) and assetmap.c's cycle-breaking
// weak-reference pattern (package registry's Entry.epoch), combined here
// into the acquire/release state machine described in §4.G. The teacher's
// pkg/loader.go singleflight wrapper is repurposed from deduplicating
// cache-miss loader calls to deduplicating concurrent first-time Acquire
// calls on the same cold key, so a thundering herd of callers for a
// not-yet-cached asset triggers exactly one pin and one storage request.
//
// © 2025 assetpipe authors. MIT License.
package adapter

import (
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/tatwood-go/assetpipe/asset"
	"github.com/tatwood-go/assetpipe/keys"
	"github.com/tatwood-go/assetpipe/registry"
	"github.com/tatwood-go/assetpipe/slotcache"
	"github.com/tatwood-go/assetpipe/storage"
)

// State is an asset's position in the UNLOADED -> LOADING -> {LOADED,
// ERROR} state machine described in §3.
type State int32

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
	StateError
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Decoder turns a file's raw bytes into a payload of type A. It runs on a
// work-queue worker, never on the storage scheduler's I/O goroutine.
type Decoder[A any] func(buf []byte) (A, error)

// assetSlot is the client-level Asset from §3: {payload, owner entry,
// slot index, epoch, state, refcount}. The same pointer is reused across
// repeated Pin/Unpin cycles of its slot — only overflow (slotIdx == -1)
// assets are ever freshly allocated per Acquire.
type assetSlot[A any] struct {
	resource A
	state    atomic.Int32
	refcount atomic.Int32
	entry    *registry.Entry
	epoch    uint64
	slotIdx  int
}

// Handle is an opaque reference returned by Acquire. Pass it to Release
// when done, and to Poll to read the current state/resource.
type Handle[A any] struct {
	slot *assetSlot[A]
}

// Poll is a non-blocking read of the asset's current state. The resource
// is only meaningful (ok == true) once State is StateLoaded.
func (h Handle[A]) Poll() (state State, resource A, ok bool) {
	st := State(h.slot.state.Load())
	if st == StateLoaded {
		return st, h.slot.resource, true
	}
	var zero A
	return st, zero, false
}

// Adapter is the generic client adapter described in §4.G.
type Adapter[A any] struct {
	mu    sync.Mutex
	cache *slotcache.Cache
	reg   *registry.Registry
	stor  *storage.Storage
	queue asset.Pusher

	decode Decoder[A]
	sf     singleflight.Group
	cfg    *config[A]
}

// New creates an Adapter with a slot cache of cacheSize entries. decode
// converts a loaded file's bytes into a payload; queue is the external work
// queue load requests are dispatched onto for decoding (see asset.Pusher).
func New[A any](cacheSize, registryCapacityHint int, stor *storage.Storage, queue asset.Pusher, decode Decoder[A], opts ...Option[A]) *Adapter[A] {
	cfg := defaultConfig[A]()
	for _, o := range opts {
		o(cfg)
	}
	return &Adapter[A]{
		cache:  slotcache.New(cacheSize),
		reg:    registry.New(registryCapacityHint),
		stor:   stor,
		queue:  queue,
		decode: decode,
		cfg:    cfg,
	}
}

// RegisterGroup makes group's files of type typeKey findable by Acquire.
// Not safe to call concurrently with Acquire/Release on keys it might
// register; call during startup before traffic begins (§4.G).
func (a *Adapter[A]) RegisterGroup(group *asset.StorageGroup, typeKey keys.TypeKey) {
	a.reg.RegisterGroup(group, typeKey)
}

// Acquire looks up key and returns a handle with its refcount incremented,
// triggering an asynchronous load if the asset was not already cached. It
// returns ok=false only when key is not registered at all.
func (a *Adapter[A]) Acquire(key keys.AssetKey) (Handle[A], bool) {
	entry, ok := a.reg.Find(key)
	if !ok {
		return Handle[A]{}, false
	}

	a.mu.Lock()
	if slot, ok := a.tryFastPath(entry); ok {
		slot.refcount.Add(1)
		a.mu.Unlock()
		return Handle[A]{slot: slot}, true
	}
	a.mu.Unlock()

	leader := false
	v, _, shared := a.sf.Do(strconv.FormatUint(uint64(key), 16), func() (any, error) {
		leader = true
		return a.coldAcquire(entry), nil
	})
	if shared && !leader {
		a.cfg.metrics.incDedupedLoad()
	}
	// singleflight.Do reports shared=true for every caller once two or more
	// race the same key, the leader included — it does not single out
	// followers. So every caller here, leader or follower, takes its own
	// ref unconditionally; coldAcquire seeds only the in-flight load's ref.
	slot := v.(*assetSlot[A])
	slot.refcount.Add(1)
	return Handle[A]{slot: slot}, true
}

// tryFastPath handles the already-cached branch of Acquire (§4.G step 2):
// the entry's weak reference is non-nil and its epoch still matches. It
// repins the slot if it had fallen to a zero refcount, but never touches
// refcount itself — every caller that gets a slot out of this function
// (directly from Acquire, or indirectly as one of N racing callers sharing
// coldAcquire's singleflight result) is responsible for adding its own ref
// exactly once. Caller must hold a.mu.
func (a *Adapter[A]) tryFastPath(entry *registry.Entry) (*assetSlot[A], bool) {
	existing, epoch := entry.Asset()
	if existing == nil {
		return nil, false
	}
	slot := existing.(*assetSlot[A])
	if slot.epoch != epoch {
		return nil, false
	}
	if slot.refcount.Load() == 0 && slot.slotIdx >= 0 {
		if _, ok := a.cache.Repin(slot.slotIdx); !ok {
			panic("adapter: repin failed on a self-consistent entry; invariant violated")
		}
		a.cfg.metrics.incRepin()
	}
	return slot, true
}

// coldAcquire runs under singleflight for a not-yet-cached key: pin a slot
// (or allocate an overflow asset), install the weak back-reference, and
// submit the load request. Runs at most once per key at a time.
func (a *Adapter[A]) coldAcquire(entry *registry.Entry) *assetSlot[A] {
	a.mu.Lock()
	if slot, ok := a.tryFastPath(entry); ok {
		a.mu.Unlock()
		return slot
	}

	idx, prevAsset, pinned := a.cache.Pin()
	var slot *assetSlot[A]
	if pinned {
		if prevAsset != nil {
			prevSlot := prevAsset.(*assetSlot[A])
			if prevSlot.entry != nil && prevSlot.entry.ClearAsset(prevSlot.epoch) {
				a.cfg.metrics.incStaleReclaim()
			}
			slot = prevSlot
		} else {
			slot = &assetSlot[A]{}
		}
		slot.slotIdx = idx
		a.cache.SetEntry(idx, slot)
	} else {
		a.cfg.metrics.incOverflowAcquire()
		a.cfg.logger.Warn("adapter: slot cache exhausted, allocating overflow asset", zap.Uint64("key", uint64(entry.Key)))
		slot = &assetSlot[A]{slotIdx: -1}
	}
	slot.entry = entry
	slot.epoch = entry.SetAsset(slot)
	slot.state.Store(int32(StateLoading))
	// Only the in-flight load's own ref is seeded here; every Acquire
	// caller waiting on this singleflight call (the leader included) adds
	// its own ref once Do returns, so the final count is callers+1.
	slot.refcount.Store(1)
	a.mu.Unlock()

	a.submitLoad(entry, slot)
	return slot
}

func (a *Adapter[A]) submitLoad(entry *registry.Entry, slot *assetSlot[A]) {
	fr := &asset.FileRequest{
		File:  entry.File,
		Queue: a.queue,
		Parse: func(buf []byte, userdata any) {
			a.parse(buf, userdata)
		},
		UserData: slot,
	}
	a.stor.RequestFile(entry.Group, fr)
}

// parse decodes buf (nil on a storage-level failure) and publishes the
// resulting state before releasing the in-flight-load reference, per the
// ordering rule in §5: a concurrent Acquire must observe LOADED/ERROR, not
// a half-published resource.
func (a *Adapter[A]) parse(buf []byte, userdata any) {
	slot := userdata.(*assetSlot[A])
	if buf == nil {
		slot.state.Store(int32(StateError))
	} else if res, err := a.decode(buf); err != nil {
		slot.state.Store(int32(StateError))
	} else {
		slot.resource = res
		slot.state.Store(int32(StateLoaded))
	}
	a.Release(Handle[A]{slot: slot})
}

// Release drops one reference to an asset acquired via Acquire (or held by
// the in-flight load itself). When the refcount reaches zero the slot is
// unpinned (pool assets) or destroyed (overflow assets).
func (a *Adapter[A]) Release(h Handle[A]) {
	slot := h.slot
	if slot.refcount.Add(-1) != 0 {
		return
	}

	a.mu.Lock()
	if slot.refcount.Load() != 0 {
		// Someone reacquired it in the window between our decrement and
		// taking the lock; nothing to reclaim.
		a.mu.Unlock()
		return
	}
	destroyOverflow := false
	if slot.slotIdx >= 0 {
		a.cache.Unpin(slot.slotIdx)
	} else {
		if slot.entry != nil {
			slot.entry.ClearAsset(slot.epoch)
		}
		destroyOverflow = true
	}
	a.mu.Unlock()

	if destroyOverflow {
		a.cfg.metrics.incOverflowDestroyed()
		if a.cfg.destroy != nil {
			a.cfg.destroy(slot.resource)
		}
	}
}

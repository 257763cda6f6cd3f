// Package registry implements the asset registry (component B): a sorted
// array map from AssetKey to (group, file, weak asset reference) that
// supports ordered batch insertion from newly discovered storage groups.
//
// Grounded on original_source/src/assetmap.c for the two-phase bulk-insert
// algorithm (count matching files, grow, shift the tail right, binary
// insert each match in ascending order) and on the teacher's
// pkg/cache.go shard for the sync.RWMutex discipline used to protect the
// backing slices.
//
// © 2025 assetpipe authors. MIT License.
package registry

import (
	"sort"
	"sync"

	"github.com/tatwood-go/assetpipe/asset"
	"github.com/tatwood-go/assetpipe/keys"
)

// Entry is one (key -> group/file/asset) mapping. Asset is a weak,
// non-owning back-reference: the client adapter must compare Epoch against
// its own copy before trusting it, because the slot it pointed to may have
// been reassigned since the reference was taken (§3's "stale back
// reference" pattern, §9's epoch/version counter variant).
type Entry struct {
	Key   keys.AssetKey
	Group *asset.StorageGroup
	File  *asset.FileDescriptor

	mu    sync.Mutex
	asset any
	epoch uint64
}

// Asset returns the current weak reference and its epoch stamp.
func (e *Entry) Asset() (any, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.asset, e.epoch
}

// SetAsset installs a new weak reference, bumping the epoch so that any
// holder of the previous (asset, epoch) pair observes a mismatch the next
// time it checks.
func (e *Entry) SetAsset(a any) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.epoch++
	e.asset = a
	return e.epoch
}

// ClearAsset clears the weak reference only if the caller's epoch still
// matches (i.e. nobody else has reassigned it in the meantime). It reports
// whether the clear took effect.
func (e *Entry) ClearAsset(epoch uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != epoch {
		return false
	}
	e.asset = nil
	return true
}

// Registry is the sorted key/value map described in §4.B. Find is safe to
// call from any number of goroutines concurrently with other Finds;
// RegisterGroup must not run concurrently with Find or with another
// RegisterGroup (enforced here with a RWMutex: RegisterGroup takes the
// write lock, Find takes the read lock).
type Registry struct {
	mu     sync.RWMutex
	keys   []keys.AssetKey
	values []*Entry
}

// New creates an empty registry. capacityHint pre-sizes the backing slices
// to reduce reallocation during the first RegisterGroup calls; it is not a
// hard limit, registrations beyond it simply grow the slices.
func New(capacityHint int) *Registry {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &Registry{
		keys:   make([]keys.AssetKey, 0, capacityHint),
		values: make([]*Entry, 0, capacityHint),
	}
}

// Find performs a binary search for key and returns its entry if present.
func (r *Registry) Find(key keys.AssetKey) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := sort.Search(len(r.keys), func(i int) bool { return r.keys[i] >= key })
	if i < len(r.keys) && r.keys[i] == key {
		return r.values[i], true
	}
	return nil, false
}

// Len returns the number of entries currently registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}

// growTo rounds n up to the next multiple of 16, per §4.B's capacity
// growth policy.
func growTo(n int) int {
	const quantum = 16
	return ((n + quantum - 1) / quantum) * quantum
}

// RegisterGroup bulk-inserts every file in group whose TypeKey matches
// typeKey into the registry, preserving global (group, file) ascending
// order. It is a two-phase algorithm exactly as specified in §4.B:
//  1. count matching files n;
//  2. grow capacity to size+n (rounded up to a multiple of 16);
//  3. shift existing entries whose key exceeds the new entries' keys right
//     by the number of new entries that will land before them;
//  4. binary-insert each matching file into the opened gap.
//
// Concurrent RegisterGroup/Find calls are serialized by the write lock
// rather than racing, but callers should still register groups at startup
// before any goroutine calls Acquire: interleaving registration with live
// traffic is safe, just not ordered in any way callers can predict.
func (r *Registry) RegisterGroup(group *asset.StorageGroup, typeKey keys.TypeKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Phase 1: count matches.
	n := 0
	for i := range group.Files {
		if group.Files[i].TypeKey == typeKey {
			n++
		}
	}
	if n == 0 {
		return
	}

	// Phase 2: ensure capacity, growing by rounding up to a multiple of 16.
	newSize := len(r.keys) + n
	if cap(r.keys) < newSize {
		grown := growTo(newSize)
		nk := make([]keys.AssetKey, len(r.keys), grown)
		copy(nk, r.keys)
		r.keys = nk
		nv := make([]*Entry, len(r.values), grown)
		copy(nv, r.values)
		r.values = nv
	}
	r.keys = r.keys[:newSize]
	r.values = r.values[:newSize]

	// Build the sorted list of new (key, file) pairs first so insertion
	// order among the new files themselves is also ascending.
	type newPair struct {
		key  keys.AssetKey
		file *asset.FileDescriptor
	}
	fresh := make([]newPair, 0, n)
	for i := range group.Files {
		f := &group.Files[i]
		if f.TypeKey == typeKey {
			fresh = append(fresh, newPair{keys.ComposeKey(group.GroupKey, f.FileKey), f})
		}
	}
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].key < fresh[j].key })

	// Phase 3+4: walk the old (now-shorter) tail and the new list together
	// from the back, writing into the grown slices so that each existing
	// entry is shifted right by however many new entries now sort before
	// it, and each new entry lands in its correctly sorted gap.
	oldLen := newSize - n
	oi := oldLen - 1 // index into the untouched prefix of the old data
	ni := n - 1       // index into fresh
	for w := newSize - 1; w >= 0; w-- {
		if ni >= 0 && (oi < 0 || fresh[ni].key > r.keys[oi]) {
			r.keys[w] = fresh[ni].key
			r.values[w] = &Entry{Key: fresh[ni].key, Group: group, File: fresh[ni].file}
			ni--
		} else {
			r.keys[w] = r.keys[oi]
			r.values[w] = r.values[oi]
			oi--
		}
	}
}

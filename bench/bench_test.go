// Package bench provides reproducible micro-benchmarks for the asset
// pipeline's client adapter, the Go counterpart of the teacher's
// bench/bench_test.go. Run via:
//
//	go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// Every benchmark here uses an in-memory StorageGroup whose Load callback
// hands back pre-built byte slices synchronously, so results measure the
// adapter/cache/registry/scheduler machinery itself rather than disk or
// network I/O — the same isolation principle as the teacher's single
// key/value shape (uint64 key, 64-byte value).
//
// © 2025 assetpipe authors. MIT License.
package bench

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tatwood-go/assetpipe/adapter"
	"github.com/tatwood-go/assetpipe/asset"
	"github.com/tatwood-go/assetpipe/keys"
	"github.com/tatwood-go/assetpipe/storage"
)

type value64 struct {
	_ [64]byte
}

func decodeValue64(buf []byte) (value64, error) {
	return value64{}, nil
}

type syncQueue struct{}

func (syncQueue) Push(fn func()) { fn() }

const datasetSize = 1 << 14 // 16384 distinct keys

// warmSetSize is the adapter's slot-cache size (see newBenchAdapter): the
// largest key set that stays resident once loaded.
const warmSetSize = datasetSize / 4

// dataset is built once and reused across benchmarks, mirroring the
// teacher's package-level `ds` slice.
var dataset = func() []string {
	names := make([]string, datasetSize)
	for i := range names {
		names[i] = randName(i)
	}
	return names
}()

func randName(i int) string {
	return "asset_" + itoa(i) + ".bin"
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [12]byte
	p := len(buf)
	for i > 0 {
		p--
		buf[p] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[p:])
}

func newBenchAdapter(b *testing.B) (*adapter.Adapter[value64], *asset.StorageGroup, *storage.Storage) {
	group := &asset.StorageGroup{Name: "bench", GroupKey: keys.GroupKey("bench")}
	for _, name := range dataset {
		group.Files = append(group.Files, asset.FileDescriptor{
			Name:    name,
			TypeKey: keys.TypeKeyOf(name),
			FileKey: keys.FileKey(name),
		})
	}
	group.Load = func(grp *asset.StorageGroup, reqs []*asset.FileRequest) {
		for _, r := range reqs {
			r.Queue.Push(func() { r.Parse([]byte{}, r.UserData) })
		}
	}

	sched := storage.New(64, 64)
	b.Cleanup(sched.Close)

	a := adapter.New[value64](warmSetSize, datasetSize, sched, syncQueue{}, decodeValue64)
	a.RegisterGroup(group, keys.TypeKeyOf("bin"))
	return a, group, sched
}

func keyFor(group *asset.StorageGroup, idx int) keys.AssetKey {
	return keys.ComposeKey(group.GroupKey, keys.FileKey(dataset[idx]))
}

func waitLoaded(b *testing.B, h adapter.Handle[value64]) {
	deadline := time.After(2 * time.Second)
	for {
		if _, _, ok := h.Poll(); ok {
			return
		}
		select {
		case <-deadline:
			b.Fatal("timed out waiting for load")
		default:
		}
	}
}

// BenchmarkAcquireCold measures full cold Acquire->loaded->Release cycles:
// every key is evicted back to the free list between iterations, so each
// Acquire re-enters the storage scheduler round trip.
func BenchmarkAcquireCold(b *testing.B) {
	a, group, _ := newBenchAdapter(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := keyFor(group, i&(datasetSize-1))
		h, _ := a.Acquire(key)
		waitLoaded(b, h)
		a.Release(h)
	}
}

// BenchmarkAcquireWarm measures the steady-state path where every key is
// already resident (loaded at least once, refcount back to zero; the key
// set is limited to warmSetSize so that none is evicted): each
// Acquire either takes the fast path (weak reference still valid) or
// repins a slot still sitting on the free list, without any scheduler
// round trip.
func BenchmarkAcquireWarm(b *testing.B) {
	a, group, _ := newBenchAdapter(b)
	for i := 0; i < warmSetSize; i++ {
		h, _ := a.Acquire(keyFor(group, i))
		waitLoaded(b, h)
		a.Release(h)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := keyFor(group, i&(warmSetSize-1))
		h, _ := a.Acquire(key)
		a.Release(h)
	}
}

// BenchmarkAcquireWarmParallel is BenchmarkAcquireWarm under concurrent
// access, the counterpart to the teacher's BenchmarkGetParallel.
func BenchmarkAcquireWarmParallel(b *testing.B) {
	a, group, _ := newBenchAdapter(b)
	for i := 0; i < warmSetSize; i++ {
		h, _ := a.Acquire(keyFor(group, i))
		waitLoaded(b, h)
		a.Release(h)
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		idx := rand.Intn(warmSetSize)
		for pb.Next() {
			idx = (idx + 1) & (warmSetSize - 1)
			h, _ := a.Acquire(keyFor(group, idx))
			a.Release(h)
		}
	})
}

// BenchmarkAcquireColdContended measures the thundering-herd path: a fixed
// number of goroutines race Acquire on the same never-before-seen key every
// round, the scenario that previously leaked a ref per race whenever
// singleflight shared the result with two or more callers (see
// adapter.TestConcurrentColdAcquireSharesExactlyOnePin).
func BenchmarkAcquireColdContended(b *testing.B) {
	const contenders = 8
	a, group, _ := newBenchAdapter(b)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := keyFor(group, i&(datasetSize-1))
		handles := make([]adapter.Handle[value64], contenders)
		var wg sync.WaitGroup
		wg.Add(contenders)
		for c := 0; c < contenders; c++ {
			go func(c int) {
				defer wg.Done()
				h, _ := a.Acquire(key)
				handles[c] = h
			}(c)
		}
		wg.Wait()
		waitLoaded(b, handles[0])
		for c := 0; c < contenders; c++ {
			a.Release(handles[c])
		}
	}
}

// BenchmarkAcquireMixed simulates a 90% warm / 10% cold workload, the
// counterpart to the teacher's BenchmarkGetOrLoad miss-rate measurement.
func BenchmarkAcquireMixed(b *testing.B) {
	a, group, _ := newBenchAdapter(b)
	for i := 0; i < datasetSize; i++ {
		if i%10 != 0 {
			h, _ := a.Acquire(keyFor(group, i))
			waitLoaded(b, h)
			a.Release(h)
		}
	}

	var coldCount atomic.Uint64
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		idx := i & (datasetSize - 1)
		key := keyFor(group, idx)
		h, _ := a.Acquire(key)
		if idx%10 == 0 {
			coldCount.Add(1)
			waitLoaded(b, h)
		}
		a.Release(h)
	}
	b.ReportMetric(float64(coldCount.Load())/float64(b.N)*100, "cold-%")
}

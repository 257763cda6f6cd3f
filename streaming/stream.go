// Package streaming implements the asynchronous streaming file loader
// (component 4.F): a single dedicated goroutine that reads whole files into
// one of two double-buffers and delivers results to the caller's own
// goroutine via Update, so callback code never runs concurrently with the
// caller.
//
// Grounded on original_source/src/assetstream.c: the same lock-free
// load/callback/pool lists, the same two-buffer double-buffering scheme,
// and the same chunked pool-growth strategy (128 requests per chunk). The
// union-typed "loose file or packed archive" special-casing in the C source
// is replaced by the Source interface below, so any storage group
// implementation (dirgroup, packgroup, or a future one) can supply files to
// stream without this package knowing about either.
//
// © 2025 assetpipe authors. MIT License.
package streaming

import (
	"io"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"

	"github.com/tatwood-go/assetpipe/internal/semaphore"
)

// Source resolves a file index to a readable stream and its size. Open must
// be safe to call from the stream's single loader goroutine; it is never
// called concurrently for the same Stream.
type Source interface {
	Open(fileIndex uint32) (io.ReadCloser, int64, error)
}

// Callback receives the outcome of a Load: buf is nil and result is -1 on
// any failure (open, read, or size mismatch); otherwise result is 0 and buf
// aliases one of the stream's two double-buffers. buf is only valid until
// Release is called with it.
type Callback func(buf []byte, result int32, userdata any)

const reqChunkSize = 128

type req struct {
	next      atomic.Pointer[req]
	source    Source
	fileIndex uint32
	callback  Callback
	userdata  any
	buf       []byte
	result    int32
}

type dataBuf struct {
	buf    []byte
	locked atomic.Bool
}

// Stream is the streaming loader described in §4.F.
type Stream struct {
	loadHead atomic.Pointer[req]
	cbHead   atomic.Pointer[req]
	poolHead atomic.Pointer[req]

	data [2]*dataBuf

	quit atomic.Bool
	sem  *semaphore.Semaphore
	done chan struct{}

	cfg *config
}

// New creates a Stream and starts its dedicated loader goroutine.
func New(opts ...Option) *Stream {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	s := &Stream{
		sem:  semaphore.New(0),
		done: make(chan struct{}),
		cfg:  cfg,
	}
	for i := range s.data {
		s.data[i] = &dataBuf{buf: make([]byte, 0, cfg.bufferSize)}
	}
	go s.ioLoop()
	return s
}

// Load enqueues an asynchronous read of fileIndex from source. callback
// fires from a later Update call on the caller's own goroutine, never from
// the loader goroutine directly.
func (s *Stream) Load(source Source, fileIndex uint32, callback Callback, userdata any) {
	r := s.popReqOrAlloc()
	r.source = source
	r.fileIndex = fileIndex
	r.callback = callback
	r.userdata = userdata
	r.buf = nil
	r.result = -1
	r.next.Store(nil)
	pushReq(&s.loadHead, r)
	s.cfg.metrics.incLoads()
	s.sem.Post()
}

// Release returns a buffer previously delivered through a Callback so the
// loader can reuse it for a future Load. Calling Release with a buffer that
// is not one of this Stream's two buffers (including a nil buf) panics;
// releasing one of them that is not currently held out is not detected.
func (s *Stream) Release(buf []byte) {
	target := unsafe.SliceData(buf)
	for _, d := range s.data {
		if unsafe.SliceData(d.buf) == target {
			d.locked.Store(false)
			s.cfg.metrics.incReleases()
			s.sem.Post()
			return
		}
	}
	panic("streaming: Release called with a buffer this Stream did not hand out")
}

// Update delivers every completed (or failed) load's callback on the
// calling goroutine. Call it once per frame/tick from the consumer thread.
func (s *Stream) Update() {
	r := popAllReq(&s.cbHead)
	for r != nil {
		next := r.next.Load()
		r.callback(r.buf, r.result, r.userdata)
		r.source = nil
		r.callback = nil
		r.userdata = nil
		r.buf = nil
		r.next.Store(nil)
		pushReq(&s.poolHead, r)
		r = next
	}
}

// Stop asks the loader goroutine to finish any buffer scan in progress and
// then drop every remaining queued request (delivering result=-1 for each,
// never opening their sources). It returns immediately; use Close to wait.
func (s *Stream) Stop() {
	if !s.quit.CompareAndSwap(false, true) {
		return
	}
	s.sem.Post()
}

// Close stops the loader, waits for its goroutine to exit, and flushes the
// resulting abort callbacks through Update.
func (s *Stream) Close() {
	s.Stop()
	<-s.done
	s.Update()
}

func (s *Stream) ioLoop() {
	defer close(s.done)
	var pending *req
	for {
		s.sem.Wait()
		if pending == nil {
			pending = popAllReq(&s.loadHead)
		}
		for pending != nil && !s.quit.Load() {
			slot := s.claimFreeBuffer()
			if slot == nil {
				break
			}
			next := pending.next.Load()
			s.service(pending, slot)
			pushReq(&s.cbHead, pending)
			pending = next
		}
		if s.quit.Load() {
			pending = s.abortChain(pending)
			for {
				rest := popAllReq(&s.loadHead)
				if rest == nil {
					break
				}
				s.abortChain(rest)
			}
			return
		}
	}
}

// abortChain marks every request in the chain as failed and moves it onto
// the callback list, without ever calling source.Open. Used only during
// shutdown.
func (s *Stream) abortChain(chain *req) *req {
	for chain != nil {
		next := chain.next.Load()
		chain.buf = nil
		chain.result = -1
		pushReq(&s.cbHead, chain)
		chain = next
	}
	return nil
}

func (s *Stream) claimFreeBuffer() *dataBuf {
	for _, d := range s.data {
		if d.locked.CompareAndSwap(false, true) {
			return d
		}
	}
	return nil
}

// service performs the blocking read for one request using slot as scratch
// space, growing slot's capacity if the file is larger than what it
// currently holds. On any failure the slot is unlocked again immediately so
// a subsequent request can claim it.
func (s *Stream) service(r *req, slot *dataBuf) {
	r.buf = nil
	r.result = -1
	ok := false
	defer func() {
		if !ok {
			slot.locked.Store(false)
			s.sem.Post()
		}
	}()

	rc, size, err := r.source.Open(r.fileIndex)
	if err != nil {
		s.cfg.metrics.incOpenErrors()
		s.cfg.logger.Warn("streaming: open failed", zap.Uint32("file", r.fileIndex), zap.Error(err))
		return
	}
	defer rc.Close()

	if size > int64(cap(slot.buf)) {
		slot.buf = make([]byte, size)
		s.cfg.metrics.incBufferGrowth()
	} else {
		slot.buf = slot.buf[:size]
	}
	n, err := io.ReadFull(rc, slot.buf)
	if err != nil || int64(n) != size {
		s.cfg.logger.Warn("streaming: short read", zap.Uint32("file", r.fileIndex), zap.Error(err))
		return
	}
	r.buf = slot.buf
	r.result = 0
	ok = true
}

func (s *Stream) popReqOrAlloc() *req {
	for {
		if r := popOneReq(&s.poolHead); r != nil {
			return r
		}
		s.allocReqChunk()
	}
}

// allocReqChunk allocates reqChunkSize request records in one slice and
// splices the whole chunk onto the pool with a single CAS, mirroring
// taa_assetstream_allocreq's chunk-at-a-time growth.
func (s *Stream) allocReqChunk() {
	chunk := make([]req, reqChunkSize)
	for i := 0; i < reqChunkSize-1; i++ {
		chunk[i].next.Store(&chunk[i+1])
	}
	head := &chunk[0]
	tail := &chunk[reqChunkSize-1]
	for {
		old := s.poolHead.Load()
		tail.next.Store(old)
		if s.poolHead.CompareAndSwap(old, head) {
			return
		}
	}
}

func pushReq(head *atomic.Pointer[req], r *req) {
	for {
		old := head.Load()
		r.next.Store(old)
		if head.CompareAndSwap(old, r) {
			return
		}
	}
}

func popOneReq(head *atomic.Pointer[req]) *req {
	for {
		old := head.Load()
		if old == nil {
			return nil
		}
		next := old.next.Load()
		if head.CompareAndSwap(old, next) {
			return old
		}
	}
}

// popAllReq atomically swaps the entire chain out from under head, leaving
// head nil, and returns what used to be there.
func popAllReq(head *atomic.Pointer[req]) *req {
	for {
		old := head.Load()
		if head.CompareAndSwap(old, nil) {
			return old
		}
	}
}

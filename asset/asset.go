// Package asset defines the domain types shared by every layer of the
// pipeline: file descriptors, storage groups, and the load/parse callback
// signatures that connect storagegroup implementations, the storage
// scheduler, and the client adapter without those packages importing one
// another directly (mirrors original_source/include/taa/asset.h, which
// plays the same "common vocabulary" role for the C sources).
//
// © 2025 assetpipe authors. MIT License.
package asset

import "github.com/tatwood-go/assetpipe/keys"

// FileDescriptor is a single file discovered inside a StorageGroup. Handle
// is opaque to everything except the owning group's Load callback: for a
// directory group it is the absolute filesystem path, for a packed-archive
// group it is an offset/size pair.
type FileDescriptor struct {
	Name    string
	TypeKey keys.TypeKey
	FileKey uint32
	Size    int64
	Handle  any
}

// ParseFunc decodes a raw byte buffer into a typed payload. It runs on a
// worker-queue goroutine, never on the storage scheduler's I/O goroutine.
// It is invoked exactly once per FileRequest that reaches its group's Load
// callback, even when the read failed (size will be 0 and buf nil in that
// case); requests still queued when the scheduler stops are dropped without
// a call — see §4.D and §7
// of the spec for why a uniform completion path is load-bearing for
// refcount bookkeeping in the client adapter.
type ParseFunc func(buf []byte, userdata any)

// FileRequest is one pending read, submitted via Storage.RequestFile and
// delivered to a StorageGroup's Load callback. The scheduler builds and
// frees these internally; Load callbacks receive a plain slice rather than
// the C source's intrusive linked list, which is the idiomatic Go
// replacement — the list-vs-slice distinction is representation only, the
// ordering and coalescing contracts in §4.E are unaffected.
type FileRequest struct {
	File     *FileDescriptor
	Queue    Pusher
	Parse    ParseFunc
	UserData any
}

// Pusher is the minimal surface storage groups need from a worker queue:
// just enough to post a parse function. workqueue.Queue implements it.
type Pusher interface {
	Push(fn func())
}

// LoadFunc is supplied by a storage group implementation (storagegroup/dirgroup,
// storagegroup/packgroup, ...) and invoked by the storage scheduler's I/O
// goroutine with every currently pending request for that group. It must
// eventually call req.Parse for each request — including a zero-size call
// on read failure — so that callers waiting on parse completion are never
// stuck.
type LoadFunc func(group *StorageGroup, requests []*FileRequest)

// StorageGroup is a named container of files sharing one storage backend.
type StorageGroup struct {
	Name     string
	GroupKey uint32
	Files    []FileDescriptor
	Load     LoadFunc
}

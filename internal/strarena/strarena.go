// Package strarena implements a growing string-interning arena, used by
// storagegroup/dirgroup to hold the absolute filesystem paths discovered
// while scanning a storage group's directory. It is grounded directly on
// original_source/src/assetdir.c's taa_assetdir_strdup: a chain of
// fixed-size chunks, each filled front-to-back. A string goes into the
// first chunk with room for it; a new chunk is allocated only when no
// existing chunk has room.
//
// This replaces the teacher's internal/arena package, which wrapped Go's
// experimental goexperiment.arenas value-arena (see DESIGN.md for why that
// dependency was dropped): our need here is to bump-allocate immutable
// byte storage for path strings, not GC-free typed values, so a plain
// growing []byte chunk chain is both sufficient and portable across Go
// toolchains that were not built with the arenas experiment enabled.
//
// © 2025 assetpipe authors. MIT License.
package strarena

import "github.com/tatwood-go/assetpipe/internal/unsafehelpers"

// chunkSize matches the 2048-byte buffer size used by the original
// taa_assetdir_strings chunk.
const chunkSize = 2048

type chunk struct {
	buf    []byte
	offset int
}

// Arena interns strings by copying them into append-only byte chunks. The
// returned strings alias arena-owned memory and remain valid for the
// lifetime of the Arena.
type Arena struct {
	chunks []*chunk
}

// New creates an empty string arena.
func New() *Arena {
	return &Arena{}
}

// Intern copies s into the arena (or a large-string chunk of its own, if s
// does not fit in a standard chunk) and returns a string backed by that
// copy. Interning the same value twice allocates twice; callers wanting
// deduplication should maintain their own map.
func (a *Arena) Intern(s string) string {
	if s == "" {
		return ""
	}
	for _, c := range a.chunks {
		if c.offset+len(s) <= len(c.buf) {
			return a.copyInto(c, s)
		}
	}
	size := chunkSize
	if len(s) > size {
		size = len(s)
	}
	c := &chunk{buf: make([]byte, size)}
	a.chunks = append(a.chunks, c)
	return a.copyInto(c, s)
}

func (a *Arena) copyInto(c *chunk, s string) string {
	start := c.offset
	n := copy(c.buf[start:], s)
	c.offset += n
	return unsafehelpers.BytesToString(c.buf[start : start+n])
}

// Len returns the number of bytes interned so far, summed across chunks.
func (a *Arena) Len() int {
	total := 0
	for _, c := range a.chunks {
		total += c.offset
	}
	return total
}

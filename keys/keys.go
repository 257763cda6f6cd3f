// Package keys implements the key/hash utilities component of the asset
// pipeline (component A). It canonicalizes names into 32-bit hashes and
// composes the two-part (group, file) hash pair into a single 64-bit
// AssetKey.
//
// Hashing uses hash/maphash seeded once per process: identical inputs
// always yield identical outputs for the lifetime of the process, which is
// all the pipeline requires (§3 of the spec explicitly does not demand
// stability across processes or rebuilds).
//
// © 2025 assetpipe authors. MIT License.
package keys

import (
	"hash/maphash"
	"strings"

	"github.com/tatwood-go/assetpipe/internal/unsafehelpers"
)

// processSeed is shared by every hash in this package so that two calls with
// the same input always agree, including across goroutines.
var processSeed = maphash.MakeSeed()

// AssetKey is the 64-bit identity of an asset: the high 32 bits are the
// group hash, the low 32 bits are the file hash. Equality is the full
// 64-bit value; ordering is lexicographic by (group, file), which falls out
// naturally from comparing the uint64 representation.
type AssetKey uint64

// TypeKey is the 32-bit hash of a (lowercased, dot-stripped) file extension.
type TypeKey uint32

// ComposeKey packs a group hash and a file hash into a single AssetKey.
func ComposeKey(group, file uint32) AssetKey {
	return AssetKey(group)<<32 | AssetKey(file)
}

// Group returns the group-hash half of the key.
func (k AssetKey) Group() uint32 { return uint32(k >> 32) }

// File returns the file-hash half of the key.
func (k AssetKey) File() uint32 { return uint32(k) }

// GroupKey canonicalizes a storage-group name (lowercase ASCII) and hashes
// it to a 32-bit value.
func GroupKey(name string) uint32 {
	return hash32(lowerASCII(name))
}

// FileKey strips any directory components and the file extension from path,
// lowercases the remaining basename, and hashes it. "assets/ui/Logo.TGA"
// and "logo.tga" both hash to the same value as "logo".
func FileKey(path string) uint32 {
	return hash32(lowerASCII(baseNoExt(path)))
}

// TypeKeyOf strips everything through the final dot of ext (so callers may
// pass either "tga" or "logo.tga"), lowercases it, and hashes it.
func TypeKeyOf(ext string) TypeKey {
	if i := strings.LastIndexByte(ext, '.'); i >= 0 {
		ext = ext[i+1:]
	}
	return TypeKey(hash32(lowerASCII(ext)))
}

// hash32 folds maphash's 64-bit digest into 32 bits by xor-ing the two
// halves. hash/maphash has no native 32-bit output and the spec only
// requires "any deterministic 32-bit string hash" with rare, undefended
// collisions, so folding is sufficient.
func hash32(s string) uint32 {
	var h maphash.Hash
	h.SetSeed(processSeed)
	h.WriteString(s)
	sum := h.Sum64()
	return uint32(sum) ^ uint32(sum>>32)
}

// lowerASCII avoids the allocation-heavy unicode path of strings.ToLower for
// the ASCII-only names the pipeline deals with (file and directory names).
// The folded copy is converted back with unsafehelpers.BytesToString rather
// than a plain string(b) conversion, since b is a freshly allocated buffer
// this function never touches again: the usual extra copy string(b) would
// perform is pure waste.
func lowerASCII(s string) string {
	needsFold := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			needsFold = true
			break
		}
	}
	if !needsFold {
		return s
	}
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return unsafehelpers.BytesToString(b)
}

// baseNoExt strips directory components (both '/' and '\\' are treated as
// separators so the pipeline behaves the same on Windows-authored asset
// manifests) and the final extension from path.
func baseNoExt(path string) string {
	base := path
	if i := strings.LastIndexAny(base, "/\\"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

// Package unsafehelpers centralises the small amount of `unsafe` usage the
// asset pipeline needs for zero-copy string/byte conversions and buffer
// growth rounding. Keeping every unsafe cast in one audited file is the
// pattern the teacher codebase used for the same reason; we keep the name
// and the discipline but trim the surface to what this module actually
// calls (string interning in internal/strarena, buffer growth in
// storagegroup/dirgroup).
//
// ⚠️ DISCLAIMER  These helpers deliberately break the Go memory-safety
// model for the sake of zero-allocation conversions. Use ONLY inside this
// repository; they are not part of the public API.
//
// © 2025 assetpipe authors. MIT License.

package unsafehelpers

import "unsafe"

/* -------------------------------------------------------------------------
   1. Zero-copy string/[]byte conversions
   ------------------------------------------------------------------------- */

// BytesToString converts a byte slice to a string without copying. The
// caller must guarantee that b is never mutated for the lifetime of the
// returned string.
func BytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// StringToBytes reinterprets string data as a byte slice without copying.
// The returned slice MUST be treated as read-only.
func StringToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

/* -------------------------------------------------------------------------
   2. Alignment helpers
   ------------------------------------------------------------------------- */

// AlignUp rounds x up to the nearest multiple of align (which must be a
// power of two). Used by storagegroup/dirgroup to grow I/O buffers to the
// next 64 KiB boundary, mirroring the original assetdir.c MEM_CHUNK policy.
func AlignUp(x, align uintptr) uintptr {
	return (x + align - 1) &^ (align - 1)
}

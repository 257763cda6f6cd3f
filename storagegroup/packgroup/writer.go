package packgroup

import (
	"bytes"
	"encoding/binary"
	"os"
	"sort"

	"github.com/tatwood-go/assetpipe/keys"
)

// SourceFile is one input to WriteArchive.
type SourceFile struct {
	Name string
	Data []byte
}

// WriteArchive packs files into a single archive at path: an 8-byte
// manifest-length prefix, a binary manifest of (typeKey, fileKey, offset,
// size, name) records sorted by (fileKey, typeKey) ascending — the exact
// comparator order taa_assetpack_search's binary search in assetpack.c
// expects (filehash primary, typehash secondary) — followed by the
// concatenated file contents in that same sorted order.
//
// This container format has no counterpart in original_source: the C
// sources declare taa_assetpack_packed's fp/files fields but never
// implement the packed read path, only the loose-directory one (see
// assetpack.c). WriteArchive and the rest of this package supply the
// packed variant the spec calls for, grounded on that struct's fields.
func WriteArchive(path string, files []SourceFile) error {
	type record struct {
		name    string
		typeKey keys.TypeKey
		fileKey uint32
		data    []byte
	}
	recs := make([]record, len(files))
	for i, f := range files {
		recs[i] = record{
			name:    f.Name,
			typeKey: keys.TypeKeyOf(f.Name),
			fileKey: keys.FileKey(f.Name),
			data:    f.Data,
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].fileKey != recs[j].fileKey {
			return recs[i].fileKey < recs[j].fileKey
		}
		return recs[i].typeKey < recs[j].typeKey
	})

	var manifest bytes.Buffer
	_ = binary.Write(&manifest, binary.LittleEndian, uint32(len(recs)))
	var offset uint64
	for _, r := range recs {
		_ = binary.Write(&manifest, binary.LittleEndian, uint32(r.typeKey))
		_ = binary.Write(&manifest, binary.LittleEndian, r.fileKey)
		_ = binary.Write(&manifest, binary.LittleEndian, offset)
		_ = binary.Write(&manifest, binary.LittleEndian, uint64(len(r.data)))
		_ = binary.Write(&manifest, binary.LittleEndian, uint16(len(r.name)))
		manifest.WriteString(r.name)
		offset += uint64(len(r.data))
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(manifest.Len()))
	if _, err := f.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := f.Write(manifest.Bytes()); err != nil {
		return err
	}
	for _, r := range recs {
		if _, err := f.Write(r.data); err != nil {
			return err
		}
	}
	return nil
}

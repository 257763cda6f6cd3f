package packgroup

import (
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/tatwood-go/assetpipe/asset"
)

type syncQueue struct{}

func (syncQueue) Push(fn func()) { fn() }

func buildArchive(t *testing.T, dir string) string {
	t.Helper()
	archive := filepath.Join(dir, "assets.pak")
	files := []SourceFile{
		{Name: "logo.tga", Data: []byte("LOGO-BYTES")},
		{Name: "icon.tga", Data: []byte("ICON")},
		{Name: "big.bin", Data: make([]byte, 5000)},
	}
	if err := WriteArchive(archive, files); err != nil {
		t.Fatal(err)
	}
	return archive
}

func TestOpenListsAllPackedFiles(t *testing.T) {
	dir := t.TempDir()
	archive := buildArchive(t, dir)

	st, err := Open("assets", archive, "")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	group := st.Group()
	if len(group.Files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(group.Files))
	}
	names := make([]string, len(group.Files))
	for i, f := range group.Files {
		names[i] = f.Name
	}
	sort.Strings(names)
	want := []string{"big.bin", "icon.tga", "logo.tga"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("unexpected file set: %v", names)
		}
	}
}

func TestLoadDeliversPackedContents(t *testing.T) {
	dir := t.TempDir()
	archive := buildArchive(t, dir)

	st, err := Open("assets", archive, "")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	group := st.Group()
	var target *asset.FileDescriptor
	for i := range group.Files {
		if group.Files[i].Name == "logo.tga" {
			target = &group.Files[i]
		}
	}
	if target == nil {
		t.Fatal("logo.tga not found in index")
	}

	done := make(chan []byte, 1)
	fr := &asset.FileRequest{
		File:  target,
		Queue: syncQueue{},
		Parse: func(buf []byte, userdata any) { done <- append([]byte(nil), buf...) },
	}
	group.Load(group, []*asset.FileRequest{fr})

	select {
	case got := <-done:
		if string(got) != "LOGO-BYTES" {
			t.Fatalf("unexpected content: %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestLoadGrowsBufferForLargeEntry(t *testing.T) {
	dir := t.TempDir()
	archive := buildArchive(t, dir)

	st, err := Open("assets", archive, "", WithInitialBufferSize(64), WithBufferCount(1))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	group := st.Group()
	var target *asset.FileDescriptor
	for i := range group.Files {
		if group.Files[i].Name == "big.bin" {
			target = &group.Files[i]
		}
	}
	if target == nil {
		t.Fatal("big.bin not found in index")
	}

	done := make(chan int, 1)
	fr := &asset.FileRequest{
		File:  target,
		Queue: syncQueue{},
		Parse: func(buf []byte, userdata any) { done <- len(buf) },
	}
	group.Load(group, []*asset.FileRequest{fr})

	select {
	case n := <-done:
		if n != 5000 {
			t.Fatalf("expected 5000 bytes, got %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestIndexSurvivesReopenWithPersistentPath(t *testing.T) {
	dir := t.TempDir()
	archive := buildArchive(t, dir)
	indexPath := filepath.Join(dir, "badgerindex")

	st1, err := Open("assets", archive, indexPath)
	if err != nil {
		t.Fatal(err)
	}
	n1 := len(st1.Group().Files)
	if err := st1.Close(); err != nil {
		t.Fatal(err)
	}

	st2, err := Open("assets", archive, indexPath)
	if err != nil {
		t.Fatal(err)
	}
	defer st2.Close()
	n2 := len(st2.Group().Files)
	if n1 != n2 || n2 != 3 {
		t.Fatalf("expected index to survive reopen with 3 files, got %d then %d", n1, n2)
	}
}

package dirgroup

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tatwood-go/assetpipe/asset"
)

type syncQueue struct{}

func (syncQueue) Push(fn func()) { fn() }

// asyncQueue runs each pushed func on its own goroutine, so a slow parse
// callback does not block dirgroup's load loop from moving on to the next
// request the way syncQueue's synchronous execution would.
type asyncQueue struct{}

func (asyncQueue) Push(fn func()) { go fn() }

func writeFile(t *testing.T, dir, name string, content []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), content, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanListsRegularFilesOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.tga", []byte("AAAA"))
	writeFile(t, dir, "b.png", []byte("BB"))
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	st := New(4)
	group, err := st.Scan("textures", dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(group.Files) != 2 {
		t.Fatalf("expected 2 regular files, got %d: %+v", len(group.Files), group.Files)
	}
	for _, f := range group.Files {
		if f.Handle.(string) != filepath.Join(dir, f.Name) {
			t.Fatalf("expected Handle to be the absolute path, got %v", f.Handle)
		}
	}
}

func TestLoadDeliversFileContents(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "logo.tga", []byte("LOGO-BYTES"))

	st := New(4)
	group, err := st.Scan("ui", dir)
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var got []byte
	done := make(chan struct{})
	fr := &asset.FileRequest{
		File:  &group.Files[0],
		Queue: syncQueue{},
		Parse: func(buf []byte, userdata any) {
			mu.Lock()
			got = append([]byte(nil), buf...)
			mu.Unlock()
			close(done)
		},
	}
	group.Load(group, []*asset.FileRequest{fr})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for parse callback")
	}
	mu.Lock()
	defer mu.Unlock()
	if string(got) != "LOGO-BYTES" {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestLoadMissingFileReportsNilBuffer(t *testing.T) {
	dir := t.TempDir()
	st := New(4)
	group, err := st.Scan("empty", dir)
	if err != nil {
		t.Fatal(err)
	}
	fd := asset.FileDescriptor{Name: "missing.tga", Size: 10, Handle: filepath.Join(dir, "missing.tga")}

	done := make(chan []byte, 1)
	fr := &asset.FileRequest{
		File:  &fd,
		Queue: syncQueue{},
		Parse: func(buf []byte, userdata any) { done <- buf },
	}
	group.Load(group, []*asset.FileRequest{fr})

	select {
	case buf := <-done:
		if buf != nil {
			t.Fatalf("expected nil buffer for missing file, got %v", buf)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestClaimBufferGrowsForLargeFile(t *testing.T) {
	dir := t.TempDir()
	big := make([]byte, 200<<10)
	for i := range big {
		big[i] = byte(i)
	}
	writeFile(t, dir, "big.bin", big)

	st := New(1, WithInitialBufferSize(4<<10))
	group, err := st.Scan("bigdata", dir)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan []byte, 1)
	fr := &asset.FileRequest{
		File:  &group.Files[0],
		Queue: syncQueue{},
		Parse: func(buf []byte, userdata any) { done <- append([]byte(nil), buf...) },
	}
	group.Load(group, []*asset.FileRequest{fr})

	select {
	case got := <-done:
		if len(got) != len(big) {
			t.Fatalf("expected %d bytes, got %d", len(big), len(got))
		}
		for i := range got {
			if got[i] != big[i] {
				t.Fatalf("content mismatch at byte %d", i)
			}
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestClaimBufferBlocksUntilReleased(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.tga", []byte("A"))
	writeFile(t, dir, "b.tga", []byte("B"))

	st := New(1)
	group, err := st.Scan("g", dir)
	if err != nil {
		t.Fatal(err)
	}

	hold := make(chan struct{})
	var secondStarted atomic.Bool
	second := &group.Files[1]
	var reqs []*asset.FileRequest
	for i := range group.Files {
		f := &group.Files[i]
		isSecond := f == second
		reqs = append(reqs, &asset.FileRequest{
			File:  f,
			Queue: asyncQueue{},
			Parse: func(buf []byte, userdata any) {
				if isSecond {
					secondStarted.Store(true)
					return
				}
				<-hold
			},
		})
	}

	go group.Load(group, reqs)

	// With only one buffer, the second request's read cannot even start
	// until the first request's buffer is released by its blocked parse.
	time.Sleep(30 * time.Millisecond)
	if secondStarted.Load() {
		t.Fatal("second request ran before the only buffer was released")
	}
	close(hold)

	deadline := time.After(time.Second)
	for !secondStarted.Load() {
		select {
		case <-deadline:
			t.Fatal("second request never ran after buffer was released")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

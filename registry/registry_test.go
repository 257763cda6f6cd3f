package registry

import (
	"testing"

	"github.com/tatwood-go/assetpipe/asset"
	"github.com/tatwood-go/assetpipe/keys"
)

func makeGroup(name string, files ...string) *asset.StorageGroup {
	g := &asset.StorageGroup{Name: name, GroupKey: keys.GroupKey(name)}
	for _, f := range files {
		g.Files = append(g.Files, asset.FileDescriptor{
			Name:    f,
			TypeKey: keys.TypeKeyOf(f),
			FileKey: keys.FileKey(f),
			Size:    int64(len(f)),
		})
	}
	return g
}

func TestRegisterGroupFiltersByType(t *testing.T) {
	r := New(0)
	g := makeGroup("ui", "logo.tga", "icon.tga", "notes.txt")

	r.RegisterGroup(g, keys.TypeKeyOf("tga"))

	for _, f := range g.Files {
		key := keys.ComposeKey(g.GroupKey, f.FileKey)
		e, ok := r.Find(key)
		if f.TypeKey == keys.TypeKeyOf("tga") {
			if !ok {
				t.Fatalf("expected %s to be registered", f.Name)
			}
			if e.File != &f && e.File.Name != f.Name {
				// compare by name since f is a loop-local copy
				t.Fatalf("entry file mismatch for %s", f.Name)
			}
		} else if ok {
			t.Fatalf("did not expect %s to be registered", f.Name)
		}
	}
}

func TestRegistryStaysSortedAcrossMultipleGroups(t *testing.T) {
	r := New(0)
	groups := []*asset.StorageGroup{
		makeGroup("zzz", "a.tga", "b.tga"),
		makeGroup("aaa", "c.tga", "d.tga"),
		makeGroup("mmm", "e.tga"),
	}
	for _, g := range groups {
		r.RegisterGroup(g, keys.TypeKeyOf("tga"))
	}

	if r.Len() != 5 {
		t.Fatalf("expected 5 entries, got %d", r.Len())
	}
	var prev keys.AssetKey
	for i, k := range r.keys {
		if i > 0 && k <= prev {
			t.Fatalf("registry not strictly ascending at index %d: %v <= %v", i, k, prev)
		}
		prev = k
	}
}

func TestRegisterGroupCapacityGrowth(t *testing.T) {
	r := New(0)
	names := make([]string, 20)
	for i := range names {
		names[i] = string(rune('a'+i)) + ".tga"
	}
	g := makeGroup("bulk", names...)
	r.RegisterGroup(g, keys.TypeKeyOf("tga"))
	if r.Len() != 20 {
		t.Fatalf("expected 20 entries after growth, got %d", r.Len())
	}
	if cap(r.keys)%16 != 0 {
		t.Fatalf("expected capacity rounded to a multiple of 16, got %d", cap(r.keys))
	}
}

func TestFindMissReturnsFalse(t *testing.T) {
	r := New(0)
	if _, ok := r.Find(keys.ComposeKey(1, 2)); ok {
		t.Fatal("expected miss on empty registry")
	}
}

func TestEntryEpochWeakReference(t *testing.T) {
	r := New(0)
	g := makeGroup("ui", "logo.tga")
	r.RegisterGroup(g, keys.TypeKeyOf("tga"))
	e, ok := r.Find(keys.ComposeKey(g.GroupKey, g.Files[0].FileKey))
	if !ok {
		t.Fatal("expected entry to be found")
	}
	epoch := e.SetAsset("payload-v1")
	if a, ep := e.Asset(); a != "payload-v1" || ep != epoch {
		t.Fatalf("unexpected asset/epoch: %v %v", a, ep)
	}
	// Stale epoch must not be able to clear a newer assignment.
	newEpoch := e.SetAsset("payload-v2")
	if e.ClearAsset(epoch) {
		t.Fatal("stale epoch should not be able to clear the current asset")
	}
	if !e.ClearAsset(newEpoch) {
		t.Fatal("current epoch should be able to clear the asset")
	}
	if a, _ := e.Asset(); a != nil {
		t.Fatal("asset should be nil after a successful clear")
	}
}

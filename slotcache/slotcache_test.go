package slotcache

import "testing"

func TestPinReturnsHeadInIndexOrder(t *testing.T) {
	c := New(3)
	for want := 0; want < 3; want++ {
		idx, _, ok := c.Pin()
		if !ok || idx != want {
			t.Fatalf("expected slot %d, got %d ok=%v", want, idx, ok)
		}
	}
	if _, _, ok := c.Pin(); ok {
		t.Fatal("expected Pin to fail once all slots are pinned")
	}
}

func TestUnpinGoesToTail(t *testing.T) {
	c := New(2)
	idx0, _, _ := c.Pin()
	idx1, _, _ := c.Pin()
	c.Unpin(idx0)
	c.Unpin(idx1)
	// idx0 was released first, so it is the head; idx1 should come next.
	got0, _, _ := c.Pin()
	got1, _, _ := c.Pin()
	if got0 != idx0 || got1 != idx1 {
		t.Fatalf("expected FIFO reclamation order %d,%d got %d,%d", idx0, idx1, got0, got1)
	}
}

func TestRepinSucceedsIfUntaken(t *testing.T) {
	c := New(1)
	idx, _, _ := c.Pin()
	c.SetEntry(idx, "payload")
	c.Unpin(idx)

	asset, ok := c.Repin(idx)
	if !ok || asset != "payload" {
		t.Fatalf("expected repin to succeed with payload, got %v ok=%v", asset, ok)
	}
}

func TestRepinFailsIfReassigned(t *testing.T) {
	c := New(1)
	idx, _, _ := c.Pin()
	c.Unpin(idx)
	// Someone else takes the only slot.
	_, _, ok := c.Pin()
	if !ok {
		t.Fatal("expected the slot to be available")
	}
	if _, ok := c.Repin(idx); ok {
		t.Fatal("expected repin to fail once the slot was reassigned")
	}
}

func TestSetEntryPersistsAcrossFreeRepinCycle(t *testing.T) {
	c := New(1)
	idx, initial, _ := c.Pin()
	if initial != nil {
		t.Fatalf("expected nil initial payload, got %v", initial)
	}
	c.SetEntry(idx, "v1")
	c.Unpin(idx)
	payload, ok := c.Repin(idx)
	if !ok || payload != "v1" {
		t.Fatalf("expected persisted payload v1, got %v ok=%v", payload, ok)
	}
}

func TestUnpinNotPinnedPanics(t *testing.T) {
	c := New(1)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic unpinning a slot that is not pinned")
		}
	}()
	c.Unpin(0)
}

func TestSizeOneAlternatingAcquireRelease(t *testing.T) {
	c := New(1)
	for i := 0; i < 5; i++ {
		idx, _, ok := c.Pin()
		if !ok || idx != 0 {
			t.Fatalf("iteration %d: expected slot 0, got %d ok=%v", i, idx, ok)
		}
		c.Unpin(idx)
	}
}

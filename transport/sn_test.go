package transport

import "testing"

func TestSNSpacePrecedesHalfWindow(t *testing.T) {
	s := newSNSpace(4) // R=16
	if !s.precedes(0, 1) {
		t.Fatal("0 should precede 1")
	}
	if s.precedes(0, 0) {
		t.Fatal("a==b must not precede")
	}
	if !s.precedes(15, 0) {
		t.Fatal("15 should precede 0 (wrap)")
	}
	if !s.precedes(0, 8) {
		t.Fatal("exactly R/2 away should precede (boundary is inclusive: <= R/2)")
	}
	if s.precedes(0, 9) {
		t.Fatal("more than R/2 away should not precede")
	}
}

func TestRxWindowAcceptsInOrderAndDetectsDuplicate(t *testing.T) {
	w := newRxWindow(4)
	if ok, dup := w.accept(0); !ok || dup {
		t.Fatalf("first SN should be accepted in-order: ok=%v dup=%v", ok, dup)
	}
	if ok, dup := w.accept(1); !ok || dup {
		t.Fatalf("next SN should be accepted in-order: ok=%v dup=%v", ok, dup)
	}
	if ok, dup := w.accept(0); ok || !dup {
		t.Fatalf("replay of SN 0 should be a duplicate: ok=%v dup=%v", ok, dup)
	}
}

func TestRxWindowSeed(t *testing.T) {
	w := newRxWindow(4)
	w.seed(5)
	if ok, dup := w.accept(5); !ok || dup {
		t.Fatalf("seeded SN should be accepted in-order: ok=%v dup=%v", ok, dup)
	}
	if ok, dup := w.accept(6); !ok || dup {
		t.Fatalf("next after seed should be accepted: ok=%v dup=%v", ok, dup)
	}
}

func TestTxWindowAllocAdvances(t *testing.T) {
	w := newTxWindow(4)
	a := w.alloc()
	b := w.alloc()
	if a != 0 || b != 1 {
		t.Fatalf("expected 0,1 got %d,%d", a, b)
	}
}

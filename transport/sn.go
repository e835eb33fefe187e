// Sequence-number windowing (spec.md §4.5): "a reliable-channel SN precedes
// another iff (b-a) mod R <= R/2 and a != b", R = 2^sn_resolution_bits.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package transport

// snSpace is the modular sequence-number space for one (priority,
// reliability) channel.
type snSpace struct {
	resolution uint64 // R = 2^bits
}

func newSNSpace(bits uint) snSpace {
	return snSpace{resolution: uint64(1) << bits}
}

// precedes reports whether a comes strictly before b in the half-window
// sense spec.md §4.5 defines, used to decide whether an inbound reliable SN
// is the next-expected one, a duplicate, or out of sync.
func (s snSpace) precedes(a, b uint64) bool {
	if a == b {
		return false
	}
	r := s.resolution
	d := (b - a) % r
	return d <= r/2
}

// next returns a+1 wrapped into the space.
func (s snSpace) next(a uint64) uint64 {
	return (a + 1) % s.resolution
}

// txWindow tracks the next outgoing SN for one channel.
type txWindow struct {
	space snSpace
	next  uint64
}

func newTxWindow(bits uint) *txWindow {
	return &txWindow{space: newSNSpace(bits)}
}

// alloc returns the SN to stamp on the next outgoing frame and advances the
// window.
func (w *txWindow) alloc() uint64 {
	sn := w.next
	w.next = w.space.next(sn)
	return sn
}

// rxWindow tracks the expected next-inbound SN for one reliable channel.
type rxWindow struct {
	space    snSpace
	expected uint64
	synced   bool
}

func newRxWindow(bits uint) *rxWindow {
	return &rxWindow{space: newSNSpace(bits)}
}

// seed primes the window with the peer's declared initial SN (carried in
// the Open handshake), so the first Frame is checked against it instead of
// being accepted unconditionally.
func (w *rxWindow) seed(initial uint64) {
	w.expected = initial
	w.synced = true
}

// accept classifies an inbound reliable SN: inOrder means it is the
// expected next SN (accept and advance); duplicate means it already
// precedes the expected SN (drop silently); otherwise the SN gap means the
// channel is out of sync and the session must close with ReasonSNOutOfSync.
func (w *rxWindow) accept(sn uint64) (inOrder, duplicate bool) {
	if !w.synced {
		w.synced = true
		w.expected = w.space.next(sn)
		return true, false
	}
	if sn == w.expected {
		w.expected = w.space.next(sn)
		return true, false
	}
	if w.space.precedes(sn, w.expected) {
		return false, true
	}
	return false, false
}

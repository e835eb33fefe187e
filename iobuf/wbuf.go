// WBuf is the write-buffer half of spec.md §4.2: "reserve(n) -> slot;
// write_u8; write_bytes; write_at(slot, bytes); len(); reset()". This
// implementation backs it with a single expandable slice (the common case);
// Chained backs it with a list of fixed-size slices for fragmentation
// planning (spec.md: "chained (segmented) mode links fixed-size slices").
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package iobuf

import "github.com/zenoh-go/zenoh-lite/cmn/cos"

// Slot names a reserved span in a WBuf, handed back by Reserve and later
// filled in by WriteAt once the real length/value is known (streamed-length
// framing: "reserve header length slot, patch back with measured length").
type Slot struct {
	off, n int
}

type WBuf struct {
	b []byte
}

func NewWBuf(capacityHint int) *WBuf { return &WBuf{b: make([]byte, 0, capacityHint)} }

func (w *WBuf) Len() int { return len(w.b) }

func (w *WBuf) Reset() { w.b = w.b[:0] }

func (w *WBuf) Bytes() []byte { return w.b }

func (w *WBuf) WriteByte(c byte) error {
	w.b = append(w.b, c)
	return nil
}

func (w *WBuf) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

// Reserve appends n zero bytes and returns a Slot addressing them, for
// later backfilling once the true content is known.
func (w *WBuf) Reserve(n int) Slot {
	off := len(w.b)
	w.b = append(w.b, make([]byte, n)...)
	return Slot{off: off, n: n}
}

// WriteAt backfills a previously Reserve-d slot. len(p) must equal the
// slot's reserved width.
func (w *WBuf) WriteAt(s Slot, p []byte) error {
	if len(p) != s.n {
		return cos.NewCodecErr(cos.OutOfSpace, "slot width %d, got %d", s.n, len(p))
	}
	copy(w.b[s.off:s.off+s.n], p)
	return nil
}

// Chained links fixed-size slices, used when the caller wants fragmentation
// boundaries to fall out of buffer-fill rather than computing them upfront
// (spec.md §4.2: "a write that would cross a slice boundary either
// allocates the next slice, fails with OutOfSpace (bounded mode), or is
// interpreted by the caller as 'fragment boundary here'").
type Chained struct {
	sliceSize int
	bounded   bool
	slices    [][]byte
	cur       []byte
	// Boundary is set to true by Write whenever a write crossed into a new
	// slice; the caller (the transport's fragmenter) clears it after
	// noting the fragment boundary.
	Boundary bool
}

func NewChained(sliceSize int, bounded bool) *Chained {
	c := &Chained{sliceSize: sliceSize, bounded: bounded}
	c.cur = make([]byte, 0, sliceSize)
	c.slices = append(c.slices, nil)
	return c
}

func (c *Chained) Len() int {
	n := 0
	for _, s := range c.slices {
		n += len(s)
	}
	return n + len(c.cur)
}

func (c *Chained) Slices() [][]byte {
	out := append(c.slices[:len(c.slices)-1:len(c.slices)-1], c.cur)
	return out
}

func (c *Chained) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		avail := c.sliceSize - len(c.cur)
		if avail == 0 {
			if c.bounded {
				return written, cos.NewCodecErr(cos.OutOfSpace, "chained buffer exhausted")
			}
			c.slices[len(c.slices)-1] = c.cur
			c.slices = append(c.slices, nil)
			c.cur = make([]byte, 0, c.sliceSize)
			c.Boundary = true
			avail = c.sliceSize
		}
		n := avail
		if n > len(p) {
			n = len(p)
		}
		c.cur = append(c.cur, p[:n]...)
		p = p[n:]
		written += n
	}
	return written, nil
}

// Defrag accumulates Fragment payloads for one (peer, reliability) channel
// until the terminating fragment's "end" bit, per spec.md §4.2/§4.5. On
// overflow it discards and resets without tearing down the session
// (spec.md: "the session is not killed; the fragment SN logic will catch
// the next coherent start").
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package iobuf

import "github.com/zenoh-go/zenoh-lite/cmn/cos"

type Defrag struct {
	buf     []byte
	ceiling int
}

// NewDefrag creates a reassembly buffer that discards itself once more than
// ceiling bytes have accumulated without an "end" fragment.
func NewDefrag(ceiling int) *Defrag {
	return &Defrag{ceiling: ceiling}
}

// Append adds a fragment's payload. If that would exceed the ceiling it
// drops p, resets the buffer so the next Append starts clean, and returns an
// OutOfSpace CodecErr (non-fatal to the caller); otherwise the accumulated
// bytes are kept until Take.
func (d *Defrag) Append(p []byte) error {
	if len(d.buf)+len(p) > d.ceiling {
		d.buf = d.buf[:0]
		return cos.NewCodecErr(cos.OutOfSpace, "reassembly buffer exceeds %d bytes", d.ceiling)
	}
	d.buf = append(d.buf, p...)
	return nil
}

// Take returns the accumulated bytes and resets the buffer for reuse,
// called when a fragment with the "end" bit arrives.
func (d *Defrag) Take() []byte {
	out := d.buf
	d.buf = nil
	return out
}

func (d *Defrag) Len() int { return len(d.buf) }

func (d *Defrag) Reset() { d.buf = d.buf[:0] }

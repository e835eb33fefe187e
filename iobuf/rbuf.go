// Package iobuf implements the wire codec's byte sinks/sources (spec.md §4.2,
// component B): a read buffer with a cursor, a write buffer supporting
// reserve/patch-back framing, and a per-peer defragmentation buffer.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package iobuf

import "github.com/zenoh-go/zenoh-lite/cmn/cos"

// RBuf is a byte source with a read cursor (spec.md §3 "Read buffer").
type RBuf struct {
	b   []byte
	off int
}

func NewRBuf(b []byte) *RBuf { return &RBuf{b: b} }

func (r *RBuf) Remaining() int { return len(r.b) - r.off }

func (r *RBuf) Len() int { return len(r.b) }

func (r *RBuf) Offset() int { return r.off }

// Peek returns the next n bytes without advancing the cursor.
func (r *RBuf) Peek(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, cos.NewCodecErr(cos.Truncated, "need %d, have %d", n, r.Remaining())
	}
	return r.b[r.off : r.off+n], nil
}

func (r *RBuf) Skip(n int) error {
	if r.Remaining() < n {
		return cos.NewCodecErr(cos.Truncated, "skip %d, have %d", n, r.Remaining())
	}
	r.off += n
	return nil
}

func (r *RBuf) ReadByte() (byte, error) {
	if r.Remaining() < 1 {
		return 0, cos.NewCodecErr(cos.Truncated, "need 1 byte")
	}
	c := r.b[r.off]
	r.off++
	return c, nil
}

// ReadN returns a slice view (no copy) of the next n bytes, advancing the
// cursor. Callers that retain the result beyond the lifetime of the
// underlying buffer must copy it themselves.
func (r *RBuf) ReadN(n int) ([]byte, error) {
	if n < 0 {
		return nil, cos.NewCodecErr(cos.Malformed, "negative length %d", n)
	}
	if r.Remaining() < n {
		return nil, cos.NewCodecErr(cos.Truncated, "need %d, have %d", n, r.Remaining())
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out, nil
}

// ReadCopy is ReadN but returns an owned copy, for data that outlives the
// decode call (e.g. a sample payload handed off to a user callback after
// the socket buffer is reused).
func (r *RBuf) ReadCopy(n int) ([]byte, error) {
	v, err := r.ReadN(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, v)
	return out, nil
}

func (r *RBuf) Bytes() []byte { return r.b[r.off:] }

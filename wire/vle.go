// Package wire implements the Zenoh wire codec (spec.md §4.1, component A):
// VLE integers, byte/string encoding, timestamps, message framing
// (stream-length-prefixed and COBS+CRC32 serial), and message extensions.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import (
	"github.com/zenoh-go/zenoh-lite/cmn/cos"
	"github.com/zenoh-go/zenoh-lite/iobuf"
)

// maxVLEBytes bounds decode to ceil(64/7) = 10 bytes (spec.md §4.1).
const maxVLEBytes = 10

// WriteVLE encodes v as a little-endian VLE integer: 7 bits of payload per
// byte, continuation flagged in the MSB.
func WriteVLE(w *iobuf.WBuf, v uint64) error {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
			w.WriteByte(b)
			continue
		}
		w.WriteByte(b)
		return nil
	}
}

// ReadVLE decodes a VLE integer, reporting Malformed if more than
// maxVLEBytes continuation bytes are seen or if the value overflows 64 bits.
func ReadVLE(r *iobuf.RBuf) (uint64, error) {
	var v uint64
	for i := 0; i < maxVLEBytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if i == maxVLEBytes-1 && b&0xfe != 0 {
			// 10th byte may only contribute its single remaining bit
			return 0, cos.NewCodecErr(cos.Malformed, "vle overflows 64 bits")
		}
		v |= uint64(b&0x7f) << (7 * uint(i))
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, cos.NewCodecErr(cos.Malformed, "vle exceeds %d bytes", maxVLEBytes)
}

// WriteBytes writes a VLE length prefix followed by the raw bytes
// (spec.md §4.1: "strings are not NUL-terminated on the wire").
func WriteBytes(w *iobuf.WBuf, b []byte) error {
	if err := WriteVLE(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func ReadBytes(r *iobuf.RBuf) ([]byte, error) {
	n, err := ReadVLE(r)
	if err != nil {
		return nil, err
	}
	return r.ReadCopy(int(n))
}

func WriteString(w *iobuf.WBuf, s string) error {
	return WriteBytes(w, cos.UnsafeB(s))
}

func ReadString(r *iobuf.RBuf) (string, error) {
	b, err := ReadBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Message extensions (spec.md §4.1): "A header byte carries id (low bits),
// mandatory flag, encoding (unit / zint / zbuf), and a has-next bit.
// Encoding governs the body shape. ... an unknown extension with the
// mandatory bit set causes ExtensionUnknownMandatory; non-mandatory
// unknowns are skipped without error."
//
// Header byte layout (documented choice — the spec's source description is
// in prose, not bit offsets): bits 0-3 = id, bits 4-5 = encoding, bit 6 =
// mandatory, bit 7 = has-next.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import (
	"github.com/zenoh-go/zenoh-lite/cmn/cos"
	"github.com/zenoh-go/zenoh-lite/iobuf"
)

type ExtEncoding byte

const (
	ExtUnit ExtEncoding = 0
	ExtZInt ExtEncoding = 1
	ExtZBuf ExtEncoding = 2
)

const (
	extIDMask   = 0x0f
	extEncShift = 4
	extEncMask  = 0x03
	extMandBit  = 1 << 6
	extMoreBit  = 1 << 7
)

// Ext is one decoded or to-be-encoded extension.
type Ext struct {
	ID        byte
	Mandatory bool
	Encoding  ExtEncoding
	ZInt      uint64 // valid when Encoding == ExtZInt
	ZBuf      []byte // valid when Encoding == ExtZBuf
}

func WriteExt(w *iobuf.WBuf, e Ext, hasNext bool) error {
	if e.ID > extIDMask {
		return cos.NewCodecErr(cos.Malformed, "extension id %d exceeds %d", e.ID, extIDMask)
	}
	hdr := e.ID | (byte(e.Encoding)&extEncMask)<<extEncShift
	if e.Mandatory {
		hdr |= extMandBit
	}
	if hasNext {
		hdr |= extMoreBit
	}
	if err := w.WriteByte(hdr); err != nil {
		return err
	}
	switch e.Encoding {
	case ExtUnit:
		return nil
	case ExtZInt:
		return WriteVLE(w, e.ZInt)
	case ExtZBuf:
		return WriteBytes(w, e.ZBuf)
	default:
		return cos.NewCodecErr(cos.Malformed, "unknown extension encoding %d", e.Encoding)
	}
}

// KnownExtIDs is supplied by the caller per message family, so the decoder
// can tell "unknown but optional" from "unknown and mandatory".
type KnownExtIDs map[byte]bool

// ReadExtensions iterates the extension chain following a message body,
// stopping at the first header whose has-next bit is clear. It returns only
// the extensions the caller claims to know about (via known); unknown
// non-mandatory extensions are consumed and dropped silently, per spec.
func ReadExtensions(r *iobuf.RBuf, known KnownExtIDs) ([]Ext, error) {
	var out []Ext
	for {
		hdr, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		e := Ext{
			ID:        hdr & extIDMask,
			Mandatory: hdr&extMandBit != 0,
			Encoding:  ExtEncoding((hdr >> extEncShift) & extEncMask),
		}
		hasNext := hdr&extMoreBit != 0
		switch e.Encoding {
		case ExtUnit:
		case ExtZInt:
			v, err := ReadVLE(r)
			if err != nil {
				return nil, err
			}
			e.ZInt = v
		case ExtZBuf:
			b, err := ReadBytes(r)
			if err != nil {
				return nil, err
			}
			e.ZBuf = b
		default:
			return nil, cos.NewCodecErr(cos.Malformed, "unknown extension encoding %d", e.Encoding)
		}
		if known[e.ID] {
			out = append(out, e)
		} else if e.Mandatory {
			return nil, cos.NewCodecErr(cos.ExtensionUnknownMandatory, "extension id %d", e.ID)
		}
		// unknown, non-mandatory: skipped without error (not appended)
		if !hasNext {
			return out, nil
		}
	}
}

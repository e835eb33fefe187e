// WireKeyExpr is the on-the-wire (id, suffix) tuple of spec.md §3/§4.1:
// "(id:VLE, has_suffix_flag, suffix?:string, mapping_flag)". The has-suffix
// flag lives in the containing message (its header byte, or a per-declaration
// flag byte inside Declare); the mapping is not written to the wire, and
// decoders pass it in. This type only carries the payload.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import "github.com/zenoh-go/zenoh-lite/iobuf"

// Mapping selects which scope a bare numeric id resolves against.
type Mapping bool

const (
	MappingLocal  Mapping = false
	MappingRemote Mapping = true
)

type WireKeyExpr struct {
	ID      uint64 // 0 means "no numeric id" (spec.md §3)
	Suffix  string // empty if HasSuffix is false
	Mapping Mapping
}

func (k WireKeyExpr) HasSuffix() bool { return k.Suffix != "" }

// EncodeKeyExpr writes the id (always present, may be 0) and, when
// hasSuffix, the suffix string. The caller is responsible for setting the
// has-suffix flag in the containing message; the mapping is not encoded.
func EncodeKeyExpr(w *iobuf.WBuf, k WireKeyExpr) error {
	if err := WriteVLE(w, k.ID); err != nil {
		return err
	}
	if k.HasSuffix() {
		return WriteString(w, k.Suffix)
	}
	return nil
}

func DecodeKeyExpr(r *iobuf.RBuf, hasSuffix bool, mapping Mapping) (WireKeyExpr, error) {
	id, err := ReadVLE(r)
	if err != nil {
		return WireKeyExpr{}, err
	}
	k := WireKeyExpr{ID: id, Mapping: mapping}
	if hasSuffix {
		s, err := ReadString(r)
		if err != nil {
			return WireKeyExpr{}, err
		}
		k.Suffix = s
	}
	return k, nil
}

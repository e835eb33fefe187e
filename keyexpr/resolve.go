// Resolution between the (id, suffix) wire form and the canonical string
// form a key expression carries once decoded (spec.md §4.3): "used for both
// outgoing messages (to choose the smallest wire form: numeric id alone >
// id+suffix > suffix) and for matching."
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package keyexpr

import "strings"

// Table is the minimal view the resolver needs of a resource table: look up
// the canonical prefix registered under id, and look up an id registered for
// an exact canonical string (for outgoing wire-form minimization).
type Table interface {
	Prefix(id uint64) (string, bool)
	IDFor(canonical string) (uint64, bool)
}

// Resolve turns a decoded (id, suffix) pair into its canonical string: the
// suffix, if any, is appended to the prefix registered under id.
func Resolve(t Table, id uint64, suffix string) (string, bool) {
	if id == 0 {
		return Canonicalize1(suffix)
	}
	prefix, ok := t.Prefix(id)
	if !ok {
		return "", false
	}
	if suffix == "" {
		return prefix, true
	}
	joined := prefix + "/" + suffix
	return Canonicalize1(joined)
}

func Canonicalize1(s string) (string, bool) {
	c, err := Canonicalize(s)
	if err != nil {
		return "", false
	}
	return c, true
}

// WireForm is the chosen (id, suffix) encoding for canonical on the wire.
type WireForm struct {
	ID     uint64
	Suffix string
}

// ChooseWireForm picks the smallest of the three legal encodings of
// canonical: a bare registered id, an id plus a trailing suffix, or the
// full suffix string with no id.
func ChooseWireForm(t Table, canonical string) WireForm {
	if id, ok := t.IDFor(canonical); ok {
		return WireForm{ID: id}
	}
	best := WireForm{Suffix: canonical}
	bestLen := len(canonical)
	idx := strings.LastIndex(canonical, "/")
	for idx >= 0 {
		prefix := canonical[:idx]
		suffix := canonical[idx+1:]
		if id, ok := t.IDFor(prefix); ok {
			if l := len(suffix); l < bestLen {
				best = WireForm{ID: id, Suffix: suffix}
				bestLen = l
			}
			break
		}
		idx = strings.LastIndex(prefix, "/")
	}
	return best
}

// Timestamp wire type: spec.md §4.1 "(time:u64, id:bytes); id length 1-16".
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import (
	"github.com/zenoh-go/zenoh-lite/cmn/cos"
	"github.com/zenoh-go/zenoh-lite/iobuf"
)

type Timestamp struct {
	Time uint64
	ID   []byte // 1..16 bytes, typically the originating ZID
}

// Before reports whether t strictly precedes o, comparing time first and
// breaking ties lexicographically on ID — used by MONOTONIC/LATEST
// consolidation (spec.md §4.7) to get a total order for "strictly exceeds".
func (t Timestamp) Before(o Timestamp) bool {
	if t.Time != o.Time {
		return t.Time < o.Time
	}
	for i := 0; i < len(t.ID) && i < len(o.ID); i++ {
		if t.ID[i] != o.ID[i] {
			return t.ID[i] < o.ID[i]
		}
	}
	return len(t.ID) < len(o.ID)
}

func WriteTimestamp(w *iobuf.WBuf, t Timestamp) error {
	if err := WriteVLE(w, t.Time); err != nil {
		return err
	}
	return WriteBytes(w, t.ID)
}

func ReadTimestamp(r *iobuf.RBuf) (Timestamp, error) {
	tm, err := ReadVLE(r)
	if err != nil {
		return Timestamp{}, err
	}
	id, err := ReadBytes(r)
	if err != nil {
		return Timestamp{}, err
	}
	if len(id) < 1 || len(id) > 16 {
		return Timestamp{}, cos.NewCodecErr(cos.Malformed, "timestamp id length %d out of [1,16]", len(id))
	}
	return Timestamp{Time: tm, ID: id}, nil
}

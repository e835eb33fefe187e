// ID generation: ZIDs (spec.md §3 "opaque 1-16-byte identity") and the
// monotonic entity-id / query-id counters, grounded on the teacher's
// cmn/cos/uuid.go (xxhash + shortid alphabet, tie-breaking helpers).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"encoding/hex"
	"strconv"
	"sync/atomic"

	"github.com/OneOfOne/xxhash"
	"github.com/teris-io/shortid"
)

const (
	// alphabet for generating ZID-tie strings, same shape as the teacher's
	// uuidABC (> 0x3f distinct symbols so GenTie's 6-bit masks stay in range)
	zidABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

	// MaxZIDLen is the wire-format bound from spec.md §3.
	MaxZIDLen = 16
	MinZIDLen = 1
)

var (
	sid  *shortid.Shortid
	rtie atomic.Uint32
)

func init() {
	sid = shortid.MustNew(4 /*worker*/, zidABC, 0x5a )
}

// ZID is an opaque session identity, 1-16 bytes (spec.md §3).
type ZID []byte

func (z ZID) String() string { return hex.EncodeToString(z) }

func (z ZID) Equal(o ZID) bool {
	if len(z) != len(o) {
		return false
	}
	for i := range z {
		if z[i] != o[i] {
			return false
		}
	}
	return true
}

// GenZID derives a pseudo-random ZID of length n (1..16) from a fast
// xxhash-mixed counter, the way the teacher's GenBEID derives a
// "best-effort ID" locally without coordinating with any peer.
func GenZID(n int) ZID {
	if n < MinZIDLen {
		n = MinZIDLen
	}
	if n > MaxZIDLen {
		n = MaxZIDLen
	}
	seed := rtie.Add(1)
	digest := xxhash.Checksum64S([]byte(strconv.FormatUint(uint64(seed), 36)), uint32(seed))
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = byte(digest >> (8 * uint(i%8)))
		digest = digest*6364136223846793005 + 1
	}
	return out
}

// GenShortID produces a short printable id for human-facing labels (e.g.
// a stream/session label in log lines), grounded on GenUUID.
func GenShortID() string {
	uuid := sid.MustGenerate()
	return uuid
}

// entity/query id counters: per-session monotonically increasing integers
// (spec.md §3: "entity ID ... per-session monotonically increasing",
// "query ID is drawn from its own monotonic counter").
type IDCounter struct{ n atomic.Uint64 }

// Next returns the next id, starting at 1 (0 is reserved per spec.md §3:
// "0 means 'no numeric ID assigned'").
func (c *IDCounter) Next() uint64 { return c.n.Add(1) }

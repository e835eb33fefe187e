// Package mono provides the monotonic-clock capability (§4, component J)
// consumed by the lease timer, keep-alive scheduling, and the housekeeper.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import "time"

// NanoTime returns a monotonically increasing count of nanoseconds. The
// teacher's own mono package pins this to runtime.nanotime via go:linkname
// behind a "mono" build tag; that binds to unexported runtime internals and
// breaks across Go releases, so this rewrite takes the portable route and
// derives it from a time.Time captured once at process start, which the
// runtime already guarantees is monotonic (time.Since/Sub on values from
// time.Now never observes wall-clock adjustments).
var start = time.Now()

func NanoTime() int64 { return int64(time.Since(start)) }

// Since returns the elapsed duration since a NanoTime() reading.
func Since(ns int64) time.Duration { return time.Duration(NanoTime() - ns) }

// Package cmn holds the read-mostly, construction-time configuration shared
// across packages: default lease/keep-alive/SN-resolution values that the
// hot send/receive paths read far more often than they change. Grounded on
// the teacher's cmn/rom.go ("read-mostly and most often used timeouts:
// assign at startup to reduce the number of [config] lookups").
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import "time"

// readMostly mirrors the teacher's pattern (a single package-level struct,
// set once at session-factory construction time per spec.md §9: "Global
// mutable state in the source ... is compile-time configuration; in the
// rewrite express it as construction-time configuration passed into the
// session factory" — Rom itself is the process-wide default, and Set
// replaces its lease/keep-alive/SN-resolution values in place). session.Open
// does not read Rom: it takes these values from its zconfig.Config.
type readMostly struct {
	lease     time.Duration
	keepalive time.Duration
	snResBits uint
	verbosity int
}

var Rom readMostly

func init() {
	Rom.lease = 10 * time.Second
	Rom.keepalive = Rom.lease / 4
	Rom.snResBits = 28 // 2^28, matches zenoh-pico's default SN resolution
	Rom.verbosity = 0
}

func (rom *readMostly) Set(lease, keepalive time.Duration, snResBits uint) {
	rom.lease, rom.keepalive, rom.snResBits = lease, keepalive, snResBits
}

func (rom *readMostly) Lease() time.Duration     { return rom.lease }
func (rom *readMostly) KeepAlive() time.Duration { return rom.keepalive }
func (rom *readMostly) SNResolutionBits() uint   { return rom.snResBits }

func (rom *readMostly) SetVerbosity(v int) { rom.verbosity = v }
func (rom *readMostly) FastV(v int) bool   { return rom.verbosity >= v }

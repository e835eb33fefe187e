// Package prob implements a probabilistic set membership pre-filter that can
// sit in front of an authoritative lookup to avoid a full table scan. No
// other package in this module imports it. A positive from Filter.Lookup means "maybe present,
// go check the real table"; a negative means "definitely absent, skip the
// table lookup entirely". False positives are tolerated; false negatives
// are not and must never happen (the authoritative table is always
// consulted before declaring something genuinely unseen).
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package prob

import (
	"encoding/binary"
	"sync"

	cuckoo "github.com/seiflotfy/cuckoofilter"
)

// Filter wraps a cuckoo filter behind a mutex: the underlying filter is not
// safe for concurrent Insert/Delete, so this lets callers on different
// goroutines share one Filter.
type Filter struct {
	mu sync.Mutex
	cf *cuckoo.Filter
}

// New creates a filter sized for roughly capacity distinct keys.
func New(capacity uint) *Filter {
	return &Filter{cf: cuckoo.NewFilter(capacity)}
}

func key(u uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], u)
	return b[:]
}

// Seen reports whether u was previously recorded (possibly a false
// positive); callers must still confirm against the authoritative table.
func (f *Filter) Seen(u uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cf.Lookup(key(u))
}

// Record marks u as seen. Recording a key the filter already reports as
// present inserts nothing (InsertUnique), so duplicates use no extra slot.
func (f *Filter) Record(u uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cf.InsertUnique(key(u))
}

// Forget removes u so its slot can be reused.
func (f *Filter) Forget(u uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cf.Delete(key(u))
}

// Count returns the approximate number of distinct keys recorded.
func (f *Filter) Count() uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cf.Count()
}

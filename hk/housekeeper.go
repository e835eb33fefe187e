// Package hk provides a mechanism for registering periodic callbacks,
// grounded on the teacher's hk package (name + interval + callback,
// a single goroutine ticking a priority queue of due times). Used for the
// transport layer's lease check, keep-alive emission, query-deadline sweep,
// and JOIN re-announcement (spec.md §5).
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package hk

import (
	"container/heap"
	"sync"
	"time"

	"github.com/zenoh-go/zenoh-lite/cmn/debug"
	"github.com/zenoh-go/zenoh-lite/cmn/nlog"
)

// UnregInterval is the reserved return value a callback uses to unregister
// itself instead of being rescheduled.
const UnregInterval = -1 * time.Second

// Func runs on every tick; its return value is the delay until the next
// tick (the callback itself may choose a jittered or changing interval).
type Func func() time.Duration

type job struct {
	name     string
	f        Func
	due      time.Time
	interval time.Duration
	index    int
}

type jobHeap []*job

func (h jobHeap) Len() int            { return len(h) }
func (h jobHeap) Less(i, j int) bool  { return h[i].due.Before(h[j].due) }
func (h jobHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *jobHeap) Push(x interface{}) { j := x.(*job); j.index = len(*h); *h = append(*h, j) }
func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return j
}

// Housekeeper runs registered jobs on their own schedule from one goroutine.
type Housekeeper struct {
	mu       sync.Mutex
	byName   map[string]*job
	q        jobHeap
	wake     chan struct{}
	stop     chan struct{}
	started  chan struct{}
	startOne sync.Once
}

// DefaultHK is the process-wide housekeeper instance.
var DefaultHK = New()

func New() *Housekeeper {
	return &Housekeeper{
		byName:  make(map[string]*job),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		started: make(chan struct{}),
	}
}

// Reg schedules f to run once after the given delay, then again after
// whatever duration f itself returns (UnregInterval to stop rescheduling).
func (h *Housekeeper) Reg(name string, f Func, delay time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	debug.Assert(h.byName[name] == nil)
	j := &job{name: name, f: f, due: time.Now().Add(delay), interval: delay}
	h.byName[name] = j
	heap.Push(&h.q, j)
	h.poke()
}

func (h *Housekeeper) Unreg(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	j, ok := h.byName[name]
	if !ok {
		return
	}
	delete(h.byName, name)
	if j.index >= 0 && j.index < len(h.q) && h.q[j.index] == j {
		heap.Remove(&h.q, j.index)
	}
}

func (h *Housekeeper) poke() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Run drives the scheduling loop; call it from its own goroutine. It
// returns when Stop is called.
func (h *Housekeeper) Run() {
	h.startOne.Do(func() { close(h.started) })
	for {
		h.mu.Lock()
		var timer <-chan time.Time
		if len(h.q) > 0 {
			d := time.Until(h.q[0].due)
			if d < 0 {
				d = 0
			}
			timer = time.After(d)
		}
		h.mu.Unlock()

		select {
		case <-h.stop:
			return
		case <-h.wake:
			continue
		case <-orNever(timer):
			h.runDue()
		}
	}
}

func orNever(c <-chan time.Time) <-chan time.Time {
	if c == nil {
		return make(chan time.Time) // blocks forever until Run loops again
	}
	return c
}

func (h *Housekeeper) runDue() {
	now := time.Now()
	var due []*job
	h.mu.Lock()
	for len(h.q) > 0 && !h.q[0].due.After(now) {
		due = append(due, heap.Pop(&h.q).(*job))
	}
	h.mu.Unlock()

	for _, j := range due {
		next := safeRun(j)
		if next == UnregInterval {
			h.mu.Lock()
			delete(h.byName, j.name)
			h.mu.Unlock()
			continue
		}
		j.due = time.Now().Add(next)
		h.mu.Lock()
		if _, ok := h.byName[j.name]; ok {
			heap.Push(&h.q, j)
		}
		h.mu.Unlock()
	}
}

func safeRun(j *job) (next time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			nlog.Errorf("hk job %q panicked: %v", j.name, r)
			next = j.interval
		}
	}()
	return j.f()
}

// Stop signals Run to return.
func (h *Housekeeper) Stop() { close(h.stop) }

// WaitStarted blocks until Run has been entered at least once.
func (h *Housekeeper) WaitStarted() { <-h.started }

//
// package-level convenience wrapping DefaultHK, matching the teacher's API.
//

func Reg(name string, f Func, delay time.Duration) { DefaultHK.Reg(name, f, delay) }
func Unreg(name string)                            { DefaultHK.Unreg(name) }
func WaitStarted()                                 { DefaultHK.WaitStarted() }

// TestInit resets DefaultHK for use by package tests, mirroring the
// teacher's hk.TestInit used from housekeeper_suite_test.go.
func TestInit() {
	DefaultHK = New()
}

package hk_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/zenoh-go/zenoh-lite/hk"
)

func TestRegRunsAndReschedules(t *testing.T) {
	h := hk.New()
	go h.Run()
	defer h.Stop()
	h.WaitStarted()

	var n atomic.Int32
	h.Reg("tick", func() time.Duration {
		n.Add(1)
		return 10 * time.Millisecond
	}, time.Millisecond)

	deadline := time.Now().Add(200 * time.Millisecond)
	for n.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n.Load() < 3 {
		t.Fatalf("expected at least 3 ticks, got %d", n.Load())
	}
}

func TestRegUnregIntervalStopsRescheduling(t *testing.T) {
	h := hk.New()
	go h.Run()
	defer h.Stop()
	h.WaitStarted()

	var n atomic.Int32
	h.Reg("once", func() time.Duration {
		n.Add(1)
		return hk.UnregInterval
	}, time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	if n.Load() != 1 {
		t.Fatalf("expected exactly 1 run, got %d", n.Load())
	}
}

func TestUnregPreventsFutureRuns(t *testing.T) {
	h := hk.New()
	go h.Run()
	defer h.Stop()
	h.WaitStarted()

	var n atomic.Int32
	h.Reg("cancel-me", func() time.Duration {
		n.Add(1)
		return 5 * time.Millisecond
	}, 50*time.Millisecond)

	h.Unreg("cancel-me")
	time.Sleep(100 * time.Millisecond)
	if n.Load() != 0 {
		t.Fatalf("expected 0 runs after Unreg before first fire, got %d", n.Load())
	}
}

package session

import (
	"sync"
	"testing"
	"time"

	"github.com/zenoh-go/zenoh-lite/wire"
	"github.com/zenoh-go/zenoh-lite/zconfig"
)

func openPair(t *testing.T) (a, b *Session) {
	t.Helper()
	cfgA := zconfig.Default()
	cfgA.MulticastScouting = false
	cfgA.Listen = []string{"tcp/127.0.0.1:0"}
	a, err := Open(cfgA)
	if err != nil {
		t.Fatalf("open listener session: %v", err)
	}

	var addr string
	for i := 0; i < 50; i++ {
		a.mu.Lock()
		n := len(a.listeners)
		if n > 0 {
			addr = a.listeners[0].Addr()
		}
		a.mu.Unlock()
		if addr != "" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if addr == "" {
		t.Fatal("listener never bound")
	}

	cfgB := zconfig.Default()
	cfgB.MulticastScouting = false
	cfgB.Connect = []string{"tcp/" + addr}
	b, err = Open(cfgB)
	if err != nil {
		a.Close()
		t.Fatalf("open connecting session: %v", err)
	}
	return a, b
}

func waitForUnicastPeer(t *testing.T, s *Session) {
	t.Helper()
	for i := 0; i < 100; i++ {
		s.mu.Lock()
		n := len(s.unicast)
		s.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("peer never connected")
}

func TestPubSubAcrossConnectedSessions(t *testing.T) {
	a, b := openPair(t)
	defer a.Close()
	defer b.Close()
	waitForUnicastPeer(t, a)
	waitForUnicastPeer(t, b)

	var mu sync.Mutex
	var got Sample
	done := make(chan struct{}, 1)
	if _, err := a.DeclareSubscriber("demo/example/**", true, func(s Sample) {
		mu.Lock()
		got = s
		mu.Unlock()
		done <- struct{}{}
	}); err != nil {
		t.Fatalf("DeclareSubscriber: %v", err)
	}

	time.Sleep(50 * time.Millisecond) // let the declaration propagate
	if err := b.Put("demo/example/k1", []byte("hello"), "text/plain"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	if got.KeyExpr != "demo/example/k1" || string(got.Payload) != "hello" {
		t.Fatalf("unexpected sample: %+v", got)
	}
}

func TestGetQueryableRoundTrip(t *testing.T) {
	a, b := openPair(t)
	defer a.Close()
	defer b.Close()
	waitForUnicastPeer(t, a)
	waitForUnicastPeer(t, b)

	if _, err := a.DeclareQueryable("demo/rpc/**", func(q Query) {
		q.Reply(Sample{KeyExpr: q.KeyExpr, Payload: []byte("pong")})
		q.Finish()
	}); err != nil {
		t.Fatalf("DeclareQueryable: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	var mu sync.Mutex
	var replies []Sample
	done := make(chan struct{}, 1)
	if err := b.Get("demo/rpc/ping", "", ConsolidationNone, 2*time.Second, func(s Sample) {
		mu.Lock()
		replies = append(replies, s)
		mu.Unlock()
		done <- struct{}{}
	}); err != nil {
		t.Fatalf("Get: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("query never replied")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(replies) != 1 || string(replies[0].Payload) != "pong" {
		t.Fatalf("unexpected replies: %+v", replies)
	}
}

func TestPullSubscriberBuffersUntilPulled(t *testing.T) {
	a, b := openPair(t)
	defer a.Close()
	defer b.Close()
	waitForUnicastPeer(t, a)
	waitForUnicastPeer(t, b)

	id, err := a.DeclarePullSubscriber("demo/pull/**", true, 4)
	if err != nil {
		t.Fatalf("DeclarePullSubscriber: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if _, ok := a.Pull(id); ok {
		t.Fatal("expected nothing buffered before publication")
	}

	if err := b.Put("demo/pull/x", []byte("v1"), ""); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var sample Sample
	var ok bool
	for i := 0; i < 100; i++ {
		sample, ok = a.Pull(id)
		if ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !ok || string(sample.Payload) != "v1" {
		t.Fatalf("expected buffered sample v1, got ok=%v sample=%+v", ok, sample)
	}
	if _, ok := a.Pull(id); ok {
		t.Fatal("buffer should be empty after a single pull")
	}
}

func TestMatchingListenerReflectsRemoteSubscriberLifecycle(t *testing.T) {
	a, b := openPair(t)
	defer a.Close()
	defer b.Close()
	waitForUnicastPeer(t, a)
	waitForUnicastPeer(t, b)

	pubID, err := a.DeclareKeyExpr("demo/match/a")
	if err != nil {
		t.Fatalf("DeclareKeyExpr: %v", err)
	}

	var mu sync.Mutex
	var statuses []bool
	if _, err := a.DeclareMatchingListener(pubID, func(matching bool) {
		mu.Lock()
		statuses = append(statuses, matching)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("DeclareMatchingListener: %v", err)
	}

	snapshot := func() []bool {
		mu.Lock()
		defer mu.Unlock()
		out := make([]bool, len(statuses))
		copy(out, statuses)
		return out
	}
	if s := snapshot(); len(s) != 1 || s[0] {
		t.Fatalf("expected initial status [false], got %+v", s)
	}

	subID, err := b.DeclareSubscriber("demo/match/**", true, func(Sample) {})
	if err != nil {
		t.Fatalf("DeclareSubscriber: %v", err)
	}

	var s []bool
	for i := 0; i < 100; i++ {
		if s = snapshot(); len(s) >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(s) < 2 || !s[1] {
		t.Fatalf("expected status to flip to true after remote subscribe, got %+v", s)
	}

	if err := b.UndeclareSubscriber(subID); err != nil {
		t.Fatalf("UndeclareSubscriber: %v", err)
	}
	for i := 0; i < 100; i++ {
		if s = snapshot(); len(s) >= 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(s) < 3 || s[2] {
		t.Fatalf("expected status to flip back to false after remote undeclare, got %+v", s)
	}
}

func TestDeclareInterestReceivesSnapshotAndFinal(t *testing.T) {
	cfgB := zconfig.Default()
	cfgB.MulticastScouting = false
	cfgB.Listen = []string{"tcp/127.0.0.1:0"}
	b, err := Open(cfgB)
	if err != nil {
		t.Fatalf("open listener session: %v", err)
	}
	defer b.Close()

	// Declare before any peer connects, so the only way a future peer can
	// learn about it is by asking via DeclareInterest's current-snapshot
	// replay, not the direct declare-broadcast every connected peer gets.
	if _, err := b.DeclareKeyExpr("demo/known/x"); err != nil {
		t.Fatalf("DeclareKeyExpr: %v", err)
	}

	var addr string
	for i := 0; i < 50; i++ {
		b.mu.Lock()
		if len(b.listeners) > 0 {
			addr = b.listeners[0].Addr()
		}
		b.mu.Unlock()
		if addr != "" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if addr == "" {
		t.Fatal("listener never bound")
	}

	cfgA := zconfig.Default()
	cfgA.MulticastScouting = false
	cfgA.Connect = []string{"tcp/" + addr}
	a, err := Open(cfgA)
	if err != nil {
		t.Fatalf("open connecting session: %v", err)
	}
	defer a.Close()
	waitForUnicastPeer(t, a)
	waitForUnicastPeer(t, b)

	done := make(chan struct{}, 1)
	_, err = a.DeclareInterest("demo/known/**", wire.InterestKeyExprs|wire.InterestCurrent, func() {
		done <- struct{}{}
	})
	if err != nil {
		t.Fatalf("DeclareInterest: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("final-interest callback never fired")
	}

	found := false
	for _, ke := range a.reg.RemoteRes.Snapshot() {
		if ke == "demo/known/x" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected interest snapshot to populate remote resource table")
	}
}

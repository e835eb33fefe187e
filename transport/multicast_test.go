package transport

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zenoh-go/zenoh-lite/cmn/cos"
	"github.com/zenoh-go/zenoh-lite/hk"
	"github.com/zenoh-go/zenoh-lite/stats"
	"github.com/zenoh-go/zenoh-lite/wire"
)

func TestMulticastJoinAndBroadcastRoundTrip(t *testing.T) {
	const group = "224.0.0.225:17448"

	// Join announcements are housekeeper jobs; nothing else in this package
	// starts the housekeeper.
	go hk.DefaultHK.Run()

	stA := newTestStats()
	stB := newTestStats()
	hA := newRecordingHandler()
	hB := newRecordingHandler()

	a, err := JoinGroup(group, cos.GenZID(4), 10, 10000, hA, stA)
	if err != nil {
		t.Fatalf("JoinGroup a: %v", err)
	}
	defer a.Close()

	b, err := JoinGroup(group, cos.GenZID(4), 10, 10000, hB, stB)
	if err != nil {
		t.Fatalf("JoinGroup b: %v", err)
	}
	defer b.Close()

	// Give the two nodes time to exchange their periodic Join announcements:
	// a's first Join went out before b had joined, so b only learns a from
	// a's next one, one JoinInterval later.
	time.Sleep(JoinInterval + 200*time.Millisecond)

	push := wire.Push{
		Key: wire.WireKeyExpr{Suffix: "demo/multicast"},
		Put: &wire.Put{Payload: []byte("hi"), Encoding: "text/plain"},
	}
	if err := a.Broadcast(push); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}

	select {
	case <-hB.sig:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for peer b to receive the broadcast push")
	}

	hB.mu.Lock()
	defer hB.mu.Unlock()
	if len(hB.got) != 1 {
		t.Fatalf("expected 1 message at b, got %d", len(hB.got))
	}
	got, ok := hB.got[0].(wire.Push)
	if !ok || got.Put == nil || string(got.Put.Payload) != "hi" {
		t.Fatalf("unexpected push at b: %+v", hB.got[0])
	}
}

func newTestStats() *stats.Transport { return stats.NewTransport(prometheus.NewRegistry()) }

package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/zenoh-go/zenoh-lite/cmn/cos"
	"github.com/zenoh-go/zenoh-lite/registry"
	"github.com/zenoh-go/zenoh-lite/wire"
)

type fakePeer struct {
	zid  cos.ZID
	sent []wire.Message
}

func (p *fakePeer) ZID() cos.ZID { return p.zid }
func (p *fakePeer) Send(msg wire.Message) error {
	p.sent = append(p.sent, msg)
	return nil
}
func (p *fakePeer) Close(cos.CloseReason) error { return nil }

func TestHandlePushDeliversToMatchingSubscriber(t *testing.T) {
	reg := registry.New()
	d := New(reg)

	var got registry.Sample
	reg.DeclareSubscriber(registry.Subscription{
		EntityID: reg.NextEntityID(),
		KeyExpr:  "demo/**",
		Callback: func(s registry.Sample) { got = s },
	})

	push := wire.Push{
		Key: wire.WireKeyExpr{Suffix: "demo/sensor/1"},
		Put: &wire.Put{Payload: []byte("42"), Encoding: "text/plain"},
	}
	d.HandleNetwork(&fakePeer{zid: cos.GenZID(4)}, wire.MidPush, push)

	if got.KeyExpr != "demo/sensor/1" || string(got.Payload) != "42" {
		t.Fatalf("subscriber did not receive expected sample: %+v", got)
	}
}

func TestHandleRequestInvokesQueryableAndRepliesFinal(t *testing.T) {
	reg := registry.New()
	d := New(reg)

	reg.DeclareQueryable(registry.Queryable{
		EntityID: reg.NextEntityID(),
		KeyExpr:  "demo/**",
		Callback: func(q registry.Query) {
			q.Reply(registry.Sample{KeyExpr: q.KeyExpr, Payload: []byte("ok")})
		},
	})

	peer := &fakePeer{zid: cos.GenZID(4)}
	req := wire.Request{QueryID: 7, Key: wire.WireKeyExpr{Suffix: "demo/x"}, Target: 0}
	d.HandleNetwork(peer, wire.MidRequest, req)

	if len(peer.sent) != 2 {
		t.Fatalf("expected Response then ResponseFinal, got %d messages", len(peer.sent))
	}
	resp, ok := peer.sent[0].(wire.Response)
	if !ok || resp.Put == nil || string(resp.Put.Payload) != "ok" {
		t.Fatalf("unexpected first message: %+v", peer.sent[0])
	}
	if _, ok := peer.sent[1].(wire.ResponseFinal); !ok {
		t.Fatalf("expected ResponseFinal second, got %T", peer.sent[1])
	}
}

func TestHandleResponseConsolidatesIntoPendingQuery(t *testing.T) {
	reg := registry.New()
	d := New(reg)

	var delivered []registry.Sample
	qid := reg.NextQueryID()
	reg.InsertPendingQuery(&registry.PendingQuery{
		QueryID:       qid,
		Consolidation: registry.ConsolidationNone,
		Deadline:      time.Now().Add(time.Second),
		ReplyCB:       func(s registry.Sample) { delivered = append(delivered, s) },
		DropCB:        func() {},
	})

	peer := &fakePeer{zid: cos.GenZID(4)}
	resp := wire.Response{QueryID: qid, Key: wire.WireKeyExpr{Suffix: "demo/x"}, Put: &wire.Put{Payload: []byte("a")}}
	d.HandleNetwork(peer, wire.MidResponse, resp)

	if len(delivered) != 1 || string(delivered[0].Payload) != "a" {
		t.Fatalf("expected one delivered reply, got %+v", delivered)
	}

	d.HandleNetwork(peer, wire.MidResponseFinal, wire.ResponseFinal{QueryID: qid})
}

func TestTokenLostDeliveredOnPeerClose(t *testing.T) {
	reg := registry.New()
	d := New(reg)

	var mu sync.Mutex
	var samples []registry.Sample
	reg.DeclareSubscriber(registry.Subscription{
		EntityID: reg.NextEntityID(),
		KeyExpr:  "liveliness/**",
		Callback: func(s registry.Sample) {
			mu.Lock()
			samples = append(samples, s)
			mu.Unlock()
		},
	})

	peer := &fakePeer{zid: cos.GenZID(4)}
	decl := wire.Declare{Decls: []wire.Declaration{
		{Kind: wire.DeclToken, EntityID: 9, Key: wire.WireKeyExpr{Suffix: "liveliness/node/a"}},
	}}
	d.HandleNetwork(peer, wire.MidDeclare, decl)

	d.HandleClose(peer, cos.ReasonPeerClosed)

	mu.Lock()
	defer mu.Unlock()
	// Declaring the token delivers an appear sample; the close delivers the lost one.
	if len(samples) != 2 || samples[0].KeyExpr != "liveliness/node/a" || samples[0].Deleted ||
		samples[1].KeyExpr != "liveliness/node/a" || !samples[1].Deleted {
		t.Fatalf("expected a token-appear sample followed by a token-lost sample, got %+v", samples)
	}
}

func TestMatchingListenerNotifiedOnRemoteSubscribeAndPeerClose(t *testing.T) {
	reg := registry.New()
	d := New(reg)

	pubID := reg.NextEntityID()
	if err := reg.LocalRes.Insert(pubID, "demo/pub/a"); err != nil {
		t.Fatalf("insert local resource: %v", err)
	}

	var mu sync.Mutex
	var statuses []bool
	lid := reg.NextEntityID()
	reg.AddMatchingListener(registry.MatchingListener{
		ListenerID: lid,
		EntityID:   pubID,
		Callback: func(matching bool) {
			mu.Lock()
			statuses = append(statuses, matching)
			mu.Unlock()
		},
	})

	peer := &fakePeer{zid: cos.GenZID(4)}
	decl := wire.Declare{Decls: []wire.Declaration{
		{Kind: wire.DeclSubscriber, EntityID: 11, Key: wire.WireKeyExpr{Suffix: "demo/pub/**"}},
	}}
	d.HandleNetwork(peer, wire.MidDeclare, decl)

	d.HandleClose(peer, cos.ReasonPeerClosed)

	mu.Lock()
	defer mu.Unlock()
	if len(statuses) != 2 || !statuses[0] || statuses[1] {
		t.Fatalf("expected [true, false] matching-status sequence, got %+v", statuses)
	}
}

func TestHandleInterestRepliesWithSnapshotAndFinal(t *testing.T) {
	reg := registry.New()
	d := New(reg)

	localID := reg.NextEntityID()
	if err := reg.LocalRes.Insert(localID, "demo/a"); err != nil {
		t.Fatalf("insert local resource: %v", err)
	}
	reg.DeclareSubscriber(registry.Subscription{EntityID: reg.NextEntityID(), KeyExpr: "demo/a", Callback: func(registry.Sample) {}})

	peer := &fakePeer{zid: cos.GenZID(4)}
	interest := wire.Interest{
		InterestID: 5,
		Key:        wire.WireKeyExpr{Suffix: "demo/**"},
		Flags:      wire.InterestKeyExprs | wire.InterestSubscriber | wire.InterestCurrent,
	}
	d.HandleNetwork(peer, wire.MidInterest, interest)

	if len(peer.sent) != 2 {
		t.Fatalf("expected snapshot Declare then final-interest Declare, got %d messages", len(peer.sent))
	}
	snap, ok := peer.sent[0].(wire.Declare)
	if !ok || len(snap.Decls) != 2 {
		t.Fatalf("unexpected snapshot message: %+v", peer.sent[0])
	}
	final, ok := peer.sent[1].(wire.Declare)
	if !ok || len(final.Decls) != 1 || final.Decls[0].Kind != wire.DeclFinalInterest || final.Decls[0].EntityID != 5 {
		t.Fatalf("unexpected final-interest message: %+v", peer.sent[1])
	}
}

func TestDeclareInterestOnFinalFiresOnFinalInterest(t *testing.T) {
	reg := registry.New()
	d := New(reg)

	id := reg.NextEntityID()
	fired := make(chan struct{}, 1)
	reg.DeclareInterest(registry.Interest{InterestID: id, OnFinal: func() { fired <- struct{}{} }})

	peer := &fakePeer{zid: cos.GenZID(4)}
	decl := wire.Declare{Decls: []wire.Declaration{{Kind: wire.DeclFinalInterest, EntityID: id}}}
	d.HandleNetwork(peer, wire.MidDeclare, decl)

	select {
	case <-fired:
	default:
		t.Fatal("expected OnFinal to fire")
	}
}

func TestHandleDeclareKeyExprInsertsIntoRemoteTable(t *testing.T) {
	reg := registry.New()
	d := New(reg)

	decl := wire.Declare{Decls: []wire.Declaration{
		{Kind: wire.DeclKeyExpr, EntityID: 3, Key: wire.WireKeyExpr{Suffix: "demo/a"}},
	}}
	d.HandleNetwork(&fakePeer{zid: cos.GenZID(4)}, wire.MidDeclare, decl)

	if prefix, ok := reg.RemoteRes.Prefix(3); !ok || prefix != "demo/a" {
		t.Fatalf("expected remote resource 3 -> demo/a, got %q ok=%v", prefix, ok)
	}
}

package zconfig

import (
	"net"
	"testing"
	"time"

	"github.com/zenoh-go/zenoh-lite/iobuf"
	"github.com/zenoh-go/zenoh-lite/wire"
)

// TestScoutReceivesHello stands up a minimal responder on the multicast
// group (read the Scout, reply with a Hello straight to the sender) and
// checks Scout collects it, grounded on z_scout.c's send-then-collect
// pattern (original_source/examples/unix/c99/z_scout.c).
func TestScoutReceivesHello(t *testing.T) {
	const group = "224.0.0.225:17449"

	gaddr, err := net.ResolveUDPAddr("udp", group)
	if err != nil {
		t.Fatalf("resolve group addr: %v", err)
	}
	responder, err := net.ListenMulticastUDP("udp", nil, gaddr)
	if err != nil {
		t.Fatalf("listen multicast: %v", err)
	}
	defer responder.Close()

	responderZID := []byte{0xAA, 0xBB}
	go func() {
		buf := make([]byte, 2048)
		responder.SetReadDeadline(time.Now().Add(3 * time.Second))
		n, raddr, err := responder.ReadFromUDP(buf)
		if err != nil {
			return
		}
		r := iobuf.NewRBuf(buf[:n])
		if _, err := r.ReadByte(); err != nil {
			return
		}
		if _, err := wire.DecodeScout(r); err != nil {
			return
		}
		w := iobuf.NewWBuf(64)
		hello := wire.Hello{ZID: responderZID, Whatami: WhatRouter, Locators: []string{"tcp/127.0.0.1:7447"}}
		if err := hello.Encode(w); err != nil {
			return
		}
		responder.WriteToUDP(w.Bytes(), raddr)
	}()

	results, err := Scout("udp/"+group, WhatPeer, []byte{0x01}, time.Second)
	if err != nil {
		t.Fatalf("Scout: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 scout result, got %d", len(results))
	}
	if string(results[0].ZID) != string(responderZID) {
		t.Fatalf("unexpected responder ZID: %x", results[0].ZID)
	}
	if results[0].Whatami != WhatRouter || len(results[0].Locators) != 1 {
		t.Fatalf("unexpected hello contents: %+v", results[0])
	}
}

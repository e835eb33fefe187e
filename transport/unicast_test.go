package transport

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zenoh-go/zenoh-lite/cmn/cos"
	"github.com/zenoh-go/zenoh-lite/link"
	"github.com/zenoh-go/zenoh-lite/stats"
	"github.com/zenoh-go/zenoh-lite/wire"
)

type recordingHandler struct {
	mu  sync.Mutex
	got []any
	sig chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{sig: make(chan struct{}, 16)}
}

func (h *recordingHandler) HandleNetwork(peer Peer, mid wire.MID, body any) {
	h.mu.Lock()
	h.got = append(h.got, body)
	h.mu.Unlock()
	h.sig <- struct{}{}
}

func (h *recordingHandler) HandleClose(peer Peer, reason cos.CloseReason) {}

func TestUnicastHandshakeAndFramePushRoundTrip(t *testing.T) {
	d := link.Dialers["tcp"]
	ln, err := d.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	serverHandler := newRecordingHandler()
	clientHandler := newRecordingHandler()
	st := stats.NewTransport(prometheus.NewRegistry())

	serverDone := make(chan *Session, 1)
	go func() {
		lnk, err := ln.Accept()
		if err != nil {
			serverDone <- nil
			return
		}
		sess, err := AcceptAndOpen(lnk, cos.GenZID(4), 10, 10000, serverHandler, st)
		if err != nil {
			t.Errorf("AcceptAndOpen: %v", err)
			serverDone <- nil
			return
		}
		serverDone <- sess
	}()

	client, err := DialAndOpen("tcp", ln.Addr(), cos.GenZID(4), 10, 10000, clientHandler, st)
	if err != nil {
		t.Fatalf("DialAndOpen: %v", err)
	}
	defer client.Close(cos.ReasonUser)

	server := <-serverDone
	if server == nil {
		t.Fatal("server session failed to open")
	}
	defer server.Close(cos.ReasonUser)

	push := wire.Push{
		Key: wire.WireKeyExpr{ID: 1},
		Put: &wire.Put{Payload: []byte("hello"), Encoding: "text/plain"},
	}
	if err := client.Send(push); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case <-serverHandler.sig:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to receive Push")
	}

	serverHandler.mu.Lock()
	defer serverHandler.mu.Unlock()
	if len(serverHandler.got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(serverHandler.got))
	}
	got, ok := serverHandler.got[0].(wire.Push)
	if !ok {
		t.Fatalf("expected wire.Push, got %T", serverHandler.got[0])
	}
	if got.Put == nil || string(got.Put.Payload) != "hello" {
		t.Fatalf("unexpected push body: %+v", got)
	}
}

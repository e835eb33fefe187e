package link

import (
	"testing"
	"time"
)

func TestTCPDialerListenerRoundTrip(t *testing.T) {
	d := Dialers["tcp"]
	if d == nil {
		t.Fatal("tcp dialer not registered")
	}
	ln, err := d.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan Link, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			t.Error(err)
			return
		}
		accepted <- c
	}()

	client, err := d.Dial(ln.Addr())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	server := <-accepted
	defer server.Close()

	if !client.IsStreamed() || !client.IsReliable() {
		t.Fatal("tcp link must be streamed and reliable")
	}

	msg := []byte("hello")
	if _, err := client.Write(msg); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, len(msg))
	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := server.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("got %q", buf[:n])
	}
}

func TestUDPDialerRegistered(t *testing.T) {
	if _, ok := Dialers["udp"]; !ok {
		t.Fatal("udp dialer not registered")
	}
}

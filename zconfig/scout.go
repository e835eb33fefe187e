// UDP-multicast scouting (spec.md §9, grounded on
// original_source/examples/unix/c99/z_scout.c): discover reachable
// routers/peers by writing a Scout message to a multicast locator and
// collecting Hello replies for a bounded window, before any explicit
// connect locator is known.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package zconfig

import (
	"net"
	"time"

	"github.com/zenoh-go/zenoh-lite/iobuf"
	"github.com/zenoh-go/zenoh-lite/wire"
)

const (
	WhatRouter uint64 = 1 << 0
	WhatPeer   uint64 = 1 << 1
	WhatClient uint64 = 1 << 2
)

// ScoutResult is one Hello reply received during a Scout call, tagged with
// the address it arrived from.
type ScoutResult struct {
	From    string
	ZID     []byte
	Whatami uint64
	Locators []string
}

// Scout sends a Scout message to the given "udp/<mcast-addr>:<port>"
// locator and returns every Hello reply that arrives before timeout
// elapses. zid identifies the scouting party in its own Scout message.
func Scout(locator string, what uint64, zid []byte, timeout time.Duration) ([]ScoutResult, error) {
	loc, err := ParseLocator(locator)
	if err != nil {
		return nil, err
	}
	gaddr, err := net.ResolveUDPAddr("udp", loc.Address)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	w := iobuf.NewWBuf(64)
	if err := (wire.Scout{What: what, ZID: zid, Version: 1}).Encode(w); err != nil {
		return nil, err
	}
	if _, err := conn.WriteToUDP(w.Bytes(), gaddr); err != nil {
		return nil, err
	}

	conn.SetReadDeadline(time.Now().Add(timeout))
	var results []ScoutResult
	buf := make([]byte, 65536)
	for {
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			break // deadline exceeded: scouting window closed
		}
		r := iobuf.NewRBuf(buf[:n])
		if _, err := r.ReadByte(); err != nil { // header byte
			continue
		}
		hello, err := wire.DecodeHello(r)
		if err != nil {
			continue
		}
		results = append(results, ScoutResult{
			From:     raddr.String(),
			ZID:      hello.ZID,
			Whatami:  hello.Whatami,
			Locators: hello.Locators,
		})
	}
	return results, nil
}

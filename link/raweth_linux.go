//go:build linux

// Raw-ethernet link driver (spec.md §6 locator grammar proto "raweth"):
// an AF_PACKET/SOCK_RAW socket bound to one interface. There is no
// connection setup at this layer — "dialing" and "listening" both just
// bind the same raw socket to the named interface and hand back one Link;
// the Zenoh transport layer's own Init/Open handshake (spec.md §4.5) is
// what turns this into a session.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package link

import (
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// zenohEtherType is a locally administered EtherType (IEEE 802's
// experimental range) used to tag raw-ethernet Zenoh frames so the kernel
// and other protocols on the same interface ignore them.
const zenohEtherType = 0x7a6e // "zn"

type rawEthLink struct {
	fd       int
	ifIndex  int
	peerAddr [6]byte
}

func openRawEth(ifname string) (*rawEthLink, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(zenohEtherType)))
	if err != nil {
		return nil, err
	}
	idx, err := ifNameToIndex(ifname)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	sa := &unix.SockaddrLinklayer{
		Protocol: htons(zenohEtherType),
		Ifindex:  idx,
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &rawEthLink{fd: fd, ifIndex: idx, peerAddr: [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}}, nil
}

// htons converts a host-order uint16 to network byte order, needed because
// AF_PACKET's protocol field and SockaddrLinklayer.Protocol are both defined
// in network byte order regardless of host endianness.
func htons(v uint16) uint16 { return v<<8&0xff00 | v>>8&0x00ff }

func ifNameToIndex(name string) (int, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return 0, err
	}
	return iface.Index, nil
}

func (l *rawEthLink) Read(p []byte) (int, error) {
	n, _, err := unix.Recvfrom(l.fd, p, 0)
	return n, err
}

func (l *rawEthLink) Write(p []byte) (int, error) {
	sa := &unix.SockaddrLinklayer{
		Protocol: htons(zenohEtherType),
		Ifindex:  l.ifIndex,
		Halen:    6,
	}
	copy(sa.Addr[:6], l.peerAddr[:])
	if err := unix.Sendto(l.fd, p, 0, sa); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (l *rawEthLink) Close() error { return unix.Close(l.fd) }

// DefaultRawEthMTU is the standard Ethernet MTU minus nothing extra: raw
// frames carry the Zenoh message bytes directly as the payload.
const DefaultRawEthMTU = 1500

func (l *rawEthLink) MTU() int         { return DefaultRawEthMTU }
func (l *rawEthLink) IsStreamed() bool { return false }
func (l *rawEthLink) IsReliable() bool { return false }
func (l *rawEthLink) SetReadDeadline(t time.Time) error {
	var tv unix.Timeval
	if !t.IsZero() {
		d := time.Until(t)
		tv = unix.NsecToTimeval(d.Nanoseconds())
	}
	return unix.SetsockoptTimeval(l.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)
}

type rawEthListener struct{ l *rawEthLink }

func (l *rawEthListener) Accept() (Link, error) { return l.l, nil }
func (l *rawEthListener) Close() error          { return l.l.Close() }
func (l *rawEthListener) Addr() string          { return "raweth" }

type rawEthDialer struct{}

func (rawEthDialer) Dial(ifname string) (Link, error) { return openRawEth(ifname) }
func (rawEthDialer) Listen(ifname string) (Listener, error) {
	l, err := openRawEth(ifname)
	if err != nil {
		return nil, err
	}
	return &rawEthListener{l: l}, nil
}

func init() { Register("raweth", rawEthDialer{}) }

// UDP link driver: a datagram, best-effort byte-transport (spec.md §6
// locator grammar proto "udp"). Dial returns its own connected UDP socket;
// Listen binds one PacketConn and gives each first-seen remote address its
// own connected socket as the accepted Link. The multicast transport does not
// use this driver: it opens its shared socket through OpenMulticast.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package link

import (
	"net"
	"time"
)

type udpLink struct {
	conn net.Conn // always a connected UDP socket: net.DialUDP or equivalent
}

func (l *udpLink) Read(p []byte) (int, error)  { return l.conn.Read(p) }
func (l *udpLink) Write(p []byte) (int, error) { return l.conn.Write(p) }
func (l *udpLink) Close() error                { return l.conn.Close() }
func (l *udpLink) MTU() int                    { return DefaultMTU }
func (l *udpLink) IsStreamed() bool            { return false }
func (l *udpLink) IsReliable() bool            { return false }
func (l *udpLink) SetReadDeadline(t time.Time) error {
	return l.conn.SetReadDeadline(t)
}

// udpListener demultiplexes a single bound PacketConn into one Link per
// distinct remote address, the way a connectionless protocol must emulate
// "accept" (spec.md §9's capability shim owns this detail, not transport).
type udpListener struct {
	pc      net.PacketConn
	addr    string
	pending chan *udpLink
	seen    map[string]*udpLink
	readBuf []byte
}

func (l *udpListener) pump() {
	buf := make([]byte, 65536)
	for {
		n, raddr, err := l.pc.ReadFrom(buf)
		if err != nil {
			return
		}
		key := raddr.String()
		ul, ok := l.seen[key]
		if !ok {
			c, err := net.DialUDP("udp", nil, raddr.(*net.UDPAddr))
			if err != nil {
				continue
			}
			ul = &udpLink{conn: c}
			l.seen[key] = ul
			select {
			case l.pending <- ul:
			default:
			}
		}
		_ = n // first datagram from a new peer is consumed only to learn its address
	}
}

func (l *udpListener) Accept() (Link, error) {
	ul, ok := <-l.pending
	if !ok {
		return nil, net.ErrClosed
	}
	return ul, nil
}

func (l *udpListener) Close() error { return l.pc.Close() }
func (l *udpListener) Addr() string { return l.addr }

type udpDialer struct{}

func (udpDialer) Dial(address string) (Link, error) {
	raddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, err
	}
	c, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	return &udpLink{conn: c}, nil
}

func (udpDialer) Listen(address string) (Listener, error) {
	pc, err := net.ListenPacket("udp", address)
	if err != nil {
		return nil, err
	}
	l := &udpListener{pc: pc, addr: pc.LocalAddr().String(), pending: make(chan *udpLink, 8), seen: make(map[string]*udpLink)}
	go l.pump()
	return l, nil
}

func init() { Register("udp", udpDialer{}) }

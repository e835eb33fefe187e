// PacketLink is a thin, address-tagged complement to Link for the multicast
// transport (spec.md §4.6): one shared socket serves every peer in the
// group, so "accept" has no meaning here — the transport layer keys peers
// by the source address each datagram arrives with. This stays inside
// `link` (not a generic Link capability) because only the multicast
// transport needs addressed reads/writes; everything else in this module
// talks to one peer at a time through Link.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package link

import "net"

type PacketLink interface {
	ReadFrom(p []byte) (n int, addr string, err error)
	WriteTo(p []byte, addr string) error
	Close() error
	MTU() int
}

type udpPacketLink struct {
	conn *net.UDPConn
}

// OpenMulticast joins the multicast group named by address ("224.0.0.224:7447"
// style) and returns a socket any peer in the group can be read from or
// written to by address.
func OpenMulticast(address string) (PacketLink, error) {
	gaddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenMulticastUDP("udp", nil, gaddr)
	if err != nil {
		return nil, err
	}
	return &udpPacketLink{conn: conn}, nil
}

func (l *udpPacketLink) ReadFrom(p []byte) (int, string, error) {
	n, raddr, err := l.conn.ReadFromUDP(p)
	if err != nil {
		return n, "", err
	}
	return n, raddr.String(), nil
}

func (l *udpPacketLink) WriteTo(p []byte, addr string) error {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	_, err = l.conn.WriteToUDP(p, raddr)
	return err
}

func (l *udpPacketLink) Close() error { return l.conn.Close() }
func (l *udpPacketLink) MTU() int     { return DefaultMTU }

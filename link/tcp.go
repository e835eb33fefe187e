// TCP link driver: a streamed, reliable byte-transport (spec.md §6 locator
// grammar proto "tcp").
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package link

import (
	"net"
	"time"
)

// DefaultMTU matches spec.md §6's serial-link figure ("MTU ≈ 1500 octets
// plus 16-octet overhead") as the conservative default for any link that
// doesn't report a smaller path MTU of its own.
const DefaultMTU = 1500

type tcpLink struct {
	conn net.Conn
}

func (l *tcpLink) Read(p []byte) (int, error)  { return l.conn.Read(p) }
func (l *tcpLink) Write(p []byte) (int, error) { return l.conn.Write(p) }
func (l *tcpLink) Close() error                { return l.conn.Close() }
func (l *tcpLink) MTU() int                    { return DefaultMTU }
func (l *tcpLink) IsStreamed() bool            { return true }
func (l *tcpLink) IsReliable() bool            { return true }
func (l *tcpLink) SetReadDeadline(t time.Time) error {
	return l.conn.SetReadDeadline(t)
}

type tcpListener struct {
	ln net.Listener
}

func (l *tcpListener) Accept() (Link, error) {
	c, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return &tcpLink{conn: c}, nil
}
func (l *tcpListener) Close() error  { return l.ln.Close() }
func (l *tcpListener) Addr() string  { return l.ln.Addr().String() }

type tcpDialer struct{}

func (tcpDialer) Dial(address string) (Link, error) {
	c, err := net.Dial("tcp", address)
	if err != nil {
		return nil, err
	}
	return &tcpLink{conn: c}, nil
}

func (tcpDialer) Listen(address string) (Listener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &tcpListener{ln: ln}, nil
}

func init() { Register("tcp", tcpDialer{}) }

// Multicast transport (spec.md §4.6): one shared socket, a peer table keyed
// by remote address, each entry refreshed by periodic Join messages and
// expired on its own lease like a unicast session's keep-alive. Grounded on
// the same tinit.go/sendmsg.go teacher patterns as unicast.go, adapted for
// a broadcast medium instead of a point-to-point stream.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"sync"
	"time"

	"github.com/zenoh-go/zenoh-lite/cmn/cos"
	"github.com/zenoh-go/zenoh-lite/cmn/nlog"
	"github.com/zenoh-go/zenoh-lite/hk"
	"github.com/zenoh-go/zenoh-lite/iobuf"
	"github.com/zenoh-go/zenoh-lite/link"
	"github.com/zenoh-go/zenoh-lite/stats"
	"github.com/zenoh-go/zenoh-lite/wire"
)

// JoinInterval is how often this node re-announces itself to the group
// (spec.md §4.6's periodic JOIN re-announcement).
const JoinInterval = 2500 * time.Millisecond

type multicastPeer struct {
	zid       cos.ZID
	addr      string
	rxRel     *rxWindow
	rxBE      *rxWindow
	defragRel *iobuf.Defrag
	defragBE  *iobuf.Defrag
	leaseMs   uint64
	lastRx    time.Time
}

// MulticastTransport is the multicast-group side of the transport layer: it
// owns the shared socket, tracks every peer discovered via Join messages,
// and exposes each as a Peer so dispatch can route to it like a unicast
// session.
type MulticastTransport struct {
	pl       link.PacketLink
	addr     string
	localZID cos.ZID
	snBits   uint
	leaseMs  uint64
	handler  Handler
	st       *stats.Transport

	txRel *txWindow
	txBE  *txWindow

	mu    sync.Mutex
	peers map[string]*multicastPeer

	hkName    string
	done      chan struct{}
	closeOnce sync.Once
}

// JoinGroup opens the multicast locator's address and starts announcing
// this node to the group while listening for Join messages from others.
func JoinGroup(groupAddress string, localZID cos.ZID, snBits uint, leaseMs uint64, handler Handler, st *stats.Transport) (*MulticastTransport, error) {
	pl, err := link.OpenMulticast(groupAddress)
	if err != nil {
		return nil, cos.WrapLinkErr(err, "join multicast group %s", groupAddress)
	}
	mt := &MulticastTransport{
		pl:       pl,
		addr:     groupAddress,
		localZID: localZID,
		snBits:   snBits,
		leaseMs:  leaseMs,
		handler:  handler,
		st:       st,
		txRel:    newTxWindow(snBits),
		txBE:     newTxWindow(snBits),
		peers:    make(map[string]*multicastPeer),
		hkName:   "multicast-join-" + localZID.String() + "-" + cos.GenShortID(),
		done:     make(chan struct{}),
	}
	mt.start()
	return mt, nil
}

func (mt *MulticastTransport) start() {
	if mt.st != nil {
		mt.st.ActivePeers.Set(0)
	}
	go mt.readLoop()

	hk.Reg(mt.hkName, func() time.Duration {
		select {
		case <-mt.done:
			return hk.UnregInterval
		default:
		}
		mt.announce()
		mt.sweepExpired()
		return JoinInterval
	}, 0)
}

func (mt *MulticastTransport) announce() {
	w := iobuf.NewWBuf(64)
	join := wire.Join{
		ZID:          mt.localZID,
		SNResolution: 1 << mt.snBits,
		LeaseMs:      mt.leaseMs,
		InitialSNRel: mt.txRel.next,
		InitialSNBE:  mt.txBE.next,
	}
	if err := join.Encode(w); err != nil {
		nlog.Warningf("multicast: encode join: %v", err)
		return
	}
	if err := mt.pl.WriteTo(w.Bytes(), mt.groupAddr()); err != nil {
		nlog.Warningf("multicast: announce: %v", err)
	}
}

func (mt *MulticastTransport) groupAddr() string { return mt.addr }

func (mt *MulticastTransport) sweepExpired() {
	now := time.Now()
	mt.mu.Lock()
	var dead []*multicastPeer
	for addr, p := range mt.peers {
		if now.Sub(p.lastRx) > time.Duration(p.leaseMs)*time.Millisecond {
			dead = append(dead, p)
			delete(mt.peers, addr)
		}
	}
	if mt.st != nil {
		mt.st.ActivePeers.Set(float64(len(mt.peers)))
	}
	mt.mu.Unlock()

	for _, p := range dead {
		mt.handler.HandleClose(&multicastPeerHandle{mt: mt, addr: p.addr, zid: p.zid}, cos.ReasonExpired)
	}
}

func (mt *MulticastTransport) readLoop() {
	buf := make([]byte, 65536)
	for {
		select {
		case <-mt.done:
			return
		default:
		}
		n, addr, err := mt.pl.ReadFrom(buf)
		if err != nil {
			return
		}
		mid, body, err := wire.DecodeTransport(iobuf.NewRBuf(buf[:n]))
		if err != nil {
			nlog.Warningf("multicast: malformed message from %s: %v", addr, err)
			continue
		}
		mt.handleMessage(addr, mid, body)
	}
}

func (mt *MulticastTransport) handleMessage(addr string, mid wire.MID, body any) {
	switch mid {
	case wire.MidJoin:
		mt.handleJoin(addr, body.(wire.Join))
	case wire.MidFrame:
		mt.handleFrame(addr, body.(wire.Frame))
	case wire.MidFragment:
		mt.handleFragment(addr, body.(wire.Fragment))
	}
}

func (mt *MulticastTransport) handleJoin(addr string, j wire.Join) {
	mt.mu.Lock()
	p, ok := mt.peers[addr]
	if !ok {
		p = &multicastPeer{
			addr:      addr,
			rxRel:     newRxWindow(mt.snBits),
			rxBE:      newRxWindow(mt.snBits),
			defragRel: iobuf.NewDefrag(DefragCeiling),
			defragBE:  iobuf.NewDefrag(DefragCeiling),
		}
		p.rxRel.seed(j.InitialSNRel)
		p.rxBE.seed(j.InitialSNBE)
		mt.peers[addr] = p
	}
	p.zid = cos.ZID(j.ZID)
	p.leaseMs = j.LeaseMs
	p.lastRx = time.Now()
	if mt.st != nil {
		mt.st.ActivePeers.Set(float64(len(mt.peers)))
	}
	mt.mu.Unlock()
}

func (mt *MulticastTransport) lookupPeer(addr string) *multicastPeer {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.peers[addr]
}

func (mt *MulticastTransport) handleFrame(addr string, f wire.Frame) {
	p := mt.lookupPeer(addr)
	if p == nil {
		return // a Frame before any Join: ignore, nothing to attribute it to
	}
	win := p.rxBE
	if f.Reliable {
		win = p.rxRel
	}
	if f.Reliable {
		if _, dup := win.accept(f.SN); dup {
			if mt.st != nil {
				mt.st.DroppedDuplicates.Inc()
			}
			return
		}
	}
	p.lastRx = time.Now()
	if mt.st != nil {
		mt.st.FramesRx.Inc()
		mt.st.BytesRx.Add(float64(len(f.Payload)))
	}
	mt.dispatchPayload(p, f.Payload)
}

func (mt *MulticastTransport) handleFragment(addr string, frag wire.Fragment) {
	p := mt.lookupPeer(addr)
	if p == nil {
		return
	}
	defrag := p.defragBE
	if frag.Reliable {
		defrag = p.defragRel
	}
	if err := defrag.Append(frag.Payload); err != nil {
		if mt.st != nil {
			mt.st.ReassemblyOverflow.Inc()
		}
		return
	}
	p.lastRx = time.Now()
	if mt.st != nil {
		mt.st.FragmentsRx.Inc()
		mt.st.BytesRx.Add(float64(len(frag.Payload)))
	}
	if frag.End {
		mt.dispatchPayload(p, defrag.Take())
	}
}

func (mt *MulticastTransport) dispatchPayload(p *multicastPeer, payload []byte) {
	r := iobuf.NewRBuf(payload)
	handle := &multicastPeerHandle{mt: mt, addr: p.addr, zid: p.zid}
	for r.Remaining() > 0 {
		mid, body, err := wire.DecodeNetwork(r)
		if err != nil {
			nlog.Warningf("multicast: malformed network message from %s: %v", p.addr, err)
			return
		}
		mt.handler.HandleNetwork(handle, mid, body)
	}
}

// Broadcast sends body to the whole group as a best-effort Frame, the way
// Put/Declare traffic flows over a multicast channel (spec.md §4.6: every
// joined peer is a potential subscriber match, so there is no per-peer
// unicast reply path at this layer).
func (mt *MulticastTransport) Broadcast(msg wire.Message) error {
	w := iobuf.NewWBuf(256)
	if err := msg.Encode(w); err != nil {
		return err
	}
	sn := mt.txBE.alloc()
	fw := iobuf.NewWBuf(w.Len() + 16)
	if err := (wire.Frame{Reliable: false, SN: sn, Payload: w.Bytes()}).Encode(fw); err != nil {
		return err
	}
	if err := mt.pl.WriteTo(fw.Bytes(), mt.groupAddr()); err != nil {
		return cos.WrapLinkErr(err, "multicast broadcast")
	}
	if mt.st != nil {
		mt.st.FramesTx.Inc()
		mt.st.BytesTx.Add(float64(fw.Len()))
	}
	return nil
}

func (mt *MulticastTransport) Close() error {
	mt.closeOnce.Do(func() {
		close(mt.done)
		hk.Unreg(mt.hkName)
		mt.pl.Close()
	})
	return nil
}

// multicastPeerHandle satisfies Peer for one entry in the group's peer
// table; Send broadcasts, since the transport has no addressed reliable
// channel back to an individual peer over a shared multicast socket.
type multicastPeerHandle struct {
	mt   *MulticastTransport
	addr string
	zid  cos.ZID
}

func (h *multicastPeerHandle) ZID() cos.ZID           { return h.zid }
func (h *multicastPeerHandle) Send(msg wire.Message) error { return h.mt.Broadcast(msg) }
func (h *multicastPeerHandle) Close(cos.CloseReason) error {
	h.mt.mu.Lock()
	delete(h.mt.peers, h.addr)
	h.mt.mu.Unlock()
	return nil
}

// Package transport implements the unicast (spec.md §4.5) and multicast
// (§4.6) transport state machines: the Init/Open handshake, per-channel SN
// windowing, fragmentation/reassembly, and keep-alive/lease bookkeeping
// that sit between a link.Link byte pipe and the network-layer messages
// dispatch routes. Grounded on the teacher's transport/tinit.go stream
// -setup pattern (a short synchronous handshake before the steady-state
// read loop starts) and transport/sendmsg.go's mutex-guarded send path.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"context"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zenoh-go/zenoh-lite/cmn/cos"
	"github.com/zenoh-go/zenoh-lite/cmn/nlog"
	"github.com/zenoh-go/zenoh-lite/hk"
	"github.com/zenoh-go/zenoh-lite/iobuf"
	"github.com/zenoh-go/zenoh-lite/link"
	"github.com/zenoh-go/zenoh-lite/stats"
	"github.com/zenoh-go/zenoh-lite/wire"
)

// State is the unicast session lifecycle spec.md §4.5 names.
type State int32

const (
	StateOpening State = iota
	StateOpen
	StateClosing
	StateClosed
)

// DefragCeiling bounds how much reassembly state a single channel can
// accumulate before it is considered a malformed peer (spec.md §4.2:
// "the session is not killed" on overflow, only the buffer resets).
const DefragCeiling = 1 << 22 // 4 MiB

// WireVersion is the protocol version this module's Init messages declare.
const WireVersion = 1

// Peer is what dispatch sends network-layer messages back through, whether
// the underlying transport is a unicast Session or a multicast peer entry.
type Peer interface {
	ZID() cos.ZID
	Send(msg wire.Message) error
	Close(reason cos.CloseReason) error
}

// Handler receives decoded network-layer messages and close notifications;
// the dispatch package implements it.
type Handler interface {
	HandleNetwork(peer Peer, mid wire.MID, body any)
	HandleClose(peer Peer, reason cos.CloseReason)
}

// Session is one open unicast transport connection (spec.md §4.5).
type Session struct {
	lnk       link.Link
	localZID  cos.ZID
	remoteZID cos.ZID
	snBits    uint
	leaseMs   uint64
	handler   Handler
	st        *stats.Transport

	mu    sync.Mutex
	state State

	txRel *txWindow
	txBE  *txWindow
	rxRel *rxWindow
	rxBE  *rxWindow

	defragRel *iobuf.Defrag
	defragBE  *iobuf.Defrag

	lastRxMu sync.Mutex
	lastRx   time.Time

	hkName    string
	closeOnce sync.Once
	done      chan struct{}
}

func (s *Session) ZID() cos.ZID { return s.remoteZID }

func (s *Session) touchRx() {
	s.lastRxMu.Lock()
	s.lastRx = time.Now()
	s.lastRxMu.Unlock()
}

func (s *Session) sinceRx() time.Duration {
	s.lastRxMu.Lock()
	defer s.lastRxMu.Unlock()
	return time.Since(s.lastRx)
}

//
// handshake
//

// DialAndOpen dials proto/address, runs the client side of the Init/Open
// handshake, and starts the session's read/keepalive/lease loops.
func DialAndOpen(proto, address string, localZID cos.ZID, snBits uint, leaseMs uint64, handler Handler, st *stats.Transport) (*Session, error) {
	d, ok := link.Dialers[proto]
	if !ok {
		return nil, cos.NewCodecErr(cos.Malformed, "no link driver registered for proto %q", proto)
	}
	lnk, err := d.Dial(address)
	if err != nil {
		return nil, cos.WrapLinkErr(err, "dial %s/%s", proto, address)
	}

	s := newSession(lnk, localZID, snBits, leaseMs, handler, st)

	if err := writeMessage(lnk, wire.Init{Version: WireVersion, ZID: localZID, SNResolution: 1 << snBits, MTU: uint64(lnk.MTU())}); err != nil {
		lnk.Close()
		return nil, err
	}
	_, ackBody, err := readTransportMessage(lnk)
	if err != nil {
		lnk.Close()
		return nil, err
	}
	ack, ok := ackBody.(wire.Init)
	if !ok || !ack.IsAck {
		lnk.Close()
		return nil, cos.NewCodecErr(cos.Malformed, "expected Init-Ack, got %T", ackBody)
	}
	s.remoteZID = cos.ZID(ack.ZID)

	initialSN := s.txRel.next // the SN this channel will start at, declared to the peer
	if err := writeMessage(lnk, wire.Open{LeaseMs: leaseMs, InitialSN: initialSN, Cookie: ack.Cookie}); err != nil {
		lnk.Close()
		return nil, err
	}
	_, openAckBody, err := readTransportMessage(lnk)
	if err != nil {
		lnk.Close()
		return nil, err
	}
	openAck, ok := openAckBody.(wire.Open)
	if !ok || !openAck.IsAck {
		lnk.Close()
		return nil, cos.NewCodecErr(cos.Malformed, "expected Open-Ack, got %T", openAckBody)
	}
	s.rxRel.seed(openAck.InitialSN)
	s.leaseMs = openAck.LeaseMs

	s.start()
	return s, nil
}

// AcceptAndOpen runs the server side of the handshake over an already
// -accepted link and starts the session's loops.
func AcceptAndOpen(lnk link.Link, localZID cos.ZID, snBits uint, leaseMs uint64, handler Handler, st *stats.Transport) (*Session, error) {
	s := newSession(lnk, localZID, snBits, leaseMs, handler, st)

	_, synBody, err := readTransportMessage(lnk)
	if err != nil {
		lnk.Close()
		return nil, err
	}
	syn, ok := synBody.(wire.Init)
	if !ok || syn.IsAck {
		lnk.Close()
		return nil, cos.NewCodecErr(cos.Malformed, "expected Init-Syn, got %T", synBody)
	}
	s.remoteZID = cos.ZID(syn.ZID)
	cookie := cos.GenZID(8)

	if err := writeMessage(lnk, wire.Init{IsAck: true, Version: WireVersion, ZID: localZID, SNResolution: 1 << snBits, MTU: uint64(lnk.MTU()), Cookie: cookie}); err != nil {
		lnk.Close()
		return nil, err
	}
	_, openSynBody, err := readTransportMessage(lnk)
	if err != nil {
		lnk.Close()
		return nil, err
	}
	openSyn, ok := openSynBody.(wire.Open)
	if !ok || openSyn.IsAck {
		lnk.Close()
		return nil, cos.NewCodecErr(cos.Malformed, "expected Open-Syn, got %T", openSynBody)
	}
	s.rxRel.seed(openSyn.InitialSN)
	s.leaseMs = leaseMs

	initialSN := s.txRel.next
	if err := writeMessage(lnk, wire.Open{IsAck: true, LeaseMs: leaseMs, InitialSN: initialSN}); err != nil {
		lnk.Close()
		return nil, err
	}

	s.start()
	return s, nil
}

func newSession(lnk link.Link, localZID cos.ZID, snBits uint, leaseMs uint64, handler Handler, st *stats.Transport) *Session {
	return &Session{
		lnk:       lnk,
		localZID:  localZID,
		snBits:    snBits,
		leaseMs:   leaseMs,
		handler:   handler,
		st:        st,
		state:     StateOpening,
		txRel:     newTxWindow(snBits),
		txBE:      newTxWindow(snBits),
		rxRel:     newRxWindow(snBits),
		rxBE:      newRxWindow(snBits),
		defragRel: iobuf.NewDefrag(DefragCeiling),
		defragBE:  iobuf.NewDefrag(DefragCeiling),
		hkName:    "transport-lease-" + localZID.String() + "-" + cos.GenShortID(),
		done:      make(chan struct{}),
	}
}

func (s *Session) start() {
	s.mu.Lock()
	s.state = StateOpen
	s.mu.Unlock()
	s.touchRx()
	if s.st != nil {
		s.st.ActiveSessions.Inc()
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error { return s.readLoop(ctx) })

	halfLease := time.Duration(s.leaseMs) * time.Millisecond / 2
	if halfLease <= 0 {
		halfLease = time.Second
	}
	hk.Reg(s.hkName, func() time.Duration {
		if s.isClosed() {
			return hk.UnregInterval
		}
		if s.sinceRx() > time.Duration(s.leaseMs)*time.Millisecond {
			s.teardown(cos.ReasonExpired)
			return hk.UnregInterval
		}
		if err := writeMessage(s.lnk, wire.KeepAlive{}); err != nil {
			s.teardown(cos.ReasonLinkFailure)
			return hk.UnregInterval
		}
		return halfLease
	}, halfLease)

	go func() { _ = g.Wait() }()
}

//
// send path
//

// Send wraps body in a reliable Frame and writes it to the link, splitting
// across Fragment messages when it exceeds the link's MTU (spec.md §4.5's
// fragmentation rule).
func (s *Session) Send(body wire.Message) error {
	w := iobuf.NewWBuf(256)
	if err := body.Encode(w); err != nil {
		return err
	}
	return s.sendPayload(w.Bytes(), true)
}

func (s *Session) sendPayload(payload []byte, reliable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return cos.NewCodecErr(cos.Malformed, "session not open")
	}

	maxPayload := s.lnk.MTU() - 16
	if maxPayload < 64 {
		maxPayload = 64
	}

	win := s.txBE
	if reliable {
		win = s.txRel
	}

	if len(payload) <= maxPayload {
		fw := iobuf.NewWBuf(len(payload) + 16)
		sn := win.alloc()
		if err := (wire.Frame{Reliable: reliable, SN: sn, Payload: payload}).Encode(fw); err != nil {
			return err
		}
		if err := writeMessage(s.lnk, rawFrame(fw.Bytes())); err != nil {
			return err
		}
		if s.st != nil {
			s.st.FramesTx.Inc()
			s.st.BytesTx.Add(float64(fw.Len()))
		}
		return nil
	}

	for off := 0; off < len(payload); off += maxPayload {
		end := off + maxPayload
		last := end >= len(payload)
		if last {
			end = len(payload)
		}
		sn := win.alloc()
		fw := iobuf.NewWBuf(end-off + 16)
		if err := (wire.Fragment{Reliable: reliable, End: last, SN: sn, Payload: payload[off:end]}).Encode(fw); err != nil {
			return err
		}
		if err := writeMessage(s.lnk, rawFrame(fw.Bytes())); err != nil {
			return err
		}
		if s.st != nil {
			s.st.FragmentsTx.Inc()
			s.st.BytesTx.Add(float64(fw.Len()))
		}
	}
	return nil
}

// rawFrame lets an already-encoded byte slice satisfy wire.Message so it can
// go through the same writeMessage helper as a freshly built message.
type rawFrame []byte

func (r rawFrame) Encode(w *iobuf.WBuf) error { _, err := w.Write(r); return err }

//
// receive path
//

func (s *Session) readLoop(ctx context.Context) error {
	for {
		select {
		case <-s.done:
			return nil
		default:
		}
		mid, body, err := readTransportMessage(s.lnk)
		if err != nil {
			switch {
			case err == io.EOF:
				s.teardown(cos.ReasonPeerClosed)
			case cos.IsCodecErr(err, cos.Malformed) || cos.IsCodecErr(err, cos.Truncated):
				s.teardown(cos.ReasonMalformedMessage)
			case cos.IsCodecErr(err, cos.ExtensionUnknownMandatory):
				s.teardown(cos.ReasonExtensionUnsup)
			default:
				s.teardown(cos.ReasonLinkFailure)
			}
			return err
		}
		s.touchRx()
		s.handleTransportMessage(mid, body)
	}
}

func (s *Session) handleTransportMessage(mid wire.MID, body any) {
	switch mid {
	case wire.MidKeepAlive:
		return
	case wire.MidClose:
		c := body.(wire.Close)
		s.teardown(cos.CloseReason(closeReasonName(c.Reason)))
	case wire.MidFrame:
		f := body.(wire.Frame)
		s.consumeFrame(f)
	case wire.MidFragment:
		frag := body.(wire.Fragment)
		s.consumeFragment(frag)
	default:
		nlog.Warningf("unicast session %s: unexpected transport mid %d", s.remoteZID, mid)
	}
}

func (s *Session) consumeFrame(f wire.Frame) {
	if ok, dup := s.checkSN(f.Reliable, f.SN); dup {
		if s.st != nil {
			s.st.DroppedDuplicates.Inc()
		}
		return
	} else if !ok {
		s.teardown(cos.ReasonSNOutOfSync)
		return
	}
	if s.st != nil {
		s.st.FramesRx.Inc()
		s.st.BytesRx.Add(float64(len(f.Payload)))
	}
	s.dispatchPayload(f.Payload)
}

func (s *Session) consumeFragment(frag wire.Fragment) {
	if ok, dup := s.checkSN(frag.Reliable, frag.SN); dup {
		if s.st != nil {
			s.st.DroppedDuplicates.Inc()
		}
		return
	} else if !ok {
		s.teardown(cos.ReasonSNOutOfSync)
		return
	}
	if s.st != nil {
		s.st.FragmentsRx.Inc()
		s.st.BytesRx.Add(float64(len(frag.Payload)))
	}

	defrag := s.defragBE
	if frag.Reliable {
		defrag = s.defragRel
	}
	if err := defrag.Append(frag.Payload); err != nil {
		if s.st != nil {
			s.st.ReassemblyOverflow.Inc()
		}
		nlog.Warningf("unicast session %s: reassembly overflow: %v", s.remoteZID, err)
		return
	}
	if frag.End {
		s.dispatchPayload(defrag.Take())
	}
}

func (s *Session) checkSN(reliable bool, sn uint64) (ok, dup bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	win := s.rxBE
	if reliable {
		win = s.rxRel
	}
	if !reliable {
		// best-effort: never out of sync, duplicates just aren't detected.
		return true, false
	}
	inOrder, duplicate := win.accept(sn)
	return inOrder, duplicate
}

// dispatchPayload decodes every network message concatenated in a
// reassembled Frame/Fragment payload and forwards each to the handler.
func (s *Session) dispatchPayload(payload []byte) {
	r := iobuf.NewRBuf(payload)
	for r.Remaining() > 0 {
		mid, body, err := wire.DecodeNetwork(r)
		if err != nil {
			nlog.Warningf("unicast session %s: malformed network message: %v", s.remoteZID, err)
			s.teardown(cos.ReasonMalformedMessage)
			return
		}
		s.handler.HandleNetwork(s, mid, body)
	}
}

//
// close
//

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateClosed
}

// Close initiates a local close: sends a Close message, then tears down.
func (s *Session) Close(reason cos.CloseReason) error {
	s.mu.Lock()
	if s.state == StateClosed || s.state == StateClosing {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosing
	s.mu.Unlock()

	_ = writeMessage(s.lnk, wire.Close{Reason: closeReasonByte(reason)})
	s.teardown(reason)
	return nil
}

func (s *Session) teardown(reason cos.CloseReason) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		close(s.done)
		hk.Unreg(s.hkName)
		s.lnk.Close()
		if s.st != nil {
			s.st.ActiveSessions.Dec()
		}
		if s.handler != nil {
			s.handler.HandleClose(s, reason)
		}
	})
}

func closeReasonByte(r cos.CloseReason) byte {
	switch r {
	case cos.ReasonMalformedMessage:
		return 1
	case cos.ReasonExtensionUnsup:
		return 2
	case cos.ReasonSNOutOfSync:
		return 3
	case cos.ReasonExpired:
		return 4
	case cos.ReasonLinkFailure:
		return 5
	case cos.ReasonHandshakeMismatch:
		return 6
	case cos.ReasonReassemblyOverflow:
		return 7
	default:
		return 0
	}
}

func closeReasonName(b byte) string {
	switch b {
	case 1:
		return string(cos.ReasonMalformedMessage)
	case 2:
		return string(cos.ReasonExtensionUnsup)
	case 3:
		return string(cos.ReasonSNOutOfSync)
	case 4:
		return string(cos.ReasonExpired)
	case 5:
		return string(cos.ReasonLinkFailure)
	case 6:
		return string(cos.ReasonHandshakeMismatch)
	case 7:
		return string(cos.ReasonReassemblyOverflow)
	default:
		return string(cos.ReasonUser)
	}
}

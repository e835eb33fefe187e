// Package session is the top-level facade spec.md §5 describes: Open/Close
// a session from a zconfig.Config, declare subscribers/queryables/key
// expressions/liveliness tokens, Put, and Get. It owns no protocol logic of
// its own — it wires zconfig's parsed endpoints into transport sessions,
// registers their shared dispatch.Dispatcher as the message sink, and
// drives registry operations (declare, put, get) out to every connected
// peer. Grounded on the teacher's top-level client constructor pattern
// (one factory building every subsystem from a config struct, starting its
// background loops, returning a handle with Close).
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package session

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/zenoh-go/zenoh-lite/cmn/cos"
	"github.com/zenoh-go/zenoh-lite/cmn/nlog"
	"github.com/zenoh-go/zenoh-lite/dispatch"
	"github.com/zenoh-go/zenoh-lite/hk"
	"github.com/zenoh-go/zenoh-lite/keyexpr"
	"github.com/zenoh-go/zenoh-lite/link"
	"github.com/zenoh-go/zenoh-lite/registry"
	"github.com/zenoh-go/zenoh-lite/stats"
	"github.com/zenoh-go/zenoh-lite/transport"
	"github.com/zenoh-go/zenoh-lite/wire"
	"github.com/zenoh-go/zenoh-lite/zconfig"
)

var startHK sync.Once

// Sample and Query re-export the registry types so callers never need to
// import the registry package directly (spec.md §4.4's tables are an
// implementation detail of the facade).
type Sample = registry.Sample
type Query = registry.Query
type ConsolidationMode = registry.ConsolidationMode

const (
	ConsolidationNone      = registry.ConsolidationNone
	ConsolidationMonotonic = registry.ConsolidationMonotonic
	ConsolidationLatest    = registry.ConsolidationLatest
)

// Session is an open Zenoh-lite session: zero or more unicast connections
// plus, optionally, one multicast group membership.
type Session struct {
	zid    cos.ZID
	cfg    zconfig.Config
	reg    *registry.Registry
	disp   *dispatch.Dispatcher
	st     *stats.Transport
	snBits uint

	mu        sync.Mutex
	unicast   []*transport.Session
	listeners []link.Listener
	mcast     *transport.MulticastTransport
	pullBufs  map[uint64]*pullBuffer

	sweepHKName string
	closeOnce   sync.Once
}

// pullBuffer is the bounded ring buffer backing a pull subscriber: push
// drops the oldest sample once full, pop is non-blocking.
type pullBuffer struct {
	mu  sync.Mutex
	buf []Sample
	cap int
}

func newPullBuffer(capacity int) *pullBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &pullBuffer{cap: capacity}
}

func (b *pullBuffer) push(s Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) >= b.cap {
		b.buf = b.buf[1:]
	}
	b.buf = append(b.buf, s)
}

func (b *pullBuffer) pop() (Sample, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) == 0 {
		return Sample{}, false
	}
	s := b.buf[0]
	b.buf = b.buf[1:]
	return s, true
}

// Open builds every subsystem cfg names: dials cfg.Connect endpoints,
// starts accept loops on cfg.Listen endpoints, and joins the multicast
// group if cfg.MulticastScouting is set.
func Open(cfg zconfig.Config) (*Session, error) {
	startHK.Do(func() { go hk.DefaultHK.Run() })

	zid := cos.GenZID(8)
	reg := registry.New()
	disp := dispatch.New(reg)
	st := stats.NewTransport(prometheus.NewRegistry())

	s := &Session{
		zid:         zid,
		cfg:         cfg,
		reg:         reg,
		disp:        disp,
		st:          st,
		snBits:      cfg.SNResolutionBits,
		pullBufs:    make(map[uint64]*pullBuffer),
		sweepHKName: "session-sweep-" + zid.String(),
	}
	if s.snBits == 0 {
		s.snBits = 28
	}
	leaseMs := uint64(cfg.LeaseMs)
	if leaseMs == 0 {
		leaseMs = 10000
	}

	g := new(errgroup.Group)
	for _, locStr := range cfg.Connect {
		locStr := locStr
		g.Go(func() error {
			loc, err := zconfig.ParseLocator(locStr)
			if err != nil {
				return err
			}
			sess, err := transport.DialAndOpen(loc.Proto, loc.Address, zid, s.snBits, leaseMs, disp, st)
			if err != nil {
				return err
			}
			s.mu.Lock()
			s.unicast = append(s.unicast, sess)
			s.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.Close()
		return nil, err
	}

	for _, locStr := range cfg.Listen {
		loc, err := zconfig.ParseLocator(locStr)
		if err != nil {
			s.Close()
			return nil, err
		}
		d, ok := link.Dialers[loc.Proto]
		if !ok {
			s.Close()
			return nil, cos.NewCodecErr(cos.Malformed, "no link driver for proto %q", loc.Proto)
		}
		ln, err := d.Listen(loc.Address)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.mu.Lock()
		s.listeners = append(s.listeners, ln)
		s.mu.Unlock()
		go s.acceptLoop(ln, leaseMs)
	}

	if cfg.MulticastScouting && cfg.MulticastLocator != "" {
		loc, err := zconfig.ParseLocator(cfg.MulticastLocator)
		if err != nil {
			s.Close()
			return nil, err
		}
		mt, err := transport.JoinGroup(loc.Address, zid, s.snBits, leaseMs, disp, st)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.mcast = mt
	}

	hk.Reg(s.sweepHKName, func() time.Duration {
		for _, cb := range reg.SweepExpired(time.Now()) {
			cb()
		}
		return time.Second
	}, time.Second)

	return s, nil
}

func (s *Session) acceptLoop(ln link.Listener, leaseMs uint64) {
	for {
		lnk, err := ln.Accept()
		if err != nil {
			return
		}
		go func() {
			sess, err := transport.AcceptAndOpen(lnk, s.zid, s.snBits, leaseMs, s.disp, s.st)
			if err != nil {
				nlog.Warningf("session: inbound handshake failed: %v", err)
				return
			}
			s.mu.Lock()
			s.unicast = append(s.unicast, sess)
			s.mu.Unlock()
		}()
	}
}

func (s *Session) peers() []transport.Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]transport.Peer, 0, len(s.unicast))
	for _, u := range s.unicast {
		out = append(out, u)
	}
	return out
}

func (s *Session) broadcast(msg wire.Message) {
	for _, p := range s.peers() {
		if err := p.Send(msg); err != nil {
			nlog.Warningf("session: send to %s: %v", p.ZID(), err)
		}
	}
	if s.mcast != nil {
		if err := s.mcast.Broadcast(msg); err != nil {
			nlog.Warningf("session: multicast broadcast: %v", err)
		}
	}
}

//
// declarations
//

// DeclareKeyExpr registers a local numeric id for a canonical key
// expression and announces it to every connected peer (spec.md §4.4's
// local_res table, §4.3's wire-form shrinking).
func (s *Session) DeclareKeyExpr(ke string) (uint64, error) {
	canon, err := keyexpr.Canonicalize(ke)
	if err != nil {
		return 0, err
	}
	id := s.reg.NextEntityID()
	if err := s.reg.LocalRes.Insert(id, canon); err != nil {
		return 0, err
	}
	s.broadcast(wire.Declare{Decls: []wire.Declaration{
		{Kind: wire.DeclKeyExpr, EntityID: id, Key: wire.WireKeyExpr{Suffix: canon}},
	}})
	return id, nil
}

func (s *Session) UndeclareKeyExpr(id uint64) error {
	if err := s.reg.LocalRes.Remove(id); err != nil {
		return err
	}
	s.broadcast(wire.Declare{Decls: []wire.Declaration{{Kind: wire.DeclUndeclKeyExpr, EntityID: id}}})
	return nil
}

// DeclareSubscriber registers cb to be invoked for every Put/Delete whose
// key expression intersects ke (spec.md §4.4/§4.8).
func (s *Session) DeclareSubscriber(ke string, reliable bool, cb func(Sample)) (uint64, error) {
	canon, err := keyexpr.Canonicalize(ke)
	if err != nil {
		return 0, err
	}
	id := s.reg.NextEntityID()
	rel := registry.BestEffort
	if reliable {
		rel = registry.Reliable
	}
	s.reg.DeclareSubscriber(registry.Subscription{EntityID: id, KeyExpr: canon, Reliable: rel, Callback: cb})
	s.broadcast(wire.Declare{Decls: []wire.Declaration{
		{Kind: wire.DeclSubscriber, EntityID: id, Key: wire.WireKeyExpr{Suffix: canon}, Subscribe: reliable},
	}})
	return id, nil
}

func (s *Session) UndeclareSubscriber(id uint64) error {
	if err := s.reg.UndeclareSubscriber(id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.pullBufs, id)
	s.mu.Unlock()
	s.broadcast(wire.Declare{Decls: []wire.Declaration{{Kind: wire.DeclUndeclSubscriber, EntityID: id}}})
	return nil
}

// DeclarePullSubscriber registers a subscriber whose samples accumulate in
// a bounded ring buffer instead of being delivered immediately; call Pull
// to dequeue the oldest buffered sample (spec.md §9's pull-subscriber open
// question, resolved per SPEC_FULL.md §9 against z_pull.c's semantics:
// pull never blocks, returning ok=false when the buffer is empty).
func (s *Session) DeclarePullSubscriber(ke string, reliable bool, capacity int) (uint64, error) {
	canon, err := keyexpr.Canonicalize(ke)
	if err != nil {
		return 0, err
	}
	id := s.reg.NextEntityID()
	buf := newPullBuffer(capacity)
	s.mu.Lock()
	s.pullBufs[id] = buf
	s.mu.Unlock()

	rel := registry.BestEffort
	if reliable {
		rel = registry.Reliable
	}
	s.reg.DeclareSubscriber(registry.Subscription{
		EntityID: id, KeyExpr: canon, Reliable: rel,
		Callback: buf.push,
	})
	s.broadcast(wire.Declare{Decls: []wire.Declaration{
		{Kind: wire.DeclSubscriber, EntityID: id, Key: wire.WireKeyExpr{Suffix: canon}, Subscribe: reliable},
	}})
	return id, nil
}

// Pull dequeues the oldest sample buffered for a pull subscriber declared
// with DeclarePullSubscriber. ok is false when nothing is buffered.
func (s *Session) Pull(entityID uint64) (sample Sample, ok bool) {
	s.mu.Lock()
	buf := s.pullBufs[entityID]
	s.mu.Unlock()
	if buf == nil {
		return Sample{}, false
	}
	return buf.pop()
}

// DeclareQueryable registers cb to answer Get requests whose key
// expression intersects ke.
func (s *Session) DeclareQueryable(ke string, cb func(Query)) (uint64, error) {
	canon, err := keyexpr.Canonicalize(ke)
	if err != nil {
		return 0, err
	}
	id := s.reg.NextEntityID()
	s.reg.DeclareQueryable(registry.Queryable{EntityID: id, KeyExpr: canon, Callback: cb})
	s.broadcast(wire.Declare{Decls: []wire.Declaration{
		{Kind: wire.DeclQueryable, EntityID: id, Key: wire.WireKeyExpr{Suffix: canon}},
	}})
	return id, nil
}

func (s *Session) UndeclareQueryable(id uint64) error {
	if err := s.reg.UndeclareQueryable(id); err != nil {
		return err
	}
	s.broadcast(wire.Declare{Decls: []wire.Declaration{{Kind: wire.DeclUndeclQueryable, EntityID: id}}})
	return nil
}

// DeclareToken registers a liveliness token at ke, announced to the group
// until UndeclareToken retracts it (spec.md §4.4 liveliness_tokens table).
func (s *Session) DeclareToken(ke string) (uint64, error) {
	canon, err := keyexpr.Canonicalize(ke)
	if err != nil {
		return 0, err
	}
	id := s.reg.NextEntityID()
	s.reg.DeclareToken(registry.LivelinessToken{EntityID: id, KeyExpr: canon})
	s.broadcast(wire.Declare{Decls: []wire.Declaration{
		{Kind: wire.DeclToken, EntityID: id, Key: wire.WireKeyExpr{Suffix: canon}},
	}})
	return id, nil
}

func (s *Session) UndeclareToken(id uint64) error {
	if err := s.reg.UndeclareToken(id); err != nil {
		return err
	}
	s.broadcast(wire.Declare{Decls: []wire.Declaration{{Kind: wire.DeclUndeclToken, EntityID: id}}})
	return nil
}

// DeclareMatchingListener registers cb to be invoked whenever the
// matching-subscriber status of a previously declared key expression
// (pubEntityID, as returned by DeclareKeyExpr) changes — true when at least
// one remote subscriber's key expression intersects it, false when none do
// (spec.md §4.4's matching_listeners table, §H's matching-listener
// handlers). cb is also invoked once immediately with the current status.
func (s *Session) DeclareMatchingListener(pubEntityID uint64, cb func(matching bool)) (uint64, error) {
	ke, ok := s.reg.LocalRes.Prefix(pubEntityID)
	if !ok {
		return 0, cos.NewErrNotFound("local resource %d", pubEntityID)
	}
	id := s.reg.NextEntityID()
	s.reg.AddMatchingListener(registry.MatchingListener{ListenerID: id, EntityID: pubEntityID, Callback: cb})
	cb(s.disp.HasMatchingRemoteSub(ke))
	return id, nil
}

func (s *Session) UndeclareMatchingListener(id uint64) error {
	return s.reg.RemoveMatchingListener(id)
}

// DeclareInterest subscribes to declaration events on the connected peers
// matching ke: with wire.InterestCurrent set, every matching peer replies
// with a snapshot of its currently declared resources/subscribers/
// queryables followed by a final-interest marker that invokes onFinal
// (spec.md's "Interest. A subscription to declaration events", the
// interests table's local declare/undeclare row).
func (s *Session) DeclareInterest(ke string, flags byte, onFinal func()) (uint64, error) {
	canon, err := keyexpr.Canonicalize(ke)
	if err != nil {
		return 0, err
	}
	id := s.reg.NextEntityID()
	s.reg.DeclareInterest(registry.Interest{InterestID: id, KeyExpr: canon, Flags: flags, OnFinal: onFinal})
	s.broadcast(wire.Interest{InterestID: id, Key: wire.WireKeyExpr{Suffix: canon}, Flags: flags})
	return id, nil
}

func (s *Session) UndeclareInterest(id uint64) error {
	if err := s.reg.UndeclareInterest(id); err != nil {
		return err
	}
	s.broadcast(wire.Declare{Decls: []wire.Declaration{{Kind: wire.DeclUndeclInterest, EntityID: id}}})
	return nil
}

//
// data plane
//

// Put publishes payload under ke to every connected peer (spec.md §4.1's
// Push/Put body).
func (s *Session) Put(ke string, payload []byte, encoding string) error {
	canon, err := keyexpr.Canonicalize(ke)
	if err != nil {
		return err
	}
	s.broadcast(wire.Push{
		Key: wire.WireKeyExpr{Suffix: canon},
		Put: &wire.Put{Payload: payload, Encoding: encoding},
	})
	return nil
}

// Delete announces a deletion under ke.
func (s *Session) Delete(ke string) error {
	canon, err := keyexpr.Canonicalize(ke)
	if err != nil {
		return err
	}
	s.broadcast(wire.Push{Key: wire.WireKeyExpr{Suffix: canon}, Del: &wire.Del{}})
	return nil
}

// Get sends a Request for ke to every connected peer and delivers replies
// to replyCB as the consolidation policy permits, for up to timeout.
func (s *Session) Get(ke, parameters string, consolidation ConsolidationMode, timeout time.Duration, replyCB func(Sample)) error {
	canon, err := keyexpr.Canonicalize(ke)
	if err != nil {
		return err
	}
	qid := s.reg.NextQueryID()
	s.reg.InsertPendingQuery(&registry.PendingQuery{
		QueryID:       qid,
		KeyExpr:       canon,
		Consolidation: consolidation,
		Deadline:      time.Now().Add(timeout),
		ReplyCB:       replyCB,
		DropCB:        func() {},
	})
	s.broadcast(wire.Request{
		QueryID:    qid,
		Key:        wire.WireKeyExpr{Suffix: canon},
		Parameters: parameters,
		Target:     0,
	})
	return nil
}

//
// lifecycle
//

func (s *Session) ZID() cos.ZID { return s.zid }

// Close tears down every unicast session, listener, and the multicast
// group membership, and deregisters this session's housekeeper jobs.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		hk.Unreg(s.sweepHKName)
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, ln := range s.listeners {
			ln.Close()
		}
		for _, u := range s.unicast {
			u.Close(cos.ReasonUser)
		}
		if s.mcast != nil {
			s.mcast.Close()
		}
	})
	return nil
}

// Info returns a z_info-style introspection snapshot of this session's
// current state (SPEC_FULL.md §9).
func (s *Session) Info() zconfig.Info {
	s.mu.Lock()
	nPeers := len(s.unicast)
	var remoteZID string
	if nPeers > 0 {
		remoteZID = s.unicast[0].ZID().String()
	}
	s.mu.Unlock()

	return zconfig.Info{
		LocalZID:        s.zid.String(),
		RemoteZID:       remoteZID,
		LocalResources:  len(s.reg.LocalRes.Snapshot()),
		RemoteResources: len(s.reg.RemoteRes.Snapshot()),
		Subscriptions:   s.reg.SubscriptionCount(),
		Queryables:      s.reg.QueryableCount(),
		PendingQueries:  s.reg.PendingQueryCount(),
	}
}

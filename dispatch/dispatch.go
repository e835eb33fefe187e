// Package dispatch implements the pure routing layer spec.md §4.8
// describes: resolve a decoded network message's key expression against
// the registry's resource tables, find every matching subscriber or
// queryable, clone the fields each callback needs, and invoke outside any
// table lock. It holds no socket and no session state of its own — every
// method takes the transport.Peer the message arrived on and forwards
// through registry/keyexpr, the way the teacher's request handlers are
// themselves thin adapters between a decoded wire struct and a resource
// table lookup.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package dispatch

import (
	"sync"

	"github.com/zenoh-go/zenoh-lite/cmn/cos"
	"github.com/zenoh-go/zenoh-lite/cmn/nlog"
	"github.com/zenoh-go/zenoh-lite/keyexpr"
	"github.com/zenoh-go/zenoh-lite/registry"
	"github.com/zenoh-go/zenoh-lite/transport"
	"github.com/zenoh-go/zenoh-lite/wire"
)

// Dispatcher implements transport.Handler: it is the one place a decoded
// wire message turns into a registry lookup plus callback invocation.
type Dispatcher struct {
	reg *registry.Registry

	tokMu sync.Mutex
	toks  map[string]map[uint64]string // peer ZID -> entityID -> liveliness keyexpr

	remSubMu sync.Mutex
	remSubs  map[string]map[uint64]string // peer ZID -> entityID -> subscriber keyexpr
}

func New(reg *registry.Registry) *Dispatcher {
	return &Dispatcher{
		reg:     reg,
		toks:    make(map[string]map[uint64]string),
		remSubs: make(map[string]map[uint64]string),
	}
}

// HandleClose runs when a transport peer (unicast session or multicast
// peer-table entry) tears down. Any liveliness token that peer declared is
// now lost; subscribers matching its key expression are notified with a
// deleted sample (original_source/src/net/subscribe.c's interest-driven
// delivery path, SPEC_FULL.md §9).
func (d *Dispatcher) HandleClose(peer transport.Peer, reason cos.CloseReason) {
	nlog.Infof("peer %s closed: %s", peer.ZID(), reason)
	d.tokMu.Lock()
	owned := d.toks[peer.ZID().String()]
	delete(d.toks, peer.ZID().String())
	d.tokMu.Unlock()
	for _, ke := range owned {
		d.notifyLiveliness(ke, true)
	}

	d.remSubMu.Lock()
	lostSubs := d.remSubs[peer.ZID().String()]
	delete(d.remSubs, peer.ZID().String())
	d.remSubMu.Unlock()
	for _, ke := range lostSubs {
		d.notifyMatchingListeners(ke)
	}
}

// HandleNetwork is transport.Handler's single entry point: it type-switches
// on the decoded body and routes to the matching registry tables.
func (d *Dispatcher) HandleNetwork(peer transport.Peer, mid wire.MID, body any) {
	switch m := body.(type) {
	case wire.Push:
		d.handlePush(peer, m)
	case wire.Request:
		d.handleRequest(peer, m)
	case wire.Response:
		d.handleResponse(peer, m)
	case wire.ResponseFinal:
		d.handleResponseFinal(peer, m)
	case wire.Declare:
		d.handleDeclare(peer, m)
	case wire.Interest:
		d.handleInterest(peer, m)
	default:
		nlog.Warningf("dispatch: unhandled network message %T from %s", body, peer.ZID())
	}
}

// resolve turns a WireKeyExpr into its canonical string form, using the
// remote resource table for id-only or id+suffix forms and the suffix
// itself verbatim otherwise (spec.md §4.3's resolve step).
func (d *Dispatcher) resolve(k wire.WireKeyExpr) (string, bool) {
	if k.ID == 0 {
		return k.Suffix, k.Suffix != ""
	}
	prefix, ok := d.reg.RemoteRes.Prefix(k.ID)
	if !ok {
		return "", false
	}
	if k.Suffix == "" {
		return prefix, true
	}
	return prefix + k.Suffix, true
}

func (d *Dispatcher) handlePush(peer transport.Peer, m wire.Push) {
	resolved, ok := d.resolve(m.Key)
	if !ok {
		nlog.Warningf("dispatch: push with unresolvable key (id=%d) from %s", m.Key.ID, peer.ZID())
		return
	}
	sample := registry.Sample{KeyExpr: resolved}
	if m.Put != nil {
		sample.Payload = m.Put.Payload
		sample.Encoding = m.Put.Encoding
	} else {
		sample.Deleted = true
	}

	matches := d.reg.MatchSubscribers(resolved, keyexpr.Intersects)
	for _, sub := range matches {
		sub.Callback(sample)
	}
}

func (d *Dispatcher) handleRequest(peer transport.Peer, m wire.Request) {
	resolved, ok := d.resolve(m.Key)
	if !ok {
		nlog.Warningf("dispatch: request with unresolvable key (id=%d) from %s", m.Key.ID, peer.ZID())
		d.sendResponseFinal(peer, m.QueryID)
		return
	}

	matches := d.reg.MatchQueryables(resolved, keyexpr.Intersects)
	if len(matches) == 0 {
		d.sendResponseFinal(peer, m.QueryID)
		return
	}

	for _, qy := range matches {
		query := registry.Query{
			ID:         m.QueryID,
			KeyExpr:    resolved,
			Parameters: m.Parameters,
			Reply: func(s registry.Sample) {
				d.sendResponse(peer, m.QueryID, s)
			},
			Finish: func() {},
		}
		qy.Callback(query)
	}
	d.sendResponseFinal(peer, m.QueryID)
}

func (d *Dispatcher) sendResponse(peer transport.Peer, queryID uint64, s registry.Sample) {
	resp := wire.Response{
		QueryID: queryID,
		Key:     wire.WireKeyExpr{Suffix: s.KeyExpr},
	}
	if s.Deleted {
		resp.Del = &wire.Del{}
	} else {
		resp.Put = &wire.Put{Payload: s.Payload, Encoding: s.Encoding}
	}
	if err := peer.Send(resp); err != nil {
		nlog.Warningf("dispatch: send response to %s: %v", peer.ZID(), err)
	}
}

func (d *Dispatcher) sendResponseFinal(peer transport.Peer, queryID uint64) {
	if err := peer.Send(wire.ResponseFinal{QueryID: queryID}); err != nil {
		nlog.Warningf("dispatch: send response-final to %s: %v", peer.ZID(), err)
	}
}

func (d *Dispatcher) handleResponse(peer transport.Peer, m wire.Response) {
	sample := registry.Sample{}
	if m.Put != nil {
		sample.Payload = m.Put.Payload
		sample.Encoding = m.Put.Encoding
	} else if m.Del != nil {
		sample.Deleted = true
	} else {
		nlog.Warningf("dispatch: response carrying error body from %s: %v", peer.ZID(), m.Err)
		return
	}
	if m.Key.Suffix != "" {
		sample.KeyExpr = m.Key.Suffix
	} else if prefix, ok := d.reg.RemoteRes.Prefix(m.Key.ID); ok {
		sample.KeyExpr = prefix
	}
	sample.Timestamp = timestampToUint64(m.Timestamp)

	deliver, cb := d.reg.ConsolidateReply(m.QueryID, sample)
	if deliver && cb != nil {
		cb(sample)
	}
}

func (d *Dispatcher) handleResponseFinal(peer transport.Peer, m wire.ResponseFinal) {
	dropCB, latest, replyCB := d.reg.Finalize(m.QueryID)
	if latest != nil && replyCB != nil {
		replyCB(*latest)
	}
	if dropCB != nil {
		dropCB()
	}
}

func (d *Dispatcher) handleDeclare(peer transport.Peer, m wire.Declare) {
	for _, decl := range m.Decls {
		d.applyDecl(peer, decl)
	}
}

func (d *Dispatcher) applyDecl(peer transport.Peer, decl wire.Declaration) {
	switch decl.Kind {
	case wire.DeclKeyExpr:
		resolved, ok := d.resolve(decl.Key)
		if !ok {
			return
		}
		if err := d.reg.RemoteRes.Insert(decl.EntityID, resolved); err != nil {
			nlog.Warningf("dispatch: declare keyexpr %d from %s: %v", decl.EntityID, peer.ZID(), err)
		}
	case wire.DeclUndeclKeyExpr:
		_ = d.reg.RemoteRes.Remove(decl.EntityID)
	case wire.DeclToken:
		resolved, ok := d.resolve(decl.Key)
		if !ok {
			return
		}
		d.rememberToken(peer.ZID().String(), decl.EntityID, resolved)
		d.notifyLiveliness(resolved, false)
	case wire.DeclUndeclToken:
		if resolved, ok := d.forgetToken(peer.ZID().String(), decl.EntityID); ok {
			d.notifyLiveliness(resolved, true)
		}
	case wire.DeclSubscriber:
		resolved, ok := d.resolve(decl.Key)
		if !ok {
			return
		}
		d.rememberRemoteSub(peer.ZID().String(), decl.EntityID, resolved)
		d.notifyMatchingListeners(resolved)
	case wire.DeclUndeclSubscriber:
		if resolved, ok := d.forgetRemoteSub(peer.ZID().String(), decl.EntityID); ok {
			d.notifyMatchingListeners(resolved)
		}
	case wire.DeclFinalInterest:
		if i, ok := d.reg.Interest(decl.EntityID); ok && i.OnFinal != nil {
			i.OnFinal()
		}
	case wire.DeclQueryable, wire.DeclUndeclQueryable, wire.DeclInterest, wire.DeclUndeclInterest:
		// Remote declarations of these kinds describe the peer's own
		// interest/readiness; this module only routes locally declared
		// callbacks (spec.md §4.4's local/remote split), so there is
		// nothing further to apply beyond the keyexpr bookkeeping above.
	}
}

func (d *Dispatcher) rememberToken(peerZID string, entityID uint64, ke string) {
	d.tokMu.Lock()
	defer d.tokMu.Unlock()
	m, ok := d.toks[peerZID]
	if !ok {
		m = make(map[uint64]string)
		d.toks[peerZID] = m
	}
	m[entityID] = ke
}

func (d *Dispatcher) forgetToken(peerZID string, entityID uint64) (string, bool) {
	d.tokMu.Lock()
	defer d.tokMu.Unlock()
	m, ok := d.toks[peerZID]
	if !ok {
		return "", false
	}
	ke, ok := m[entityID]
	if ok {
		delete(m, entityID)
	}
	return ke, ok
}

// notifyLiveliness delivers a liveliness appear/lost sample to every local
// subscriber whose key expression intersects ke. Appearance carries no
// payload; loss is signalled the same way a deletion is (Deleted=true).
func (d *Dispatcher) notifyLiveliness(ke string, lost bool) {
	sample := registry.Sample{KeyExpr: ke, Deleted: lost}
	for _, sub := range d.reg.MatchSubscribers(ke, keyexpr.Intersects) {
		sub.Callback(sample)
	}
}

func (d *Dispatcher) rememberRemoteSub(peerZID string, entityID uint64, ke string) {
	d.remSubMu.Lock()
	defer d.remSubMu.Unlock()
	m, ok := d.remSubs[peerZID]
	if !ok {
		m = make(map[uint64]string)
		d.remSubs[peerZID] = m
	}
	m[entityID] = ke
}

func (d *Dispatcher) forgetRemoteSub(peerZID string, entityID uint64) (string, bool) {
	d.remSubMu.Lock()
	defer d.remSubMu.Unlock()
	m, ok := d.remSubs[peerZID]
	if !ok {
		return "", false
	}
	ke, ok := m[entityID]
	if ok {
		delete(m, entityID)
	}
	return ke, ok
}

// HasMatchingRemoteSub reports whether any known remote subscriber's key
// expression currently intersects ke. Exported so session.DeclareMatchingListener
// can report the listener's initial status without waiting for the next
// declare/undeclare event.
func (d *Dispatcher) HasMatchingRemoteSub(ke string) bool { return d.hasMatchingRemoteSub(ke) }

func (d *Dispatcher) hasMatchingRemoteSub(ke string) bool {
	d.remSubMu.Lock()
	defer d.remSubMu.Unlock()
	for _, subs := range d.remSubs {
		for _, subKe := range subs {
			if keyexpr.Intersects(ke, subKe) {
				return true
			}
		}
	}
	return false
}

// notifyMatchingListeners re-evaluates the matching-subscriber status of
// every local resource whose key expression intersects ke (a remote
// subscriber's key expression that just appeared or disappeared) and
// invokes any registry.MatchingListener declared against it (spec.md §4.4's
// matching_listeners table, §H's "matching-listener handlers" routing).
func (d *Dispatcher) notifyMatchingListeners(ke string) {
	for id, localKe := range d.reg.LocalRes.Snapshot() {
		if !keyexpr.Intersects(localKe, ke) {
			continue
		}
		listeners := d.reg.MatchingListenersFor(id)
		if len(listeners) == 0 {
			continue
		}
		matching := d.hasMatchingRemoteSub(localKe)
		for _, l := range listeners {
			l.Callback(matching)
		}
	}
}

// handleInterest records a peer's interest and, when InterestCurrent is
// set, replies with a Declare batch snapshotting every matching local
// declaration it asked about, closed by a DeclFinalInterest declaration
// (spec.md's "Interest. A subscription to declaration events (used to
// discover remote resources currently known)").
func (d *Dispatcher) handleInterest(peer transport.Peer, m wire.Interest) {
	resolved, _ := d.resolve(m.Key)
	d.reg.DeclareInterest(registry.Interest{InterestID: m.InterestID, KeyExpr: resolved, Flags: m.Flags})

	if m.Flags&wire.InterestCurrent == 0 {
		return
	}

	var decls []wire.Declaration
	matches := func(ke string) bool {
		return resolved == "" || keyexpr.Intersects(resolved, ke)
	}
	wantAll := func(a, b string) bool { return true }
	filter := keyexpr.Intersects
	if resolved == "" {
		filter = wantAll
	}
	if m.Flags&wire.InterestKeyExprs != 0 {
		for id, ke := range d.reg.LocalRes.Snapshot() {
			if matches(ke) {
				decls = append(decls, wire.Declaration{Kind: wire.DeclKeyExpr, EntityID: id, Key: wire.WireKeyExpr{Suffix: ke}})
			}
		}
	}
	if m.Flags&wire.InterestSubscriber != 0 {
		for _, sub := range d.reg.MatchSubscribers(resolved, filter) {
			decls = append(decls, wire.Declaration{
				Kind: wire.DeclSubscriber, EntityID: sub.EntityID,
				Key: wire.WireKeyExpr{Suffix: sub.KeyExpr}, Subscribe: sub.Reliable == registry.Reliable,
			})
		}
	}
	if m.Flags&wire.InterestQueryable != 0 {
		for _, qy := range d.reg.MatchQueryables(resolved, filter) {
			decls = append(decls, wire.Declaration{Kind: wire.DeclQueryable, EntityID: qy.EntityID, Key: wire.WireKeyExpr{Suffix: qy.KeyExpr}})
		}
	}
	if len(decls) > 0 {
		if err := peer.Send(wire.Declare{Decls: decls}); err != nil {
			nlog.Warningf("dispatch: send interest snapshot to %s: %v", peer.ZID(), err)
		}
	}
	if err := peer.Send(wire.Declare{Decls: []wire.Declaration{{Kind: wire.DeclFinalInterest, EntityID: m.InterestID}}}); err != nil {
		nlog.Warningf("dispatch: send final-interest to %s: %v", peer.ZID(), err)
	}
}

func timestampToUint64(ts wire.Timestamp) uint64 { return ts.Time }

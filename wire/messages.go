// Message families and their wire IDs (spec.md §4.1, §6): "Message header
// byte: low 5 bits are the message ID; high 3 bits are message-specific
// flags." This file defines every message named in spec.md §4.1 with its
// Encode method and Decode* function; the generic DecodeTransport/
// DecodeNetwork entry points used by the transport layer are in codec.go.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import (
	"github.com/zenoh-go/zenoh-lite/cmn/cos"
	"github.com/zenoh-go/zenoh-lite/iobuf"
)

type MID byte

// Scouting
const (
	MidScout MID = iota
	MidHello
)

// Transport
const (
	MidInit MID = iota + 2
	MidOpen
	MidClose
	MidKeepAlive
	MidFrame
	MidFragment
	MidJoin
)

// Network
const (
	MidPush MID = iota + 9
	MidRequest
	MidResponse
	MidResponseFinal
	MidDeclare
	MidInterest
)

// Declaration sub-kinds, carried inside a Declare message body.
type DeclKind byte

const (
	DeclKeyExpr DeclKind = iota
	DeclUndeclKeyExpr
	DeclSubscriber
	DeclUndeclSubscriber
	DeclQueryable
	DeclUndeclQueryable
	DeclToken
	DeclUndeclToken
	DeclInterest
	DeclFinalInterest
	DeclUndeclInterest
)

func headerByte(mid MID, flags byte) byte {
	return byte(mid)&0x1f | (flags&0x07)<<5
}

func splitHeader(h byte) (MID, byte) {
	return MID(h & 0x1f), (h >> 5) & 0x07
}

const (
	flagZ byte = 1 << 2 // key expression carries a suffix (Push/Request/Response/Interest)
	flagR byte = 1 << 1 // reliable (vs. best-effort)
	flagA byte = 1      // ack / misc per-message meaning
)

//
// scouting
//

type Scout struct {
	What    uint64
	ZID     []byte
	Version byte
}

func (m Scout) Encode(w *iobuf.WBuf) error {
	if err := w.WriteByte(headerByte(MidScout, 0)); err != nil {
		return err
	}
	if err := w.WriteByte(m.Version); err != nil {
		return err
	}
	if err := WriteVLE(w, m.What); err != nil {
		return err
	}
	return WriteBytes(w, m.ZID)
}

func DecodeScout(r *iobuf.RBuf) (Scout, error) {
	ver, err := r.ReadByte()
	if err != nil {
		return Scout{}, err
	}
	what, err := ReadVLE(r)
	if err != nil {
		return Scout{}, err
	}
	zid, err := ReadBytes(r)
	if err != nil {
		return Scout{}, err
	}
	return Scout{What: what, ZID: zid, Version: ver}, nil
}

type Hello struct {
	ZID      []byte
	Whatami  uint64
	Locators []string
}

func (m Hello) Encode(w *iobuf.WBuf) error {
	if err := w.WriteByte(headerByte(MidHello, 0)); err != nil {
		return err
	}
	if err := WriteBytes(w, m.ZID); err != nil {
		return err
	}
	if err := WriteVLE(w, m.Whatami); err != nil {
		return err
	}
	if err := WriteVLE(w, uint64(len(m.Locators))); err != nil {
		return err
	}
	for _, l := range m.Locators {
		if err := WriteString(w, l); err != nil {
			return err
		}
	}
	return nil
}

func DecodeHello(r *iobuf.RBuf) (Hello, error) {
	zid, err := ReadBytes(r)
	if err != nil {
		return Hello{}, err
	}
	whatami, err := ReadVLE(r)
	if err != nil {
		return Hello{}, err
	}
	n, err := ReadVLE(r)
	if err != nil {
		return Hello{}, err
	}
	locs := make([]string, n)
	for i := range locs {
		s, err := ReadString(r)
		if err != nil {
			return Hello{}, err
		}
		locs[i] = s
	}
	return Hello{ZID: zid, Whatami: whatami, Locators: locs}, nil
}

//
// transport: Init / Open / Close / KeepAlive
//

type Init struct {
	IsAck        bool
	Version      byte
	ZID          []byte
	SNResolution uint64
	MTU          uint64
	QoS          bool
	Cookie       []byte // present on Ack only
}

func (m Init) Encode(w *iobuf.WBuf) error {
	var flags byte
	if m.IsAck {
		flags |= flagA
	}
	if m.QoS {
		flags |= flagR
	}
	if err := w.WriteByte(headerByte(MidInit, flags)); err != nil {
		return err
	}
	if err := w.WriteByte(m.Version); err != nil {
		return err
	}
	if err := WriteBytes(w, m.ZID); err != nil {
		return err
	}
	if err := WriteVLE(w, m.SNResolution); err != nil {
		return err
	}
	if err := WriteVLE(w, m.MTU); err != nil {
		return err
	}
	if m.IsAck {
		return WriteBytes(w, m.Cookie)
	}
	return nil
}

func DecodeInit(r *iobuf.RBuf, flags byte) (Init, error) {
	ver, err := r.ReadByte()
	if err != nil {
		return Init{}, err
	}
	zid, err := ReadBytes(r)
	if err != nil {
		return Init{}, err
	}
	snRes, err := ReadVLE(r)
	if err != nil {
		return Init{}, err
	}
	mtu, err := ReadVLE(r)
	if err != nil {
		return Init{}, err
	}
	m := Init{Version: ver, ZID: zid, SNResolution: snRes, MTU: mtu, IsAck: flags&flagA != 0, QoS: flags&flagR != 0}
	if m.IsAck {
		cookie, err := ReadBytes(r)
		if err != nil {
			return Init{}, err
		}
		m.Cookie = cookie
	}
	return m, nil
}

type Open struct {
	IsAck    bool
	LeaseMs  uint64
	InitialSN uint64
	Cookie   []byte // echoed back on Syn only
}

func (m Open) Encode(w *iobuf.WBuf) error {
	var flags byte
	if m.IsAck {
		flags |= flagA
	}
	if err := w.WriteByte(headerByte(MidOpen, flags)); err != nil {
		return err
	}
	if err := WriteVLE(w, m.LeaseMs); err != nil {
		return err
	}
	if err := WriteVLE(w, m.InitialSN); err != nil {
		return err
	}
	if !m.IsAck {
		return WriteBytes(w, m.Cookie)
	}
	return nil
}

func DecodeOpen(r *iobuf.RBuf, flags byte) (Open, error) {
	lease, err := ReadVLE(r)
	if err != nil {
		return Open{}, err
	}
	isn, err := ReadVLE(r)
	if err != nil {
		return Open{}, err
	}
	m := Open{LeaseMs: lease, InitialSN: isn, IsAck: flags&flagA != 0}
	if !m.IsAck {
		cookie, err := ReadBytes(r)
		if err != nil {
			return Open{}, err
		}
		m.Cookie = cookie
	}
	return m, nil
}

type Close struct {
	Reason byte
}

func (m Close) Encode(w *iobuf.WBuf) error {
	if err := w.WriteByte(headerByte(MidClose, 0)); err != nil {
		return err
	}
	return w.WriteByte(m.Reason)
}

func DecodeClose(r *iobuf.RBuf) (Close, error) {
	reason, err := r.ReadByte()
	return Close{Reason: reason}, err
}

type KeepAlive struct{}

func (KeepAlive) Encode(w *iobuf.WBuf) error { return w.WriteByte(headerByte(MidKeepAlive, 0)) }

//
// Frame / Fragment
//

type Frame struct {
	Reliable bool
	SN       uint64
	Payload  []byte // one or more serialized network messages, concatenated
}

func (m Frame) Encode(w *iobuf.WBuf) error {
	var flags byte
	if m.Reliable {
		flags |= flagR
	}
	if err := w.WriteByte(headerByte(MidFrame, flags)); err != nil {
		return err
	}
	if err := WriteVLE(w, m.SN); err != nil {
		return err
	}
	_, err := w.Write(m.Payload)
	return err
}

func DecodeFrame(r *iobuf.RBuf, flags byte) (Frame, error) {
	sn, err := ReadVLE(r)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Reliable: flags&flagR != 0, SN: sn, Payload: r.Bytes()}, nil
}

type Fragment struct {
	Reliable bool
	End      bool
	SN       uint64
	Payload  []byte
}

func (m Fragment) Encode(w *iobuf.WBuf) error {
	var flags byte
	if m.Reliable {
		flags |= flagR
	}
	if m.End {
		flags |= flagA
	}
	if err := w.WriteByte(headerByte(MidFragment, flags)); err != nil {
		return err
	}
	if err := WriteVLE(w, m.SN); err != nil {
		return err
	}
	return WriteBytes(w, m.Payload)
}

func DecodeFragment(r *iobuf.RBuf, flags byte) (Fragment, error) {
	sn, err := ReadVLE(r)
	if err != nil {
		return Fragment{}, err
	}
	payload, err := ReadBytes(r)
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{Reliable: flags&flagR != 0, End: flags&flagA != 0, SN: sn, Payload: payload}, nil
}

//
// Join (multicast)
//

type Join struct {
	ZID          []byte
	SNResolution uint64
	LeaseMs      uint64
	InitialSNRel uint64
	InitialSNBE  uint64
}

func (m Join) Encode(w *iobuf.WBuf) error {
	if err := w.WriteByte(headerByte(MidJoin, 0)); err != nil {
		return err
	}
	if err := WriteBytes(w, m.ZID); err != nil {
		return err
	}
	if err := WriteVLE(w, m.SNResolution); err != nil {
		return err
	}
	if err := WriteVLE(w, m.LeaseMs); err != nil {
		return err
	}
	if err := WriteVLE(w, m.InitialSNRel); err != nil {
		return err
	}
	return WriteVLE(w, m.InitialSNBE)
}

func DecodeJoin(r *iobuf.RBuf) (Join, error) {
	zid, err := ReadBytes(r)
	if err != nil {
		return Join{}, err
	}
	snRes, err := ReadVLE(r)
	if err != nil {
		return Join{}, err
	}
	lease, err := ReadVLE(r)
	if err != nil {
		return Join{}, err
	}
	rel, err := ReadVLE(r)
	if err != nil {
		return Join{}, err
	}
	be, err := ReadVLE(r)
	if err != nil {
		return Join{}, err
	}
	return Join{ZID: zid, SNResolution: snRes, LeaseMs: lease, InitialSNRel: rel, InitialSNBE: be}, nil
}

//
// zenoh body: Put / Del / Query / Reply / Err
//

type Put struct {
	Payload  []byte
	Encoding string
}

type Del struct{}

type Query struct {
	Parameters string
}

type Reply struct {
	Timestamp Timestamp
	Put       *Put
	Del       *Del
}

type ErrBody struct {
	Payload []byte
}

//
// Push / Request / Response / ResponseFinal (network envelope around a body)
//

type Push struct {
	Key     WireKeyExpr
	HasKeyS bool
	Put     *Put
	Del     *Del
}

func (m Push) Encode(w *iobuf.WBuf) error {
	var flags byte
	if m.Key.HasSuffix() {
		flags |= flagZ
	}
	isPut := m.Put != nil
	if isPut {
		flags |= flagA
	}
	if err := w.WriteByte(headerByte(MidPush, flags)); err != nil {
		return err
	}
	if err := EncodeKeyExpr(w, m.Key); err != nil {
		return err
	}
	if isPut {
		if err := WriteString(w, m.Put.Encoding); err != nil {
			return err
		}
		return WriteBytes(w, m.Put.Payload)
	}
	return nil
}

func DecodePush(r *iobuf.RBuf, flags byte) (Push, error) {
	k, err := DecodeKeyExpr(r, flags&flagZ != 0, MappingRemote)
	if err != nil {
		return Push{}, err
	}
	m := Push{Key: k}
	if flags&flagA != 0 {
		enc, err := ReadString(r)
		if err != nil {
			return Push{}, err
		}
		payload, err := ReadBytes(r)
		if err != nil {
			return Push{}, err
		}
		m.Put = &Put{Encoding: enc, Payload: payload}
	} else {
		m.Del = &Del{}
	}
	return m, nil
}

type Request struct {
	QueryID    uint64
	Key        WireKeyExpr
	Parameters string
	Target     byte // 0=ALL,1=BEST_MATCHING,2=ALL_COMPLETE
}

func (m Request) Encode(w *iobuf.WBuf) error {
	var flags byte
	if m.Key.HasSuffix() {
		flags |= flagZ
	}
	if err := w.WriteByte(headerByte(MidRequest, flags)); err != nil {
		return err
	}
	if err := WriteVLE(w, m.QueryID); err != nil {
		return err
	}
	if err := EncodeKeyExpr(w, m.Key); err != nil {
		return err
	}
	if err := WriteString(w, m.Parameters); err != nil {
		return err
	}
	return w.WriteByte(m.Target)
}

func DecodeRequest(r *iobuf.RBuf, flags byte) (Request, error) {
	qid, err := ReadVLE(r)
	if err != nil {
		return Request{}, err
	}
	k, err := DecodeKeyExpr(r, flags&flagZ != 0, MappingRemote)
	if err != nil {
		return Request{}, err
	}
	params, err := ReadString(r)
	if err != nil {
		return Request{}, err
	}
	target, err := r.ReadByte()
	if err != nil {
		return Request{}, err
	}
	return Request{QueryID: qid, Key: k, Parameters: params, Target: target}, nil
}

type Response struct {
	QueryID   uint64
	Key       WireKeyExpr
	Timestamp Timestamp
	Put       *Put
	Del       *Del
	Err       *ErrBody
}

func (m Response) Encode(w *iobuf.WBuf) error {
	var flags byte
	if m.Key.HasSuffix() {
		flags |= flagZ
	}
	kind := byte(0)
	switch {
	case m.Put != nil:
		kind = 0
	case m.Del != nil:
		kind = 1
	case m.Err != nil:
		kind = 2
	}
	if err := w.WriteByte(headerByte(MidResponse, flags)); err != nil {
		return err
	}
	if err := WriteVLE(w, m.QueryID); err != nil {
		return err
	}
	if err := EncodeKeyExpr(w, m.Key); err != nil {
		return err
	}
	if err := WriteTimestamp(w, m.Timestamp); err != nil {
		return err
	}
	if err := w.WriteByte(kind); err != nil {
		return err
	}
	switch kind {
	case 0:
		if err := WriteString(w, m.Put.Encoding); err != nil {
			return err
		}
		return WriteBytes(w, m.Put.Payload)
	case 1:
		return nil
	case 2:
		return WriteBytes(w, m.Err.Payload)
	}
	return cos.NewCodecErr(cos.Malformed, "unreachable response kind")
}

func DecodeResponse(r *iobuf.RBuf, flags byte) (Response, error) {
	qid, err := ReadVLE(r)
	if err != nil {
		return Response{}, err
	}
	k, err := DecodeKeyExpr(r, flags&flagZ != 0, MappingRemote)
	if err != nil {
		return Response{}, err
	}
	ts, err := ReadTimestamp(r)
	if err != nil {
		return Response{}, err
	}
	kind, err := r.ReadByte()
	if err != nil {
		return Response{}, err
	}
	m := Response{QueryID: qid, Key: k, Timestamp: ts}
	switch kind {
	case 0:
		enc, err := ReadString(r)
		if err != nil {
			return Response{}, err
		}
		payload, err := ReadBytes(r)
		if err != nil {
			return Response{}, err
		}
		m.Put = &Put{Encoding: enc, Payload: payload}
	case 1:
		m.Del = &Del{}
	case 2:
		payload, err := ReadBytes(r)
		if err != nil {
			return Response{}, err
		}
		m.Err = &ErrBody{Payload: payload}
	default:
		return Response{}, cos.NewCodecErr(cos.Malformed, "unknown response kind %d", kind)
	}
	return m, nil
}

type ResponseFinal struct {
	QueryID uint64
}

func (m ResponseFinal) Encode(w *iobuf.WBuf) error {
	if err := w.WriteByte(headerByte(MidResponseFinal, 0)); err != nil {
		return err
	}
	return WriteVLE(w, m.QueryID)
}

func DecodeResponseFinal(r *iobuf.RBuf) (ResponseFinal, error) {
	qid, err := ReadVLE(r)
	return ResponseFinal{QueryID: qid}, err
}

//
// Declare / Interest
//

type Declaration struct {
	Kind      DeclKind
	EntityID  uint64
	Key       WireKeyExpr
	Subscribe bool // DeclSubscriber reliability hint
}

type Declare struct {
	Decls []Declaration
}

func (m Declare) Encode(w *iobuf.WBuf) error {
	if err := w.WriteByte(headerByte(MidDeclare, 0)); err != nil {
		return err
	}
	if err := WriteVLE(w, uint64(len(m.Decls))); err != nil {
		return err
	}
	for _, d := range m.Decls {
		if err := w.WriteByte(byte(d.Kind)); err != nil {
			return err
		}
		if err := WriteVLE(w, d.EntityID); err != nil {
			return err
		}
		switch d.Kind {
		case DeclKeyExpr, DeclSubscriber, DeclQueryable, DeclToken, DeclInterest:
			var flags byte
			if d.Key.HasSuffix() {
				flags = 1
			}
			if err := w.WriteByte(flags); err != nil {
				return err
			}
			if err := EncodeKeyExpr(w, d.Key); err != nil {
				return err
			}
		}
	}
	return nil
}

func DecodeDeclare(r *iobuf.RBuf) (Declare, error) {
	n, err := ReadVLE(r)
	if err != nil {
		return Declare{}, err
	}
	decls := make([]Declaration, n)
	for i := range decls {
		kindB, err := r.ReadByte()
		if err != nil {
			return Declare{}, err
		}
		eid, err := ReadVLE(r)
		if err != nil {
			return Declare{}, err
		}
		d := Declaration{Kind: DeclKind(kindB), EntityID: eid}
		switch d.Kind {
		case DeclKeyExpr, DeclSubscriber, DeclQueryable, DeclToken, DeclInterest:
			flags, err := r.ReadByte()
			if err != nil {
				return Declare{}, err
			}
			k, err := DecodeKeyExpr(r, flags&1 != 0, MappingRemote)
			if err != nil {
				return Declare{}, err
			}
			d.Key = k
		}
		decls[i] = d
	}
	return Declare{Decls: decls}, nil
}

// Interest.Flags bit layout: which declaration kinds the sender wants to
// hear about, and whether it wants the current snapshot, future updates, or
// both.
const (
	InterestKeyExprs   byte = 1 << 0
	InterestSubscriber byte = 1 << 1
	InterestQueryable  byte = 1 << 2
	InterestToken      byte = 1 << 3
	InterestCurrent    byte = 1 << 4
	InterestFuture     byte = 1 << 5
)

type Interest struct {
	InterestID uint64
	Key        WireKeyExpr
	Flags      byte // bitmask: subscribers/queryables/tokens/keyexprs/current/future
}

func (m Interest) Encode(w *iobuf.WBuf) error {
	var flags byte
	if m.Key.HasSuffix() {
		flags |= flagZ
	}
	if err := w.WriteByte(headerByte(MidInterest, flags)); err != nil {
		return err
	}
	if err := WriteVLE(w, m.InterestID); err != nil {
		return err
	}
	if err := w.WriteByte(m.Flags); err != nil {
		return err
	}
	return EncodeKeyExpr(w, m.Key)
}

func DecodeInterest(r *iobuf.RBuf, flags byte) (Interest, error) {
	iid, err := ReadVLE(r)
	if err != nil {
		return Interest{}, err
	}
	ibits, err := r.ReadByte()
	if err != nil {
		return Interest{}, err
	}
	k, err := DecodeKeyExpr(r, flags&flagZ != 0, MappingRemote)
	if err != nil {
		return Interest{}, err
	}
	return Interest{InterestID: iid, Flags: ibits, Key: k}, nil
}

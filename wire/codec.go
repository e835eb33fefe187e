// Generic message dispatch: reads one header byte and decodes the body it
// names, so the transport and dispatch layers don't each hand-roll their
// own MID switch (spec.md §4.1's "header byte: low 5 bits are the message
// ID").
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import (
	"github.com/zenoh-go/zenoh-lite/cmn/cos"
	"github.com/zenoh-go/zenoh-lite/iobuf"
)

// Message is satisfied by every message type this package defines; Encode
// is the only operation the transport layer needs generically (writing a
// message out to a link buffer).
type Message interface {
	Encode(w *iobuf.WBuf) error
}

// DecodeTransport reads one transport-layer message (Init, Open, Close,
// KeepAlive, Frame, Fragment, Join) from r. Scouting messages are decoded
// separately by zconfig.Scout since they never appear inside a session.
func DecodeTransport(r *iobuf.RBuf) (MID, any, error) {
	h, err := r.ReadByte()
	if err != nil {
		return 0, nil, err
	}
	mid, flags := splitHeader(h)
	switch mid {
	case MidInit:
		m, err := DecodeInit(r, flags)
		return mid, m, err
	case MidOpen:
		m, err := DecodeOpen(r, flags)
		return mid, m, err
	case MidClose:
		m, err := DecodeClose(r)
		return mid, m, err
	case MidKeepAlive:
		return mid, KeepAlive{}, nil
	case MidFrame:
		m, err := DecodeFrame(r, flags)
		return mid, m, err
	case MidFragment:
		m, err := DecodeFragment(r, flags)
		return mid, m, err
	case MidJoin:
		m, err := DecodeJoin(r)
		return mid, m, err
	default:
		return mid, nil, cos.NewCodecErr(cos.Malformed, "unexpected transport message id %d", mid)
	}
}

// DecodeNetwork reads one network-layer message (Push, Request, Response,
// ResponseFinal, Declare, Interest) from r, the shape a Frame/Fragment's
// reassembled payload is a concatenation of.
func DecodeNetwork(r *iobuf.RBuf) (MID, any, error) {
	h, err := r.ReadByte()
	if err != nil {
		return 0, nil, err
	}
	mid, flags := splitHeader(h)
	switch mid {
	case MidPush:
		m, err := DecodePush(r, flags)
		return mid, m, err
	case MidRequest:
		m, err := DecodeRequest(r, flags)
		return mid, m, err
	case MidResponse:
		m, err := DecodeResponse(r, flags)
		return mid, m, err
	case MidResponseFinal:
		m, err := DecodeResponseFinal(r)
		return mid, m, err
	case MidDeclare:
		m, err := DecodeDeclare(r)
		return mid, m, err
	case MidInterest:
		m, err := DecodeInterest(r, flags)
		return mid, m, err
	default:
		return mid, nil, cos.NewCodecErr(cos.Malformed, "unexpected network message id %d", mid)
	}
}

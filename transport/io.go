// Link I/O helpers: wrapping a wire.Message in the right link framing
// (spec.md §4.1/§6: 2-byte length prefix for streamed links, one message
// per datagram otherwise) and reading it back off the link.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"io"

	"github.com/zenoh-go/zenoh-lite/cmn/cos"
	"github.com/zenoh-go/zenoh-lite/iobuf"
	"github.com/zenoh-go/zenoh-lite/link"
	"github.com/zenoh-go/zenoh-lite/wire"
)

const maxDatagramSize = 65536

func writeMessage(lnk link.Link, msg wire.Message) error {
	w := iobuf.NewWBuf(256)
	if err := msg.Encode(w); err != nil {
		return err
	}
	body := w.Bytes()
	if lnk.IsStreamed() {
		framed, err := wire.WriteStreamed(body)
		if err != nil {
			return err
		}
		return writeFull(lnk, framed)
	}
	return writeFull(lnk, body)
}

func writeFull(lnk link.Link, p []byte) error {
	for len(p) > 0 {
		n, err := lnk.Write(p)
		if err != nil {
			return cos.WrapLinkErr(err, "link write")
		}
		p = p[n:]
	}
	return nil
}

func readFull(lnk link.Link, p []byte) error {
	for off := 0; off < len(p); {
		n, err := lnk.Read(p[off:])
		if err != nil {
			return err
		}
		off += n
	}
	return nil
}

// readTransportMessage reads one framed transport-layer message off lnk,
// handling streamed-vs-datagram framing before handing the body to
// wire.DecodeTransport.
func readTransportMessage(lnk link.Link) (wire.MID, any, error) {
	if lnk.IsStreamed() {
		hdr := make([]byte, 2)
		if err := readFull(lnk, hdr); err != nil {
			return 0, nil, err
		}
		n, err := wire.ReadStreamedLen(hdr)
		if err != nil {
			return 0, nil, err
		}
		body := make([]byte, n)
		if err := readFull(lnk, body); err != nil {
			if err == io.EOF {
				return 0, nil, io.EOF
			}
			return 0, nil, cos.WrapLinkErr(err, "link read body")
		}
		return wire.DecodeTransport(iobuf.NewRBuf(body))
	}

	buf := make([]byte, maxDatagramSize)
	n, err := lnk.Read(buf)
	if err != nil {
		return 0, nil, err
	}
	return wire.DecodeTransport(iobuf.NewRBuf(buf[:n]))
}

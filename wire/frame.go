// Link framing (spec.md §4.1/§6): streamed links get a 2-byte little-endian
// length prefix per message (max 65535 bytes); datagram links carry one
// message per datagram (no extra framing needed, handled by the caller);
// serial links are COBS-encoded with a trailing CRC32 and a 0x00 delimiter.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/zenoh-go/zenoh-lite/cmn/cos"
)

const MaxStreamedMsgSize = 65535

// WriteStreamed writes the 2-byte length prefix followed by msg.
func WriteStreamed(msg []byte) ([]byte, error) {
	if len(msg) > MaxStreamedMsgSize {
		return nil, cos.NewCodecErr(cos.OutOfSpace, "message %d exceeds max streamed size %d", len(msg), MaxStreamedMsgSize)
	}
	out := make([]byte, 2+len(msg))
	binary.LittleEndian.PutUint16(out, uint16(len(msg)))
	copy(out[2:], msg)
	return out, nil
}

// ReadStreamedLen reads just the 2-byte length prefix, telling the caller
// how many more bytes to read off the link before decoding the message.
func ReadStreamedLen(hdr []byte) (int, error) {
	if len(hdr) < 2 {
		return 0, cos.NewCodecErr(cos.Truncated, "need 2-byte length prefix")
	}
	return int(binary.LittleEndian.Uint16(hdr)), nil
}

//
// serial framing: COBS(msg || crc32(msg)) terminated by a 0x00 delimiter.
//

const serialDelimiter = 0x00

// EncodeSerial returns msg wrapped for a serial link.
func EncodeSerial(msg []byte) []byte {
	sum := crc32.ChecksumIEEE(msg)
	payload := make([]byte, len(msg)+4)
	copy(payload, msg)
	binary.LittleEndian.PutUint32(payload[len(msg):], sum)
	encoded := cobsEncode(payload)
	return append(encoded, serialDelimiter)
}

// DecodeSerial reverses EncodeSerial on a single delimited frame (the
// trailing 0x00 must already be stripped by the caller's link reader).
func DecodeSerial(frame []byte) ([]byte, error) {
	decoded, err := cobsDecode(frame)
	if err != nil {
		return nil, err
	}
	if len(decoded) < 4 {
		return nil, cos.NewCodecErr(cos.Truncated, "serial frame shorter than crc32 suffix")
	}
	msg := decoded[:len(decoded)-4]
	want := binary.LittleEndian.Uint32(decoded[len(decoded)-4:])
	if got := crc32.ChecksumIEEE(msg); got != want {
		return nil, cos.NewCodecErr(cos.Malformed, "crc32 mismatch: got %x want %x", got, want)
	}
	return msg, nil
}

// cobsEncode implements Consistent Overhead Byte Stuffing: it removes every
// zero byte from data by replacing runs between zeros with a length prefix
// (runs capped at 254 bytes, per the standard COBS algorithm).
func cobsEncode(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/254+2)
	codeIdx := 0
	out = append(out, 0) // placeholder, backfilled below
	code := byte(1)
	for _, b := range data {
		if b == 0 {
			out[codeIdx] = code
			codeIdx = len(out)
			out = append(out, 0)
			code = 1
			continue
		}
		out = append(out, b)
		code++
		if code == 0xff {
			out[codeIdx] = code
			codeIdx = len(out)
			out = append(out, 0)
			code = 1
		}
	}
	out[codeIdx] = code
	return out
}

func cobsDecode(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	i := 0
	for i < len(data) {
		code := int(data[i])
		if code == 0 {
			return nil, cos.NewCodecErr(cos.Malformed, "cobs: zero code byte")
		}
		i++
		end := i + code - 1
		if end > len(data) {
			return nil, cos.NewCodecErr(cos.Truncated, "cobs: run exceeds buffer")
		}
		out = append(out, data[i:end]...)
		i = end
		if code < 0xff && i < len(data) {
			out = append(out, 0)
		}
	}
	return out, nil
}

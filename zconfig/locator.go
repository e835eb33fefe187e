// Locator grammar parsing (spec.md §6): "<proto>/<address>[#key=value
// [;key=value…]]". Grounded on the teacher's own config-string parsing
// style in cmn/cos (small hand-written scanners over a delimiter grammar,
// no parser-combinator library), since the grammar is a single flat line,
// not a document format a library like jsoniter would help with.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package zconfig

import (
	"strings"

	"github.com/zenoh-go/zenoh-lite/cmn/cos"
)

// Locator is a parsed "<proto>/<address>#key=val;..." endpoint string.
type Locator struct {
	Proto   string
	Address string
	Params  map[string]string
}

var knownProtos = map[string]bool{
	"tcp": true, "udp": true, "serial": true, "raweth": true, "ws": true, "tls": true,
}

func ParseLocator(s string) (Locator, error) {
	proto, rest, ok := strings.Cut(s, "/")
	if !ok {
		return Locator{}, cos.NewCodecErr(cos.Malformed, "locator %q missing '/' after proto", s)
	}
	if !knownProtos[proto] {
		return Locator{}, cos.NewCodecErr(cos.Malformed, "locator %q: unknown proto %q", s, proto)
	}
	address, paramStr, _ := strings.Cut(rest, "#")
	if address == "" {
		return Locator{}, cos.NewCodecErr(cos.Malformed, "locator %q: empty address", s)
	}
	loc := Locator{Proto: proto, Address: address}
	if paramStr != "" {
		loc.Params = make(map[string]string)
		for _, kv := range strings.Split(paramStr, ";") {
			if kv == "" {
				continue
			}
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return Locator{}, cos.NewCodecErr(cos.Malformed, "locator %q: malformed param %q", s, kv)
			}
			loc.Params[k] = v
		}
	}
	return loc, nil
}

func (l Locator) String() string {
	var b strings.Builder
	b.WriteString(l.Proto)
	b.WriteByte('/')
	b.WriteString(l.Address)
	if len(l.Params) > 0 {
		b.WriteByte('#')
		first := true
		for k, v := range l.Params {
			if !first {
				b.WriteByte(';')
			}
			first = false
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(v)
		}
	}
	return b.String()
}

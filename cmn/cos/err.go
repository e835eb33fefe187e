// Package cos provides common low-level types and utilities shared by every
// package in this module (errors, byte/string helpers, ID generation).
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	stderrors "errors"
	"fmt"
	"sync"
	ratomic "sync/atomic"
	"syscall"

	"github.com/pkg/errors"

	"github.com/zenoh-go/zenoh-lite/cmn/debug"
)

// CodecErrKind enumerates the decode-time error taxonomy of spec.md §4.1/§7.
type CodecErrKind int

const (
	Truncated CodecErrKind = iota
	Malformed
	ExtensionUnknownMandatory
	OutOfSpace
)

func (k CodecErrKind) String() string {
	switch k {
	case Truncated:
		return "truncated"
	case Malformed:
		return "malformed"
	case ExtensionUnknownMandatory:
		return "extension-unknown-mandatory"
	case OutOfSpace:
		return "out-of-space"
	default:
		return "unknown"
	}
}

// CodecErr is the tagged error returned by every wire/iobuf encode-decode
// operation (spec.md §4.1: "all return Ok(()) or a tagged error").
type CodecErr struct {
	Kind CodecErrKind
	Msg  string
}

func (e *CodecErr) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func NewCodecErr(kind CodecErrKind, format string, a ...any) *CodecErr {
	return &CodecErr{Kind: kind, Msg: fmt.Sprintf(format, a...)}
}

func IsCodecErr(err error, kind CodecErrKind) bool {
	var ce *CodecErr
	if stderrors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// CloseReason is the session-close taxonomy of spec.md §7's disposition
// column ("session close with reason ...").
type CloseReason string

const (
	ReasonUser               CloseReason = "user"
	ReasonMalformedMessage   CloseReason = "MalformedMessage"
	ReasonExtensionUnsup     CloseReason = "ExtensionUnsupported"
	ReasonSNOutOfSync        CloseReason = "SNOutOfSync"
	ReasonExpired            CloseReason = "Expired"
	ReasonLinkFailure        CloseReason = "LinkFailure"
	ReasonPeerClosed         CloseReason = "PeerClosed"
	ReasonHandshakeMismatch  CloseReason = "HandshakeMismatch"
	ReasonReassemblyOverflow CloseReason = "ReassemblyOverflow"
)

// ErrNotFound mirrors the teacher's cmn/cos/err.go ErrNotFound: used for
// unknown entity/query/resource ids surfaced synchronously to the caller
// (spec.md §7: "Local misuse ... return to caller; no session impact").
type ErrNotFound struct{ what string }

func NewErrNotFound(format string, a ...any) *ErrNotFound {
	return &ErrNotFound{fmt.Sprintf(format, a...)}
}

func (e *ErrNotFound) Error() string { return e.what + " does not exist" }

func IsErrNotFound(err error) bool {
	var nf *ErrNotFound
	return stderrors.As(err, &nf)
}

// ErrDuplicateDeclare is returned when a local declare collides with an
// existing entity (spec.md §7 "Local misuse ... duplicate declare").
type ErrDuplicateDeclare struct{ what string }

func NewErrDuplicateDeclare(format string, a ...any) *ErrDuplicateDeclare {
	return &ErrDuplicateDeclare{fmt.Sprintf(format, a...)}
}

func (e *ErrDuplicateDeclare) Error() string { return e.what + " already declared" }

// Errs accumulates up to maxErrs distinct errors, grounded on the teacher's
// cmn/cos/err.go Errs type (deduplicates by message, caps retained errors).
type Errs struct {
	errs []error
	cnt  int64
	mu   sync.Mutex
}

const maxErrs = 4

func (e *Errs) Add(err error) {
	debug.Assert(err != nil)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, added := range e.errs {
		if added.Error() == err.Error() {
			return
		}
	}
	if len(e.errs) < maxErrs {
		e.errs = append(e.errs, err)
		ratomic.StoreInt64(&e.cnt, int64(len(e.errs)))
	}
}

func (e *Errs) Cnt() int { return int(ratomic.LoadInt64(&e.cnt)) }

func (e *Errs) JoinErr() (cnt int, err error) {
	if cnt = e.Cnt(); cnt > 0 {
		e.mu.Lock()
		err = stderrors.Join(e.errs...)
		e.mu.Unlock()
	}
	return
}

func (e *Errs) Error() string {
	cnt := e.Cnt()
	if cnt == 0 {
		return ""
	}
	e.mu.Lock()
	err := e.errs[0]
	e.mu.Unlock()
	if cnt > 1 {
		return fmt.Sprintf("%v (and %d more error%s)", err, cnt-1, Plural(cnt-1))
	}
	return err.Error()
}

func Plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

//
// link I/O classification — reports whether a link send/receive failure is
// one of the transient connection errors below (refused, reset, broken pipe,
// EAGAIN). No link driver or transport in this module calls it.
//

func IsRetriableConnErr(err error) bool {
	return stderrors.Is(err, syscall.ECONNREFUSED) ||
		stderrors.Is(err, syscall.ECONNRESET) ||
		stderrors.Is(err, syscall.EPIPE) ||
		stderrors.Is(err, syscall.EAGAIN)
}

// WrapLinkErr annotates a raw link I/O error with context, using
// github.com/pkg/errors the way the ambient stack wraps boundary-crossing
// failures before they surface as a session close reason.
func WrapLinkErr(err error, format string, a ...any) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, a...)
}

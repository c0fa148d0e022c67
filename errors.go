package imapc

import (
	"errors"
	"fmt"
)

// Kind classifies the errors the client returns to callers, matching the
// error taxonomy the protocol core is required to surface.
type Kind int

const (
	// KindIO is an underlying stream error or an unexpected EOF.
	KindIO Kind = iota
	// KindConnectionLost means the stream ended cleanly before a tagged
	// completion for the in-flight command arrived.
	KindConnectionLost
	// KindBad means the server replied BAD: a protocol violation or
	// unknown command.
	KindBad
	// KindNo means the server replied NO: the operation was refused.
	KindNo
	// KindParse covers grammar failures, an unexpected response kind
	// where a specific one was required, non-UTF-8 text, invalid
	// base64 in an AUTHENTICATE challenge, or an expected response
	// that never arrived (e.g. GETQUOTA with no QUOTA line).
	KindParse
	// KindValidate means a command argument contained a forbidden
	// character (CR or LF) and was never sent.
	KindValidate
	// KindAppend means APPEND did not receive a continuation in
	// response to its literal announcement.
	KindAppend
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindConnectionLost:
		return "connection lost"
	case KindBad:
		return "bad"
	case KindNo:
		return "no"
	case KindParse:
		return "parse"
	case KindValidate:
		return "validate"
	case KindAppend:
		return "append"
	default:
		return "unknown"
	}
}

// Error is the error type every failing client operation returns.
type Error struct {
	Kind Kind
	// Code is the server's optional response code (e.g. "TRYCREATE"),
	// populated for KindNo/KindBad when the server sent one.
	Code string
	// Info is the server's human-readable completion text, populated for
	// KindNo/KindBad.
	Info string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Code != "" && e.Info != "":
		return fmt.Sprintf("imapc: %s [%s] %s", e.Kind, e.Code, e.Info)
	case e.Info != "":
		return fmt.Sprintf("imapc: %s: %s", e.Kind, e.Info)
	case e.Err != nil:
		return fmt.Sprintf("imapc: %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("imapc: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func newServerError(kind Kind, code, info string) *Error {
	return &Error{Kind: kind, Code: code, Info: info}
}

// ErrConnectionLost is returned (wrapped in *Error) when the stream ends
// before the in-flight command's tagged completion arrives.
var ErrConnectionLost = errors.New("imapc: connection lost before tagged completion")

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

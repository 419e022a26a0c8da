package broker

import (
	"errors"
	"fmt"

	cockroacherrors "github.com/cockroachdb/errors"
)

// Kind classifies a broker-level failure per spec §7's error taxonomy.
type Kind int

const (
	KindIO Kind = iota
	KindTLS
	KindTimeout
	KindFrameTooLarge
	KindFrameMalformed
	KindProtocol
	KindAuth
	KindTooLarge
	KindStaleHandle
	KindStoreCorrupt
	KindBackpressure
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindTLS:
		return "tls"
	case KindTimeout:
		return "timeout"
	case KindFrameTooLarge:
		return "frame_too_large"
	case KindFrameMalformed:
		return "frame_malformed"
	case KindProtocol:
		return "protocol"
	case KindAuth:
		return "auth"
	case KindTooLarge:
		return "too_large"
	case KindStaleHandle:
		return "stale_handle"
	case KindStoreCorrupt:
		return "store_corrupt"
	case KindBackpressure:
		return "backpressure"
	default:
		return "unknown"
	}
}

// Error wraps a Kind with its underlying cause so callers can
// errors.Is/errors.As against either the kind or the cause.
type Error struct {
	Kind  Kind
	Cause error
}

// New builds an Error of the given kind wrapping cause, which may be nil.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Wrap captures a stack trace on cause via cockroachdb/errors before
// attaching the Kind, so a logged broker error carries both a
// classification and the call chain back to its origin.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Cause: cockroacherrors.Wrap(cause, msg)}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports kind-equality so errors.Is(err, broker.New(KindAuth, nil))
// matches any Error of that Kind regardless of Cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Fatal reports whether the kind is connection-fatal per spec §7 — the
// Connection must move to CLOSING on any of these.
func (e *Error) Fatal() bool {
	switch e.Kind {
	case KindIO, KindTLS, KindTimeout, KindFrameTooLarge, KindFrameMalformed, KindProtocol, KindAuth:
		return true
	default:
		return false
	}
}

var (
	ErrClientIDTaken     = errors.New("broker: client id already held by a live connection")
	ErrConnectionClosing = errors.New("broker: connection is closing")
	ErrNotActive         = errors.New("broker: connection is not in the active state")
	ErrUnknownClient     = errors.New("broker: unknown client id")
	ErrShuttingDown      = errors.New("broker: broker is shutting down")
	ErrCorruptRetained   = errors.New("broker: corrupt retained message record")
)

package backend

import (
	"errors"
	"fmt"
)

// Kind classifies a backend failure, which determines the caller's
// retry or drop policy.
type Kind int

const (
	// KindOther is an unclassified failure.
	KindOther Kind = iota
	// KindNotFound means the named resource does not exist upstream.
	KindNotFound
	// KindServer means the backend answered with a 5xx status.
	KindServer
	// KindTransport means the request never completed (timeout, refused
	// connection, DNS failure).
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindServer:
		return "server"
	case KindTransport:
		return "transport"
	default:
		return "other"
	}
}

// Error is a classified backend failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s error: %s", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind of a backend error, or KindOther if |err| is
// not a backend Error.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindOther
}

// IsNotFound reports whether |err| is a backend not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsTransient reports whether |err| is worth retrying: the request failed
// in transit or the backend failed internally.
func IsTransient(err error) bool {
	var kind = KindOf(err)
	return kind == KindServer || kind == KindTransport
}

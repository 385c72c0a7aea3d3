package datastore

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the reduced failure classification every backend maps onto.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindUnauthorized
	KindUnreachable
	KindCorrupt
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindUnauthorized:
		return "unauthorized"
	case KindUnreachable:
		return "unreachable"
	case KindCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. Every *Error matches exactly one of them.
var (
	ErrUnknown      = errors.New("datastore: unknown error")
	ErrNotFound     = errors.New("datastore: object not found")
	ErrUnauthorized = errors.New("datastore: unauthorized")
	ErrUnreachable  = errors.New("datastore: backend unreachable")
	ErrCorrupt      = errors.New("datastore: corrupt payload")
)

func (k Kind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindUnauthorized:
		return ErrUnauthorized
	case KindUnreachable:
		return ErrUnreachable
	case KindCorrupt:
		return ErrCorrupt
	default:
		return ErrUnknown
	}
}

// Error is the structured failure returned by every Driver operation.
type Error struct {
	Kind Kind
	// Op is the driver operation, e.g. "FetchObject".
	Op string
	// Key is the derived storage key, or the prefix for listings.
	Key string
	// Code is the backend-native fault code (e.g. "NoSuchKey"), if any.
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("datastore")
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " %q", e.Key)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// NewError builds an *Error of the given kind wrapping cause.
func NewError(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: cause}
}

// KindOf reports the kind of err. Errors that are not *Error are KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the backend-native fault code carried by err, if any.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

var throttleCodes = map[string]bool{
	"SlowDown":                               true,
	"Throttling":                             true,
	"ThrottlingException":                    true,
	"ProvisionedThroughputExceededException": true,
	"RequestLimitExceeded":                   true,
	"TooManyRequestsException":               true,
	"SQLITE_BUSY":                            true,
}

// IsThrottled reports whether the backend asked the caller to slow down.
func IsThrottled(err error) bool {
	return throttleCodes[CodeOf(err)]
}

// annotate stamps op and key onto a backend error. Errors that did not come
// from a backend normalizer are wrapped as KindUnknown.
func annotate(err error, op, key, message string) *Error {
	var e *Error
	if errors.As(err, &e) {
		out := *e
		out.Op = op
		out.Key = key
		if out.Message == "" {
			out.Message = message
		} else if message != "" {
			out.Message = message + ": " + out.Message
		}
		return &out
	}
	return &Error{Kind: KindUnknown, Op: op, Key: key, Message: message, Err: err}
}

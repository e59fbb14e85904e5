package receiver

import (
	"errors"
	"fmt"
)

// Kind classifies why a connect or read attempt failed.
type Kind int

const (
	KindUnknown Kind = iota

	// Connect failures.
	KindTransport
	KindTLS
	KindIdentify
	KindAuth
	KindSelect
	KindTimeout

	// Read failures.
	KindFetch
	KindEmpty
	KindNoEnvelope
	KindNoSubject
	KindInvalidText
	KindDecode
	KindNoDate
)

var kindNames = map[Kind]string{
	KindUnknown:     "unknown",
	KindTransport:   "transport",
	KindTLS:         "tls",
	KindIdentify:    "identify",
	KindAuth:        "auth",
	KindSelect:      "select",
	KindTimeout:     "timeout",
	KindFetch:       "fetch",
	KindEmpty:       "empty",
	KindNoEnvelope:  "no-envelope",
	KindNoSubject:   "no-subject",
	KindInvalidText: "invalid-text",
	KindDecode:      "decode",
	KindNoDate:      "no-date",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsConnect reports whether k happens while establishing a session.
func (k Kind) IsConnect() bool {
	return k >= KindTransport && k <= KindTimeout
}

// Error carries a failure kind and its cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// ErrSessionClosed is returned when a session that was already logged out is used again.
var ErrSessionClosed = errors.New("session already logged out")

package receiver

import (
	"fmt"
	"sync"
	"unicode/utf8"
)

// Session shares one Conn between a poll cycle and the shutdown drain.
// Every use of the connection holds mu.
type Session struct {
	mu     sync.Mutex
	conn   Conn
	closed bool
}

// NewSession wraps conn for shared use.
func NewSession(conn Conn) *Session {
	return &Session{conn: conn}
}

// ReadLatest fetches the most recent message and decodes its subject and
// internal date. The session stays locked for the whole read.
func (s *Session) ReadLatest() (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Summary{}, &Error{Kind: KindFetch, Err: ErrSessionClosed}
	}

	msg, err := s.conn.Latest()
	if err != nil {
		return Summary{}, asKind(KindFetch, err)
	}
	return summarize(msg)
}

// Logout ends the session. Calling it again returns ErrSessionClosed.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true
	return s.conn.Logout()
}

// Closed reports whether Logout has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func summarize(msg *Message) (Summary, error) {
	if msg == nil {
		return Summary{}, newError(KindEmpty, "no message found in mailbox")
	}
	if msg.Envelope == nil {
		return Summary{}, newError(KindNoEnvelope, "latest message has no envelope")
	}
	if msg.Envelope.Subject == "" {
		return Summary{}, newError(KindNoSubject, "latest message has no subject")
	}
	if !utf8.ValidString(msg.Envelope.Subject) {
		return Summary{}, newError(KindInvalidText, "subject is not valid UTF-8")
	}
	subject := msg.Envelope.Subject
	if !msg.Envelope.Decoded {
		decoded, err := DecodeSubject(subject)
		if err != nil {
			return Summary{}, &Error{Kind: KindDecode, Err: fmt.Errorf("decode subject: %w", err)}
		}
		subject = decoded
	}
	if msg.InternalDate.IsZero() {
		return Summary{}, newError(KindNoDate, "latest message has no internal date")
	}
	return Summary{Subject: subject, Date: msg.InternalDate}, nil
}

// asKind keeps an existing kind on err and otherwise tags it with kind.
func asKind(kind Kind, err error) error {
	if KindOf(err) != KindUnknown {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

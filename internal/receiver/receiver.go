package receiver

import (
	"context"
	"time"
)

// Envelope is the protocol metadata of a message that the watcher needs.
type Envelope struct {
	Subject string // possibly RFC 2047 encoded unless Decoded
	Decoded bool   // Subject was already decoded by the protocol client
}

// Message is one entry of a mailbox listing in server order.
type Message struct {
	Envelope     *Envelope
	InternalDate time.Time // server-assigned arrival time
}

// Summary is the decoded result of reading the latest message.
type Summary struct {
	Subject string
	Date    time.Time
}

// Conn is a live, authenticated connection with the target folder selected.
// A Conn is not safe for concurrent use; wrap it in a Session.
type Conn interface {
	// Latest returns the last message in server order, or nil if the
	// folder holds no messages.
	Latest() (*Message, error)

	// Logout ends the protocol session and closes the connection.
	Logout() error
}

// Dialer establishes connections to one configured mailbox.
type Dialer interface {
	// Dial connects, authenticates and selects the folder. It must not
	// leave a connection open when it returns an error or when ctx ends.
	Dial(ctx context.Context) (Conn, error)
}

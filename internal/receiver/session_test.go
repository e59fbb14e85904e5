package receiver

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	msg      *Message
	err      error
	logouts  int
	logoutFn func() error
}

func (c *fakeConn) Latest() (*Message, error) {
	return c.msg, c.err
}

func (c *fakeConn) Logout() error {
	c.mu.Lock()
	c.logouts++
	c.mu.Unlock()
	if c.logoutFn != nil {
		return c.logoutFn()
	}
	return nil
}

func TestReadLatest(t *testing.T) {
	date := time.Date(2024, 3, 1, 9, 30, 0, 0, time.FixedZone("CST", 8*3600))

	conn := &fakeConn{msg: &Message{
		Envelope:     &Envelope{Subject: "=?UTF-8?B?5Y+R56Wo?= Invoice"},
		InternalDate: date,
	}}
	got, err := NewSession(conn).ReadLatest()
	require.NoError(t, err)
	assert.Equal(t, "发票 Invoice", got.Subject)
	assert.True(t, got.Date.Equal(date))
	_, offset := got.Date.Zone()
	assert.Equal(t, 8*3600, offset)
}

func TestReadLatestKeepsDecodedSubject(t *testing.T) {
	conn := &fakeConn{msg: &Message{
		Envelope:     &Envelope{Subject: "=?UTF-8?Q?hidden?=", Decoded: true},
		InternalDate: time.Now(),
	}}
	got, err := NewSession(conn).ReadLatest()
	require.NoError(t, err)
	assert.Equal(t, "=?UTF-8?Q?hidden?=", got.Subject)
}

func TestReadLatestFailures(t *testing.T) {
	date := time.Now()

	tests := []struct {
		name string
		conn *fakeConn
		want Kind
	}{
		{
			name: "fetch error",
			conn: &fakeConn{err: errors.New("connection reset")},
			want: KindFetch,
		},
		{
			name: "typed fetch error kept",
			conn: &fakeConn{err: &Error{Kind: KindFetch, Err: errors.New("BAD")}},
			want: KindFetch,
		},
		{
			name: "empty mailbox",
			conn: &fakeConn{},
			want: KindEmpty,
		},
		{
			name: "no envelope",
			conn: &fakeConn{msg: &Message{InternalDate: date}},
			want: KindNoEnvelope,
		},
		{
			name: "no subject",
			conn: &fakeConn{msg: &Message{Envelope: &Envelope{}, InternalDate: date}},
			want: KindNoSubject,
		},
		{
			name: "invalid utf-8",
			conn: &fakeConn{msg: &Message{Envelope: &Envelope{Subject: "bad \xff\xfe"}, InternalDate: date}},
			want: KindInvalidText,
		},
		{
			name: "unknown charset",
			conn: &fakeConn{msg: &Message{Envelope: &Envelope{Subject: "=?x-no-such-charset?Q?abc?="}, InternalDate: date}},
			want: KindDecode,
		},
		{
			name: "no internal date",
			conn: &fakeConn{msg: &Message{Envelope: &Envelope{Subject: "Hello"}}},
			want: KindNoDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSession(tt.conn).ReadLatest()
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))
			assert.False(t, KindOf(err).IsConnect())
		})
	}
}

func TestLogoutTwice(t *testing.T) {
	conn := &fakeConn{}
	s := NewSession(conn)

	require.NoError(t, s.Logout())
	assert.True(t, s.Closed())
	assert.ErrorIs(t, s.Logout(), ErrSessionClosed)
	assert.Equal(t, 1, conn.logouts)

	_, err := s.ReadLatest()
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestLogoutWaitsForRead(t *testing.T) {
	release := make(chan struct{})
	conn := &blockingConn{release: release, started: make(chan struct{})}
	s := NewSession(conn)

	done := make(chan struct{})
	go func() {
		_, _ = s.ReadLatest()
		close(done)
	}()
	<-conn.started

	loggedOut := make(chan struct{})
	go func() {
		_ = s.Logout()
		close(loggedOut)
	}()

	select {
	case <-loggedOut:
		t.Fatal("logout ran while a read held the session")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-done
	<-loggedOut
	assert.True(t, s.Closed())
}

type blockingConn struct {
	started chan struct{}
	release chan struct{}
}

func (c *blockingConn) Latest() (*Message, error) {
	close(c.started)
	<-c.release
	return &Message{Envelope: &Envelope{Subject: "x"}, InternalDate: time.Now()}, nil
}

func (c *blockingConn) Logout() error { return nil }

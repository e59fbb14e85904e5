package receiver

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	pop3client "github.com/knadh/go-pop3"
	"go.uber.org/zap"
)

// POP3Dialer opens POP3S sessions to one mailbox. POP3 has no folders and
// no internal date, so the Date header of the newest message stands in.
type POP3Dialer struct {
	host     string
	port     int
	username string
	password string
	useTLS   bool
	logger   *zap.Logger
}

// NewPOP3 creates a new POP3 dialer.
func NewPOP3(host string, port int, username, password string, logger *zap.Logger) *POP3Dialer {
	return &POP3Dialer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		useTLS:   true,
		logger:   logger,
	}
}

// rawDialer hands go-pop3 a ctx-aware dial and keeps the socket so that
// cancellation can close it without issuing commands on the pop3 conn.
type rawDialer struct {
	ctx  context.Context
	conn net.Conn
	stop func() bool
}

func (r *rawDialer) Dial(network, address string) (net.Conn, error) {
	var nd net.Dialer
	conn, err := nd.DialContext(r.ctx, network, address)
	if err != nil {
		return nil, err
	}
	r.conn = conn
	r.stop = context.AfterFunc(r.ctx, func() { conn.Close() })
	return conn, nil
}

// release detaches the socket from ctx. It reports false when ctx already
// closed it.
func (r *rawDialer) release() bool {
	if r.stop == nil {
		return true
	}
	return r.stop()
}

// Dial connects and authenticates. When ctx ends the socket is closed so
// that a pending greeting or USER/PASS exchange fails.
func (d *POP3Dialer) Dial(ctx context.Context) (Conn, error) {
	addr := net.JoinHostPort(d.host, strconv.Itoa(d.port))

	raw := &rawDialer{ctx: ctx}
	opt := pop3client.Opt{
		Host:       d.host,
		Port:       d.port,
		TLSEnabled: d.useTLS,
		Dialer:     raw,
	}
	if deadline, ok := ctx.Deadline(); ok {
		opt.DialTimeout = time.Until(deadline)
	}

	conn, err := pop3client.New(opt).NewConn()
	if err != nil {
		raw.release()
		if raw.conn != nil {
			raw.conn.Close()
		}
		return nil, connectError(ctx, KindTransport, fmt.Errorf("pop3 connect %s: %w", addr, err))
	}

	if err := conn.Auth(d.username, d.password); err != nil {
		if raw.release() {
			_ = conn.Quit()
		}
		return nil, connectError(ctx, KindAuth, fmt.Errorf("pop3 auth %s: %w", d.username, err))
	}

	if !raw.release() {
		_ = raw.conn.Close()
		return nil, &Error{Kind: KindTimeout, Err: ctx.Err()}
	}

	d.logger.Debug("pop3 session ready", zap.String("host", d.host))
	return &pop3Conn{conn: conn}, nil
}

type pop3Conn struct {
	conn *pop3client.Conn
}

// Latest reads the headers of the highest-numbered message.
func (c *pop3Conn) Latest() (*Message, error) {
	count, _, err := c.conn.Stat()
	if err != nil {
		return nil, &Error{Kind: KindFetch, Err: fmt.Errorf("pop3 stat: %w", err)}
	}
	if count == 0 {
		return nil, nil
	}

	entity, err := c.conn.Top(count, 0)
	if err != nil {
		return nil, &Error{Kind: KindFetch, Err: fmt.Errorf("pop3 top %d: %w", count, err)}
	}

	header := mail.Header{Header: entity.Header}
	msg := &Message{
		Envelope: &Envelope{Subject: header.Get("Subject")},
	}
	if date, err := header.Date(); err == nil {
		msg.InternalDate = date
	}
	return msg, nil
}

func (c *pop3Conn) Logout() error {
	if err := c.conn.Quit(); err != nil {
		return fmt.Errorf("pop3 quit: %w", err)
	}
	return nil
}

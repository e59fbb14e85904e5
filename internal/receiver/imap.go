package receiver

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"
)

// Client identification sent with the IMAP ID command.
const (
	ClientName    = "mailnotify"
	ClientVersion = "1.0.0"
	ClientVendor  = "tracyhatemice"
)

// IMAPDialer opens IMAPS sessions to one mailbox.
type IMAPDialer struct {
	host     string
	port     int
	username string
	password string
	folder   string
	logger   *zap.Logger
}

// NewIMAP creates a new IMAP dialer. username doubles as the contact
// address sent in the ID handshake.
func NewIMAP(host string, port int, username, password, folder string, logger *zap.Logger) *IMAPDialer {
	if folder == "" {
		folder = "INBOX"
	}
	return &IMAPDialer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		folder:   folder,
		logger:   logger,
	}
}

// Dial runs TCP connect, TLS handshake, ID, LOGIN and SELECT. When ctx ends
// the underlying connection is closed so that any pending step fails.
func (d *IMAPDialer) Dial(ctx context.Context) (Conn, error) {
	addr := net.JoinHostPort(d.host, strconv.Itoa(d.port))

	var nd net.Dialer
	raw, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, connectError(ctx, KindTransport, fmt.Errorf("imap connect %s: %w", addr, err))
	}
	stop := context.AfterFunc(ctx, func() { raw.Close() })

	tlsConn := tls.Client(raw, &tls.Config{ServerName: d.host})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		stop()
		raw.Close()
		return nil, connectError(ctx, KindTLS, fmt.Errorf("imap tls handshake %s: %w", d.host, err))
	}

	client := imapclient.New(tlsConn, clientOptions())
	conn, err := d.open(client)
	if err != nil {
		stop()
		client.Close()
		return nil, connectError(ctx, KindOf(err), err)
	}

	if !stop() {
		client.Close()
		return nil, &Error{Kind: KindTimeout, Err: ctx.Err()}
	}
	return conn, nil
}

// clientOptions makes imapclient decode envelope subjects with the same
// charset support as DecodeSubject.
func clientOptions() *imapclient.Options {
	return &imapclient.Options{WordDecoder: wordDecoder}
}

// open identifies, logs in and selects the folder on a connected client.
// ID is only sent when the server advertises it.
func (d *IMAPDialer) open(client *imapclient.Client) (*imapConn, error) {
	if client.Caps().Has(imap.Cap("ID")) {
		if _, err := client.ID(&imap.IDData{
			Name:       ClientName,
			Version:    ClientVersion,
			Vendor:     ClientVendor,
			SupportURL: "mailto:" + d.username,
		}).Wait(); err != nil {
			return nil, newError(KindIdentify, "imap id: %w", err)
		}
	}

	if err := client.Login(d.username, d.password).Wait(); err != nil {
		return nil, newError(KindAuth, "imap login %s: %w", d.username, err)
	}

	selected, err := client.Select(d.folder, nil).Wait()
	if err != nil {
		return nil, newError(KindSelect, "imap select %s: %w", d.folder, err)
	}

	d.logger.Debug("imap session ready",
		zap.String("host", d.host),
		zap.String("folder", d.folder),
		zap.Uint32("messages", selected.NumMessages),
	)
	return &imapConn{client: client, count: selected.NumMessages}, nil
}

// connectError reports failures caused by ctx ending as timeouts.
func connectError(ctx context.Context, kind Kind, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &Error{Kind: KindTimeout, Err: fmt.Errorf("%w (%v)", ctxErr, err)}
	}
	return asKind(kind, err)
}

type imapConn struct {
	client *imapclient.Client
	count  uint32 // messages in the folder at SELECT time
}

// Latest fetches the ALL macro for every message and keeps the last one.
func (c *imapConn) Latest() (*Message, error) {
	if c.count == 0 {
		return nil, nil
	}

	var seqSet imap.SeqSet
	seqSet.AddRange(1, 0) // 1:*
	fetchOptions := &imap.FetchOptions{
		Flags:        true,
		InternalDate: true,
		RFC822Size:   true,
		Envelope:     true,
	}

	buffers, err := c.client.Fetch(seqSet, fetchOptions).Collect()
	if err != nil {
		return nil, &Error{Kind: KindFetch, Err: fmt.Errorf("imap fetch: %w", err)}
	}
	if len(buffers) == 0 {
		return nil, nil
	}

	last := buffers[len(buffers)-1]
	msg := &Message{InternalDate: last.InternalDate}
	if last.Envelope != nil {
		msg.Envelope = &Envelope{Subject: last.Envelope.Subject, Decoded: true}
	}
	return msg, nil
}

func (c *imapConn) Logout() error {
	defer c.client.Close()
	if err := c.client.Logout().Wait(); err != nil {
		return fmt.Errorf("imap logout: %w", err)
	}
	return nil
}

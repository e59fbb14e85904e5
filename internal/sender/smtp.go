package sender

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"
)

// SMTP mails each notification to the recipient ID, which must be an
// email address. Users and groups are treated alike.
type SMTP struct {
	host     string
	port     int
	username string
	password string
	useTLS   bool
	from     string
	logger   *zap.Logger
}

// NewSMTP creates a new SMTP sink.
func NewSMTP(host string, port int, username, password string, useTLS bool, from string, logger *zap.Logger) *SMTP {
	return &SMTP{
		host:     host,
		port:     port,
		username: username,
		password: password,
		useTLS:   useTLS,
		from:     from,
		logger:   logger,
	}
}

func (s *SMTP) Deliver(_ context.Context, to Recipient, text string) {
	if err := s.send(to.ID, text); err != nil {
		s.logger.Error("notification failed", zap.String("to", to.ID), zap.Error(err))
		return
	}
	s.logger.Debug("notification sent", zap.String("to", to.ID))
}

func (s *SMTP) send(to, text string) error {
	message, err := compose(s.from, to, text, time.Now())
	if err != nil {
		return err
	}

	client, err := s.dial()
	if err != nil {
		return err
	}
	defer client.Close()

	if s.username != "" && s.password != "" {
		if err := client.Auth(sasl.NewPlainClient("", s.username, s.password)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.SendMail(s.from, []string{to}, bytes.NewReader(message)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return client.Quit()
}

// dial connects with implicit TLS or STARTTLS. A plaintext session is only
// used when the server offers no STARTTLS and no credentials are configured.
func (s *SMTP) dial() (*smtp.Client, error) {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	tlsConfig := &tls.Config{ServerName: s.host}

	if s.useTLS {
		client, err := smtp.DialTLS(addr, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("smtp tls dial %s: %w", addr, err)
		}
		return client, nil
	}

	client, err := smtp.DialStartTLS(addr, tlsConfig)
	if err == nil {
		return client, nil
	}
	if s.username != "" || s.password != "" {
		return nil, fmt.Errorf("smtp starttls %s: %w", addr, err)
	}

	s.logger.Warn("STARTTLS unavailable, sending without TLS", zap.String("addr", addr), zap.Error(err))
	client, err = smtp.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	return client, nil
}

// compose renders a text/plain message whose subject is the first line of text.
func compose(from, to, text string, now time.Time) ([]byte, error) {
	subject, _, _ := strings.Cut(text, "\n")

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("X-Mailer", "mailnotify")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("compose message: %w", err)
	}
	if _, err := io.WriteString(w, text); err != nil {
		return nil, fmt.Errorf("compose message: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compose message: %w", err)
	}
	return buf.Bytes(), nil
}

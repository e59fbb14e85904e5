// Package status serves a small read-only HTTP view of the watched mailboxes.
package status

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tracyhatemice/mailnotify/internal/registry"
	"github.com/tracyhatemice/mailnotify/internal/state"
)

// Mailbox is one watched mailbox as seen by the status server.
type Mailbox struct {
	Address string
	Tracker *state.Tracker
}

// MailboxStatus is the JSON shape of one entry of GET /mailboxes.
type MailboxStatus struct {
	Address     string    `json:"address"`
	Latest      time.Time `json:"latest"`
	SessionOpen bool      `json:"session_open"`
}

// Server exposes /healthz and /mailboxes.
type Server struct {
	echo      *echo.Echo
	listen    string
	mailboxes []Mailbox
	registry  *registry.Registry
	logger    *zap.Logger
}

// New creates a status server for listen.
func New(listen string, mailboxes []Mailbox, reg *registry.Registry, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		listen:    listen,
		mailboxes: mailboxes,
		registry:  reg,
		logger:    logger,
	}
	e.GET("/healthz", s.healthz)
	e.GET("/mailboxes", s.list)
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", zap.String("addr", s.listen))
		errCh <- s.echo.Start(s.listen)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("status server shutdown", zap.Error(err))
		}
		return nil
	}
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":        "ok",
		"mailboxes":     len(s.mailboxes),
		"open_sessions": s.registry.Len(),
	})
}

func (s *Server) list(c echo.Context) error {
	out := make([]MailboxStatus, 0, len(s.mailboxes))
	for _, m := range s.mailboxes {
		out = append(out, MailboxStatus{
			Address:     m.Address,
			Latest:      m.Tracker.Latest(),
			SessionOpen: s.registry.Has(m.Address),
		})
	}
	return c.JSON(http.StatusOK, out)
}

package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tracyhatemice/mailnotify/internal/config"
	"github.com/tracyhatemice/mailnotify/internal/receiver"
	"github.com/tracyhatemice/mailnotify/internal/registry"
	"github.com/tracyhatemice/mailnotify/internal/sender"
	"github.com/tracyhatemice/mailnotify/internal/state"
)

// DefaultConnectTimeout bounds session establishment. Nothing else in a
// cycle has a deadline.
const DefaultConnectTimeout = 10 * time.Second

// Stage names a step of one poll cycle.
type Stage int

const (
	Connecting Stage = iota
	Registered
	Reading
	Comparing
	Notifying
	LoggingOut
	Done
)

func (s Stage) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Registered:
		return "registered"
	case Reading:
		return "reading"
	case Comparing:
		return "comparing"
	case Notifying:
		return "notifying"
	case LoggingOut:
		return "logging-out"
	case Done:
		return "done"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Outcome is how a poll cycle ended.
type Outcome int

const (
	Aborted Outcome = iota
	Unchanged
	Notified
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Notified:
		return "notified"
	}
	return "aborted"
}

// Watcher polls one mailbox and notifies its recipients about new mail.
type Watcher struct {
	mailbox        config.Mailbox
	dialer         receiver.Dialer
	registry       *registry.Registry
	tracker        *state.Tracker
	sink           sender.Sink
	interval       time.Duration
	connectTimeout time.Duration
	logger         *zap.Logger
}

// Option customises a Watcher.
type Option func(*Watcher)

// WithConnectTimeout overrides DefaultConnectTimeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(w *Watcher) { w.connectTimeout = d }
}

// New creates a Watcher for the given mailbox. The mailbox is copied; the
// tracker is owned by this watcher from here on.
func New(
	mbox config.Mailbox,
	dialer receiver.Dialer,
	reg *registry.Registry,
	tracker *state.Tracker,
	sink sender.Sink,
	interval time.Duration,
	logger *zap.Logger,
	opts ...Option,
) *Watcher {
	w := &Watcher{
		mailbox:        mbox,
		dialer:         dialer,
		registry:       reg,
		tracker:        tracker,
		sink:           sink,
		interval:       interval,
		connectTimeout: DefaultConnectTimeout,
		logger:         logger.With(zap.String("mailbox", mbox.Email)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Address returns the mailbox identity.
func (w *Watcher) Address() string { return w.mailbox.Email }

// Tracker returns the mailbox state.
func (w *Watcher) Tracker() *state.Tracker { return w.tracker }

// Run checks the mailbox immediately and then once per interval until ctx
// is cancelled. Cycles never overlap.
func (w *Watcher) Run(ctx context.Context) {
	w.logger.Info("starting watcher",
		zap.String("protocol", w.mailbox.GetProtocol()),
		zap.String("server", w.mailbox.Server),
		zap.Duration("interval", w.interval),
	)

	w.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

// Check runs one poll cycle. Every failure is logged here and reported
// only through the returned Outcome.
func (w *Watcher) Check(ctx context.Context) Outcome {
	logger := w.logger.With(zap.String("cycle", uuid.NewString()))
	logger.Debug("checking mails")

	conn, err := w.connect(ctx)
	if err != nil {
		kind := receiver.KindOf(err)
		if kind == receiver.KindTimeout {
			logger.Warn("timeout when connecting to mail server",
				zap.Stringer("stage", Connecting),
				zap.Duration("timeout", w.connectTimeout),
				zap.Error(err),
			)
		} else {
			logger.Warn("failed to connect to mail server",
				zap.Stringer("stage", Connecting),
				zap.Stringer("kind", kind),
				zap.Error(err),
			)
		}
		return Aborted
	}

	session := receiver.NewSession(conn)
	w.registry.Register(w.mailbox.Email, session)
	logger.Debug("connected", zap.Stringer("stage", Registered))

	summary, err := session.ReadLatest()
	if err != nil {
		logger.Warn("failed to read latest mail",
			zap.Stringer("stage", Reading),
			zap.Stringer("kind", receiver.KindOf(err)),
			zap.Error(err),
		)
		w.release(logger, session)
		return Aborted
	}

	outcome := Unchanged
	if w.tracker.Advance(summary.Date) {
		logger.Info("new mail detected", zap.Stringer("stage", Notifying), zap.Time("date", summary.Date))
		w.notify(ctx, summary)
		outcome = Notified
	} else {
		logger.Debug("no new mail", zap.Stringer("stage", Comparing), zap.Time("latest", summary.Date))
	}

	w.release(logger, session)
	return outcome
}

// connect dials under the connect timeout. A connection that arrives after
// the deadline is logged out in the background and never returned.
func (w *Watcher) connect(ctx context.Context) (receiver.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, w.connectTimeout)
	defer cancel()

	type result struct {
		conn receiver.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := w.dialer.Dial(ctx)
		ch <- result{conn, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && receiver.KindOf(r.err) == receiver.KindUnknown {
			kind := receiver.KindTransport
			if ctx.Err() != nil {
				kind = receiver.KindTimeout
			}
			return nil, &receiver.Error{Kind: kind, Err: r.err}
		}
		return r.conn, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.conn != nil {
				if err := r.conn.Logout(); err != nil {
					w.logger.Debug("discarding late connection", zap.Error(err))
				}
			}
		}()
		return nil, &receiver.Error{Kind: receiver.KindTimeout, Err: ctx.Err()}
	}
}

// Message renders the notification text for a new mail.
func Message(address, subject string) string {
	return fmt.Sprintf("%s received new mail!\n%s", address, subject)
}

func (w *Watcher) notify(ctx context.Context, summary receiver.Summary) {
	text := Message(w.mailbox.Email, summary.Subject)
	for _, id := range w.mailbox.NotifyUsers {
		w.sink.Deliver(ctx, sender.Recipient{Kind: sender.User, ID: id}, text)
	}
	for _, id := range w.mailbox.NotifyGroups {
		w.sink.Deliver(ctx, sender.Recipient{Kind: sender.Group, ID: id}, text)
	}
}

// release logs the session out and unregisters it whatever the logout result.
func (w *Watcher) release(logger *zap.Logger, session *receiver.Session) {
	if err := session.Logout(); err != nil {
		logger.Warn("error when logging out", zap.Stringer("stage", LoggingOut), zap.Error(err))
	} else {
		logger.Debug("logged out", zap.Stringer("stage", LoggingOut))
	}
	w.registry.Unregister(w.mailbox.Email)
	logger.Debug("cycle finished", zap.Stringer("stage", Done))
}

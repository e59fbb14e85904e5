package main

import (
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/tracyhatemice/mailnotify/internal/config"
	"github.com/tracyhatemice/mailnotify/internal/logging"
	"github.com/tracyhatemice/mailnotify/internal/registry"
	"github.com/tracyhatemice/mailnotify/internal/sender"
	"github.com/tracyhatemice/mailnotify/internal/state"
	"github.com/tracyhatemice/mailnotify/internal/status"
	"github.com/tracyhatemice/mailnotify/internal/watcher"
)

// buildContainer wires the application from the config file at configPath.
func buildContainer(configPath string) (*dig.Container, error) {
	container := dig.New()

	if err := container.Provide(func() (*config.Config, error) {
		return config.Load(configPath)
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(func(cfg *config.Config) (*zap.Logger, error) {
		return logging.New(cfg.LogLevel, cfg.LogFormat)
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(registry.New); err != nil {
		return nil, err
	}

	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (sender.Sink, error) {
		return sender.New(cfg.Notifier, logger)
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(newWatchers); err != nil {
		return nil, err
	}

	if err := container.Provide(newStatus); err != nil {
		return nil, err
	}

	return container, nil
}

// newWatchers creates one watcher per configured mailbox. Every mailbox
// starts with its state at the current time.
func newWatchers(
	cfg *config.Config,
	logger *zap.Logger,
	reg *registry.Registry,
	sink sender.Sink,
) []*watcher.Watcher {
	start := time.Now()
	watchers := make([]*watcher.Watcher, 0, len(cfg.Mailboxes))
	for _, mbox := range cfg.Mailboxes {
		dialer, err := watcher.NewDialer(mbox, logger.With(zap.String("mailbox", mbox.Email)))
		if err != nil {
			logger.Error("failed to create dialer", zap.String("mailbox", mbox.Email), zap.Error(err))
			continue
		}
		watchers = append(watchers, watcher.New(
			mbox,
			dialer,
			reg,
			state.NewTracker(start),
			sink,
			cfg.Interval(),
			logger,
		))
		logger.Info("mailbox initialized", zap.String("mailbox", mbox.Email))
	}
	return watchers
}

// newStatus returns nil when no status address is configured.
func newStatus(
	cfg *config.Config,
	logger *zap.Logger,
	reg *registry.Registry,
	watchers []*watcher.Watcher,
) *status.Server {
	if cfg.StatusListen == "" {
		return nil
	}
	mailboxes := make([]status.Mailbox, 0, len(watchers))
	for _, w := range watchers {
		mailboxes = append(mailboxes, status.Mailbox{Address: w.Address(), Tracker: w.Tracker()})
	}
	return status.New(cfg.StatusListen, mailboxes, reg, logger)
}

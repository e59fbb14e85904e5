package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tracyhatemice/mailnotify/internal/registry"
	"github.com/tracyhatemice/mailnotify/internal/status"
	"github.com/tracyhatemice/mailnotify/internal/watcher"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	container, err := buildContainer(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(
	logger *zap.Logger,
	reg *registry.Registry,
	watchers []*watcher.Watcher,
	statusServer *status.Server,
) error {
	defer logger.Sync()

	if len(watchers) == 0 {
		return fmt.Errorf("no mailbox could be set up")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range watchers {
		w := w
		g.Go(func() error {
			w.Run(gctx)
			return nil
		})
	}
	if statusServer != nil {
		g.Go(func() error {
			return statusServer.Run(gctx)
		})
	}

	logger.Info("ready to put eyes on mails", zap.Int("mailboxes", len(watchers)))

	<-gctx.Done()
	logger.Info("shutting down, logging out mail sessions...")

	// Force exit on second signal, also while the drain waits for a stuck session.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)
	drain(reg, logger, sig, os.Exit)

	err := g.Wait()
	logger.Info("mailnotify stopped")
	return err
}

// drain logs out every live session. A signal on sig from now on exits the
// process through exit.
func drain(reg *registry.Registry, logger *zap.Logger, sig <-chan os.Signal, exit func(int)) {
	go func() {
		<-sig
		logger.Warn("forced shutdown")
		exit(1)
	}()
	reg.DrainAndClose()
}

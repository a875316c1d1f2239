package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexbot-levels/internal/notify"
	"github.com/dgnsrekt/gexbot-levels/internal/schedule"
	"github.com/dgnsrekt/gexbot-levels/internal/server"
	"github.com/dgnsrekt/gexbot-levels/internal/update"
)

func watchCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Update levels on an interval during market hours",
		Long: `Run as a daemon: every schedule.interval_sec, on NYSE business days inside
the configured session window, run an update pass.

When server.enabled is set the latest levels are also served over HTTP.
Failures are reported through ntfy when NTFY_ENABLED=true.

Examples:
  gexlevels watch
  gexlevels watch --force   # ignore the market calendar`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			scheduler, err := schedule.NewScheduler(cfg.Schedule.Timezone, cfg.Schedule.SessionStart, cfg.Schedule.SessionEnd)
			if err != nil {
				return err
			}

			notifier := notify.New(cfg.Notify, logger)

			var extra []update.Sink
			var store *server.Store
			if cfg.Server.Enabled {
				store = server.NewStore(server.NewBroadcaster(logger))
				extra = append(extra, store)
			}

			u, err := newUpdater(ctx, cfg, logger, extra...)
			if err != nil {
				return err
			}
			defer u.Close()

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			serverErr := make(chan error, 1)
			if store != nil {
				go func() {
					serverErr <- server.Serve(ctx, cfg.Server.Addr, server.NewRouter(store, cfg.RequestTimeout(), logger), logger)
				}()
			}

			w := &watcher{
				updater:   u,
				scheduler: scheduler,
				notifier:  notifier,
				jobs:      update.Jobs(cfg.InstrumentList(), cfg.API.Aggregation, nil),
				force:     force,
				logger:    logger,
			}

			interval := time.Duration(cfg.Schedule.IntervalSec) * time.Second
			logger.Info("watch started",
				zap.String("session", scheduler.Window()),
				zap.Duration("interval", interval),
				zap.Int("instruments", len(w.jobs)),
				zap.Bool("server", store != nil),
			)

			if cfg.Schedule.RunOnStartup {
				w.tick(ctx, time.Now())
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					logger.Info("context cancelled, shutting down")
					cancel()
					if store != nil {
						return <-serverErr
					}
					return nil

				case err := <-serverErr:
					return fmt.Errorf("server: %w", err)

				case now := <-ticker.C:
					w.tick(ctx, now)
				}
			}
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "run outside market days and session hours")

	return cmd
}

type watcher struct {
	updater   *updater
	scheduler *schedule.Scheduler
	notifier  notify.Notifier
	jobs      []update.Job
	force     bool
	logger    *zap.Logger

	// lastNotified is the date of the last healthy notification.
	lastNotified string
	// lastKind suppresses repeats of the same failure until something changes.
	lastKind notify.Kind
}

func (w *watcher) tick(ctx context.Context, now time.Time) {
	if !w.force && !w.scheduler.InSession(now) {
		w.logger.Debug("outside session", zap.Time("now", now.In(w.scheduler.Location())))
		return
	}

	today := now.In(w.scheduler.Location()).Format("2006-01-02")
	result, err := w.updater.Run(ctx, w.jobs, w.logger)
	if ctx.Err() != nil {
		return
	}

	alert := notify.NewAlert(result, today, err)
	if !w.shouldNotify(alert) {
		return
	}
	if nerr := w.notifier.Notify(ctx, alert); nerr != nil {
		w.logger.Warn("failed to send notification", zap.String("kind", alert.Kind.String()), zap.Error(nerr))
	}
}

// shouldNotify sends each new failure kind once, and a healthy run once per
// day or on recovery.
func (w *watcher) shouldNotify(alert notify.Alert) bool {
	prev := w.lastKind
	w.lastKind = alert.Kind

	if !alert.Kind.Healthy() {
		return alert.Kind != prev
	}
	if prev.Healthy() && w.lastNotified == alert.Date {
		return false
	}
	w.lastNotified = alert.Date
	return true
}

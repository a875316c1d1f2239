package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gexbot-levels/internal/api"
	"github.com/dgnsrekt/gexbot-levels/internal/archive"
	"github.com/dgnsrekt/gexbot-levels/internal/cache"
	"github.com/dgnsrekt/gexbot-levels/internal/config"
	"github.com/dgnsrekt/gexbot-levels/internal/levels"
	"github.com/dgnsrekt/gexbot-levels/internal/output"
	"github.com/dgnsrekt/gexbot-levels/internal/update"
)

// updater bundles a configured update manager with the resources it owns.
type updater struct {
	manager       *update.Manager
	timestampPath string
	closers       []func()
}

// newUpdater wires the API client, the level pipeline and every configured
// sink. extra sinks run after the CSV and redis sinks.
func newUpdater(ctx context.Context, cfg *config.Config, logger *zap.Logger, extra ...update.Sink) (*updater, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}

	pipeline, err := levels.NewPipeline(cfg.LevelParams())
	if err != nil {
		return nil, err
	}

	client := api.NewClient(
		cfg.API.BaseURL,
		cfg.API.APIKey,
		cfg.API.RatePerSecond,
		cfg.Timeout(),
		logger,
	)

	u := &updater{timestampPath: filepath.Join(cfg.Output.Directory, cfg.Output.TimestampFile)}

	sinks := []update.Sink{output.NewCSVSink(cfg.Output.Directory, cfg.OutputFile, logger)}

	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		u.closers = append(u.closers, func() { _ = rdb.Close() })
		ttl := time.Duration(cfg.Redis.TTLSec) * time.Second
		sinks = append(sinks, cache.NewRedisSink(rdb, cfg.Redis.KeyPrefix, ttl, logger))
		logger.Info("redis publishing enabled", zap.String("addr", cfg.Redis.Addr))
	}

	sinks = append(sinks, extra...)
	opts := []update.Option{update.WithSinks(sinks...)}

	if cfg.Archive.Enabled {
		w, err := archive.NewWriter(cfg.Archive.Directory)
		if err != nil {
			u.Close()
			return nil, err
		}
		u.closers = append(u.closers, w.Close)
		opts = append(opts, update.WithArchiver(w))
		logger.Info("snapshot archive enabled", zap.String("directory", cfg.Archive.Directory))
	}

	u.manager = update.NewManager(client, pipeline, cfg.Update.Workers, logger, opts...)
	return u, nil
}

// Run executes one pass and records the timestamp when anything was produced.
func (u *updater) Run(ctx context.Context, jobs []update.Job, logger *zap.Logger) (*update.BatchResult, error) {
	result, err := u.manager.Execute(ctx, jobs)
	if err != nil {
		return result, err
	}

	if result.Produced > 0 {
		if err := output.WriteTimestamp(u.timestampPath, result.Started); err != nil {
			logger.Error("failed to write timestamp", zap.String("path", u.timestampPath), zap.Error(err))
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("timestamp: %v", err))
		}
	}

	logger.Info("update complete",
		zap.String("run_id", result.RunID),
		zap.Int("total", result.Total),
		zap.Int("produced", result.Produced),
		zap.Int("empty", result.Empty),
		zap.Int("unavailable", result.Unavailable),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.Duration),
	)

	if result.Failed > 0 {
		for _, e := range result.Errors {
			logger.Error("update error", zap.String("error", e))
		}
	}

	return result, nil
}

func (u *updater) Close() {
	for i := len(u.closers) - 1; i >= 0; i-- {
		u.closers[i]()
	}
}

// batchError turns a non-OK batch into the command's error.
func batchError(result *update.BatchResult) error {
	if result.OK() {
		return nil
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d instruments failed to publish", result.Failed, result.Total)
	}
	return fmt.Errorf("no levels produced for %d instruments", result.Total)
}

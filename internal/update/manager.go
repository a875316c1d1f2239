package update

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexbot-levels/internal/api"
	"github.com/dgnsrekt/gexbot-levels/internal/gex"
	"github.com/dgnsrekt/gexbot-levels/internal/levels"
)

type Manager struct {
	client   api.Client
	pipeline *levels.Pipeline
	sinks    []Sink
	archiver Archiver
	workers  int
	logger   *zap.Logger
}

type Option func(*Manager)

func WithSinks(sinks ...Sink) Option {
	return func(m *Manager) { m.sinks = append(m.sinks, sinks...) }
}

func WithArchiver(a Archiver) Option {
	return func(m *Manager) { m.archiver = a }
}

type BatchResult struct {
	RunID       string
	Started     time.Time
	Duration    time.Duration
	Total       int
	Produced    int
	Empty       int
	Unavailable int
	Failed      int
	Outcomes    []Outcome
	Errors      []string
}

// OK is the process-level verdict: every sink write succeeded and at least
// one instrument produced levels.
func (r *BatchResult) OK() bool {
	return r.Failed == 0 && r.Produced > 0
}

func NewManager(client api.Client, pipeline *levels.Pipeline, workers int, logger *zap.Logger, opts ...Option) *Manager {
	if workers < 1 {
		workers = 1
	}
	m := &Manager{
		client:   client,
		pipeline: pipeline,
		workers:  workers,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Execute runs one pass per job. Passes are independent and run on a bounded
// worker pool; outcomes are returned in job order.
func (m *Manager) Execute(ctx context.Context, jobs []Job) (*BatchResult, error) {
	result := &BatchResult{
		RunID:   uuid.New().String(),
		Started: time.Now(),
		Total:   len(jobs),
	}

	if len(jobs) == 0 {
		return result, nil
	}

	logger := m.logger.With(zap.String("run_id", result.RunID))
	outcomes := make([]Outcome, len(jobs))
	done := make([]bool, len(jobs))

	indexes := make(chan int, len(jobs))
	var mu sync.Mutex

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < m.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				select {
				case <-ctx.Done():
					return
				default:
				}

				o := m.process(ctx, jobs[idx], logger)

				mu.Lock()
				outcomes[idx] = o
				done[idx] = true
				mu.Unlock()
			}
		}()
	}

	for idx := range jobs {
		indexes <- idx
	}
	close(indexes)
	wg.Wait()

	for idx, o := range outcomes {
		if !done[idx] {
			continue
		}
		result.Outcomes = append(result.Outcomes, o)
		switch {
		case o.Err != nil:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", o.Job, o.Err))
		case o.Produced():
			result.Produced++
		default:
			result.Empty++
		}
		if o.Unavailable {
			result.Unavailable++
		}
	}
	result.Duration = time.Since(result.Started)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (m *Manager) process(ctx context.Context, job Job, logger *zap.Logger) Outcome {
	inst := job.Instrument
	logger = logger.With(zap.String("source", inst.Source), zap.String("target", inst.Target))

	o := Outcome{Job: job}
	snap := m.fetch(ctx, job, &o, logger)

	o.Levels = m.pipeline.Run(snap, inst)
	if snap != nil {
		o.Timestamp = snap.Timestamp
		o.Spot = snap.Spot.Float()
		o.ZeroGamma = snap.ZeroGamma.Float()
	}

	logger.Info("levels generated",
		zap.Int("count", len(o.Levels)),
		zap.Bool("unavailable", o.Unavailable),
		zap.Float64("spot", o.Spot),
		zap.Float64("zero_gamma", o.ZeroGamma),
	)

	for _, sink := range m.sinks {
		if err := sink.Publish(ctx, o); err != nil {
			logger.Error("publish failed", zap.String("sink", sink.Name()), zap.Error(err))
			if o.Err == nil {
				o.Err = fmt.Errorf("%s: %w", sink.Name(), err)
			}
		}
	}

	return o
}

// fetch returns nil when the snapshot is unavailable and records why on o.
func (m *Manager) fetch(ctx context.Context, job Job, o *Outcome, logger *zap.Logger) *gex.Snapshot {
	ticker := job.Instrument.Source

	body, err := m.client.GetSnapshot(ctx, ticker, job.Aggregation)
	if err != nil {
		logger.Warn("snapshot unavailable", zap.Error(err))
		o.Unavailable, o.Reason = true, err
		return nil
	}

	if m.archiver != nil {
		if path, err := m.archiver.Save(ticker, job.Aggregation, body); err != nil {
			logger.Warn("failed to archive snapshot", zap.Error(err))
		} else {
			logger.Debug("archived snapshot", zap.String("path", path))
		}
	}

	snap, stats, err := gex.Parse(body)
	if err != nil {
		logger.Warn("snapshot unreadable", zap.Error(err))
		o.Unavailable, o.Reason = true, err
		return nil
	}
	if stats.SkippedStrikes > 0 || stats.SkippedMaxPriors > 0 {
		logger.Debug("skipped malformed records",
			zap.Int("strikes", stats.SkippedStrikes),
			zap.Int("max_priors", stats.SkippedMaxPriors),
		)
	}
	o.Skipped = stats
	return snap
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexbot-levels/internal/config"
	"github.com/dgnsrekt/gexbot-levels/internal/levels"
	"github.com/dgnsrekt/gexbot-levels/internal/update"
)

// Setter is the subset of the redis client the sink needs.
type Setter interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Document is the JSON value stored per target symbol.
type Document struct {
	Source    string         `json:"source"`
	Target    string         `json:"target"`
	Name      string         `json:"name,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
	Levels    []levels.Level `json:"levels"`
}

// RedisSink publishes the latest levels of each target under {prefix}{target}.
type RedisSink struct {
	client Setter
	prefix string
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewRedisSink(client Setter, prefix string, ttl time.Duration, logger *zap.Logger) *RedisSink {
	return &RedisSink{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// NewRedisClient connects and pings the configured server.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

func (s *RedisSink) Name() string { return "redis" }

// Key returns the redis key for a target symbol.
func (s *RedisSink) Key(target string) string {
	return s.prefix + target
}

// Publish stores o's levels. Empty results keep the previous value.
func (s *RedisSink) Publish(ctx context.Context, o update.Outcome) error {
	inst := o.Job.Instrument
	if !o.Produced() {
		s.logger.Debug("no levels, keeping previous key", zap.String("key", s.Key(inst.Target)))
		return nil
	}

	data, err := json.Marshal(Document{
		Source:    inst.Source,
		Target:    inst.Target,
		Name:      inst.Name,
		UpdatedAt: s.now().UTC(),
		Levels:    o.Levels,
	})
	if err != nil {
		return fmt.Errorf("encoding levels: %w", err)
	}

	if err := s.client.Set(ctx, s.Key(inst.Target), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.Key(inst.Target), err)
	}

	s.logger.Debug("levels cached", zap.String("key", s.Key(inst.Target)), zap.Int("count", len(o.Levels)))
	return nil
}

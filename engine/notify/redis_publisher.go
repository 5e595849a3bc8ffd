package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher fans notifications out over Redis pub/sub and keeps a capped
// backlog so late subscribers can replay recent announcements.
type RedisPublisher struct {
	client        redis.UniversalClient
	channelPrefix string
	logPrefix     string
	scope         string
	maxEntries    int64
	ttl           time.Duration
}

// RedisOptions controls Redis publisher behavior.
type RedisOptions struct {
	ChannelPrefix string
	LogPrefix     string
	// Scope partitions channels, typically per signed-in user.
	Scope      string
	MaxEntries int64
	TTL        time.Duration
}

const (
	defaultChannelPrefix = "genvid:notifications:"
	defaultLogPrefix     = "genvid:notifications:log:"
	defaultScope         = "default"
	defaultMaxEntries    = 100
	defaultTTL           = 24 * time.Hour
)

func NewRedisPublisher(client redis.UniversalClient, opts *RedisOptions) (*RedisPublisher, error) {
	if client == nil {
		return nil, errors.New("notify: redis client is required")
	}
	cfg := applyRedisDefaults(opts)
	return &RedisPublisher{
		client:        client,
		channelPrefix: cfg.ChannelPrefix,
		logPrefix:     cfg.LogPrefix,
		scope:         cfg.Scope,
		maxEntries:    cfg.MaxEntries,
		ttl:           cfg.TTL,
	}, nil
}

// Publish appends n to the backlog and broadcasts it.
func (p *RedisPublisher) Publish(ctx context.Context, n Notification) error {
	if p == nil {
		return errors.New("notify: publisher is nil")
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: marshal notification: %w", err)
	}
	logKey := p.logKey()
	pipe := p.client.TxPipeline()
	pipe.LPush(ctx, logKey, payload)
	pipe.LTrim(ctx, logKey, 0, p.maxEntries-1)
	if p.ttl > 0 {
		pipe.Expire(ctx, logKey, p.ttl)
	}
	pipe.Publish(ctx, p.Channel(), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("notify: persist notification: %w", err)
	}
	return nil
}

// Replay returns up to limit stored notifications, oldest first.
func (p *RedisPublisher) Replay(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 || int64(limit) > p.maxEntries {
		limit = int(p.maxEntries)
	}
	values, err := p.client.LRange(ctx, p.logKey(), 0, int64(limit)-1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("notify: fetch backlog: %w", err)
	}
	result := make([]Notification, 0, len(values))
	for i := len(values) - 1; i >= 0; i-- {
		var n Notification
		if err := json.Unmarshal([]byte(values[i]), &n); err != nil {
			continue
		}
		result = append(result, n)
	}
	return result, nil
}

func (p *RedisPublisher) Channel() string {
	return p.channelPrefix + p.scope
}

func (p *RedisPublisher) logKey() string {
	return p.logPrefix + p.scope
}

func applyRedisDefaults(opts *RedisOptions) RedisOptions {
	if opts == nil {
		opts = &RedisOptions{}
	}
	cfg := RedisOptions{
		ChannelPrefix: chooseOrDefault(opts.ChannelPrefix, defaultChannelPrefix),
		LogPrefix:     chooseOrDefault(opts.LogPrefix, defaultLogPrefix),
		Scope:         chooseOrDefault(opts.Scope, defaultScope),
		MaxEntries:    opts.MaxEntries,
		TTL:           opts.TTL,
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMaxEntries
	}
	if cfg.TTL == 0 {
		cfg.TTL = defaultTTL
	}
	return cfg
}

func chooseOrDefault(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

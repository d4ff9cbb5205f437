// Package cache holds short lived channel statistics so that hot channel
// pages do not recount subscription edges on every view. Entries are whole
// snapshots per requester, so a cached view never mixes counts and
// subscription state read at different times.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/streamtab/internal/identity/domain"
	"github.com/aussiebroadwan/streamtab/pkg/idx"
	"github.com/redis/go-redis/v9"
)

// StatsCache stores ChannelStats by channel and requester. The zero
// requester is the anonymous view.
type StatsCache interface {
	// GetStats reports false when nothing is cached for the pair.
	GetStats(ctx context.Context, channelID, requester idx.ID) (domain.ChannelStats, bool, error)
	SetStats(ctx context.Context, channelID, requester idx.ID, stats domain.ChannelStats) error
}

const DefaultTTL = 30 * time.Second

type Options struct {
	Addr     string
	Username string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// Redis implements StatsCache on a redis server.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

var _ StatsCache = (*Redis)(nil)

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, opts Options) (*Redis, error) {
	const op = "cache.NewRedis"

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "identity:"
	}
	return &Redis{client: client, ttl: ttl, prefix: prefix}, nil
}

func (c *Redis) key(channelID, requester idx.ID) string {
	viewer := "anonymous"
	if !requester.IsZero() {
		viewer = requester.String()
	}
	return c.prefix + "channel-stats:" + channelID.String() + ":" + viewer
}

func (c *Redis) GetStats(ctx context.Context, channelID, requester idx.ID) (domain.ChannelStats, bool, error) {
	const op = "cache.GetStats"

	val, err := c.client.Get(ctx, c.key(channelID, requester)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ChannelStats{}, false, nil
	}
	if err != nil {
		return domain.ChannelStats{}, false, fmt.Errorf("%s: %w", op, err)
	}

	var stats domain.ChannelStats
	if err := json.Unmarshal(val, &stats); err != nil {
		return domain.ChannelStats{}, false, fmt.Errorf("%s: %w", op, err)
	}
	return stats, true, nil
}

func (c *Redis) SetStats(ctx context.Context, channelID, requester idx.ID, stats domain.ChannelStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(channelID, requester), data, c.ttl).Err()
}

func (c *Redis) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

func (c *Redis) Close() error { return c.client.Close() }

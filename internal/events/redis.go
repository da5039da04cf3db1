package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes events on Redis pub/sub. Each event goes to
// "<prefix>market:<id>" and to "<prefix>markets" for global listeners.
type RedisPublisher struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisPublisher(rdb redis.UniversalClient, prefix string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, prefix: prefix}
}

// MarketChannel is the channel carrying one market's events.
func (p *RedisPublisher) MarketChannel(marketID uint) string {
	return fmt.Sprintf("%smarket:%d", p.prefix, marketID)
}

// GlobalChannel carries every market's events.
func (p *RedisPublisher) GlobalChannel() string {
	return p.prefix + "markets"
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	pipe := p.rdb.Pipeline()
	pipe.Publish(ctx, p.MarketChannel(ev.MarketID), payload)
	pipe.Publish(ctx, p.GlobalChannel(), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: publish %s: %w", ev.Type, err)
	}
	return nil
}

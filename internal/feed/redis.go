package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisPublisher pushes settlement events onto a redis pub/sub channel for
// downstream aggregators. Publishing is best-effort: a redis outage logs
// and drops, it never blocks or fails a settlement.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(addr, password string, db int, channel string) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisPublisher{client: client, channel: channel}, nil
}

func (p *RedisPublisher) Publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		log.Warn().Err(err).Str("event_id", e.ID).Msg("marshal feed event")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		log.Warn().Err(err).Str("event_id", e.ID).Msg("publish feed event")
	}
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Multi fans one event out to several sinks.
type Multi []Sink

func (m Multi) Publish(e Event) {
	for _, s := range m {
		s.Publish(e)
	}
}

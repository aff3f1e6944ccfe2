package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/quantapay/gateway/internal/domain"
	"github.com/quantapay/gateway/internal/logging"
)

// RedisSink pushes lifecycle events onto a Redis list for downstream
// consumers. It is wired as a plain Emitter subscriber, so a Redis
// outage degrades to dropped notifications, never to a failed payment
// operation.
type RedisSink struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

func NewRedisSink(client *redis.Client, key string, logger *slog.Logger) *RedisSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSink{client: client, key: key, logger: logger}
}

// Notify satisfies the events.Subscriber shape.
func (s *RedisSink) Notify(ev domain.Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("redis sink: marshal event", "event_id", ev.ID, logging.Err(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.client.RPush(ctx, s.key, body).Err(); err != nil {
		s.logger.Error("redis sink: push event", "event_id", ev.ID, logging.Err(err))
	}
}

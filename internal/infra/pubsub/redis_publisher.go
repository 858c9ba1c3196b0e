package pubsub

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	redis "github.com/redis/go-redis/v9"

	"tourplanner/internal/domain/service"
)

// redisPublisher implements EventPublisher over Redis Pub/Sub. Each session
// gets its own channel so consumers can follow a single session.
type redisPublisher struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisPublisher connects to the Redis server at url.
func NewRedisPublisher(ctx context.Context, url, prefix string, logger *slog.Logger) (service.EventPublisher, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()

		return nil, errors.Wrap(err, "ping redis")
	}

	return newRedisPublisher(client, prefix, logger), nil
}

func newRedisPublisher(client *redis.Client, prefix string, logger *slog.Logger) *redisPublisher {
	if prefix == "" {
		prefix = "tour"
	}

	return &redisPublisher{client: client, prefix: prefix, logger: logger}
}

// Channel returns the Redis channel of a session.
func (p *redisPublisher) Channel(sessionID string) string {
	return p.prefix + ":" + sessionID
}

// PublishTourChanged publishes the event on the session channel
func (p *redisPublisher) PublishTourChanged(ctx context.Context, event *service.TourChangedEvent) error {
	data, _, err := encodeEvent(event)
	if err != nil {
		return err
	}

	receivers, err := p.client.Publish(ctx, p.Channel(event.SessionID), data).Result()
	if err != nil {
		return errors.WithStack(err)
	}

	p.logger.Debug("[RedisPubSub] Event published",
		slog.String("channel", p.Channel(event.SessionID)),
		slog.Uint64("version", event.Version),
		slog.Int64("receivers", receivers),
	)

	return nil
}

// Close closes the Redis client
func (p *redisPublisher) Close() error {
	return errors.WithStack(p.client.Close())
}

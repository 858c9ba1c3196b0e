package pubsub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourplanner/config"
	"tourplanner/internal/domain/service"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleEvent() *service.TourChangedEvent {
	return &service.TourChangedEvent{
		RequestID:    "req-1",
		SessionID:    "3f1c",
		Version:      7,
		Action:       "reorder",
		Phase:        "tour-computed",
		TotalSeconds: 720,
		Feasible:     true,
		OccurredAt:   time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC),
	}
}

func TestLocalHTTPPublisher_SendsPushMessage(t *testing.T) {
	var received PubSubPushMessage
	var requestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = r.Header.Get("X-Request-Id")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	publisher := NewLocalHTTPPublisher(server.URL, discard())
	require.NoError(t, publisher.PublishTourChanged(context.Background(), sampleEvent()))

	assert.Equal(t, "req-1", requestID)
	assert.Equal(t, "3f1c-7", received.Message.MessageID)
	assert.Equal(t, "3f1c", received.Message.OrderingKey)
	assert.Equal(t, "7", received.Message.Attributes["version"])
	assert.Equal(t, "reorder", received.Message.Attributes["action"])

	data, err := base64.StdEncoding.DecodeString(received.Message.Data)
	require.NoError(t, err)
	var event service.TourChangedEvent
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, *sampleEvent(), event)
}

func TestLocalHTTPPublisher_RejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewLocalHTTPPublisher(server.URL, discard()).PublishTourChanged(context.Background(), sampleEvent())
	assert.ErrorContains(t, err, "502")
}

type countingPublisher struct {
	published atomic.Int32
	closed    atomic.Bool
}

func (p *countingPublisher) PublishTourChanged(context.Context, *service.TourChangedEvent) error {
	p.published.Add(1)

	return nil
}

func (p *countingPublisher) Close() error {
	p.closed.Store(true)

	return nil
}

func TestThrottle(t *testing.T) {
	inner := &countingPublisher{}
	assert.Same(t, service.EventPublisher(inner), Throttle(inner, 0, 1))

	throttled := Throttle(inner, 1, 1)
	require.NoError(t, throttled.PublishTourChanged(context.Background(), sampleEvent()))

	// The bucket is empty; a short deadline cannot wait a full second.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, throttled.PublishTourChanged(ctx, sampleEvent()))
	assert.Equal(t, int32(1), inner.published.Load())

	require.NoError(t, throttled.Close())
	assert.True(t, inner.closed.Load())
}

func TestNewPublisher_Providers(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.PubSubConfig
		publish bool
		wantErr string
	}{
		{name: "missing section", cfg: nil, publish: true},
		{name: "noop", cfg: &config.PubSubConfig{Provider: "noop"}, publish: true},
		{name: "local", cfg: &config.PubSubConfig{Provider: "local", LocalEndpoint: "http://localhost:8085", RatePerSecond: 5}},
		{name: "local without endpoint", cfg: &config.PubSubConfig{Provider: "local"}, wantErr: "local endpoint is required"},
		{name: "google without project", cfg: &config.PubSubConfig{Provider: "google", TopicID: "t"}, wantErr: "project ID is required"},
		{name: "google without topic", cfg: &config.PubSubConfig{Provider: "google", ProjectID: "p"}, wantErr: "topic ID is required"},
		{name: "redis without url", cfg: &config.PubSubConfig{Provider: "redis"}, wantErr: "redis url is required"},
		{name: "redis bad url", cfg: &config.PubSubConfig{Provider: "redis", RedisURL: "://nope"}, wantErr: "parse redis url"},
		{name: "unknown", cfg: &config.PubSubConfig{Provider: "kafka"}, wantErr: "unknown pubsub provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publisher, err := newPublisher(context.Background(), tt.cfg, discard())
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)

				return
			}
			require.NoError(t, err)
			if tt.publish {
				assert.NoError(t, publisher.PublishTourChanged(context.Background(), &service.TourChangedEvent{SessionID: "s"}))
			}
			assert.NoError(t, publisher.Close())
		})
	}
}

func TestRedisPublisher_Channel(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	assert.Equal(t, "tour:abc", newRedisPublisher(client, "", discard()).Channel("abc"))
	assert.Equal(t, "events:abc", newRedisPublisher(client, "events", discard()).Channel("abc"))
}

func TestRedisPublisher_Publish(t *testing.T) {
	server := miniredis.RunT(t)
	ctx := context.Background()

	publisher, err := NewRedisPublisher(ctx, "redis://"+server.Addr(), "", discard())
	require.NoError(t, err)
	defer publisher.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()
	sub := client.Subscribe(ctx, "tour:3f1c")
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, publisher.PublishTourChanged(ctx, sampleEvent()))

	select {
	case msg := <-sub.Channel():
		var got service.TourChangedEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, uint64(7), got.Version)
		assert.Equal(t, "reorder", got.Action)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestNewRedisPublisher_Unreachable(t *testing.T) {
	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()

	_, err := NewRedisPublisher(context.Background(), "redis://"+addr, "", discard())
	assert.Error(t, err)
}

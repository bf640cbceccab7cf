// Package broker relays tracking events over Redis pub/sub so renderers on
// other hosts can follow placements.
package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/tryon/internal/tracking"
)

// ErrDisabled is returned by New when no address is configured.
var ErrDisabled = errors.New("broker disabled")

const (
	connectTimeout = 5 * time.Second
	latestTTL      = time.Minute
)

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Broker publishes events to a Redis channel. It implements tracking.Sink.
// The last position event is also kept under "<channel>:latest" so late
// subscribers can render immediately.
type Broker struct {
	client  *redis.Client
	channel string
	log     logrus.FieldLogger
}

// New connects to Redis and checks the connection with a ping.
func New(cfg Config, log logrus.FieldLogger) (*Broker, error) {
	if cfg.Addr == "" {
		return nil, ErrDisabled
	}
	if cfg.Channel == "" {
		return nil, errors.New("broker channel is required")
	}

	log = log.WithFields(logrus.Fields{"addr": cfg.Addr, "channel": cfg.Channel})
	log.Info("connecting to redis")

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info("connected to redis")

	return &Broker{client: client, channel: cfg.Channel, log: log}, nil
}

// Channel returns the pub/sub channel name.
func (b *Broker) Channel() string { return b.channel }

// LatestKey returns the key holding the last position envelope.
func (b *Broker) LatestKey() string { return b.channel + ":latest" }

// Publish implements tracking.Sink.
func (b *Broker) Publish(ctx context.Context, e tracking.Event) error {
	payload, err := tracking.MarshalEvent(e)
	if err != nil {
		return err
	}

	pipe := b.client.TxPipeline()
	pipe.Publish(ctx, b.channel, payload)
	switch e.(type) {
	case tracking.PositionEvent:
		pipe.Set(ctx, b.LatestKey(), payload, latestTTL)
	case tracking.LostEvent:
		pipe.Del(ctx, b.LatestKey())
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish %s event: %w", e.Type(), err)
	}
	return nil
}

// Latest returns the last published position, or nil if none is held.
func (b *Broker) Latest(ctx context.Context) (*tracking.PositionEvent, error) {
	payload, err := b.client.Get(ctx, b.LatestKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest: %w", err)
	}

	_, e, err := tracking.UnmarshalEvent(payload)
	if err != nil {
		return nil, err
	}
	pos, ok := e.(tracking.PositionEvent)
	if !ok {
		return nil, fmt.Errorf("latest holds %s event", e.Type())
	}
	return &pos, nil
}

// Subscribe decodes events from the channel until ctx is cancelled. The
// returned channel is closed when the subscription ends. Undecodable
// messages are logged and skipped.
func (b *Broker) Subscribe(ctx context.Context) (<-chan tracking.Event, error) {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	out := make(chan tracking.Event)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				_, e, err := tracking.UnmarshalEvent([]byte(msg.Payload))
				if err != nil {
					b.log.WithError(err).Warn("dropping undecodable event")
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the Redis connection.
func (b *Broker) Close() error {
	if err := b.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis: %w", err)
	}
	b.log.Info("redis connection closed")
	return nil
}

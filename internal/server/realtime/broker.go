package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/academyhub/internal/logging"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel shared by all instances.
const DefaultChannel = "academyhub:realtime"

// BrokerMessage carries one room frame between instances.
type BrokerMessage struct {
	Origin string          `json:"origin"`
	Room   string          `json:"room"`
	Frame  json.RawMessage `json:"frame"`
}

// Broker connects hubs running in different processes.
type Broker interface {
	Publish(ctx context.Context, m BrokerMessage) error
	// Subscribe calls fn for every message until ctx is done.
	Subscribe(ctx context.Context, fn func(BrokerMessage)) error
}

// RedisBroker is a Broker over Redis pub/sub.
type RedisBroker struct {
	client  *redis.Client
	channel string
	logger  logging.Logger
}

// NewRedisBroker connects to the Redis server at url
// (redis://[:password@]host:port/db).
func NewRedisBroker(url string, logger logging.Logger) (*RedisBroker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisBroker{
		client:  redis.NewClient(opts),
		channel: DefaultChannel,
		logger:  logger.With("module", "realtime-redis"),
	}, nil
}

func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

func (b *RedisBroker) Publish(ctx context.Context, m BrokerMessage) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, fn func(BrokerMessage)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			m, err := decodeBrokerMessage(msg.Payload)
			if err != nil {
				b.logger.Warn(ctx, "dropping malformed broker message", "error", err)
				continue
			}
			fn(m)
		}
	}
}

func decodeBrokerMessage(payload string) (BrokerMessage, error) {
	var m BrokerMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return m, err
	}
	if m.Room == "" || len(m.Frame) == 0 {
		return m, fmt.Errorf("incomplete broker message")
	}
	return m, nil
}

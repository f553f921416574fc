package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lalith-99/chatline/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the Redis pub/sub channel events travel on.
const DefaultChannel = "chatline:events"

// LocalBroker delivers events to this instance's hub only.
type LocalBroker struct {
	hub *Hub
}

func NewLocalBroker(hub *Hub) *LocalBroker {
	return &LocalBroker{hub: hub}
}

func (b *LocalBroker) Publish(_ context.Context, ev models.Event) error {
	b.hub.Deliver(ev)
	return nil
}

// RedisBroker fans events out through Redis pub/sub so that every instance
// delivers to the connections it holds. Publish does not touch the local
// hub directly; the instance receives its own event back from Redis.
type RedisBroker struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  *zap.Logger
}

func NewRedisBroker(client *redis.Client, hub *Hub, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{
		client:  client,
		channel: DefaultChannel,
		hub:     hub,
		logger:  logger,
	}
}

func (b *RedisBroker) Publish(ctx context.Context, ev models.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Run subscribes to the channel and hands every event to the hub until ctx
// is done.
func (b *RedisBroker) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("subscribed to events", zap.String("channel", b.channel))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var ev models.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warn("dropping malformed event", zap.Error(err))
				continue
			}
			b.hub.Deliver(ev)
		}
	}
}

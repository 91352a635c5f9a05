package live

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"vizintel/api/internal/logging"
)

// Broker routes events to the hubs that hold the room's connections.
type Broker interface {
	Publish(ctx context.Context, room string, event Event) error
	// Run blocks until ctx is cancelled.
	Run(ctx context.Context) error
}

// LocalBroker delivers straight into a single in-process hub.
type LocalBroker struct {
	hub *Hub
}

func NewLocalBroker(hub *Hub) *LocalBroker {
	return &LocalBroker{hub: hub}
}

func (b *LocalBroker) Publish(_ context.Context, room string, event Event) error {
	frame, err := encode(event)
	if err != nil {
		return fmt.Errorf("encode live event: %w", err)
	}
	b.hub.Deliver(room, frame)
	return nil
}

func (b *LocalBroker) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

const channelPrefix = "vizintel:live:"

func channelFor(room string) string {
	return channelPrefix + room
}

func roomFromChannel(channel string) (string, bool) {
	room, ok := strings.CutPrefix(channel, channelPrefix)
	return room, ok && room != ""
}

// RedisBroker fans events out over Redis pub/sub so every API instance
// delivers to its own connected clients.
type RedisBroker struct {
	client redis.UniversalClient
	hub    *Hub
	log    logging.Logger
}

func NewRedisBroker(client redis.UniversalClient, hub *Hub, log logging.Logger) *RedisBroker {
	return &RedisBroker{client: client, hub: hub, log: log.With("module", "live.redis")}
}

func (b *RedisBroker) Publish(ctx context.Context, room string, event Event) error {
	frame, err := encode(event)
	if err != nil {
		return fmt.Errorf("encode live event: %w", err)
	}
	if err := b.client.Publish(ctx, channelFor(room), frame).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBroker) Run(ctx context.Context) error {
	sub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("redis subscribe: %w", err)
	}
	b.log.Info(ctx, "live broker subscribed", "pattern", channelPrefix+"*")

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			room, ok := roomFromChannel(msg.Channel)
			if !ok {
				continue
			}
			b.hub.Deliver(room, []byte(msg.Payload))
		}
	}
}

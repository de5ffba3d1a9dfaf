package realtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Message is a parsed Pub/Sub delivery, ready to hand to the
// WebSocket manager for broadcast.
type Message struct {
	ItemID  int64
	Payload []byte
}

// Subscriber wraps the Redis Pub/Sub connection used to receive
// PriceUpdate deltas published by the projection consumer.
type Subscriber struct {
	client *redis.Client
	pubsub *redis.PubSub
	log    *slog.Logger
}

// NewSubscriber builds a Subscriber over an existing Redis client.
func NewSubscriber(client *redis.Client, log *slog.Logger) *Subscriber {
	if log == nil {
		log = slog.Default()
	}
	return &Subscriber{client: client, log: log}
}

// SubscribeAll subscribes to every item's update channel via pattern
// matching, so a single broadcast process can serve every item.
func (s *Subscriber) SubscribeAll(ctx context.Context) {
	s.pubsub = s.client.PSubscribe(ctx, channelPrefix+"*")
}

// Listen blocks, forwarding parsed messages to out until ctx is
// cancelled. Run it in its own goroutine.
func (s *Subscriber) Listen(ctx context.Context, out chan<- *Message) error {
	if s.pubsub == nil {
		return fmt.Errorf("not subscribed to any channel")
	}
	ch := s.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			itemID, err := itemIDFromChannel(msg.Channel)
			if err != nil {
				s.log.Warn("dropping update on unparseable channel", "channel", msg.Channel, "error", err)
				continue
			}
			out <- &Message{ItemID: itemID, Payload: []byte(msg.Payload)}
		}
	}
}

func itemIDFromChannel(channel string) (int64, error) {
	if len(channel) <= len(channelPrefix) {
		return 0, fmt.Errorf("channel %q too short", channel)
	}
	var id int64
	if _, err := fmt.Sscanf(channel[len(channelPrefix):], "%d", &id); err != nil {
		return 0, err
	}
	return id, nil
}

// Close releases the subscription. It does not close the underlying
// client, which callers may share with other components.
func (s *Subscriber) Close() error {
	if s.pubsub != nil {
		return s.pubsub.Close()
	}
	return nil
}

// Pump connects a Subscriber to a Manager: every delivered update is
// forwarded to the manager's broadcast channel until ctx is cancelled.
// Run it in its own goroutine.
func Pump(ctx context.Context, sub *Subscriber, mgr *Manager) error {
	msgs := make(chan *Message, 256)
	go func() {
		for msg := range msgs {
			mgr.Broadcast(msg.ItemID, msg.Payload)
		}
	}()
	defer close(msgs)
	return sub.Listen(ctx, msgs)
}

// Package bus partitions events by aggregate_id onto a NATS JetStream
// stream and delivers them with at-least-once semantics through one
// durable consumer shared by every projector instance. Messages are
// spread across instances one at a time, not by partition, so with more
// than one instance a partition is not owned by a single consumer.
// Grounded on the bidding service's JetStream
// stream setup and the archival worker's NATS consumer, generalized
// from a single core-NATS subscription into a sharded, durable
// JetStream consumer group.
package bus

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/bloomingFlower/auction-service/internal/models"
)

const (
	streamName    = "AUCTION_EVENTS"
	subjectPrefix = "events"
	// AggregateKeyHeader carries the 8-byte big-endian encoding of the
	// aggregate id, so a consumer never needs to parse the event body to
	// learn the partition key.
	AggregateKeyHeader = "Aggregate-Key"
	// ConsumerGroup names the one durable JetStream consumer all
	// projector instances share; adding instances spreads individual
	// messages across them, not whole shards.
	ConsumerGroup = "auction-projection"
)

// Publisher publishes an accepted event to the bus. eventstore.Store
// depends on this narrow interface, not on *Bus, so it can be faked in
// tests.
type Publisher interface {
	Publish(ctx context.Context, event *models.Event) error
}

// Bus wraps a JetStream context bound to the AUCTION_EVENTS stream.
type Bus struct {
	js        jetstream.JetStream
	numShards int
}

// New connects to natsURL, ensures the AUCTION_EVENTS stream exists with
// numShards subjects (events.0 .. events.N-1), and returns a Bus ready to
// publish and to build consumers.
func New(ctx context.Context, natsURL string, numShards int) (*Bus, *nats.Conn, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("create jetstream context: %w", err)
	}

	subjects := make([]string, numShards)
	for i := 0; i < numShards; i++ {
		subjects[i] = fmt.Sprintf("%s.%d", subjectPrefix, i)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        streamName,
		Description: "Auction command events, partitioned by aggregate_id",
		Subjects:    subjects,
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Replicas:    1,
	})
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("create/update stream: %w", err)
	}

	return &Bus{js: js, numShards: numShards}, conn, nil
}

// shardFor returns the fixed shard index for aggregateID, guaranteeing
// that every event for a given item lands on the same JetStream subject.
// Delivery to the handler is not ordered across projector instances or
// after a nak.
func shardFor(aggregateID int64, numShards int) int {
	h := fnv.New32a()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(aggregateID))
	h.Write(buf[:])
	return int(h.Sum32() % uint32(numShards))
}

// Publish sends event to the shard subject derived from its
// AggregateID, waiting for the JetStream broker's ack before returning.
func (b *Bus) Publish(ctx context.Context, event *models.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	var keyBuf [8]byte
	binary.BigEndian.PutUint64(keyBuf[:], uint64(event.AggregateID))

	subject := fmt.Sprintf("%s.%d", subjectPrefix, shardFor(event.AggregateID, b.numShards))
	msg := nats.NewMsg(subject)
	msg.Data = body
	msg.Header.Set(AggregateKeyHeader, string(keyBuf[:]))

	if _, err := b.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Handler processes one delivered event. Returning an error means the
// message is not acked and JetStream will redeliver it.
type Handler func(ctx context.Context, event *models.Event) error

// Consume creates (or reattaches to) the durable auction-projection
// consumer group and dispatches every delivered message to handle,
// acking only on success. It blocks until ctx is cancelled.
func (b *Bus) Consume(ctx context.Context, handle Handler) error {
	cons, err := b.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		Durable:       ConsumerGroup,
		FilterSubject: subjectPrefix + ".>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    -1,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	consCtx, err := cons.Consume(func(msg jetstream.Msg) {
		var event models.Event
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			// Malformed payload: nack and let it be redelivered/inspected
			// rather than silently dropping it.
			_ = msg.Nak()
			return
		}

		if err := handle(ctx, &event); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("start consume: %w", err)
	}
	defer consCtx.Stop()

	<-ctx.Done()
	return ctx.Err()
}

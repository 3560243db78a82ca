package kafka

import (
	"context"
	"log"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"

	"clob/infra/wire"
)

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderHandler applies one decoded order event. A returned error stops the
// consumer without committing, so the event is redelivered on restart.
type OrderHandler func(ctx context.Context, ev *wire.OrderEvent) error

// Consumer ingests order events from a topic.
type Consumer struct {
	reader  MessageReader
	handler OrderHandler
}

func NewConsumer(brokers []string, topic, groupID string, h OrderHandler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		handler: h,
	}
}

func NewConsumerWithReader(r MessageReader, h OrderHandler) *Consumer {
	return &Consumer{reader: r, handler: h}
}

// Run consumes until ctx is done or the handler fails.
func (c *Consumer) Run(ctx context.Context) error {
	log.Println("[kafka-consumer] started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "kafka consumer: fetch")
		}

		var ev wire.OrderEvent
		if err := ev.Unmarshal(msg.Value); err != nil {
			log.Printf("[kafka-consumer] skipping malformed event at %d/%d: %v", msg.Partition, msg.Offset, err)
		} else if err := c.handler(ctx, &ev); err != nil {
			return errors.Wrapf(err, "kafka consumer: apply offset %d", msg.Offset)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "kafka consumer: commit")
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

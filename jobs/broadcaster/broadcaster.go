// Package broadcaster drains the trade outbox into Kafka.
package broadcaster

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"clob/infra/metrics"
	exitwal "clob/infra/wal/exit"
)

const (
	stream = "trades"

	// EventIDHeader carries a deterministic id consumers dedupe on.
	EventIDHeader = "event-id"
)

type Broadcaster struct {
	exitWAL  *exitwal.ExitWAL
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
	metrics  *metrics.Metrics
}

type Options struct {
	Topic    string
	Interval time.Duration
	Metrics  *metrics.Metrics
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

// NewSyncProducer dials brokers with acks from all in-sync replicas.
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "broadcaster: dial kafka")
	}
	return p, nil
}

func New(exitWAL *exitwal.ExitWAL, producer sarama.SyncProducer, opts Options) *Broadcaster {
	if opts.Interval <= 0 {
		opts.Interval = 250 * time.Millisecond
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewUnregistered()
	}
	return &Broadcaster{
		exitWAL:  exitWAL,
		producer: producer,
		topic:    opts.Topic,
		interval: opts.Interval,
		metrics:  opts.Metrics,
	}
}

// ------------------------------------------------
// START LOOP
// ------------------------------------------------

// Start runs the publish loop until ctx is done. The returned channel is
// closed once the loop has exited.
func (b *Broadcaster) Start(ctx context.Context) <-chan struct{} {
	log.Println("[broadcaster] started")
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Println("[broadcaster] stopped")
				return

			case <-ticker.C:
				if _, err := b.replayOnce(); err != nil {
					log.Printf("[broadcaster] pass failed: %v", err)
				}
			}
		}
	}()
	return done
}

// ------------------------------------------------
// REPLAY LOGIC (CRITICAL)
// ------------------------------------------------

// replayOnce publishes every pending trade once and reports how many were
// acknowledged. A failed send blocks the rest of that symbol's trades
// until the next pass, so per-symbol order on the topic is kept.
func (b *Broadcaster) replayOnce() (int, error) {
	blocked := make(map[string]bool)
	acked := 0

	err := b.exitWAL.ScanPending(func(k exitwal.Key, rec exitwal.ExitRecord) error {
		if blocked[k.Symbol] {
			return nil
		}

		// 1. Mark SENT before the attempt; a crash here means resend.
		if err := b.exitWAL.UpdateState(k, exitwal.StateSent, rec.Retries); err != nil {
			return err
		}

		// 2. Publish
		_, _, err := b.producer.SendMessage(b.message(k, rec.Payload))
		if err != nil {
			b.metrics.PublishErrors.WithLabelValues(stream).Inc()
			log.Printf("[broadcaster] %s/%d attempt %d failed: %v", k.Symbol, k.Seq, rec.Retries+1, err)
			blocked[k.Symbol] = true
			return b.exitWAL.UpdateState(k, exitwal.StateFailed, rec.Retries+1)
		}

		// 3. Mark ACKED
		b.metrics.Published.WithLabelValues(stream).Inc()
		acked++
		return b.exitWAL.UpdateState(k, exitwal.StateAcked, rec.Retries)
	})
	if err != nil {
		return acked, errors.Wrap(err, "broadcaster: scan outbox")
	}

	if acked > 0 {
		if _, err := b.exitWAL.PurgeAcked(); err != nil {
			return acked, errors.Wrap(err, "broadcaster: purge")
		}
	}
	return acked, nil
}

func (b *Broadcaster) message(k exitwal.Key, payload []byte) *sarama.ProducerMessage {
	return &sarama.ProducerMessage{
		Topic: b.topic,
		Key:   sarama.StringEncoder(k.Symbol),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{{
			Key:   []byte(EventIDHeader),
			Value: []byte(EventID(k).String()),
		}},
	}
}

// EventID is stable across resends of the same trade.
func EventID(k exitwal.Key) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%d", k.Symbol, k.Seq)))
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}

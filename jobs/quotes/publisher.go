// Package quotes publishes top-of-book snapshots taken off the engine's
// hand-off rings.
package quotes

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/segmentio/kafka-go"

	"clob/infra/memory"
	"clob/infra/metrics"
	"clob/infra/wire"
)

const stream = "quotes"

// Sink is where coalesced quotes go.
type Sink interface {
	SendBatch(ctx context.Context, msgs []kafka.Message) error
}

// Publisher is the single consumer of every registered ring.
type Publisher struct {
	rings    map[string]*memory.Ring[wire.Quote]
	sink     Sink
	interval time.Duration
	metrics  *metrics.Metrics
}

func NewPublisher(sink Sink, interval time.Duration, m *metrics.Metrics) *Publisher {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	if m == nil {
		m = metrics.NewUnregistered()
	}
	return &Publisher{
		rings:    make(map[string]*memory.Ring[wire.Quote]),
		sink:     sink,
		interval: interval,
		metrics:  m,
	}
}

// Register must be called before Start.
func (p *Publisher) Register(symbol string, r *memory.Ring[wire.Quote]) {
	p.rings[symbol] = r
}

func (p *Publisher) Start(ctx context.Context) <-chan struct{} {
	log.Println("[quotes] started")
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Println("[quotes] stopped")
				return
			case <-ticker.C:
				p.flushOnce(ctx)
			}
		}
	}()
	return done
}

// flushOnce drains every ring and sends only the newest quote per symbol.
// Quotes are superseded by the next one, so a failed batch is dropped.
func (p *Publisher) flushOnce(ctx context.Context) int {
	latest := make(map[string]wire.Quote, len(p.rings))
	for symbol, r := range p.rings {
		for {
			q, ok := r.Dequeue()
			if !ok {
				break
			}
			latest[symbol] = q
		}
	}
	if len(latest) == 0 {
		return 0
	}

	msgs := make([]kafka.Message, 0, len(latest))
	for symbol, q := range latest {
		msgs = append(msgs, kafka.Message{Key: []byte(symbol), Value: q.Marshal()})
	}
	sort.Slice(msgs, func(i, j int) bool { return string(msgs[i].Key) < string(msgs[j].Key) })

	if err := p.sink.SendBatch(ctx, msgs); err != nil {
		p.metrics.PublishErrors.WithLabelValues(stream).Inc()
		log.Printf("[quotes] dropped %d quotes: %v", len(msgs), err)
		return 0
	}
	p.metrics.Published.WithLabelValues(stream).Add(float64(len(msgs)))
	return len(msgs)
}

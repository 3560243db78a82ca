package quotes

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"clob/infra/memory"
	"clob/infra/metrics"
	"clob/infra/wire"
)

type fakeSink struct {
	batches [][]kafka.Message
	err     error
}

func (s *fakeSink) SendBatch(_ context.Context, msgs []kafka.Message) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, msgs)
	return nil
}

func ring(t *testing.T, quotes ...wire.Quote) *memory.Ring[wire.Quote] {
	t.Helper()
	r, err := memory.NewRing[wire.Quote](8)
	require.NoError(t, err)
	for _, q := range quotes {
		require.True(t, r.Enqueue(q))
	}
	return r
}

func TestFlushCoalescesPerSymbol(t *testing.T) {
	sink := &fakeSink{}
	m := metrics.NewUnregistered()
	p := NewPublisher(sink, 0, m)
	p.Register("ETH", ring(t, wire.Quote{Symbol: "ETH", Seq: 1}))
	p.Register("BTC", ring(t,
		wire.Quote{Symbol: "BTC", Seq: 1, HasBid: true, BidPrice: 100, BidQty: 1},
		wire.Quote{Symbol: "BTC", Seq: 2, HasBid: true, BidPrice: 101, BidQty: 3},
	))
	p.Register("SOL", ring(t))

	require.Equal(t, 2, p.flushOnce(context.Background()))
	require.Len(t, sink.batches, 1)
	batch := sink.batches[0]
	require.Equal(t, "BTC", string(batch[0].Key))
	require.Equal(t, "ETH", string(batch[1].Key))

	var q wire.Quote
	require.NoError(t, q.Unmarshal(batch[0].Value))
	require.Equal(t, uint64(2), q.Seq)
	require.Equal(t, int64(101), q.BidPrice)
	require.Equal(t, 2.0, testutil.ToFloat64(m.Published.WithLabelValues("quotes")))

	// rings are drained
	require.Zero(t, p.flushOnce(context.Background()))
	require.Len(t, sink.batches, 1)
}

func TestFlushDropsOnSinkError(t *testing.T) {
	sink := &fakeSink{err: errors.New("broker down")}
	m := metrics.NewUnregistered()
	p := NewPublisher(sink, 0, m)
	r := ring(t, wire.Quote{Symbol: "BTC", Seq: 1})
	p.Register("BTC", r)

	require.Zero(t, p.flushOnce(context.Background()))
	require.Zero(t, r.Len())
	require.Equal(t, 1.0, testutil.ToFloat64(m.PublishErrors.WithLabelValues("quotes")))
}

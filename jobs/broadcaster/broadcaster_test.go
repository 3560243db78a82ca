package broadcaster

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"clob/infra/metrics"
	exitwal "clob/infra/wal/exit"
)

func setup(t *testing.T) (*exitwal.ExitWAL, *mocks.SyncProducer, *Broadcaster, *metrics.Metrics) {
	t.Helper()
	w, err := exitwal.OpenWithOptions("outbox", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	p := mocks.NewSyncProducer(t, cfg)
	m := metrics.NewUnregistered()
	b := New(w, p, Options{Topic: "trades", Metrics: m})
	t.Cleanup(func() { require.NoError(t, b.Close()) })
	return w, p, b, m
}

func keyChecker(want string) mocks.MessageChecker {
	return func(msg *sarama.ProducerMessage) error {
		k, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(k) != want {
			return errors.Newf("key %q, want %q", k, want)
		}
		return nil
	}
}

func TestReplayOncePublishesAndPurges(t *testing.T) {
	w, p, b, m := setup(t)
	require.NoError(t, w.PutNew("BTC", []exitwal.Pending{{Seq: 1, Payload: []byte("t1")}, {Seq: 2, Payload: []byte("t2")}}))

	p.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(keyChecker("BTC"))
	p.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(keyChecker("BTC"))

	n, err := b.replayOnce()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = w.Get(exitwal.Key{Symbol: "BTC", Seq: 1})
	require.True(t, errors.Is(err, pebble.ErrNotFound), "acked entries are purged")
	require.Equal(t, 2.0, testutil.ToFloat64(m.Published.WithLabelValues("trades")))
}

func TestFailedSendBlocksSymbolAndRetries(t *testing.T) {
	w, p, b, m := setup(t)
	require.NoError(t, w.PutNew("BTC", []exitwal.Pending{{Seq: 1, Payload: []byte("b1")}, {Seq: 2, Payload: []byte("b2")}}))
	require.NoError(t, w.PutNew("ETH", []exitwal.Pending{{Seq: 1, Payload: []byte("e1")}}))

	// BTC/1 fails so BTC/2 waits; ETH is independent
	p.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)
	p.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(keyChecker("ETH"))

	n, err := b.replayOnce()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	rec, err := w.Get(exitwal.Key{Symbol: "BTC", Seq: 1})
	require.NoError(t, err)
	require.Equal(t, exitwal.StateFailed, rec.State)
	require.Equal(t, uint32(1), rec.Retries)

	rec, err = w.Get(exitwal.Key{Symbol: "BTC", Seq: 2})
	require.NoError(t, err)
	require.Equal(t, exitwal.StateNew, rec.State)
	require.Equal(t, 1.0, testutil.ToFloat64(m.PublishErrors.WithLabelValues("trades")))

	// next pass drains BTC in order
	p.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(keyChecker("BTC"))
	p.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(keyChecker("BTC"))
	n, err = b.replayOnce()
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestSentEntriesAreResent(t *testing.T) {
	w, p, b, _ := setup(t)
	require.NoError(t, w.PutNew("BTC", []exitwal.Pending{{Seq: 7, Payload: []byte("t7")}}))
	// crash after marking SENT, before the ack
	require.NoError(t, w.UpdateState(exitwal.Key{Symbol: "BTC", Seq: 7}, exitwal.StateSent, 0))

	p.ExpectSendMessageAndSucceed()
	n, err := b.replayOnce()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestEventIDIsDeterministic(t *testing.T) {
	a := EventID(exitwal.Key{Symbol: "BTC", Seq: 1})
	require.Equal(t, a, EventID(exitwal.Key{Symbol: "BTC", Seq: 1}))
	require.NotEqual(t, a, EventID(exitwal.Key{Symbol: "BTC", Seq: 2}))
	require.NotEqual(t, a, EventID(exitwal.Key{Symbol: "ETH", Seq: 1}))
	require.Equal(t, 5, int(a.Version()))
}

func TestMessageCarriesEventID(t *testing.T) {
	_, _, b, _ := setup(t)
	k := exitwal.Key{Symbol: "BTC", Seq: 3}
	msg := b.message(k, []byte("x"))
	require.Equal(t, "trades", msg.Topic)
	require.Len(t, msg.Headers, 1)
	require.Equal(t, EventIDHeader, string(msg.Headers[0].Key))
	require.Equal(t, EventID(k).String(), string(msg.Headers[0].Value))
}

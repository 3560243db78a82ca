package exit

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// -------------------- State --------------------

type ExitState uint8

const (
	StateNew ExitState = iota
	StateSent
	StateAcked
	StateFailed
)

func (s ExitState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

// Key identifies one outbox entry: a trade of Symbol numbered Seq.
type Key struct {
	Symbol string
	Seq    uint64
}

// ExitRecord is the delivery state plus the encoded trade.
type ExitRecord struct {
	State       ExitState
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// Pending is a trade waiting to be written to the outbox.
type Pending struct {
	Seq     uint64
	Payload []byte
}

const recordHeader = 1 + 4 + 8

// binary encoding: [state:1][retries:4][lastAttempt:8][payload]
func encodeRecord(r ExitRecord) []byte {
	buf := make([]byte, recordHeader+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[recordHeader:], r.Payload)
	return buf
}

func decodeRecord(b []byte) (ExitRecord, error) {
	if len(b) < recordHeader {
		return ExitRecord{}, errors.Newf("exit wal: record of %d bytes", len(b))
	}
	return ExitRecord{
		State:       ExitState(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     append([]byte(nil), b[recordHeader:]...),
	}, nil
}

// -------------------- WAL --------------------

// ExitWAL is the trade outbox. Trades are written once by the instrument
// that produced them and then driven through NEW -> SENT -> ACKED by the
// broadcaster. Safe for concurrent use.
type ExitWAL struct {
	db *pebble.DB
}

func Open(dir string) (*ExitWAL, error) {
	return OpenWithOptions(dir, &pebble.Options{})
}

// OpenWithOptions lets tests pass an in-memory vfs.
func OpenWithOptions(dir string, opts *pebble.Options) (*ExitWAL, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "exit wal: open %s", dir)
	}
	return &ExitWAL{db: db}, nil
}

func (w *ExitWAL) Close() error {
	return w.db.Close()
}

// -------------------- API --------------------

// PutNew stores trades of symbol as NEW in one synced batch. Keys that
// already exist, and trades at or below the symbol's delivered watermark,
// are left alone, so replaying the journal is idempotent.
func (w *ExitWAL) PutNew(symbol string, trades []Pending) error {
	if len(trades) == 0 {
		return nil
	}
	delivered, err := w.Delivered(symbol)
	if err != nil {
		return err
	}
	b := w.db.NewBatch()
	defer b.Close()

	for _, t := range trades {
		if t.Seq <= delivered {
			continue
		}
		key := keyFor(Key{Symbol: symbol, Seq: t.Seq})
		_, closer, err := w.db.Get(key)
		if err == nil {
			_ = closer.Close()
			continue
		}
		if !errors.Is(err, pebble.ErrNotFound) {
			return errors.Wrapf(err, "exit wal: probe %s", key)
		}
		rec := ExitRecord{State: StateNew, Payload: t.Payload}
		if err := b.Set(key, encodeRecord(rec), nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

// UpdateState records a delivery attempt, keeping the payload.
func (w *ExitWAL) UpdateState(k Key, state ExitState, retries uint32) error {
	rec, err := w.Get(k)
	if err != nil {
		return err
	}
	rec.State = state
	rec.Retries = retries
	rec.LastAttempt = time.Now().UnixNano()
	return w.db.Set(keyFor(k), encodeRecord(rec), pebble.Sync)
}

// Delivered returns the highest trade seq of symbol whose ACKED entry was
// purged. Zero if nothing was purged yet.
func (w *ExitWAL) Delivered(symbol string) (uint64, error) {
	val, closer, err := w.db.Get(watermarkKey(symbol))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "exit wal: watermark %s", symbol)
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, errors.Newf("exit wal: watermark %s of %d bytes", symbol, len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

// Get returns the current record for a trade.
func (w *ExitWAL) Get(k Key) (ExitRecord, error) {
	val, closer, err := w.db.Get(keyFor(k))
	if err != nil {
		return ExitRecord{}, err
	}
	defer closer.Close()

	return decodeRecord(val)
}

// -------------------- Scan --------------------

// ScanPending visits every entry not yet ACKED, in symbol then sequence
// order, until fn returns an error.
func (w *ExitWAL) ScanPending(fn func(Key, ExitRecord) error) error {
	return w.scan(func(k Key, rec ExitRecord) error {
		if rec.State == StateAcked {
			return nil
		}
		return fn(k, rec)
	})
}

// PurgeAcked deletes ACKED entries and reports how many went. The same
// batch raises each symbol's delivered watermark so a later PutNew of a
// purged trade is ignored.
func (w *ExitWAL) PurgeAcked() (int, error) {
	b := w.db.NewBatch()
	defer b.Close()

	n := 0
	highest := make(map[string]uint64)
	err := w.scan(func(k Key, rec ExitRecord) error {
		if rec.State != StateAcked {
			return nil
		}
		n++
		if k.Seq > highest[k.Symbol] {
			highest[k.Symbol] = k.Seq
		}
		return b.Delete(keyFor(k), nil)
	})
	if err != nil || n == 0 {
		return 0, err
	}

	for symbol, seq := range highest {
		prev, err := w.Delivered(symbol)
		if err != nil {
			return 0, err
		}
		if seq <= prev {
			continue
		}
		var val [8]byte
		binary.BigEndian.PutUint64(val[:], seq)
		if err := b.Set(watermarkKey(symbol), val[:], nil); err != nil {
			return 0, err
		}
	}
	return n, b.Commit(pebble.Sync)
}

func (w *ExitWAL) scan(fn func(Key, ExitRecord) error) error {
	iter, err := w.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		k, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		if err := fn(k, rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// -------------------- Helpers --------------------

const (
	keyPrefix       = "trade/"
	watermarkPrefix = "acked/"
)

func watermarkKey(symbol string) []byte {
	return []byte(watermarkPrefix + symbol)
}

func keyFor(k Key) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d", keyPrefix, k.Symbol, k.Seq))
}

func parseKey(b []byte) (Key, error) {
	rest := bytes.TrimPrefix(b, []byte(keyPrefix))
	i := bytes.LastIndexByte(rest, '/')
	if i < 0 {
		return Key{}, errors.Newf("exit wal: bad key %q", b)
	}
	seq, err := strconv.ParseUint(string(rest[i+1:]), 10, 64)
	if err != nil {
		return Key{}, errors.Wrapf(err, "exit wal: bad key %q", b)
	}
	return Key{Symbol: string(rest[:i]), Seq: seq}, nil
}

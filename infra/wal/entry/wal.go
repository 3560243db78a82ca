package entry

import (
	"encoding/binary"
	"os"

	"github.com/cockroachdb/errors"
)

type Config struct {
	Dir         string
	SegmentSize int64
	// SyncEveryAppend fsyncs after each record. Off, the caller decides
	// when to Sync.
	SyncEveryAppend bool
}

type WAL struct {
	dir      string
	segSize  int64
	syncEach bool
	current  *segment
	segIndex int
}

// Open appends to the newest existing segment, or creates the first one.
func Open(cfg Config) (*WAL, error) {
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = 64 << 20
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "entry wal: create %s", cfg.Dir)
	}

	idx, err := lastSegmentIndex(cfg.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "entry wal: list segments")
	}
	if err := truncateTorn(segmentPath(cfg.Dir, idx)); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "entry wal: recover tail")
	}
	seg, err := openSegment(cfg.Dir, idx)
	if err != nil {
		return nil, errors.Wrap(err, "entry wal: open segment")
	}

	return &WAL{
		dir:      cfg.Dir,
		segSize:  cfg.SegmentSize,
		syncEach: cfg.SyncEveryAppend,
		current:  seg,
		segIndex: idx,
	}, nil
}

func (w *WAL) Append(r *Record) error {
	if len(r.Data) > MaxPayload {
		return errors.Newf("entry wal: seq %d payload of %d bytes exceeds %d", r.Seq, len(r.Data), MaxPayload)
	}
	payloadLen := uint32(len(r.Data))

	buf := make([]byte, headerSize+payloadLen+4)
	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], r.Data)

	crc := CRC32(buf[:headerSize+payloadLen])
	binary.BigEndian.PutUint32(buf[headerSize+payloadLen:], crc)

	if err := w.current.append(buf); err != nil {
		return errors.Wrapf(err, "entry wal: append seq %d", r.Seq)
	}
	if w.syncEach {
		if err := w.current.sync(); err != nil {
			return errors.Wrap(err, "entry wal: sync")
		}
	}

	if w.current.offset >= w.segSize {
		return w.rotate()
	}
	return nil
}

func (w *WAL) Sync() error {
	return w.current.sync()
}

func (w *WAL) Close() error {
	if err := w.current.sync(); err != nil {
		_ = w.current.close()
		return err
	}
	return w.current.close()
}

func (w *WAL) rotate() error {
	if err := w.current.sync(); err != nil {
		return errors.Wrap(err, "entry wal: sync before rotate")
	}
	_ = w.current.close()
	w.segIndex++

	seg, err := openSegment(w.dir, w.segIndex)
	if err != nil {
		return errors.Wrap(err, "entry wal: rotate")
	}
	w.current = seg
	return nil
}

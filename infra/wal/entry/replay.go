package entry

import (
	"encoding/binary"
	"io"
	"log"
	"os"

	"github.com/cockroachdb/errors"
)

var ErrCorrupt = errors.New("entry wal: corrupt frame")

type ReplayHandler func(*Record) error

// Replay feeds every record in dir to fn in write order and returns the
// last sequence seen. A torn frame at the very end of the newest segment
// (crash mid-append) ends the replay; anywhere else it is an error.
func Replay(dir string, fn ReplayHandler) (lastSeq uint64, err error) {
	files, err := listSegments(dir)
	if err != nil {
		return 0, err
	}

	for i, path := range files {
		last := i == len(files)-1
		lastSeq, err = replaySegment(path, last, lastSeq, fn)
		if err != nil {
			return lastSeq, err
		}
	}
	return lastSeq, nil
}

func replaySegment(path string, last bool, lastSeq uint64, fn ReplayHandler) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return lastSeq, err
	}
	defer f.Close()

	for {
		rec, err := readRecord(f)
		if err == io.EOF {
			return lastSeq, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) && last {
			log.Printf("[entry-wal] torn tail in %s after seq %d, ignoring", path, lastSeq)
			return lastSeq, nil
		}
		if err != nil {
			return lastSeq, errors.Wrapf(err, "entry wal: %s", path)
		}

		if rec.Seq <= lastSeq {
			return lastSeq, errors.Newf("entry wal: non-monotonic seq %d after %d", rec.Seq, lastSeq)
		}
		lastSeq = rec.Seq

		if err := fn(rec); err != nil {
			return lastSeq, err
		}
	}
}

func readRecord(r io.Reader) (*Record, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	t := RecordType(header[0])
	seq := binary.BigEndian.Uint64(header[1:9])
	ts := binary.BigEndian.Uint64(header[9:17])
	l := int(binary.BigEndian.Uint32(header[17:21]))
	if l > MaxPayload {
		return nil, errors.Wrapf(ErrCorrupt, "seq %d: payload length %d", seq, l)
	}

	data := make([]byte, l+4)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	payload := data[:l]
	crc := binary.BigEndian.Uint32(data[l:])

	if !CRC32Valid(append(header, payload...), crc) {
		return nil, ErrCorrupt
	}

	return &Record{
		Type: t,
		Seq:  seq,
		Time: int64(ts),
		Data: payload,
	}, nil
}

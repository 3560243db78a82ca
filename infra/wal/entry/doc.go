// Package entry is the entry WAL: an append-only journal of accepted order
// events, written before the engine applies them and replayed on start to
// rebuild the book.
//
// Frame: [type:1][seq:8][time:8][len:4][payload][crc:4], big endian, with
// the CRC covering header and payload. Segments are named
// segment-NNNNNN.wal and rotate on size.
package entry

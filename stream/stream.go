// Package stream adapts a byte source to the random-access, read-only
// primitives the JP2 box codec needs: absolute seeks, mark/reset, total
// length discovery and big-endian typed reads.
//
// Sources implementing io.Seeker are used in place. Plain io.Readers are
// cached in memory as they are consumed so that backward seeks work; their
// total length is unknown until the end of the stream has been reached.
package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// MaxPos is the largest position Pos reports.
const MaxPos = math.MaxInt32

// chunkSize bounds each read when scanning for the end of a stream.
const chunkSize = 1024

var (
	// ErrReadOnly is returned by every write operation.
	ErrReadOnly = errors.New("stream: write operations are not supported")

	// ErrNoMark is returned by Reset when no mark is outstanding.
	ErrNoMark = errors.New("stream: reset without mark")
)

// Reader is a read-only random-access view of a byte source. It is not
// safe for concurrent use.
type Reader struct {
	rs    io.ReadSeeker
	known int64
	marks []int64
	buf   [8]byte
}

// NewReader wraps r. If r is not an io.ReadSeeker its bytes are cached in
// memory as they are read.
func NewReader(r io.Reader) *Reader {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		return &Reader{rs: &cache{r: r}, known: -1}
	}
	return &Reader{rs: rs, known: sizeOf(r)}
}

// NewReaderSize wraps rs whose total length is size bytes. A negative size
// means the length is unknown.
func NewReaderSize(rs io.ReadSeeker, size int64) *Reader {
	if size < 0 {
		size = -1
	}
	return &Reader{rs: rs, known: size}
}

// sizeOf reports the total size of r when it can be determined without
// reading, or -1.
func sizeOf(r io.Reader) int64 {
	switch s := r.(type) {
	case interface{ Size() int64 }:
		return s.Size()
	case *os.File:
		fi, err := s.Stat()
		if err != nil || !fi.Mode().IsRegular() {
			return -1
		}
		return fi.Size()
	}
	return -1
}

// Seek implements io.Seeker.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	return r.rs.Seek(offset, whence)
}

// Offset returns the current absolute position.
func (r *Reader) Offset() (int64, error) {
	return r.rs.Seek(0, io.SeekCurrent)
}

// Pos returns the current position clamped to MaxPos.
func (r *Reader) Pos() (int, error) {
	off, err := r.Offset()
	if err != nil {
		return 0, err
	}
	if off > MaxPos {
		return MaxPos, nil
	}
	return int(off), nil
}

// KnownLength returns the total length of the source if it is known
// without scanning, or -1. A successful Length call makes it known.
func (r *Reader) KnownLength() int64 {
	return r.known
}

// Length returns the total length of the source. When it is unknown the
// stream is read forward in bounded chunks until EOF and the position is
// restored afterwards.
func (r *Reader) Length() (int64, error) {
	if r.known >= 0 {
		return r.known, nil
	}
	start, err := r.Offset()
	if err != nil {
		return 0, err
	}
	n, err := CountToEOF(r.rs)
	if err != nil {
		return 0, err
	}
	if _, err := r.rs.Seek(start, io.SeekStart); err != nil {
		return 0, fmt.Errorf("stream: restoring position: %w", err)
	}
	r.known = start + n
	return r.known, nil
}

// CountToEOF reads r to the end in bounded chunks and returns the number
// of bytes consumed.
func CountToEOF(r io.Reader) (int64, error) {
	var (
		buf   [chunkSize]byte
		total int64
	)
	for {
		n, err := r.Read(buf[:])
		total += int64(n)
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Mark pushes the current position. It is restored by Reset.
func (r *Reader) Mark() {
	off, err := r.Offset()
	if err != nil {
		off = -1
	}
	r.marks = append(r.marks, off)
}

// Reset pops the most recent mark and seeks back to it.
func (r *Reader) Reset() error {
	if len(r.marks) == 0 {
		return ErrNoMark
	}
	off := r.marks[len(r.marks)-1]
	r.marks = r.marks[:len(r.marks)-1]
	if off < 0 {
		return errors.New("stream: marked position was not available")
	}
	_, err := r.rs.Seek(off, io.SeekStart)
	return err
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	return r.rs.Read(p)
}

// ReadFull fills p completely. A short read returns io.ErrUnexpectedEOF,
// or io.EOF if nothing was read.
func (r *Reader) ReadFull(p []byte) error {
	_, err := io.ReadFull(r.rs, p)
	return err
}

// Skip advances the position by n bytes.
func (r *Reader) Skip(n int64) error {
	_, err := r.rs.Seek(n, io.SeekCurrent)
	return err
}

// ReadByte implements io.ByteReader.
func (r *Reader) ReadByte() (byte, error) {
	if err := r.ReadFull(r.buf[:1]); err != nil {
		return 0, err
	}
	return r.buf[0], nil
}

// ReadUint8 reads one unsigned byte.
func (r *Reader) ReadUint8() (uint8, error) {
	return r.ReadByte()
}

// ReadInt8 reads one signed byte.
func (r *Reader) ReadInt8() (int8, error) {
	b, err := r.ReadByte()
	return int8(b), err
}

// ReadUint16 reads a big-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.ReadFull(r.buf[:2]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(r.buf[:2]), nil
}

// ReadInt16 reads a big-endian int16.
func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

// ReadUint32 reads a big-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.ReadFull(r.buf[:4]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(r.buf[:4]), nil
}

// ReadInt32 reads a big-endian int32.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadUint64 reads a big-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.ReadFull(r.buf[:8]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(r.buf[:8]), nil
}

// ReadInt64 reads a big-endian int64.
func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// ReadFloat32 reads a big-endian IEEE 754 single.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadFloat64 reads a big-endian IEEE 754 double.
func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	return math.Float64frombits(v), err
}

// Write always fails with ErrReadOnly.
func (r *Reader) Write(p []byte) (int, error) {
	return 0, ErrReadOnly
}

// WriteByte always fails with ErrReadOnly.
func (r *Reader) WriteByte(c byte) error {
	return ErrReadOnly
}

// Flush always fails with ErrReadOnly.
func (r *Reader) Flush() error {
	return ErrReadOnly
}

// Close closes the underlying source if it is an io.Closer.
func (r *Reader) Close() error {
	if c, ok := r.rs.(io.Closer); ok {
		return c.Close()
	}
	if c, ok := r.rs.(*cache); ok {
		if rc, ok := c.r.(io.Closer); ok {
			return rc.Close()
		}
	}
	return nil
}

package stream

import (
	"errors"
	"io"
)

// cache makes a forward-only reader seekable by keeping every byte read
// so far in memory.
type cache struct {
	r   io.Reader
	buf []byte
	pos int64
	eof bool
}

// fill reads from the source until at least n bytes are cached or the
// source is exhausted.
func (c *cache) fill(n int64) error {
	var chunk [chunkSize]byte
	for int64(len(c.buf)) < n && !c.eof {
		m, err := c.r.Read(chunk[:])
		c.buf = append(c.buf, chunk[:m]...)
		if errors.Is(err, io.EOF) {
			c.eof = true
			break
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *cache) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := c.fill(c.pos + int64(len(p))); err != nil {
		return 0, err
	}
	if c.pos >= int64(len(c.buf)) {
		return 0, io.EOF
	}
	n := copy(p, c.buf[c.pos:])
	c.pos += int64(n)
	return n, nil
}

func (c *cache) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = c.pos + offset
	case io.SeekEnd:
		if err := c.fill(1<<62); err != nil {
			return 0, err
		}
		abs = int64(len(c.buf)) + offset
	default:
		return 0, errors.New("stream: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("stream: negative position")
	}
	c.pos = abs
	return abs, nil
}

// Package bufioutil buffers reads from an io.ReadSeeker without losing
// Seek: bufio.Reader alone drops its buffer's position on Seek, forcing
// every caller back to unbuffered one-field-at-a-time reads through a
// binary format like GGUF.
package bufioutil

import (
	"bufio"
	"io"
)

// BufferedSeeker wraps an io.ReadSeeker with a bufio.Reader, resetting the
// buffer on every Seek so the two never disagree about the underlying
// offset.
type BufferedSeeker struct {
	rs io.ReadSeeker
	br *bufio.Reader
}

// NewBufferedSeeker buffers reads from rs in chunks of size bytes.
func NewBufferedSeeker(rs io.ReadSeeker, size int) *BufferedSeeker {
	return &BufferedSeeker{
		rs: rs,
		br: bufio.NewReaderSize(rs, size),
	}
}

func (b *BufferedSeeker) Read(p []byte) (int, error) {
	return b.br.Read(p)
}

// Seek repositions the underlying reader and discards the buffer, so the
// next Read refills from the new offset instead of returning stale bytes.
func (b *BufferedSeeker) Seek(offset int64, whence int) (int64, error) {
	if whence == io.SeekCurrent {
		offset -= int64(b.br.Buffered())
	}

	n, err := b.rs.Seek(offset, whence)
	if err != nil {
		return 0, err
	}

	b.br.Reset(b.rs)
	return n, nil
}

package csvchunk

import (
	"errors"
	"fmt"
	"io"
)

// Chunker reads a source in consecutive chunks of at most ChunkSize bytes
// and parses each one with a single State.
//
// Next returns the rows completed by each chunk. After the source is
// exhausted any buffered partial row is returned with the last batch and
// the following call returns io.EOF.
type Chunker struct {
	counter *countingReader
	reader  io.Reader
	buf     []byte
	state   State
	done    bool
}

// NewChunker wraps r. size is the total number of bytes expected and is used
// only for progress; pass 0 if unknown. A non-positive chunkSize selects
// DefaultChunkSize.
func NewChunker(r io.Reader, size int64, chunkSize int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	counter := &countingReader{reader: r, total: size}
	return &Chunker{
		counter: counter,
		reader:  newUTF8Sanitizer(counter, chunkSize),
		buf:     make([]byte, chunkSize),
	}
}

// Next parses the next chunk.
func (c *Chunker) Next() ([][]string, error) {
	if c.done {
		return nil, io.EOF
	}

	n, err := io.ReadFull(c.reader, c.buf)
	switch {
	case err == nil:
		return c.state.Feed(c.buf[:n]), nil

	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		c.done = true
		rows := c.state.Feed(c.buf[:n])
		if tail, ok := c.state.Flush(); ok {
			rows = append(rows, tail)
		}
		if n == 0 && len(rows) == 0 {
			return nil, io.EOF
		}
		return rows, nil

	default:
		return nil, fmt.Errorf("read chunk: %w", err)
	}
}

// BytesRead returns the number of source bytes consumed so far.
func (c *Chunker) BytesRead() int64 {
	return c.counter.read
}

// Progress returns BytesRead as a percentage of the declared size.
func (c *Chunker) Progress() int {
	return c.counter.percent()
}

// ReadHeaders returns the sanitized first row of r. It reads only as many
// chunks as it takes to complete that row, so the rest of a large file is
// never touched. An empty source yields an empty slice.
func ReadHeaders(r io.Reader, chunkSize int) ([]string, error) {
	c := NewChunker(r, 0, chunkSize)
	for {
		rows, err := c.Next()
		if errors.Is(err, io.EOF) {
			return []string{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read headers: %w", err)
		}
		if len(rows) > 0 {
			return SanitizeHeaders(rows[0]), nil
		}
	}
}

package csvchunk

// streaming.go holds the io.Reader wrappers that sit between the source
// file and the chunk parser:
//
//   - utf8Sanitizer: replaces invalid UTF-8 bytes with '?' without buffering
//     the whole file, carrying incomplete trailing sequences to the next read
//   - countingReader: counts raw bytes consumed for progress reporting
//
// The counting reader wraps the raw source so progress reflects file bytes,
// not decoded bytes.

import (
	"io"
	"math"
	"unicode/utf8"
)

type utf8Sanitizer struct {
	reader io.Reader
	buf    []byte

	// scratch holds carry + the latest read; out is the sanitized part of it
	// not yet handed to the caller.
	scratch []byte
	out     []byte

	// carry holds the start of a multi-byte rune cut off by the last read.
	carry []byte
	err   error
}

func newUTF8Sanitizer(r io.Reader, bufSize int) *utf8Sanitizer {
	return &utf8Sanitizer{
		reader: r,
		buf:    make([]byte, bufSize),
		carry:  make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader.
func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for len(s.out) == 0 {
		if s.err != nil {
			return 0, s.err
		}

		n, err := s.reader.Read(s.buf)
		s.err = err

		data := append(s.scratch[:0], s.carry...)
		data = append(data, s.buf[:n]...)
		s.carry = s.carry[:0]
		s.scratch = data

		if isASCII(data) {
			s.out = data
			continue
		}
		s.out = s.sanitize(data, err != nil)
	}

	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

// sanitize rewrites data in place and returns the part to emit. Unless
// final, an incomplete rune at the end is moved to carry.
func (s *utf8Sanitizer) sanitize(data []byte, final bool) []byte {
	if utf8.Valid(data) {
		return data
	}

	write := 0
	for read := 0; read < len(data); {
		if !final && !utf8.FullRune(data[read:]) {
			s.carry = append(s.carry, data[read:]...)
			return data[:write]
		}

		r, size := utf8.DecodeRune(data[read:])
		if r == utf8.RuneError && size == 1 {
			// '?' keeps the output no longer than the input
			data[write] = '?'
			write++
			read++
			continue
		}

		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}

	return data[:write]
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

type countingReader struct {
	reader io.Reader
	read   int64
	total  int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.read += int64(n)
	return n, err
}

// percent returns bytes read as a rounded percentage of total, clamped to
// [0,100]. An unknown total reports 0.
func (r *countingReader) percent() int {
	if r.total <= 0 {
		return 0
	}
	ratio := math.Min(float64(r.read)/float64(r.total), 1)
	return int(math.Round(ratio * 100))
}

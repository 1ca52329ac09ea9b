// Package csvchunk parses comma-separated ledgers in bounded chunks.
//
// The parser understands exactly one dialect: comma separators, double-quote
// quoting with "" as an escaped quote, and CR, LF or CRLF row terminators.
// All cross-chunk state lives in a State value owned by the caller, so a file
// can be fed in pieces of any size and yields the same rows as a single pass:
//
//	var st csvchunk.State
//	for chunk := range chunks {
//	    rows := st.Feed(chunk)
//	    ...
//	}
//	if tail, ok := st.Flush(); ok {
//	    ...
//	}
//
// Delimiters are ASCII, so multi-byte UTF-8 sequences that straddle a chunk
// edge are carried in the field buffer untouched.
package csvchunk

import "strings"

// DefaultChunkSize is the number of bytes read per chunk (256 KiB).
const DefaultChunkSize = 256 * 1024

// byteOrderMark is U+FEFF as it appears at the start of a decoded header.
const byteOrderMark = "\uFEFF"

// State carries a partially parsed row between chunks.
// The zero value is ready to use.
type State struct {
	inQuotes bool

	// afterQuote is set when a quote closed a quoted section. If the next
	// byte is another quote the pair is a literal quote and the section
	// reopens; this works even when the pair is split across chunks.
	afterQuote bool

	// pendingCR is set after a CR terminator so that an LF immediately
	// following it, possibly in the next chunk, is swallowed.
	pendingCR bool

	// dirty is set once any byte of the current row has been consumed.
	dirty bool

	field []byte
	row   []string
}

// Feed consumes one chunk and returns the rows it completed, in order.
// Bytes of an unfinished row stay buffered in the State.
func (s *State) Feed(chunk []byte) [][]string {
	var rows [][]string

	for _, c := range chunk {
		if s.pendingCR {
			s.pendingCR = false
			if c == '\n' {
				continue
			}
		}

		if s.afterQuote {
			s.afterQuote = false
			if c == '"' {
				s.field = append(s.field, '"')
				s.inQuotes = true
				continue
			}
		}

		if c == '"' {
			s.dirty = true
			if s.inQuotes {
				s.inQuotes = false
				s.afterQuote = true
			} else {
				s.inQuotes = true
			}
			continue
		}

		if s.inQuotes {
			s.field = append(s.field, c)
			continue
		}

		switch c {
		case ',':
			s.dirty = true
			s.endField()
		case '\r', '\n':
			s.pendingCR = c == '\r'
			s.endField()
			rows = append(rows, s.row)
			s.row = nil
			s.dirty = false
		default:
			s.dirty = true
			s.field = append(s.field, c)
		}
	}

	return rows
}

// Flush ends the input. If the last line had no terminator, or a quoted
// field was never closed, the buffered content is returned as a final row.
// The State is reset afterwards.
func (s *State) Flush() ([]string, bool) {
	if !s.dirty && len(s.row) == 0 && len(s.field) == 0 {
		*s = State{}
		return nil, false
	}

	s.endField()
	row := s.row
	*s = State{}
	return row, true
}

// Pending reports whether a partial row is buffered.
func (s *State) Pending() bool {
	return s.dirty || len(s.row) > 0 || len(s.field) > 0
}

func (s *State) endField() {
	s.row = append(s.row, string(s.field))
	s.field = s.field[:0]
}

// Parse parses data as one unbroken chunk, including the final flush.
func Parse(data []byte) [][]string {
	var st State
	rows := st.Feed(data)
	if tail, ok := st.Flush(); ok {
		rows = append(rows, tail)
	}
	return rows
}

// SanitizeHeaders trims every header and strips a byte-order mark from the
// first one. The input slice is not modified.
func SanitizeHeaders(headers []string) []string {
	if len(headers) == 0 {
		return []string{}
	}

	cleaned := make([]string, len(headers))
	for i, h := range headers {
		cleaned[i] = strings.TrimSpace(h)
	}
	cleaned[0] = strings.TrimSpace(strings.TrimPrefix(cleaned[0], byteOrderMark))
	return cleaned
}

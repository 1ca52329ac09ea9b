package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/JonMunkholm/apdupes/internal/csvchunk"
	"github.com/JonMunkholm/apdupes/internal/detect"
	"github.com/JonMunkholm/apdupes/internal/ledger"
	"github.com/JonMunkholm/apdupes/internal/logging"
)

// ErrUnknownRequest is returned for a Request with an unsupported Type.
var ErrUnknownRequest = errors.New("unknown request type")

// Engine runs one request at a time over a single file. An Engine holds no
// state between calls, so one value can serve concurrent requests.
type Engine struct {
	// ChunkSize is the number of bytes parsed per step. Zero selects
	// csvchunk.DefaultChunkSize.
	ChunkSize int

	// StrictMapping rejects a mapping that names a header missing from the
	// file. When false such fields simply read as empty.
	StrictMapping bool
}

// Headers returns the sanitized header row of f without reading the rest.
func (e Engine) Headers(f File) ([]string, error) {
	return csvchunk.ReadHeaders(f.Reader, e.ChunkSize)
}

// Process parses f, normalizes every data row against m and runs duplicate
// detection. progress is called after every chunk and once more when
// detection begins; it may be nil.
//
// ctx is checked between chunks and before detection.
func (e Engine) Process(ctx context.Context, f File, m ledger.ColumnMapping, opts detect.Options, progress func(stage string, pct int)) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = func(string, int) {}
	}

	var (
		headers  []string
		rows     []ledger.ParsedRow
		rowIndex = 1
	)

	chunker := csvchunk.NewChunker(f.Reader, f.Size, e.ChunkSize)
	for {
		batch, err := chunker.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		for _, fields := range batch {
			if headers == nil {
				headers = csvchunk.SanitizeHeaders(fields)
				if e.StrictMapping {
					if err := m.Validate(headers); err != nil {
						return nil, err
					}
				}
				continue
			}
			rows = append(rows, ledger.Normalize(headers, fields, m, rowIndex))
			rowIndex++
		}

		progress(StageParsing, chunker.Progress())

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if headers == nil {
		headers = []string{}
	}

	progress(StageDetecting, 10)
	report := detect.Run(rows, opts)

	logging.FromContext(ctx).Debug("ledger processed",
		"file", f.Name,
		"bytes", chunker.BytesRead(),
		"rows", len(rows),
		"groups", report.Summary.DuplicateGroups,
	)

	return &Result{
		Summary:    report.Summary,
		Groups:     report.Groups,
		Rows:       report.Rows,
		RawHeaders: headers,
	}, nil
}

// Handle executes req and reports through emit: zero or more progress
// messages followed by exactly one terminal message. A panic in the
// pipeline becomes an error message.
func (e Engine) Handle(ctx context.Context, req Request, emit func(Message)) {
	terminal := false
	send := func(m Message) {
		if terminal {
			return
		}
		terminal = m.Terminal()
		emit(m)
	}

	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).Error("panic in analysis",
				"type", req.Type,
				"file", req.File.Name,
				"panic", r,
			)
			send(ErrorMessage(fmt.Sprintf("internal error: %v", r)))
		}
	}()

	switch req.Type {
	case RequestParseHeaders:
		headers, err := e.Headers(req.File)
		if err != nil {
			send(ErrorMessage(err.Error()))
			return
		}
		send(HeadersMessage(headers))

	case RequestProcess:
		result, err := e.Process(ctx, req.File, req.Mapping, req.Options, func(stage string, pct int) {
			send(ProgressMessage(stage, pct))
		})
		if err != nil {
			send(ErrorMessage(err.Error()))
			return
		}
		send(ResultMessage(result))

	default:
		slog.Warn("unknown analysis request", "type", req.Type)
		send(ErrorMessage(fmt.Sprintf("%s: %q", ErrUnknownRequest, req.Type)))
	}
}

package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/apdupes/internal/detect"
	"github.com/JonMunkholm/apdupes/internal/ledger"
	"github.com/JonMunkholm/apdupes/internal/logging"
	"github.com/JonMunkholm/apdupes/internal/store"
)

// AnalysisInput describes one ledger to analyze. Reader is closed by the
// Service once the analysis finishes. A nil Options uses the configured
// defaults.
type AnalysisInput struct {
	FileName string
	Reader   io.ReadCloser
	Size     int64
	Mapping  ledger.ColumnMapping
	Options  *detect.Options
}

// StartAnalysis queues an analysis and returns its ID immediately. Use
// Subscribe for progress and Result for the outcome.
//
// Returns ErrTooManyAnalyses if no slot frees up within the wait time. On
// any error in.Reader is closed before returning.
func (s *Service) StartAnalysis(ctx context.Context, in AnalysisInput) (string, error) {
	opts := s.defaults
	if in.Options != nil {
		opts = *in.Options
	}
	if err := opts.Validate(); err != nil {
		in.Reader.Close()
		return "", err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		in.Reader.Close()
		return "", err
	}

	id := uuid.New().String()

	// The job outlives the request that started it.
	jobCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	jobCtx = logging.ContextWithAnalysisID(jobCtx, id)
	jobCtx = ContextWithRequestMetadata(jobCtx, RequestMetadataFromContext(ctx))

	analysis := newActiveAnalysis(id, in.FileName, cancel)

	s.mu.Lock()
	s.analyses[id] = analysis
	s.mu.Unlock()

	req := Request{
		Type:    RequestProcess,
		File:    File{Name: in.FileName, Size: in.Size, Reader: in.Reader},
		Mapping: in.Mapping,
		Options: opts,
	}

	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer in.Reader.Close()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in analysis job", "analysis_id", id, "panic", r)
				analysis.notify(ErrorMessage(fmt.Sprintf("internal error: %v", r)))
				s.cleanup(id, s.resultTTL)
			}
		}()
		s.run(jobCtx, analysis, req)
	}()

	return id, nil
}

func (s *Service) run(ctx context.Context, a *activeAnalysis, req Request) {
	logger := logging.FromContext(ctx)
	started := append([]any{"file", a.FileName, "bytes", req.File.Size}, RequestMetadataFromContext(ctx).logAttrs()...)
	logger.Info("analysis started", started...)
	start := time.Now()

	s.engine.Handle(ctx, req, func(m Message) {
		if m.Terminal() {
			s.save(ctx, a, req, m, time.Since(start))
		}
		a.notify(m)
	})

	st := a.status()
	attrs := []any{
		"state", st.State,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if st.State == StateFailed {
		attrs = append(attrs, "error", st.Error)
	}
	logger.Info("analysis finished", attrs...)

	s.cleanup(a.ID, s.resultTTL)
}

// save records the finished run. A store failure is logged and does not
// change the outcome delivered to subscribers.
func (s *Service) save(ctx context.Context, a *activeAnalysis, req Request, m Message, elapsed time.Duration) {
	rec := store.Record{
		ID:         a.ID,
		FileName:   a.FileName,
		Status:     store.StatusComplete,
		Mapping:    req.Mapping,
		Options:    req.Options,
		RawHeaders: []string{},
		DurationMs: elapsed.Milliseconds(),
		CreatedAt:  a.StartedAt,
	}

	switch m.Type {
	case MessageResult:
		rec.RawHeaders = m.Result.RawHeaders
		rec.Report = &detect.Report{
			Groups:  m.Result.Groups,
			Rows:    m.Result.Rows,
			Summary: m.Result.Summary,
		}
	case MessageError:
		rec.Status = store.StatusFailed
		rec.Error = m.Error
	}

	// the job context may already be cancelled or expired
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := s.store.Save(saveCtx, rec); err != nil {
		logging.FromContext(ctx).Error("failed to save analysis run", "error", err)
	}
}

// Subscribe returns a channel that first receives the latest event and then
// every later one. It is closed after the terminal message.
func (s *Service) Subscribe(id string) (<-chan Message, error) {
	a, ok := s.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAnalysisNotFound, id)
	}
	return a.subscribe(), nil
}

// Result waits for the terminal message of an analysis. Analyses no longer
// held in memory are answered from the store.
func (s *Service) Result(ctx context.Context, id string) (Message, error) {
	a, ok := s.lookup(id)
	if !ok {
		rec, err := s.Record(ctx, id)
		if err != nil {
			return Message{}, err
		}
		return messageFromRecord(rec), nil
	}

	select {
	case <-a.Done:
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return *a.terminal, nil
}

// Finished returns the terminal message without waiting. It fails with
// ErrAnalysisRunning while the analysis is in progress.
func (s *Service) Finished(ctx context.Context, id string) (Message, error) {
	if a, ok := s.lookup(id); ok {
		select {
		case <-a.Done:
		default:
			return Message{}, fmt.Errorf("%w: %s", ErrAnalysisRunning, id)
		}
	}
	return s.Result(ctx, id)
}

// Status returns the current state of an analysis without blocking.
func (s *Service) Status(id string) (AnalysisStatus, error) {
	a, ok := s.lookup(id)
	if !ok {
		return AnalysisStatus{}, fmt.Errorf("%w: %s", ErrAnalysisNotFound, id)
	}
	return a.status(), nil
}

// CancelAnalysis stops a running analysis. It ends with an ANL003 error.
func (s *Service) CancelAnalysis(id string) error {
	a, ok := s.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAnalysisNotFound, id)
	}
	a.Cancel()
	return nil
}

// Record loads a finished run from the store.
func (s *Service) Record(ctx context.Context, id string) (*store.Record, error) {
	rec, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAnalysisNotFound, id)
	}
	return rec, err
}

// ListRecent returns up to limit stored runs, newest first.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]store.RunSummary, error) {
	return s.store.List(ctx, limit)
}

// WaitForAnalyses blocks until no analysis is running or ctx is done.
func (s *Service) WaitForAnalyses(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func messageFromRecord(rec *store.Record) Message {
	if rec.Status == store.StatusFailed || rec.Report == nil {
		return ErrorMessage(rec.Error)
	}
	return ResultMessage(&Result{
		Summary:    rec.Report.Summary,
		Groups:     rec.Report.Groups,
		Rows:       rec.Report.Rows,
		RawHeaders: rec.RawHeaders,
	})
}

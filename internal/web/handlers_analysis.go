package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/apdupes/internal/core"
	"github.com/JonMunkholm/apdupes/internal/detect"
	"github.com/JonMunkholm/apdupes/internal/logging"
	"github.com/JonMunkholm/apdupes/internal/report"
	"github.com/JonMunkholm/apdupes/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// errAnalysisFailed wraps the error message of a failed analysis.
var errAnalysisFailed = errors.New("analysis failed")

// handleAnalysisEvents streams analysis events via Server-Sent Events: the
// latest progress, every later progress event, then one result or error
// event. Analyses no longer in memory replay their stored outcome.
func (s *Server) handleAnalysisEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	events, err := s.service.Subscribe(id)
	if errors.Is(err, core.ErrAnalysisNotFound) {
		var msg core.Message
		msg, err = s.service.Result(r.Context(), id)
		if err == nil {
			replay := make(chan core.Message, 1)
			replay <- msg
			close(replay)
			events = replay
		}
	}
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	eventID := 0
	for {
		select {
		case msg, ok := <-events:
			if !ok {
				return
			}
			eventID++
			if err := writeEvent(w, eventID, msg); err != nil {
				logging.FromContext(r.Context()).Debug("sse write failed", "error", err)
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// writeEvent writes one SSE frame named after the message type.
func writeEvent(w io.Writer, id int, msg core.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, msg.Type, data)
	return err
}

// handleAnalysisResult waits for the analysis to finish and returns its
// terminal message.
func (s *Server) handleAnalysisResult(w http.ResponseWriter, r *http.Request) {
	msg, err := s.service.Result(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, msg)
}

// handleAnalysisStatus returns a status snapshot, from memory while the
// analysis is tracked and from the store afterwards.
func (s *Server) handleAnalysisStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	st, err := s.service.Status(id)
	if errors.Is(err, core.ErrAnalysisNotFound) {
		var rec *store.Record
		rec, err = s.service.Record(r.Context(), id)
		if err == nil {
			st = statusFromRecord(rec)
		}
	}
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, st)
}

func statusFromRecord(rec *store.Record) core.AnalysisStatus {
	st := core.AnalysisStatus{
		ID:        rec.ID,
		FileName:  rec.FileName,
		State:     core.StateComplete,
		Progress:  100,
		StartedAt: rec.CreatedAt,
	}
	if rec.Status == store.StatusFailed {
		st.State = core.StateFailed
		st.Error = rec.Error
	}
	return st
}

// handleCancelAnalysis cancels a running analysis. Form posts from the
// progress page are redirected back to it.
func (s *Server) handleCancelAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.service.CancelAnalysis(id); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	if !wantsJSON(r) {
		http.Redirect(w, r, "/analyses/"+id, http.StatusSeeOther)
		return
	}
	writeJSON(w, map[string]string{"status": "cancelling"})
}

// handleListAnalyses returns recent stored runs, newest first.
func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	runs, err := s.service.ListRecent(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if runs == nil {
		runs = []store.RunSummary{}
	}
	writeJSON(w, map[string]any{"analyses": runs})
}

// handleExportCSV exports the duplicate rows of a finished analysis.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	fileName, result, err := s.finishedResult(r, id)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, toReport(result)); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", attachment(fileName, "csv"))
	w.Write(buf.Bytes())
}

// handleExportXLSX exports summary, groups and rows as an Excel workbook.
func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	fileName, result, err := s.finishedResult(r, id)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, toReport(result), result.RawHeaders); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", attachment(fileName, "xlsx"))
	w.Write(buf.Bytes())
}

// finishedResult returns the result of a completed analysis together with
// its file name. Failed analyses yield errAnalysisFailed.
func (s *Server) finishedResult(r *http.Request, id string) (string, *core.Result, error) {
	fileName := id
	if st, err := s.service.Status(id); err == nil {
		fileName = st.FileName
	} else if rec, err := s.service.Record(r.Context(), id); err == nil {
		fileName = rec.FileName
	}

	msg, err := s.service.Finished(r.Context(), id)
	if err != nil {
		return "", nil, err
	}
	if msg.Type == core.MessageError {
		return "", nil, fmt.Errorf("%w: %s", errAnalysisFailed, msg.Error)
	}
	return fileName, msg.Result, nil
}

func toReport(r *core.Result) *detect.Report {
	return &detect.Report{
		Groups:  r.Groups,
		Rows:    r.Rows,
		Summary: r.Summary,
	}
}

// attachment builds a Content-Disposition value from the ledger's name.
func attachment(fileName, ext string) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "_" {
		base = "ledger"
	}

	timestamp := time.Now().Format("20060102_150405")
	return fmt.Sprintf(`attachment; filename="duplicates_%s_%s.%s"`, base, timestamp, ext)
}

// parseIntParam reads a positive integer query parameter.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return defaultVal
	}
	return n
}

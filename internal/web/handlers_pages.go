package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/apdupes/internal/core"
	"github.com/JonMunkholm/apdupes/internal/detect"
	"github.com/JonMunkholm/apdupes/internal/store"
	"github.com/JonMunkholm/apdupes/internal/web/templates"
)

// handleIndex renders recent runs and the upload form.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.ListRecent(r.Context(), defaultListLimit)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	limiter := s.service.LimiterStatus()
	defaults := s.service.DefaultOptions()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.IndexPage(templates.IndexParams{
		Runs:            runs,
		ActiveAnalyses:  limiter.Active,
		MaxAnalyses:     limiter.MaxConcurrent,
		DateWindowDays:  defaults.DateWindowDays,
		AmountTolerance: defaults.AmountTolerance.StringFixed(2),
	}).Render(r.Context(), w)
}

// handleAnalysisPage renders a live progress page while the analysis runs
// and the report once it has finished.
func (s *Server) handleAnalysisPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	st, statusErr := s.service.Status(id)
	if statusErr == nil && st.State == core.StateRunning {
		templates.ProgressPage(templates.ProgressParams{
			ID:       id,
			FileName: st.FileName,
			Stage:    st.Stage,
			Progress: st.Progress,
		}).Render(r.Context(), w)
		return
	}

	rec, err := s.service.Record(r.Context(), id)
	if errors.Is(err, core.ErrAnalysisNotFound) && statusErr == nil {
		// finished but not stored; answer from memory
		var msg core.Message
		msg, err = s.service.Finished(r.Context(), id)
		if err == nil {
			rec = recordFromMessage(st, msg)
		}
	}
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	templates.AnalysisPage(analysisParams(rec)).Render(r.Context(), w)
}

func recordFromMessage(st core.AnalysisStatus, msg core.Message) *store.Record {
	rec := &store.Record{
		ID:        st.ID,
		FileName:  st.FileName,
		Status:    store.StatusComplete,
		CreatedAt: st.StartedAt,
	}
	if msg.Type == core.MessageError {
		rec.Status = store.StatusFailed
		rec.Error = msg.Error
		return rec
	}
	rec.RawHeaders = msg.Result.RawHeaders
	rec.Report = &detect.Report{
		Groups:  msg.Result.Groups,
		Rows:    msg.Result.Rows,
		Summary: msg.Result.Summary,
	}
	return rec
}

func analysisParams(rec *store.Record) templates.AnalysisParams {
	params := templates.AnalysisParams{
		ID:         rec.ID,
		FileName:   rec.FileName,
		CreatedAt:  rec.CreatedAt,
		DurationMs: rec.DurationMs,
		RawHeaders: rec.RawHeaders,
	}
	if rec.Status == store.StatusFailed || rec.Report == nil {
		userMsg := core.MapMessage(core.ErrorMessage(rec.Error))
		params.Error = userMsg.Message
		params.ErrorHint = userMsg.Action
		params.ErrorCode = userMsg.Code
		return params
	}
	params.Report = rec.Report
	return params
}

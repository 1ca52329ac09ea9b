// Package store keeps the history of finished analyses.
//
// Stored runs are read back only for display and export; detection never
// consults them.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/apdupes/internal/detect"
	"github.com/JonMunkholm/apdupes/internal/ledger"
)

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("analysis run not found")

// Status is the terminal state of a run.
type Status string

const (
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Record is one finished analysis. Report is nil for failed runs.
type Record struct {
	ID         string               `json:"id"`
	FileName   string               `json:"fileName"`
	Status     Status               `json:"status"`
	Error      string               `json:"error,omitempty"`
	Mapping    ledger.ColumnMapping `json:"mapping"`
	Options    detect.Options       `json:"options"`
	RawHeaders []string             `json:"rawHeaders"`
	Report     *detect.Report       `json:"report,omitempty"`
	DurationMs int64                `json:"durationMs"`
	CreatedAt  time.Time            `json:"createdAt"`
}

// Summary returns the listing view of r.
func (r Record) Summary() RunSummary {
	s := RunSummary{
		ID:        r.ID,
		FileName:  r.FileName,
		Status:    r.Status,
		Exposure:  decimal.Zero,
		CreatedAt: r.CreatedAt,
	}
	if r.Report != nil {
		s.TotalRows = r.Report.Summary.TotalRows
		s.DuplicateGroups = r.Report.Summary.DuplicateGroups
		s.Exposure = r.Report.Summary.Exposure
	}
	return s
}

// RunSummary is the row shown in run listings.
type RunSummary struct {
	ID              string          `json:"id"`
	FileName        string          `json:"fileName"`
	Status          Status          `json:"status"`
	TotalRows       int             `json:"totalRows"`
	DuplicateGroups int             `json:"duplicateGroups"`
	Exposure        decimal.Decimal `json:"exposure"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Store persists finished runs.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (*Record, error)
	// List returns up to limit runs, newest first.
	List(ctx context.Context, limit int) ([]RunSummary, error)
	// PurgeOlderThan deletes runs created before cutoff and reports how many.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

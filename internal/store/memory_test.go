package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/apdupes/internal/detect"
)

func completeRecord(id string, created time.Time, groups int, exposure string) Record {
	return Record{
		ID:        id,
		FileName:  id + ".csv",
		Status:    StatusComplete,
		CreatedAt: created,
		Report: &detect.Report{
			Groups: []detect.Group{},
			Rows:   []detect.Row{},
			Summary: detect.Summary{
				TotalRows:       10,
				DuplicateGroups: groups,
				Exposure:        decimal.RequireFromString(exposure),
			},
		},
	}
}

func TestMemorySaveGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	rec := completeRecord("run-1", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 2, "150.25")
	require.NoError(t, m.Save(ctx, rec))

	got, err := m.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1.csv", got.FileName)
	assert.Equal(t, 2, got.Report.Summary.DuplicateGroups)

	_, err = m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemorySaveStampsCreatedAt(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Save(ctx, Record{ID: "x", Status: StatusFailed, Error: "boom"}))

	got, err := m.Get(ctx, "x")
	require.NoError(t, err)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestMemoryListNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.Save(ctx, completeRecord("a", base, 1, "10")))
	require.NoError(t, m.Save(ctx, completeRecord("b", base.Add(time.Hour), 0, "0")))
	require.NoError(t, m.Save(ctx, completeRecord("c", base.Add(2*time.Hour), 3, "99.99")))

	all, err := m.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.True(t, all[0].Exposure.Equal(decimal.RequireFromString("99.99")))

	top, err := m.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestRecordSummaryFailedRun(t *testing.T) {
	s := Record{ID: "f", Status: StatusFailed}.Summary()

	assert.Equal(t, 0, s.TotalRows)
	assert.True(t, s.Exposure.IsZero())
}

func TestMemoryPurgeOlderThan(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.Save(ctx, completeRecord("old", base.AddDate(0, 0, -40), 0, "0")))
	require.NoError(t, m.Save(ctx, completeRecord("new", base.AddDate(0, 0, -1), 0, "0")))

	n, err := m.PurgeOlderThan(ctx, base.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = m.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Get(ctx, "new")
	assert.NoError(t, err)
}

func TestMemoryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewMemory().Save(ctx, Record{ID: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

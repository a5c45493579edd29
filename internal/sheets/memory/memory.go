package memory

import (
	"context"
	"sync"

	"finviz/internal/core"
	ports "finviz/internal/sheets"
)

// Writer keeps the last exported series in memory. The worker falls back to
// it when no spreadsheet is configured.
type Writer struct {
	mu     sync.Mutex
	last   core.MonthlySummary
	writes int
}

var _ ports.MonthlyWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{}
}

// WriteMonthly implements sheets.MonthlyWriter
func (w *Writer) WriteMonthly(_ context.Context, s core.MonthlySummary) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.last = core.MonthlySummary{
		Buckets: append([]core.MonthBucket(nil), s.Buckets...),
		Skipped: s.Skipped,
	}
	w.writes++
	return nil
}

// Last returns the most recent export and the number of exports so far.
func (w *Writer) Last() (core.MonthlySummary, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last, w.writes
}

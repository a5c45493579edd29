package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finviz/internal/amqp"
	"finviz/internal/core"
	"finviz/internal/sheets"
)

// Lister is the read side of the transaction store the worker exports from.
type Lister interface {
	List(ctx context.Context) ([]core.Transaction, error)
}

// ExportWorker rebuilds the monthly series from the store and writes it to a
// sheet. Every trigger does a full re-export, so lost or duplicated
// invalidations only cost an extra write.
type ExportWorker struct {
	lister Lister
	writer sheets.MonthlyWriter
	order  core.SortOrder

	mu         sync.Mutex
	exports    int
	lastExport time.Time
}

func NewExportWorker(lister Lister, writer sheets.MonthlyWriter, order core.SortOrder) *ExportWorker {
	if order == "" {
		order = core.SortChronological
	}
	return &ExportWorker{lister: lister, writer: writer, order: order}
}

// HandleInvalidation processes a single invalidation message from AMQP
func (w *ExportWorker) HandleInvalidation(ctx context.Context, msg *amqp.InvalidationMessage) error {
	slog.InfoContext(ctx, "Processing invalidation message",
		"op", msg.Op,
		"id", msg.ID,
		"timestamp", msg.Timestamp)

	return w.Export(ctx, "invalidation:"+msg.Op)
}

// Export lists, aggregates and writes. Concurrent calls are serialized.
func (w *ExportWorker) Export(ctx context.Context, reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	txs, err := w.lister.List(ctx)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}

	summary := core.AggregateMonthly(core.EntriesFrom(txs), w.order)
	if summary.Skipped > 0 {
		slog.WarnContext(ctx, "Skipped transactions with unparseable dates", "count", summary.Skipped)
	}

	if err := w.writer.WriteMonthly(ctx, summary); err != nil {
		return fmt.Errorf("write monthly totals: %w", err)
	}

	w.exports++
	w.lastExport = time.Now()

	slog.InfoContext(ctx, "Monthly totals exported",
		"reason", reason,
		"transactions", len(txs),
		"buckets", len(summary.Buckets),
		"total", summary.Total().String(),
		"duration", time.Since(start))
	return nil
}

// StartupExport writes the current state once so the sheet is correct even
// if invalidations were published while the worker was down.
func (w *ExportWorker) StartupExport(ctx context.Context) error {
	return w.Export(ctx, "startup")
}

// RunPeriodic re-exports every interval until ctx is done. Failures are
// logged and retried on the next tick.
func (w *ExportWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Export(ctx, "periodic"); err != nil {
				slog.ErrorContext(ctx, "Periodic export failed", "error", err)
			}
		}
	}
}

// Stats returns the number of exports and the time of the last one.
func (w *ExportWorker) Stats() (int, time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.exports, w.lastExport
}

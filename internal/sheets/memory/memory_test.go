package memory

import (
	"context"
	"testing"

	"finviz/internal/core"

	"github.com/shopspring/decimal"
)

func TestWriterKeepsLastExport(t *testing.T) {
	w := New()
	if _, n := w.Last(); n != 0 {
		t.Fatalf("expected no writes, got %d", n)
	}

	buckets := []core.MonthBucket{{Key: "2024-01", Label: "Jan 2024", Total: decimal.NewFromInt(10)}}
	if err := w.WriteMonthly(context.Background(), core.MonthlySummary{Buckets: buckets, Skipped: 1}); err != nil {
		t.Fatalf("WriteMonthly: %v", err)
	}
	buckets[0].Label = "mutated"

	last, n := w.Last()
	if n != 1 {
		t.Fatalf("expected 1 write, got %d", n)
	}
	if last.Buckets[0].Label != "Jan 2024" || last.Skipped != 1 {
		t.Fatalf("unexpected export %+v", last)
	}
}

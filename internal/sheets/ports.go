package sheets

import (
	"context"

	"finviz/internal/core"
)

// Ports for outbound adapters.
type (
	// MonthlyWriter replaces the exported monthly series with s.
	MonthlyWriter interface {
		WriteMonthly(ctx context.Context, s core.MonthlySummary) error
	}
)

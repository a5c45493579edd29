package log

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"finviz/internal/core"

	"github.com/shopspring/decimal"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: ComponentHTTP, Output: &buf})

	logger.WithComponent(ComponentChart).Info("rendered", FieldBuckets, 3)

	out := buf.String()
	if !strings.Contains(out, "component=chart") {
		t.Errorf("missing component in %q", out)
	}
	if !strings.Contains(out, "buckets=3") {
		t.Errorf("missing field in %q", out)
	}
}

func TestLogTransactionMutation(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelInfo, Output: &buf}))

	sl.LogTransactionMutation(context.Background(), OpCreate, core.Transaction{
		ID:          "abc",
		Amount:      decimal.RequireFromString("12.50"),
		Description: "groceries",
		Date:        core.NewDate(2024, 3, 9),
	})

	out := buf.String()
	for _, want := range []string{"transaction_id=abc", "amount=12.5", "date=2024-03-09", "operation=create"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{core.NewValidationError(core.FieldAmount, "bad"), ErrorTypeValidation},
		{fmt.Errorf("get: %w", core.ErrNotFound), ErrorTypeNotFound},
		{context.DeadlineExceeded, ErrorTypeTimeout},
		{core.WrapStorage("insert", errors.New("disk full")), ErrorTypeDatabase},
		{errors.New("boom"), ErrorTypeInternal},
	}
	for _, tt := range tests {
		if got := ErrorType(tt.err); got != tt.want {
			t.Errorf("ErrorType(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

package ctxlog_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/seantiz/groundstate/internal/ctxlog"
)

func TestLoggerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := ctxlog.WithLogger(context.Background(), logger)
	ctxlog.FromContext(ctx).Info("hello")

	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("expected log line, got %q", buf.String())
	}
}

func TestLoggerFallback(t *testing.T) {
	if ctxlog.FromContext(context.Background()) == nil {
		t.Fatal("expected default logger")
	}
}

func TestProgress(t *testing.T) {
	var lines []string
	ctx := ctxlog.WithProgress(context.Background(), func(line string) {
		lines = append(lines, line)
	})

	ctxlog.Progress(ctx, "step %d", 3)
	ctxlog.Progress(context.Background(), "dropped")

	if len(lines) != 1 || lines[0] != "step 3" {
		t.Errorf("lines = %v, want [step 3]", lines)
	}
}

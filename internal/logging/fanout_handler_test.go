package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFanoutHandlerNilHandlers(t *testing.T) {
	h := newFanoutHandler(nil, nil)
	if _, ok := h.(NoopHandler); !ok {
		t.Errorf("expected NoopHandler for all nil handlers, got %T", h)
	}
}

func TestNewFanoutHandlerFiltersNil(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)

	if h := newFanoutHandler(nil, inner, nil); h != inner {
		t.Error("expected single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerRespectsPerHandlerLevel(t *testing.T) {
	var terminal, file bytes.Buffer
	h1 := slog.NewJSONHandler(&terminal, &slog.HandlerOptions{Level: slog.LevelInfo})
	h2 := slog.NewJSONHandler(&file, &slog.HandlerOptions{Level: slog.LevelWarn})

	h := newFanoutHandler(h1, h2)
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected fanout enabled for info")
	}
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected fanout disabled for debug")
	}

	logger := slog.New(h)
	logger.Info("info message")
	logger.Warn("warn message")

	if !strings.Contains(terminal.String(), "info message") || !strings.Contains(terminal.String(), "warn message") {
		t.Fatalf("terminal output missing records: %s", terminal.String())
	}
	if strings.Contains(file.String(), "info message") {
		t.Fatalf("file handler should filter info: %s", file.String())
	}
	if !strings.Contains(file.String(), "warn message") {
		t.Fatalf("file output missing warning: %s", file.String())
	}
}

func TestFanoutHandlerWithAttrsAndGroup(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newFanoutHandler(slog.NewJSONHandler(&buf1, nil), slog.NewJSONHandler(&buf2, nil))

	logger := slog.New(h).With("run_id", "abc").WithGroup("tool")
	logger.Info("launched", "pid", 42)

	for i, out := range []string{buf1.String(), buf2.String()} {
		if !strings.Contains(out, `"run_id":"abc"`) {
			t.Errorf("handler %d missing attr: %s", i, out)
		}
		if !strings.Contains(out, `"tool":{"pid":42}`) {
			t.Errorf("handler %d missing group: %s", i, out)
		}
	}
}

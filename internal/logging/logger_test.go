package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"segrun/internal/config"
	"segrun/internal/logging"
	"segrun/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.Format = "json"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("config logger ready")

	content, err := os.ReadFile(cfg.LogFilePath())
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "config logger ready") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")

	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without caller", logging.Int("frames", 5))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
	if !strings.Contains(string(content), "    - frames: 5") {
		t.Fatalf("expected field line, got %q", content)
	}
	if strings.Contains(string(content), "\x1b[") {
		t.Fatalf("expected plain text in log file, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")

	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerRendersSubject(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "subject.log")

	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.NewComponentLogger(logger, "worker").Info("frames written",
		logging.String(logging.FieldRunID, "0123456789abcdef"),
		logging.Int(logging.FieldBucket, 2),
		logging.String(logging.FieldStage, "write"),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	want := "INFO [worker] run 01234567 · Bucket #2 (write) – frames written"
	if !strings.Contains(string(content), want) {
		t.Fatalf("expected %q in %q", want, content)
	}
}

func TestNewJSONLogger(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")

	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("json message", logging.String("tool", "cellpose"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &entry); err != nil {
		t.Fatalf("decode json line: %v (%q)", err, content)
	}
	if entry["level"] != "warn" || entry["msg"] != "json message" || entry["tool"] != "cellpose" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", entry)
	}
}

func TestConsoleLoggerCompactsFramesAndDurations(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "frames.log")

	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("run finished",
		logging.Frames("missing_frames", []int{0, 1, 2, 3, 7}),
		logging.Duration("elapsed", 1234567891*time.Nanosecond),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, want := range []string{"    - missing_frames: 0-3,7", "    - elapsed: 1.235s"} {
		if !strings.Contains(string(content), want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
}

func TestJSONLoggerKeepsFrameArrays(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "frames.json")

	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("run finished",
		logging.Frames("missing_frames", []int{0, 2}),
		logging.Duration("elapsed", 1500*time.Millisecond),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &entry); err != nil {
		t.Fatalf("decode json line: %v (%q)", err, content)
	}
	frames, ok := entry["missing_frames"].([]any)
	if !ok || len(frames) != 2 || frames[0] != float64(0) || frames[1] != float64(2) {
		t.Fatalf("expected frame array, got %#v", entry["missing_frames"])
	}
	if entry["elapsed"] != "1.5s" {
		t.Fatalf("expected readable duration, got %#v", entry["elapsed"])
	}
	ts, _ := entry["ts"].(string)
	if _, err := time.Parse("2006-01-02T15:04:05.000Z07:00", ts); err != nil {
		t.Fatalf("expected millisecond timestamp, got %q: %v", ts, err)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml", OutputPaths: []string{filepath.Join(t.TempDir(), "x.log")}}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	logger, err := logging.New(logging.Options{Level: "verbose", OutputPaths: []string{filepath.Join(t.TempDir(), "lvl.log")}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug disabled")
	}
	if !logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected info enabled")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := services.WithRunID(context.Background(), "run-1")
	ctx = services.WithBucket(ctx, 3)
	ctx = services.WithStage(ctx, "segment")

	logging.WithContext(ctx, base).Info("tagged")

	out := buf.String()
	for _, want := range []string{`"run_id":"run-1"`, `"bucket":3`, `"stage":"segment"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.WarnWithContext(logger, "mask missing", "mask_missing", logging.String(logging.FieldImpact, "blank frame"))

	out := buf.String()
	for _, want := range []string{`"event_type":"mask_missing"`, `"error_hint":"check logs for details"`, `"impact":"blank frame"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
}

package progress_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"segrun/internal/progress"
)

type recorder struct {
	mu       sync.Mutex
	lines    []string
	progress []float64
	statuses []string
}

func (r *recorder) Log(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *recorder) SetProgress(f float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, f)
}

func (r *recorder) SetStatus(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) snapshot() ([]string, []float64, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...), append([]float64(nil), r.progress...), append([]string(nil), r.statuses...)
}

func appendLine(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(text); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func TestParseProgress(t *testing.T) {
	tests := []struct {
		line string
		want float64
		ok   bool
	}{
		{"Processing 1/5 frames: 42.0% done", 0.42, true},
		{"2023-01-01 run 100% complete", 1, true},
		{"model cyto loaded 7.5% of weights", 0.075, true},
		{"no percent token here", 0, false},
		{"ends with 42%", 0, false},
		{"42% at start", 0, false},
		{"empty  % value", 0, false},
	}
	for _, tt := range tests {
		got, ok := progress.ParseProgress(tt.line)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("ParseProgress(%q) = %v, %v; want %v, %v", tt.line, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMonitorSkipsExistingLinesAndForwardsNewOnes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	appendLine(t, path, "old line 99.0% stale\n")

	rec := &recorder{}
	mon := progress.NewMonitor(path, rec, progress.WithInterval(10*time.Millisecond))
	if err := mon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := mon.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}

	appendLine(t, path, "loading model\nProcessing 1/5 frames: 42.0% done\n")
	waitFor(t, func() bool {
		lines, _, _ := rec.snapshot()
		return len(lines) == 2
	})
	mon.Stop()
	mon.Stop()

	lines, prog, statuses := rec.snapshot()
	if diff := cmp.Diff([]string{"loading model", "Processing 1/5 frames: 42.0% done"}, lines); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0.42, 1}, prog); diff != "" {
		t.Fatalf("progress mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{""}, statuses); diff != "" {
		t.Fatalf("status mismatch (-want +got):\n%s", diff)
	}
}

func TestMonitorWaitsForMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "later", "run.log")
	rec := &recorder{}
	mon := progress.NewMonitor(path, rec, progress.WithInterval(10*time.Millisecond))
	if err := mon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mon.Stop()

	time.Sleep(30 * time.Millisecond)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	appendLine(t, path, "first write\n")
	waitFor(t, func() bool {
		lines, _, _ := rec.snapshot()
		return len(lines) == 1 && lines[0] == "first write"
	})
}

func TestMonitorStopFlushesPendingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	rec := &recorder{}
	mon := progress.NewMonitor(path, rec, progress.WithInterval(time.Hour))
	if err := mon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	appendLine(t, path, "final 80% of frames\n")
	mon.Stop()

	lines, prog, _ := rec.snapshot()
	if len(lines) != 1 {
		t.Fatalf("expected flushed line, got %v", lines)
	}
	if diff := cmp.Diff([]float64{0.8, 1}, prog); diff != "" {
		t.Fatalf("progress mismatch (-want +got):\n%s", diff)
	}
}

func TestStopWithoutStartReportsCompletion(t *testing.T) {
	rec := &recorder{}
	progress.NewMonitor(filepath.Join(t.TempDir(), "run.log"), rec).Stop()
	_, prog, statuses := rec.snapshot()
	if diff := cmp.Diff([]float64{1}, prog); diff != "" {
		t.Fatalf("progress mismatch (-want +got):\n%s", diff)
	}
	if len(statuses) != 1 || statuses[0] != "" {
		t.Fatalf("expected cleared status, got %v", statuses)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"segrun/internal/history"
	"segrun/internal/imaging"
	"segrun/internal/services"
	"segrun/internal/testsupport"
)

func TestRunSegmentsAndRecordsHistory(t *testing.T) {
	env := setupCLITestEnv(t)
	env.useMaskingTool(t)
	for i := 0; i < 3; i++ {
		env.writeMask(t, string(rune('0'+i)), 6, 4, uint16(i+1))
	}
	input := filepath.Join(env.baseDir, "movie.tif")
	testsupport.WriteSeries(t, input, 6, 4, 5, nil)
	objectsPath := filepath.Join(env.baseDir, "out", "objects.csv")

	masksDir := filepath.Join(env.baseDir, "out", "masks")

	out, _, err := runCLI(t, []string{"run", input, "--time", "2:4", "--frame-interval", "0.5", "-o", objectsPath, "--masks-dir", masksDir, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var summary runSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary %q: %v", out, err)
	}
	if summary.Frames != 3 || summary.Buckets != 2 || summary.Objects != 3 || len(summary.MissingFrames) != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.MaskFiles != 3 {
		t.Fatalf("expected 3 exported masks, got %d", summary.MaskFiles)
	}
	if _, err := os.Stat(filepath.Join(masksDir, "4_cp_masks.png")); err != nil {
		t.Fatalf("expected mask named after source timepoint: %v", err)
	}

	f, err := os.Open(objectsPath)
	if err != nil {
		t.Fatalf("open objects: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read objects: %v", err)
	}
	if len(records) != 4 || strings.Join(records[0], ",") != strings.Join(objectHeader, ",") {
		t.Fatalf("unexpected csv: %v", records)
	}
	for i, rec := range records[1:] {
		wantFrame := []string{"2", "3", "4"}[i]
		wantTime := []string{"1", "1.5", "2"}[i]
		if rec[2] != wantFrame || rec[3] != wantTime {
			t.Fatalf("row %d frame/time = %s/%s, want %s/%s", i, rec[2], rec[3], wantFrame, wantTime)
		}
	}

	store := testsupport.MustOpenHistory(t, env.cfg)
	run, err := store.FindByRunID(context.Background(), summary.RunID)
	if err != nil || run == nil {
		t.Fatalf("expected recorded run, got %#v, %v", run, err)
	}
	if run.Status != services.StatusSucceeded || run.Objects != 3 || run.Frames != 3 {
		t.Fatalf("unexpected history row %#v", run)
	}

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, summary.RunID[:8])
	requireContains(t, out, "succeeded")

	entries, err := os.ReadDir(env.cfg.Paths.TempRoot)
	if err != nil {
		t.Fatalf("read temp root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected temp dirs to be cleaned up, found %d", len(entries))
	}
}

func TestRunWithoutMasksSubstitutesBlanks(t *testing.T) {
	env := setupCLITestEnv(t)
	input := filepath.Join(env.baseDir, "movie.tif")
	testsupport.WriteSeries(t, input, 4, 4, 2, nil)

	out, _, err := runCLI(t, []string{"run", input, "-q"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "Missing masks")
	requireContains(t, out, "0, 1")
}

func TestRunReportsLaunchFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.Chmod(env.cfg.Tool.Executable, 0o644); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	input := filepath.Join(env.baseDir, "movie.tif")
	testsupport.WriteSeries(t, input, 4, 4, 2, nil)

	_, _, err := runCLI(t, []string{"run", input, "-q"}, env.configPath)
	if !errors.Is(err, services.ErrLaunch) {
		t.Fatalf("expected launch error, got %v", err)
	}
	requireContains(t, err.Error(), "CellposeDetector: ")

	store := testsupport.MustOpenHistory(t, env.cfg)
	runs, err := store.List(context.Background(), history.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != services.StatusFailed || !strings.HasPrefix(runs[0].ErrorMessage, "CellposeDetector: ") {
		t.Fatalf("unexpected history %#v", runs)
	}
}

func TestRunRefusesConcurrentRunOfSameTool(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithoutHistory())
	lock := flock.New(filepath.Join(env.cfg.Paths.LogDir, "cellpose.lock"))
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("take lock: %v", err)
	}
	defer lock.Unlock()

	input := filepath.Join(env.baseDir, "movie.tif")
	testsupport.WriteSeries(t, input, 4, 4, 2, nil)
	_, _, err = runCLI(t, []string{"run", input, "-q"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "in progress") {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestRunRejectsBadRange(t *testing.T) {
	env := setupCLITestEnv(t)
	input := filepath.Join(env.baseDir, "movie.tif")
	testsupport.WriteSeries(t, input, 4, 4, 3, nil)

	_, _, err := runCLI(t, []string{"run", input, "--time", "1:9"}, env.configPath)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseRange(t *testing.T) {
	cases := []struct {
		in      string
		want    imaging.Range
		wantErr bool
	}{
		{in: "3:7", want: imaging.Range{Min: 3, Max: 7}},
		{in: " 4 ", want: imaging.Range{Min: 4, Max: 4}},
		{in: "0 : 2", want: imaging.Range{Min: 0, Max: 2}},
		{in: "5:1", wantErr: true},
		{in: "a:b", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseRange(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseRange(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("parseRange(%q) = %+v, %v", tc.in, got, err)
		}
	}
}

func TestDepsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"deps"}, env.configPath)
	if err != nil {
		t.Fatalf("deps: %v", err)
	}
	requireContains(t, out, "Cellpose")
	requireContains(t, out, "Temporary directory")

	if err := os.Remove(env.cfg.Tool.Executable); err != nil {
		t.Fatalf("remove tool: %v", err)
	}
	out, _, err = runCLI(t, []string{"deps"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "1 required dependency unavailable") {
		t.Fatalf("expected missing dependency error, got %v", err)
	}
	requireContains(t, out, "missing")
}

func TestHistoryEmptyAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No runs recorded")

	store := testsupport.MustOpenHistory(t, env.cfg)
	if _, err := store.Record(context.Background(), history.Run{RunID: "r1", Tool: "cellpose", Status: services.StatusCanceled}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	out, _, err = runCLI(t, []string{"history", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("history clear: %v", err)
	}
	requireContains(t, out, "Removed 1 run")
}

func TestLogsShowsLastLines(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"logs", "--tool"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "No log entries available")

	for _, line := range []string{"one", "two", "three"} {
		if err := appendLine(env.cfg.LogFilePath(), line); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	out, _, err = runCLI(t, []string{"logs", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "one") || !strings.Contains(out, "two\nthree") {
		t.Fatalf("unexpected output %q", out)
	}
}

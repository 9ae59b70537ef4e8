package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"segrun/internal/config"
	"segrun/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	maskDir    string
}

// maskingTool copies prepared masks named after each input frame into the
// tool's working directory and appends a progress line to the tool log.
const maskingTool = `dir=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--dir" ]; then dir="$2"; fi
  shift
done
for f in "$dir"/*.tif; do
  stem=$(basename "$f" .tif)
  cp "%[1]s/${stem}_cp_masks.png" "$dir/" 2>/dev/null || true
done
echo "segmenting 100%% done" >> "%[2]s"
exit 0`

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("SEGRUN_TOOL_EXECUTABLE", "")

	maskDir := filepath.Join(base, "masks")
	if err := os.MkdirAll(maskDir, 0o755); err != nil {
		t.Fatalf("mkdir masks: %v", err)
	}

	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithMultiprocess(2, runtime.GOOS)}, opts...)...)
	configPath := filepath.Join(homeDir, ".config", "segrun", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		baseDir:    base,
		maskDir:    maskDir,
	}
}

// useMaskingTool swaps the configured executable for maskingTool.
func (e *cliTestEnv) useMaskingTool(t *testing.T) {
	t.Helper()
	script := fmt.Sprintf(maskingTool, e.maskDir, e.cfg.Progress.LogFile)
	if err := os.WriteFile(e.cfg.Tool.Executable, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("write masking tool: %v", err)
	}
}

// writeMask stores a width x height mask for frame name with one square
// object of the given label.
func (e *cliTestEnv) writeMask(t *testing.T, name string, width, height int, label uint16) {
	t.Helper()
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetGray16(x, y, color.Gray16{Y: label})
		}
	}
	f, err := os.Create(filepath.Join(e.maskDir, name+"_cp_masks.png"))
	if err != nil {
		t.Fatalf("create mask: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode mask: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	platforms := make([]string, len(cfg.Concurrency.MultiprocessPlatforms))
	for i, p := range cfg.Concurrency.MultiprocessPlatforms {
		platforms[i] = fmt.Sprintf("%q", p)
	}
	content := fmt.Sprintf(`[paths]
temp_root = %q
log_dir = %q
history_db = %q

[tool]
name = %q
executable = %q

[concurrency]
num_threads = %d
multiprocess_platforms = [%s]

[worker]
kill_grace_seconds = %d

[progress]
poll_interval_ms = %d
log_file = %q

[logging]
level = "warn"

[history]
enabled = %t
`,
		cfg.Paths.TempRoot,
		cfg.Paths.LogDir,
		cfg.Paths.HistoryDB,
		cfg.Tool.Name,
		cfg.Tool.Executable,
		cfg.Concurrency.NumThreads,
		strings.Join(platforms, ", "),
		cfg.Worker.KillGraceSeconds,
		cfg.Progress.PollIntervalMS,
		cfg.Progress.LogFile,
		cfg.History.Enabled,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line + "\n")
	return err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

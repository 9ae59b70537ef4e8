package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"segrun/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test
// and a tool executable that exits successfully without writing masks.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.TempRoot = filepath.Join(base, "tmp")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.HistoryDB = filepath.Join(base, "state", "history.db")
	cfgVal.Progress.LogFile = filepath.Join(base, "tool", "run.log")
	cfgVal.Progress.PollIntervalMS = 20
	cfgVal.Worker.KillGraceSeconds = 1
	cfgVal.Concurrency.NumThreads = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	WithStubTool("exit 0")(builder)

	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(builder.cfg.Progress.LogFile), 0o755); err != nil {
		t.Fatalf("mkdir tool log dir: %v", err)
	}
	return builder.cfg
}

// WithTool selects the wrapped tool by name.
func WithTool(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Tool.Name = name
	}
}

// WithStubTool writes a shell script with the given body and uses it as the
// tool executable. The script receives the tool's command line.
func WithStubTool(body string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		target := filepath.Join(binDir, "segtool-stub")
		script := []byte("#!/bin/sh\n" + body + "\n")
		if err := os.WriteFile(target, script, 0o755); err != nil {
			b.t.Fatalf("write stub tool: %v", err)
		}
		b.cfg.Tool.Executable = target
	}
}

// WithMultiprocess allows n concurrent tool processes on the running
// platform.
func WithMultiprocess(n int, platform string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Concurrency.NumThreads = n
		b.cfg.Concurrency.MultiprocessPlatforms = []string{platform}
	}
}

// WithoutHistory disables the run ledger.
func WithoutHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}

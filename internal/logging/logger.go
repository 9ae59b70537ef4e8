package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"segrun/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string
	OutputPaths []string
	Development bool
	// NoColor disables tint output even when writing to a terminal.
	NoColor bool
}

type output struct {
	writer   io.Writer
	terminal bool
}

// New constructs a slog logger using the provided options. Each output gets
// its own handler so a terminal can be colored while a log file stays plain.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	outputs, err := openWriters(defaultSlice(opts.OutputPaths, []string{"stderr"}))
	if err != nil {
		return nil, err
	}

	addSource := opts.Development || level <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	handlers := make([]slog.Handler, 0, len(outputs))
	for _, out := range outputs {
		switch format {
		case "json":
			handler, err := newJSONHandler(out.writer, levelVar, addSource)
			if err != nil {
				return nil, err
			}
			handlers = append(handlers, handler)
		case "console":
			if out.terminal && !opts.NoColor {
				handlers = append(handlers, newTintHandler(out.writer, levelVar, addSource))
			} else {
				handlers = append(handlers, newPrettyHandler(out.writer, levelVar, addSource))
			}
		default:
			return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
		}
	}

	return slog.New(newFanoutHandler(handlers...)), nil
}

// NewFromConfig creates a logger writing to stderr and to segrun.log in the
// configured log directory.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}

	outputPaths := []string{"stderr"}
	if cfg.Paths.LogDir != "" {
		if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		outputPaths = append(outputPaths, cfg.LogFilePath())
	}

	return New(Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputPaths,
	})
}

func newTintHandler(w io.Writer, lvl slog.Leveler, addSource bool) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		AddSource:  addSource,
		TimeFormat: "15:04:05",
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaultSlice(value []string, fallback []string) []string {
	if len(value) == 0 {
		return append([]string(nil), fallback...)
	}
	return append([]string(nil), value...)
}

func openWriters(paths []string) ([]output, error) {
	seen := map[string]struct{}{}
	var outputs []output

	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}

		switch trimmed {
		case "stdout":
			outputs = append(outputs, output{writer: os.Stdout, terminal: isTerminal(os.Stdout)})
		case "stderr":
			outputs = append(outputs, output{writer: os.Stderr, terminal: isTerminal(os.Stderr)})
		default:
			if err := ensureLogDir(trimmed); err != nil {
				return nil, err
			}
			file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", trimmed, err)
			}
			outputs = append(outputs, output{writer: file})
		}
	}

	if len(outputs) == 0 {
		outputs = append(outputs, output{writer: os.Stderr, terminal: isTerminal(os.Stderr)})
	}
	return outputs, nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

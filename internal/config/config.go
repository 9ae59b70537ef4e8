package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"segrun/internal/partition"
	"segrun/internal/segtool"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file locations.
type Paths struct {
	// TempRoot is the parent of per-bucket temp directories; empty uses the
	// system temp dir.
	TempRoot  string `toml:"temp_root"`
	LogDir    string `toml:"log_dir"`
	HistoryDB string `toml:"history_db"`
}

// Tool describes the wrapped segmentation tool and its parameters.
type Tool struct {
	Name              string   `toml:"name"`
	Executable        string   `toml:"executable"`
	Model             string   `toml:"model"`
	CustomModelPath   string   `toml:"custom_model_path"`
	Chan              int      `toml:"chan"`
	Chan2             int      `toml:"chan2"`
	Diameter          float64  `toml:"diameter"`
	UseGPU            bool     `toml:"use_gpu"`
	Is3D              bool     `toml:"do_3d"`
	Anisotropy        float64  `toml:"anisotropy"`
	FlowThreshold     *float64 `toml:"flow_threshold"`
	CellProbThreshold *float64 `toml:"cellprob_threshold"`
	MaskThreshold     *float64 `toml:"mask_threshold"`
	SaveTIF           bool     `toml:"save_tif"`
	SimplifyContours  bool     `toml:"simplify_contours"`
	ExtraArgs         []string `toml:"extra_args"`
}

// Concurrency controls how many tool processes run at once.
type Concurrency struct {
	// NumThreads is the process count on multiprocess platforms; zero means
	// half the logical CPUs.
	NumThreads            int      `toml:"num_threads"`
	MultiprocessPlatforms []string `toml:"multiprocess_platforms"`
}

// Worker contains external process lifecycle settings.
type Worker struct {
	KillGraceSeconds int  `toml:"kill_grace_seconds"`
	TimeoutSeconds   int  `toml:"timeout_seconds"`
	FailOnExitCode   bool `toml:"fail_on_exit_code"`
	ForwardOutput    bool `toml:"forward_output"`
}

// Progress contains tool log tailing settings.
type Progress struct {
	PollIntervalMS int `toml:"poll_interval_ms"`
	// LogFile overrides the tool's default ~/.<tool>/run.log.
	LogFile string `toml:"log_file"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// History controls the sqlite run ledger.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Config encapsulates all configuration values for segrun.
//
// Configuration sections by subsystem:
//   - Paths: temp, log and history locations
//   - Tool: segmentation tool, model and thresholds
//   - Concurrency: process count policy
//   - Worker: kill grace, timeout and exit code handling
//   - Progress: tool log polling
//   - Logging: log format and level
//   - History: run ledger toggle
type Config struct {
	Paths       Paths       `toml:"paths"`
	Tool        Tool        `toml:"tool"`
	Concurrency Concurrency `toml:"concurrency"`
	Worker      Worker      `toml:"worker"`
	Progress    Progress    `toml:"progress"`
	Logging     Logging     `toml:"logging"`
	History     History     `toml:"history"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/segrun/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("segrun.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log directory and the history database's
// parent directory.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir}
	if c.History.Enabled && c.Paths.HistoryDB != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.HistoryDB))
	}
	if c.Paths.TempRoot != "" {
		dirs = append(dirs, c.Paths.TempRoot)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ToolProfile returns the registered profile for the configured tool with the
// mask extension matching the save format.
func (c *Config) ToolProfile() (segtool.Profile, error) {
	profile, err := segtool.Lookup(c.Tool.Name)
	if err != nil {
		return segtool.Profile{}, err
	}
	return c.ToolSettings(profile).MaskProfile(profile), nil
}

// ToolSettings maps the [tool] section onto command line settings. The
// probability threshold follows the profile's flag.
func (c *Config) ToolSettings(profile segtool.Profile) segtool.Settings {
	prob := c.Tool.CellProbThreshold
	if profile.ProbFlag == "--mask_threshold" {
		prob = c.Tool.MaskThreshold
	}
	return segtool.Settings{
		Executable:       c.Tool.Executable,
		Model:            c.model(profile),
		Chan:             c.Tool.Chan,
		Chan2:            c.Tool.Chan2,
		Diameter:         c.Tool.Diameter,
		UseGPU:           c.Tool.UseGPU,
		Is3D:             c.Tool.Is3D,
		Anisotropy:       c.Tool.Anisotropy,
		FlowThreshold:    c.Tool.FlowThreshold,
		ProbThreshold:    prob,
		SaveTIF:          c.Tool.SaveTIF,
		SimplifyContours: c.Tool.SimplifyContours,
		ExtraArgs:        append([]string(nil), c.Tool.ExtraArgs...),
	}
}

func (c *Config) model(profile segtool.Profile) segtool.Model {
	name := c.Tool.Model
	if name == "" {
		name = profile.DefaultModel
	}
	return segtool.ParseModel(name, c.Tool.CustomModelPath)
}

// Policy returns the concurrency policy for the configured tool.
func (c *Config) Policy() partition.Policy {
	return partition.Policy{
		UseGPU:                c.Tool.UseGPU,
		NumThreads:            c.Concurrency.NumThreads,
		MultiprocessPlatforms: append([]string(nil), c.Concurrency.MultiprocessPlatforms...),
	}
}

// KillGrace is the delay between SIGTERM and SIGKILL for a cancelled tool.
func (c *Config) KillGrace() time.Duration {
	return time.Duration(c.Worker.KillGraceSeconds) * time.Second
}

// WorkerTimeout bounds each tool process; zero means no limit.
func (c *Config) WorkerTimeout() time.Duration {
	return time.Duration(c.Worker.TimeoutSeconds) * time.Second
}

// PollInterval is the tool log polling period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Progress.PollIntervalMS) * time.Millisecond
}

// LogFilePath returns the application log file inside the log directory.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "segrun.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

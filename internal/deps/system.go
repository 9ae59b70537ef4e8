package deps

import (
	"context"
	"os"

	"segrun/internal/config"
	"segrun/internal/segtool"
)

// CheckSystemDeps evaluates everything a run needs for cfg. The CLI `deps`
// command prints the result and `run` refuses to start when a required
// entry is unavailable.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []Status {
	if cfg == nil {
		return nil
	}
	var results []Status

	profile, err := cfg.ToolProfile()
	if err != nil {
		return append(results, Status{Name: "Segmentation tool", Detail: err.Error()})
	}
	tool := checkBinary(Requirement{
		Name:        profile.DisplayName(),
		Command:     cfg.Tool.Executable,
		Description: "Runs the segmentation",
	})
	results = append(results, tool)
	if tool.Available && segtool.RunsAsModule(cfg.Tool.Executable) {
		results = append(results, CheckPythonModule(ctx, cfg.Tool.Executable, profile.Name))
	}

	tempRoot := cfg.Paths.TempRoot
	if tempRoot == "" {
		tempRoot = os.TempDir()
	}
	results = append(results, CheckDirectoryAccess("Temporary directory", tempRoot))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	return results
}

// Missing returns the required entries that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}

package config

const (
	defaultLogDir           = "~/.local/share/segrun/logs"
	defaultHistoryDB        = "~/.local/share/segrun/history.db"
	defaultToolName         = "cellpose"
	defaultToolChan2        = -1
	defaultToolDiameter     = 30.0
	defaultToolAnisotropy   = 1.0
	defaultKillGraceSeconds = 5
	defaultPollIntervalMS   = 200
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultHistoryEnabled   = true
)

var defaultMultiprocessPlatforms = []string{"darwin"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:    defaultLogDir,
			HistoryDB: defaultHistoryDB,
		},
		Tool: Tool{
			Name:       defaultToolName,
			Chan2:      defaultToolChan2,
			Diameter:   defaultToolDiameter,
			Anisotropy: defaultToolAnisotropy,
		},
		Concurrency: Concurrency{
			MultiprocessPlatforms: append([]string(nil), defaultMultiprocessPlatforms...),
		},
		Worker: Worker{
			KillGraceSeconds: defaultKillGraceSeconds,
		},
		Progress: Progress{
			PollIntervalMS: defaultPollIntervalMS,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		History: History{
			Enabled: defaultHistoryEnabled,
		},
	}
}

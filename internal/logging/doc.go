// Package logging assembles structured slog loggers and formatting helpers used
// across segrun.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so worker and orchestrator code can tag log
// lines with run IDs, bucket indices, and stages. Console output on a terminal
// is rendered by tint; files and pipes get the plain text layout. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging

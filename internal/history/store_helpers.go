package history

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"segrun/internal/services"
)

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		sourcePath  sql.NullString
		model       sql.NullString
		status      string
		errorMsg    sql.NullString
		elapsedMS   int64
		startedRaw  string
		finishedRaw string
	)
	if err := scanner.Scan(
		&run.ID,
		&run.RunID,
		&sourcePath,
		&run.Tool,
		&model,
		&run.Frames,
		&run.Buckets,
		&run.Objects,
		&run.MissingFrames,
		&status,
		&errorMsg,
		&elapsedMS,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	run.SourcePath = sourcePath.String
	run.Model = model.String
	run.Status = services.Status(status)
	run.ErrorMessage = errorMsg.String
	run.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	if t, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = t
	}
	if t, err := parseTimeString(finishedRaw); err == nil {
		run.FinishedAt = t
	}
	return &run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// timeLayout has fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

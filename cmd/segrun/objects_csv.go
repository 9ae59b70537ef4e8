package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"segrun/internal/labels"
)

var objectHeader = []string{"id", "label", "frame", "time", "x", "y", "z", "size", "radius", "quality"}

// writeObjectsCSV writes one row per object in the source image's frame of
// reference.
func writeObjectsCSV(path string, objs []labels.Object) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create objects file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(objectHeader); err != nil {
		return fmt.Errorf("write objects header: %w", err)
	}
	for _, o := range objs {
		row := []string{
			strconv.Itoa(o.ID),
			strconv.Itoa(int(o.Label)),
			strconv.Itoa(o.Frame),
			formatNumber(o.Time),
			formatNumber(o.Position[0]),
			formatNumber(o.Position[1]),
			formatNumber(o.Position[2]),
			formatNumber(o.Size),
			formatNumber(o.Radius),
			formatNumber(o.Quality),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write object %d: %w", o.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush objects file: %w", err)
	}
	return f.Close()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

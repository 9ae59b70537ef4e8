// Package config loads, normalizes, and validates segrun configuration data.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours the SEGRUN_TOOL_EXECUTABLE environment fallback. The
// Config type carries every knob the CLI and orchestrator need: the wrapped
// segmentation tool and its parameters, concurrency policy, worker process
// lifecycle, progress polling, logging, and the run history ledger.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config

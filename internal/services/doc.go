// Package services defines shared utilities consumed by the detection pipeline
// stages and the wrapped segmentation tool integration.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, bucket indices, and stage names for
//     logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     (resource, launch, detection, cancellation) into run statuses.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services

// Package orchestrator sequences a segmentation run: split the source volume
// into frames, spread them over buckets, run one tool process per bucket,
// join, collect masks, convert labels to objects and shift them back into
// source coordinates.
//
// A run either returns every object or fails with a single message prefixed
// by the tool's detector name. Cancel stops live tool processes and keeps
// buckets that have not launched from starting one; a cancelled run reports
// services.ErrCanceled and leaves ErrorMessage empty.
package orchestrator

// Package progress watches the segmentation tool's shared run log while
// buckets execute.
//
// A Monitor polls the log from its end at the time of Start, hands every new
// line to an Observer, and reports a completion fraction for lines carrying a
// "NN.NN%" token. It never replays lines written before Start, waits for the
// file to appear, and restarts from the beginning when the file is truncated.
// Stop flushes pending lines, reports completion, and clears the status text.
package progress

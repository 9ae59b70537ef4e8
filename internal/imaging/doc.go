// Package imaging holds the in-memory image model shared by the detection
// pipeline: N-dimensional 16-bit volumes with named axes and physical
// calibration, the spatiotemporal interval that selects what to process, and
// the labeled mask stacks produced by the segmentation tool.
//
// It also owns file codecs for the formats the wrapped tools exchange:
// single and multi-page TIFF for frames and masks, and PNG masks.
package imaging

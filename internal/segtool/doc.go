// Package segtool describes the external segmentation tools segrun drives.
//
// A Profile captures what differs between tools (executable module name,
// mask file naming, log location, input restrictions) and Settings turns a
// run configuration into the argument vector handed to the tool. The
// orchestrator treats that vector as opaque.
package segtool

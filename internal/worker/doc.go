// Package worker runs one bucket of frames through the external segmentation
// tool.
//
// A Task owns an exclusive temp directory, writes its frames there, launches
// the tool with that directory as input and output, and reports the directory
// back for collection. Tasks move through a fixed state sequence:
//
//	Created -> TempDirReady -> FramesWritten -> ProcessRunning -> {Completed | Failed | Cancelled}
//
// Cancellation flows through the context handed to Run: a task that has not
// launched yet exits without starting a process, and a running process
// receives SIGTERM (its whole process group on unix) followed by a kill after
// the configured grace period.
package worker

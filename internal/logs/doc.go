// Package logs provides offset-based reads of append-only log files.
//
// ReadFrom returns only complete lines appended since a byte offset, so a
// writer caught mid-line is picked up on the next poll. Tail adds the "last N
// lines" and follow-mode operations behind `segrun logs`. A missing file reads
// as empty and a file shorter than the offset is treated as truncated.
package logs

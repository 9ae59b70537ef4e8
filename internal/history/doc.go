// Package history keeps a SQLite ledger of segmentation runs.
//
// Every run the CLI starts is recorded once it ends, whatever its outcome,
// so `segrun history` can show what was segmented, with which tool and
// model, how long it took and why it failed. The ledger is a convenience:
// schema changes bump schemaVersion and users delete the database to adopt
// the new layout.
package history

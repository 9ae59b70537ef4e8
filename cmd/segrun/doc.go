// Command segrun segments time-lapse microscopy stacks with Cellpose or
// Omnipose, running several tool processes in parallel where that pays off
// and turning the resulting masks into tracked-ready objects.
//
// Subcommands:
//
//	run      segment a TIFF stack and print or export the detected objects
//	deps     check the tool executable, its python module and directories
//	history  list past runs from the SQLite ledger
//	logs     show segrun's log or the tool's run.log
//	config   create or validate the configuration file
package main

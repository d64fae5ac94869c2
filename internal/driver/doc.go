// Package driver reconciles a generated-output directory against an input
// tree.
//
// A Driver runs once, through the phases
//
//	Init -> EnumeratePriorOutputs -> Walking -> Reconciling -> Reported
//
// Init creates the output directory. EnumeratePriorOutputs snapshots the
// files already there. Walking visits the input tree depth first, hands
// every file to the first matching tool and regenerates stale outputs.
// Reconciling deletes every prior output that no current input claimed.
//
// Setup problems are returned as errors and abort the run before any file
// is touched. Problems with a single input are recorded in the report and
// the walk continues.
package driver

// Package operations runs the pipeline as an ordered sequence of steps.
//
// The Manager orders registered steps by their dependencies, executes them
// one at a time with a per-step timeout, publishes run snapshots through
// the StatusBroadcaster and writes a manifest.json run report when the run
// ends. A failing step aborts the run and the remaining steps are skipped.
package operations

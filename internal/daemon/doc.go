// Package daemon coordinates the long-running reelforged process.
//
// It wires configuration, the job store, the scheduler and the HTTP API into
// a single lifecycle with flock-based locking to prevent multiple instances.
// On start the daemon recovers jobs left behind by the previous run; while
// running it sweeps stale job workspaces and prunes old logs on the
// maintenance interval. Status reports scheduler counts, staging usage, host
// load and encoder availability.
//
// Keep orchestration logic here: rendering belongs to the pipeline and
// admission to the queue, while the daemon focuses on startup, shutdown and
// the HTTP surface.
package daemon

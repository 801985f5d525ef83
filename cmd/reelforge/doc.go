// Package main hosts the reelforge CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the daemon API: submitting render requests, inspecting and
// cancelling jobs, reading processing logs and daemon status. It also carries
// configuration scaffolding and a foreground daemon runner so a single binary
// covers local use.
//
// Keep this package lean: add behavior to the internal packages first, then
// surface it here.
package main

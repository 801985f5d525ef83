// Package metrics exposes Prometheus collectors for the render daemon: job
// throughput, stage durations, collaborator retries, encoder runs and queue
// depth.
package metrics

// Package services defines shared utilities consumed by the render pipeline
// and its external collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, scene indexes, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, and KindOf which maps a
//     failure onto the error kind reported on a failed job.
//
// Collaborator clients (speech synthesis, avatar rendering, object storage)
// live in subpackages so each can be swapped or stubbed independently.
package services

// Package jobs defines the render job record, its status state machine and
// stage weights, and the Store that persists jobs and their processing logs.
//
// SQLiteStore is the production store; MemoryStore backs tests. Both return
// copies so the orchestrator that owns a job is the only writer. When the
// schema changes, update schema.sql and bump schemaVersion.
package jobs

// Package pipeline drives one render job from queued to a terminal status.
//
// The Orchestrator runs the stages in a fixed order (preparation, synthesis,
// avatar rendering, composition, post-processing, upload, analysis), maps
// each stage's internal percentage into its reserved slice of the job-wide
// progress scale, and persists every transition and processing-log entry
// through the injected jobs.Store. Synthesis and avatar calls fan out per
// scene under a sub-limit and share one RetryPolicy. Composition and the
// filter passes of post-processing run through the encoder monitor, so a
// cancelled job kills its encoder process.
//
// Cost is computed once, when the job completes, by ComputeCost.
package pipeline

// Package queue admits render jobs and schedules them onto the pipeline.
//
// Submissions are validated synchronously before a job record exists, so a
// rejected request leaves no trace in the store. Accepted jobs wait in a FIFO
// pending list; at most MaxConcurrency of them run at once, and each finished
// job releases its slot to the oldest pending job.
//
// Cancellation of a pending job never reaches the pipeline: the job leaves the
// pending list and is persisted as cancelled directly. Running jobs are
// cancelled through their context, with services.ErrCancelled as the cause.
// Stop cancels running jobs with services.ErrInterrupted instead, which the
// pipeline records as an interrupted failure.
//
// Recover runs once at daemon start. It requeues jobs that were still queued,
// fails jobs a crash left in processing and removes workspaces no job owns.
package queue

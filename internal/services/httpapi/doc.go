// Package httpapi is the shared JSON-over-HTTP client used by the synthesis,
// avatar and face enhancement collaborators. Failures are tagged with the
// services error markers; Retryable tells the pipeline which ones to repeat.
package httpapi

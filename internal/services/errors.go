package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation     = errors.New("validation error")
	ErrCollaborator   = errors.New("collaborator error")
	ErrEncoderProcess = errors.New("encoder process error")
	ErrPostProcessing = errors.New("post-processing warning")
	ErrCancelled      = errors.New("cancelled")
	ErrInterrupted    = errors.New("interrupted")
	ErrConfiguration  = errors.New("configuration error")
	ErrNotFound       = errors.New("not found")
	ErrTimeout        = errors.New("timeout")
	ErrTransient      = errors.New("transient failure")
)

// ErrorKind is the user-visible classification stored on failed jobs.
type ErrorKind string

const (
	KindValidation     ErrorKind = "ValidationError"
	KindCollaborator   ErrorKind = "CollaboratorError"
	KindEncoderProcess ErrorKind = "EncoderProcessError"
	KindPostProcessing ErrorKind = "PostProcessingWarning"
	KindCancellation   ErrorKind = "CancellationSignal"
	KindInterrupted    ErrorKind = "InterruptedError"
	KindInternal       ErrorKind = "InternalError"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// KindOf classifies an error chain. Cancellation is checked first so a stage
// that fails because its context was cancelled is never reported as a failure.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled):
		return KindCancellation
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration):
		return KindValidation
	case errors.Is(err, ErrEncoderProcess):
		return KindEncoderProcess
	case errors.Is(err, ErrCollaborator), errors.Is(err, ErrTimeout):
		return KindCollaborator
	case errors.Is(err, ErrPostProcessing):
		return KindPostProcessing
	case errors.Is(err, ErrInterrupted):
		return KindInterrupted
	default:
		return KindInternal
	}
}

// IsCancellation reports whether err represents a cancellation rather than a failure.
func IsCancellation(err error) bool {
	return err != nil && errors.Is(err, ErrCancelled)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

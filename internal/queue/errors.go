package queue

import (
	"fmt"
	"sort"
	"strings"

	"reelforge/internal/services"
)

// ValidationError lists the submission fields that failed validation, keyed
// by their JSON path (for example "scenes[1].avatar_id").
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "invalid submission"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid submission: " + strings.Join(parts, ", ")
}

// Unwrap lets services.KindOf classify the error as a validation failure.
func (e *ValidationError) Unwrap() error { return services.ErrValidation }

package jobs

import (
	"context"
	"errors"
)

// ErrExists is returned by Create when the job id is already taken.
var ErrExists = errors.New("job already exists")

// ListFilter narrows List results. Zero values mean no filtering.
type ListFilter struct {
	Statuses []Status
	Limit    int
}

func (f ListFilter) matches(status Status) bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// Store is the single source of truth for job records. Implementations return
// copies, so mutating a returned job never affects stored state until Update.
type Store interface {
	Create(ctx context.Context, job *RenderJob) error
	// Get returns nil, nil when the job does not exist.
	Get(ctx context.Context, id string) (*RenderJob, error)
	Update(ctx context.Context, job *RenderJob) error
	AppendLog(ctx context.Context, id string, entry LogEntry) error
	Logs(ctx context.Context, id string) ([]LogEntry, error)
	// List returns jobs in creation order.
	List(ctx context.Context, filter ListFilter) ([]*RenderJob, error)
	Close() error
}

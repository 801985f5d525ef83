package api

import (
	"context"

	"reelforge/internal/jobs"
	"reelforge/internal/queue"
)

// JobBackend abstracts the scheduler operations the API exposes.
type JobBackend interface {
	Submit(ctx context.Context, req queue.SubmitRequest) (*jobs.RenderJob, error)
	Get(ctx context.Context, id string) (*jobs.RenderJob, error)
	List(ctx context.Context, filter jobs.ListFilter) ([]*jobs.RenderJob, error)
	Logs(ctx context.Context, id string) ([]jobs.LogEntry, error)
	Cancel(ctx context.Context, id string) (bool, error)
}

// JobService exposes job operations returning API DTOs.
type JobService struct {
	backend JobBackend
}

// NewJobService constructs a JobService around backend.
func NewJobService(backend JobBackend) *JobService {
	if backend == nil {
		return nil
	}
	return &JobService{backend: backend}
}

// Submit validates and enqueues a render request.
func (s *JobService) Submit(ctx context.Context, req queue.SubmitRequest) (Job, error) {
	job, err := s.backend.Submit(ctx, req)
	if err != nil {
		return Job{}, err
	}
	return FromJob(job), nil
}

// Describe fetches a single job.
func (s *JobService) Describe(ctx context.Context, id string) (Job, error) {
	job, err := s.backend.Get(ctx, id)
	if err != nil {
		return Job{}, err
	}
	return FromJob(job), nil
}

// List returns jobs filtered by status in creation order.
func (s *JobService) List(ctx context.Context, limit int, statuses ...jobs.Status) ([]Job, error) {
	list, err := s.backend.List(ctx, jobs.ListFilter{Statuses: statuses, Limit: limit})
	if err != nil {
		return nil, err
	}
	return FromJobs(list), nil
}

// Counts returns job totals keyed by status, including zero counts.
func (s *JobService) Counts(ctx context.Context) (map[string]int, error) {
	list, err := s.backend.List(ctx, jobs.ListFilter{})
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(jobs.AllStatuses()))
	for _, status := range jobs.AllStatuses() {
		counts[string(status)] = 0
	}
	for _, job := range list {
		counts[string(job.Status)]++
	}
	return counts, nil
}

// Logs returns the processing log of a job.
func (s *JobService) Logs(ctx context.Context, id string) (LogResponse, error) {
	entries, err := s.backend.Logs(ctx, id)
	if err != nil {
		return LogResponse{}, err
	}
	return LogResponse{ID: id, Entries: FromLogEntries(entries)}, nil
}

// Cancel cancels a job and reports its status afterwards.
func (s *JobService) Cancel(ctx context.Context, id string) (CancelResponse, error) {
	ok, err := s.backend.Cancel(ctx, id)
	if err != nil {
		return CancelResponse{}, err
	}
	resp := CancelResponse{ID: id, Cancelled: ok}
	if job, err := s.backend.Get(ctx, id); err == nil && job != nil {
		resp.Status = string(job.Status)
	}
	return resp, nil
}

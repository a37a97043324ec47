// Package memory provides in-memory stores for development and testing.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/stringfinder/internal/scan"
)

// JobStore keeps scan jobs in a map. Stored jobs are copied on the way in
// and out so callers never share slices with the store.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]scan.Job
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]scan.Job)}
}

// Get fetches a job by ID.
func (s *JobStore) Get(_ context.Context, jobID string) (scan.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return scan.Job{}, scan.ErrJobNotFound
	}
	return cloneJob(job), nil
}

// Put creates or replaces the job record.
func (s *JobStore) Put(_ context.Context, job scan.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// Len reports the number of stored jobs.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func cloneJob(job scan.Job) scan.Job {
	if job.URLs != nil {
		job.URLs = append([]string(nil), job.URLs...)
	}
	if job.Results != nil {
		job.Results = append([]scan.FetchResult(nil), job.Results...)
	}
	if job.Started != nil {
		started := *job.Started
		job.Started = &started
	}
	if job.Finished != nil {
		finished := *job.Finished
		job.Finished = &finished
	}
	return job
}

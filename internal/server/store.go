package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonathan/leadscout/internal/types"
)

// jobEntry is the server-side record of one submitted job.
type jobEntry struct {
	config      types.JobConfig
	status      types.JobStatus
	result      *types.JobResult
	cancel      context.CancelFunc
	submittedAt time.Time
}

// jobStore tracks submitted jobs in memory. Terminal results are also
// mirrored to PostgreSQL when configured, but the store is the source of
// truth for jobs still queued or running.
type jobStore struct {
	mu   sync.RWMutex
	jobs map[string]*jobEntry
}

func newJobStore() *jobStore {
	return &jobStore{jobs: make(map[string]*jobEntry)}
}

// add registers a newly accepted job as queued.
func (s *jobStore) add(config types.JobConfig, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[config.JobID] = &jobEntry{
		config:      config,
		status:      types.StatusQueued,
		cancel:      cancel,
		submittedAt: time.Now().UTC(),
	}
}

// remove drops a job that was never queued successfully.
func (s *jobStore) remove(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
}

// markRunning transitions a job to running unless it was already cancelled.
func (s *jobStore) markRunning(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.jobs[jobID]
	if !ok || entry.status.Terminal() {
		return false
	}
	entry.status = types.StatusRunning
	return true
}

// complete records a terminal result.
func (s *jobStore) complete(jobID string, result *types.JobResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.jobs[jobID]
	if !ok {
		return
	}
	entry.status = result.Status
	entry.result = result
	entry.cancel = nil
}

// jobView is a read-only snapshot of a store entry.
type jobView struct {
	JobID       string
	Status      types.JobStatus
	Result      *types.JobResult
	SubmittedAt time.Time
}

// get returns a snapshot of a job, or false when unknown.
func (s *jobStore) get(jobID string) (jobView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.jobs[jobID]
	if !ok {
		return jobView{}, false
	}
	return jobView{
		JobID:       entry.config.JobID,
		Status:      entry.status,
		Result:      entry.result,
		SubmittedAt: entry.submittedAt,
	}, true
}

// requestCancel fires the job's cancel function. The second return reports
// whether the job was still cancellable; jobs already terminal are not.
func (s *jobStore) requestCancel(jobID string) (found, cancelled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.jobs[jobID]
	if !ok {
		return false, false
	}
	if entry.status.Terminal() || entry.cancel == nil {
		return true, false
	}
	entry.cancel()
	return true, true
}

// list returns snapshots of all known jobs, newest first.
func (s *jobStore) list() []jobView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]jobView, 0, len(s.jobs))
	for _, entry := range s.jobs {
		views = append(views, jobView{
			JobID:       entry.config.JobID,
			Status:      entry.status,
			Result:      entry.result,
			SubmittedAt: entry.submittedAt,
		})
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].SubmittedAt.After(views[j].SubmittedAt)
	})
	return views
}

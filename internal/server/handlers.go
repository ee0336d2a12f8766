package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/leadscout/internal/pipeline"
	"github.com/jonathan/leadscout/internal/pipeline/stages"
	"github.com/jonathan/leadscout/internal/types"
)

// submitJobRequest is the POST /jobs payload.
type submitJobRequest struct {
	Keywords     []string       `json:"keywords"`
	Priority     types.Priority `json:"priority"`
	CaptureMedia bool           `json:"capture_media"`
	RecordVideo  bool           `json:"record_video"`
}

// jobSummary is the wire shape for non-terminal job lookups and listings.
type jobSummary struct {
	JobID       string          `json:"job_id"`
	Status      types.JobStatus `json:"status"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"database": s.database != nil,
	})
}

// handleSubmitJob validates a job request, queues it, and returns 202 with
// the assigned job ID. Execution happens on the worker pool.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Priority == "" {
		req.Priority = types.PriorityNormal
	}
	if req.RecordVideo && !req.CaptureMedia {
		errorResponse(w, http.StatusBadRequest, "record_video requires capture_media")
		return
	}

	config := types.JobConfig{
		JobID:        uuid.NewString(),
		Keywords:     req.Keywords,
		Priority:     req.Priority,
		CaptureMedia: req.CaptureMedia,
		RecordVideo:  req.RecordVideo,
	}
	if err := config.Validate(); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid job config: "+err.Error())
		return
	}

	stageList := stages.DefaultStages(stages.Options{
		BaseURL:  s.config.BaseURL,
		Keywords: config.Keywords,
	})

	// The job outlives this request, so it gets its own context.
	jobCtx, cancel := context.WithCancel(context.Background())
	s.store.add(config, cancel)

	select {
	case s.queue <- queuedJob{config: config, stages: stageList, ctx: jobCtx}:
	default:
		s.store.remove(config.JobID)
		cancel()
		errorResponse(w, http.StatusServiceUnavailable, "job queue is full, retry later")
		return
	}

	log.Printf("[%s] job accepted (priority=%s keywords=%v)", config.JobID, config.Priority, config.Keywords)
	jsonResponse(w, http.StatusAccepted, jobSummary{
		JobID:       config.JobID,
		Status:      types.StatusQueued,
		SubmittedAt: time.Now().UTC(),
	})
}

// handleGetJob returns the full result for terminal jobs and a summary for
// queued or running ones. Falls back to the database for jobs evicted from
// memory (e.g. after a restart).
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	view, ok := s.store.get(jobID)
	if ok {
		if view.Result != nil {
			jsonResponse(w, http.StatusOK, view.Result)
			return
		}
		jsonResponse(w, http.StatusOK, jobSummary{
			JobID:       view.JobID,
			Status:      view.Status,
			SubmittedAt: view.SubmittedAt,
		})
		return
	}

	if s.database != nil {
		result, err := s.database.GetResult(r.Context(), jobID)
		if err != nil {
			log.Printf("[%s] database lookup failed: %v", jobID, err)
			errorResponse(w, http.StatusInternalServerError, "failed to look up job")
			return
		}
		if result != nil {
			jsonResponse(w, http.StatusOK, result)
			return
		}
	}

	errorResponse(w, http.StatusNotFound, "job not found")
}

// handleCancelJob requests cooperative cancellation. The job transitions to
// cancelled once its worker observes the signal, so the response is 202,
// not 200.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	found, cancelled := s.store.requestCancel(jobID)
	if !found {
		errorResponse(w, http.StatusNotFound, "job not found")
		return
	}
	if !cancelled {
		errorResponse(w, http.StatusConflict, "job already finished")
		return
	}

	log.Printf("[%s] cancellation requested", jobID)
	jsonResponse(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": "cancelling",
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	views := s.store.list()
	summaries := make([]jobSummary, 0, len(views))
	for _, v := range views {
		summaries = append(summaries, jobSummary{
			JobID:       v.JobID,
			Status:      v.Status,
			SubmittedAt: v.SubmittedAt,
		})
	}
	jsonResponse(w, http.StatusOK, map[string]any{"jobs": summaries})
}

// runWorker consumes queued jobs until the server shuts down. Each job gets
// a fresh session so a crashed browser never poisons the next job.
func (s *Server) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.queue:
			s.runJob(ctx, job)
		}
	}
}

func (s *Server) runJob(workerCtx context.Context, job queuedJob) {
	jobID := job.config.JobID

	// Cancelled while still queued: report without spinning up a browser.
	if job.ctx.Err() != nil {
		s.complete(skippedResult(job, types.StatusCancelled))
		return
	}
	if !s.store.markRunning(jobID) {
		return
	}

	session, err := s.newSession(job.ctx)
	if err != nil {
		log.Printf("[%s] failed to create session: %v", jobID, err)
		s.complete(skippedResult(job, types.StatusFailed))
		return
	}
	defer session.Cleanup()

	// Stop the job if either the client cancels it or the server shuts down.
	runCtx, cancel := mergeCancel(job.ctx, workerCtx)
	defer cancel()

	result, err := pipeline.New(session.Driver, session.Sink, s.config.Verbose).
		Execute(runCtx, job.config, job.stages)
	if err != nil {
		// Only validation errors return synchronously, and submission already
		// validated, so this indicates a bug.
		log.Printf("[%s] pipeline rejected job: %v", jobID, err)
		s.complete(skippedResult(job, types.StatusFailed))
		return
	}

	s.complete(result)
}

// complete records a terminal result in memory and mirrors it to the
// database when configured. Persistence failures degrade to a warning.
func (s *Server) complete(result *types.JobResult) {
	s.store.complete(result.JobID, result)
	log.Printf("%s", pipeline.Describe(result))

	if s.database == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.database.SaveResult(ctx, result); err != nil {
		log.Printf("[%s] warning: failed to persist result: %v", result.JobID, err)
	}
}

// skippedResult builds a terminal result for a job that never ran its
// stages, keeping the stage trace shape intact.
func skippedResult(job queuedJob, status types.JobStatus) *types.JobResult {
	now := time.Now().UTC()
	results := make([]types.StageResult, len(job.stages))
	for i, st := range job.stages {
		results[i] = types.StageResult{
			StageName: st.Name,
			StartedAt: now,
			EndedAt:   now,
			Outcome:   types.OutcomeSkipped,
		}
	}
	return &types.JobResult{
		JobID:     job.config.JobID,
		Status:    status,
		Stages:    results,
		Leads:     []types.Lead{},
		StartedAt: now,
		EndedAt:   now,
	}
}

// mergeCancel returns a context derived from primary that is also cancelled
// when secondary is done.
func mergeCancel(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(primary)
	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func jsonResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

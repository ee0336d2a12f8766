// Package stage executes the ordered stage sequence of a lead discovery job
// against the automation driver, handling timeouts, retries, and per-stage
// media capture.
package stage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jonathan/leadscout/internal/capture"
	"github.com/jonathan/leadscout/internal/driver"
	"github.com/jonathan/leadscout/internal/schemas"
	"github.com/jonathan/leadscout/internal/types"
)

// Runner executes stages strictly in declared order. It holds no cross-stage
// mutable state beyond the accumulating result sequence; the driver session
// and sink it wraps are exclusively owned by one job.
type Runner struct {
	driver  driver.Driver
	sink    capture.Sink
	verbose bool
}

// Output is what a full stage sequence run produces: one result per input
// stage (same order), the raw posts gathered by extract stages, and whether
// the run stopped early because the job was cancelled.
type Output struct {
	Results   []types.StageResult
	RawPosts  []types.RawPost
	Cancelled bool
}

// NewRunner creates a Runner bound to one driver session and media sink.
func NewRunner(d driver.Driver, sink capture.Sink, verbose bool) *Runner {
	return &Runner{driver: d, sink: sink, verbose: verbose}
}

// Run executes the stage sequence for the given job. A stage only starts
// after the previous stage reached a terminal outcome. When a required stage
// fails, or the context is cancelled between stages, the remaining stages are
// recorded as skipped so the output always matches the input order.
func (r *Runner) Run(ctx context.Context, job types.JobConfig, stages []types.Stage) Output {
	out := Output{Results: make([]types.StageResult, 0, len(stages))}

	for i, st := range stages {
		// Cooperative cancellation checkpoint between stages. An in-flight
		// stage is allowed to finish or time out; we only stop advancing.
		if ctx.Err() != nil {
			out.Cancelled = true
			r.skipRemaining(&out, stages[i:])
			return out
		}

		result, posts := r.runStage(ctx, job, st)
		out.Results = append(out.Results, result)
		out.RawPosts = append(out.RawPosts, posts...)

		if result.Outcome == types.OutcomeFailed && st.Required {
			r.skipRemaining(&out, stages[i+1:])
			return out
		}
	}

	return out
}

// skipRemaining records skipped results for stages that never ran.
func (r *Runner) skipRemaining(out *Output, remaining []types.Stage) {
	now := time.Now().UTC()
	for _, st := range remaining {
		out.Results = append(out.Results, types.StageResult{
			StageName: st.Name,
			StartedAt: now,
			EndedAt:   now,
			Outcome:   types.OutcomeSkipped,
		})
	}
}

// runStage invokes the stage's bound capability with immediate retries up to
// MaxRetries. Backoff, if any, is the driver's concern.
func (r *Runner) runStage(ctx context.Context, job types.JobConfig, st types.Stage) (types.StageResult, []types.RawPost) {
	result := types.StageResult{
		StageName: st.Name,
		StartedAt: time.Now().UTC(),
	}

	var posts []types.RawPost
	var stageErr *types.StageError

	attempts := st.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		result.Attempts = attempt
		if r.verbose && attempt > 1 {
			log.Printf("[%s] stage %s: retry %d/%d", job.JobID, st.Name, attempt-1, st.MaxRetries)
		}

		detail, attemptPosts, err := r.invoke(ctx, st)
		if err == nil {
			result.Detail = detail
			posts = attemptPosts
			stageErr = nil
			break
		}
		stageErr = classify(st, err)

		// No point retrying once the job itself is cancelled.
		if ctx.Err() != nil {
			break
		}
	}

	if stageErr != nil {
		result.Outcome = types.OutcomeFailed
		result.Error = stageErr
		result.EndedAt = time.Now().UTC()
		return result, nil
	}

	result.Outcome = types.OutcomeSuccess
	if st.CapturesMedia && job.CaptureMedia {
		ref, err := r.sink.Capture(ctx, job.JobID, st.Name)
		if err != nil {
			// Capture failures never fail the stage.
			result.Warning = fmt.Sprintf("%s: %v", types.ErrKindCaptureFailure, err)
			log.Printf("[%s] stage %s: capture failed: %v", job.JobID, st.Name, err)
		} else {
			result.MediaRef = ref
		}
	}

	result.EndedAt = time.Now().UTC()
	return result, posts
}

// invoke dispatches one attempt to the driver capability bound to the stage,
// bounded by the stage's hard deadline.
func (r *Runner) invoke(ctx context.Context, st types.Stage) (string, []types.RawPost, error) {
	stageCtx, cancel := context.WithTimeout(ctx, time.Duration(st.TimeoutMs)*time.Millisecond)
	defer cancel()

	switch st.Action {
	case types.ActionNavigate:
		return "", nil, r.driver.Navigate(stageCtx, st.Target)
	case types.ActionObserve:
		detail, err := r.driver.Observe(stageCtx, st.Instruction)
		return detail, nil, err
	case types.ActionExtract:
		posts, err := r.driver.Extract(stageCtx, st.Instruction, schemas.RawPostListSchema)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("extracted %d candidate posts", len(posts)), posts, nil
	default:
		return "", nil, fmt.Errorf("unknown stage action: %s", st.Action)
	}
}

// classify maps a driver error to a stage error kind. Deadline overruns are
// timeouts; everything else is a driver failure.
func classify(st types.Stage, err error) *types.StageError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &types.StageError{
			Kind:    types.ErrKindTimeout,
			Message: fmt.Sprintf("stage %s exceeded %dms deadline", st.Name, st.TimeoutMs),
			Cause:   err,
		}
	}
	return &types.StageError{
		Kind:    types.ErrKindDriverFailure,
		Message: fmt.Sprintf("stage %s driver call failed", st.Name),
		Cause:   err,
	}
}

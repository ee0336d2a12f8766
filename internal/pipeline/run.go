// Package pipeline orchestrates one lead discovery job: stage execution,
// lead extraction, scoring, and the final job report.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jonathan/leadscout/internal/capture"
	"github.com/jonathan/leadscout/internal/driver"
	"github.com/jonathan/leadscout/internal/extraction"
	"github.com/jonathan/leadscout/internal/scoring"
	"github.com/jonathan/leadscout/internal/stage"
	"github.com/jonathan/leadscout/internal/types"
)

// Pipeline runs jobs against one exclusively-owned driver session and media
// sink. It holds no job state after Execute returns.
type Pipeline struct {
	runner  *stage.Runner
	verbose bool
}

// New creates a Pipeline bound to a driver session and sink.
func New(d driver.Driver, sink capture.Sink, verbose bool) *Pipeline {
	return &Pipeline{
		runner:  stage.NewRunner(d, sink, verbose),
		verbose: verbose,
	}
}

// Execute runs a job to a terminal status. Validation failures abort before
// any stage runs and are returned synchronously; everything after that is
// reported through the JobResult, so a caller can tell "no leads found"
// (completed, empty lead set) from "pipeline broke" (failed or partial with
// a populated stage error).
func (p *Pipeline) Execute(ctx context.Context, config types.JobConfig, stages []types.Stage) (*types.JobResult, error) {
	if err := config.Validate(); err != nil {
		return nil, &types.StageError{
			Kind:    types.ErrKindValidation,
			Message: "invalid job config",
			Cause:   err,
		}
	}
	if err := types.ValidateStages(stages); err != nil {
		return nil, &types.StageError{
			Kind:    types.ErrKindValidation,
			Message: "invalid stage sequence",
			Cause:   err,
		}
	}

	result := &types.JobResult{
		JobID:     config.JobID,
		Status:    types.StatusRunning,
		StartedAt: time.Now().UTC(),
		Leads:     []types.Lead{},
	}

	log.Printf("[%s] starting job (%d stages, keywords: %v)", config.JobID, len(stages), config.Keywords)

	out := p.runner.Run(ctx, config, stages)
	result.Stages = out.Results

	extracted := extractionSucceeded(stages, out.Results)
	if extracted {
		result.Leads = p.scoreLeads(config, out.RawPosts)
	}

	// EndedAt is recorded exactly once, at the terminal transition below.
	switch {
	case out.Cancelled:
		result.Status = types.StatusCancelled
	case requiredStageFailed(stages, out.Results):
		result.Status = types.StatusFailed
		result.Leads = []types.Lead{}
	case anyStageFailed(out.Results):
		result.Status = types.StatusPartial
	default:
		result.Status = types.StatusCompleted
	}
	result.EndedAt = time.Now().UTC()

	log.Printf("[%s] job finished: status=%s leads=%d", config.JobID, result.Status, len(result.Leads))
	return result, nil
}

// scoreLeads converts raw posts into deduplicated, scored leads. Scores are
// always recomputed from the current metrics and text.
func (p *Pipeline) scoreLeads(config types.JobConfig, rawPosts []types.RawPost) []types.Lead {
	candidates := extraction.Extract(rawPosts)

	for i := range candidates {
		post := types.RawPost{
			Text:    candidates[i].Text,
			Likes:   candidates[i].Metrics.Likes,
			Replies: candidates[i].Metrics.Replies,
		}
		candidates[i].Score, candidates[i].Category = scoring.Score(post, config.Keywords)
	}

	if p.verbose {
		log.Printf("[%s] scored %d leads from %d raw posts", config.JobID, len(candidates), len(rawPosts))
	}
	return candidates
}

// extractionSucceeded reports whether every required extract stage succeeded.
func extractionSucceeded(stages []types.Stage, results []types.StageResult) bool {
	found := false
	for i, st := range stages {
		if st.Action != types.ActionExtract || i >= len(results) {
			continue
		}
		if results[i].Outcome != types.OutcomeSuccess {
			return false
		}
		found = true
	}
	return found
}

// requiredStageFailed reports whether any required stage ended failed.
func requiredStageFailed(stages []types.Stage, results []types.StageResult) bool {
	for i, st := range stages {
		if st.Required && i < len(results) && results[i].Outcome == types.OutcomeFailed {
			return true
		}
	}
	return false
}

func anyStageFailed(results []types.StageResult) bool {
	for _, res := range results {
		if res.Outcome == types.OutcomeFailed {
			return true
		}
	}
	return false
}

// Describe renders a one-line summary for logs and CLI output.
func Describe(result *types.JobResult) string {
	return fmt.Sprintf("job %s: %s (%d stages, %d leads, %s)",
		result.JobID, result.Status, len(result.Stages), len(result.Leads),
		result.EndedAt.Sub(result.StartedAt).Round(time.Millisecond))
}

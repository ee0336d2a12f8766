// Package types defines the shared data model for lead discovery jobs:
// job configuration, stages, stage results, raw posts, and scored leads.
package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Priority indicates how urgently a job should be scheduled.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// StageAction identifies which automation-driver capability a stage invokes.
type StageAction string

const (
	ActionNavigate StageAction = "navigate"
	ActionObserve  StageAction = "observe"
	ActionExtract  StageAction = "extract"
)

// JobConfig describes a single lead discovery job. It is immutable once the
// job starts executing.
type JobConfig struct {
	JobID        string   `json:"job_id" validate:"required"`
	Keywords     []string `json:"keywords" validate:"required,min=1,dive,required"`
	Priority     Priority `json:"priority" validate:"required,oneof=low normal high"`
	CaptureMedia bool     `json:"capture_media"`
	RecordVideo  bool     `json:"record_video"`
}

// Validate checks the JobConfig using the validator.
func (c *JobConfig) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// Stage is one discrete, named step of a job's automation sequence.
// Stages form a fixed, ordered sequence consumed by the stage runner.
type Stage struct {
	Name          string      `json:"name" validate:"required"`
	Action        StageAction `json:"action" validate:"required,oneof=navigate observe extract"`
	Target        string      `json:"target,omitempty"`      // URL for navigate stages
	Instruction   string      `json:"instruction,omitempty"` // natural-language instruction for observe/extract
	CapturesMedia bool        `json:"captures_media"`
	Required      bool        `json:"required"` // failure aborts the job instead of degrading it
	MaxRetries    int         `json:"max_retries" validate:"min=0"`
	TimeoutMs     int         `json:"timeout_ms" validate:"gt=0"`
}

// Validate checks a single Stage using the validator.
func (s *Stage) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}

// ValidateStages validates every stage and ensures stage names are unique
// within the job.
func ValidateStages(stages []Stage) error {
	if len(stages) == 0 {
		return fmt.Errorf("stage sequence is empty")
	}

	seen := make(map[string]bool, len(stages))
	for i := range stages {
		if err := stages[i].Validate(); err != nil {
			return fmt.Errorf("stage %q: %w", stages[i].Name, err)
		}
		if seen[stages[i].Name] {
			return fmt.Errorf("duplicate stage name: %s", stages[i].Name)
		}
		seen[stages[i].Name] = true
	}

	return nil
}

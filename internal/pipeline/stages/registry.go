// Package stages defines the default stage sequence for lead discovery jobs.
// The stage list is data consumed by a generic runner, not control flow, so
// tests can reorder or substitute stages without touching orchestration.
package stages

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jonathan/leadscout/internal/types"
)

// Canonical stage names for the default lead discovery sequence.
const (
	StageAuthenticate   = "authenticate"
	StageSearch         = "search"
	StageScan           = "scan"
	StageExtract        = "extract"
	StageProcessResults = "process_results"
)

// Per-stage defaults. Authentication gets the longest deadline because login
// pages are the slowest to settle; scan is informational and cheap.
const (
	authTimeoutMs    = 30000
	searchTimeoutMs  = 20000
	scanTimeoutMs    = 15000
	extractTimeoutMs = 30000
	processTimeoutMs = 10000

	defaultMaxRetries = 2
)

// Options tune the generated default sequence.
type Options struct {
	BaseURL  string // target site root, e.g. https://x.com
	Keywords []string
}

// DefaultStages builds the standard lead discovery sequence:
// authenticate -> search -> scan -> extract -> process_results.
// Authentication and extraction are required; the rest degrade the job to
// partial on failure.
func DefaultStages(opts Options) []types.Stage {
	base := opts.BaseURL
	if base == "" {
		base = "https://x.com"
	}
	query := strings.Join(opts.Keywords, " ")

	return []types.Stage{
		{
			Name:          StageAuthenticate,
			Action:        types.ActionNavigate,
			Target:        base,
			CapturesMedia: true,
			Required:      true,
			MaxRetries:    defaultMaxRetries,
			TimeoutMs:     authTimeoutMs,
		},
		{
			Name:          StageSearch,
			Action:        types.ActionNavigate,
			Target:        fmt.Sprintf("%s/search?q=%s&f=live", base, url.QueryEscape(query)),
			CapturesMedia: true,
			Required:      true,
			MaxRetries:    defaultMaxRetries,
			TimeoutMs:     searchTimeoutMs,
		},
		{
			Name:        StageScan,
			Action:      types.ActionObserve,
			Instruction: "Describe the visible search results and whether posts have loaded",
			MaxRetries:  1,
			TimeoutMs:   scanTimeoutMs,
		},
		{
			Name:          StageExtract,
			Action:        types.ActionExtract,
			Instruction:   "Extract every visible post with its author handle, text, engagement counts, and permalink",
			CapturesMedia: true,
			Required:      true,
			MaxRetries:    defaultMaxRetries,
			TimeoutMs:     extractTimeoutMs,
		},
		{
			Name:        StageProcessResults,
			Action:      types.ActionObserve,
			Instruction: "Confirm the results page is still responsive after extraction",
			MaxRetries:  0,
			TimeoutMs:   processTimeoutMs,
		},
	}
}

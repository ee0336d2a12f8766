// Package driver abstracts the browser automation capability behind a narrow
// interface so the pipeline can be exercised with deterministic fakes.
package driver

import (
	"context"

	"github.com/jonathan/leadscout/internal/types"
)

// Driver is the automation capability consumed by the stage runner. A driver
// instance models a single browser session and is exclusively owned by one
// pipeline run for its lifetime.
type Driver interface {
	// Navigate loads the given URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error
	// Observe executes a natural-language instruction against the current
	// page and returns a free-text description of what was found.
	Observe(ctx context.Context, instruction string) (string, error)
	// Extract pulls structured post data from the current page. The schema
	// describes the expected output shape; implementations must validate
	// their output against it before returning.
	Extract(ctx context.Context, instruction string, schema string) ([]types.RawPost, error)
}

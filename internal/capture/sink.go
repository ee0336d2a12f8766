// Package capture provides the media sink that durably stores screenshots
// tied to a job and stage.
package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Sink stores a capture for a job+stage pair and returns an opaque storage
// reference. Capture failures are never fatal to the calling stage.
type Sink interface {
	Capture(ctx context.Context, jobID, stageName string) (string, error)
}

// Screenshotter produces a PNG of the current page. The browser driver
// implements this so the sink can reuse the job's own session.
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// FilesystemSink writes screenshots under a media directory and returns the
// file path as the storage reference.
type FilesystemSink struct {
	shooter Screenshotter
	dir     string
}

// NewFilesystemSink creates a sink that stores captures in dir, creating it
// if needed.
func NewFilesystemSink(shooter Screenshotter, dir string) (*FilesystemSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory %s: %w", dir, err)
	}
	return &FilesystemSink{shooter: shooter, dir: dir}, nil
}

// Capture takes a screenshot of the current page and writes it to disk.
func (s *FilesystemSink) Capture(ctx context.Context, jobID, stageName string) (string, error) {
	data, err := s.shooter.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("screenshot failed: %w", err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s.png", jobID, stageName))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write capture %s: %w", path, err)
	}

	return path, nil
}

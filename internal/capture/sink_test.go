package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeShooter struct {
	data []byte
	err  error
}

func (s *fakeShooter) Screenshot(ctx context.Context) ([]byte, error) {
	return s.data, s.err
}

func TestFilesystemSink_WritesCapture(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFilesystemSink(&fakeShooter{data: []byte("png-bytes")}, dir)
	require.NoError(t, err)

	ref, err := sink.Capture(context.Background(), "job-1", "authenticate")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "job-1_authenticate.png"), ref)
	data, err := os.ReadFile(ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestFilesystemSink_ScreenshotFailure(t *testing.T) {
	sink, err := NewFilesystemSink(&fakeShooter{err: errors.New("browser gone")}, t.TempDir())
	require.NoError(t, err)

	_, err = sink.Capture(context.Background(), "job-1", "search")
	require.Error(t, err)
}

func TestNewFilesystemSink_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "media")

	_, err := NewFilesystemSink(&fakeShooter{}, dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

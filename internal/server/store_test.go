package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/leadscout/internal/types"
)

func addJob(s *jobStore, id string) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	s.add(types.JobConfig{JobID: id, Keywords: []string{"a"}, Priority: types.PriorityNormal}, cancel)
	return ctx
}

func TestJobStore_Lifecycle(t *testing.T) {
	s := newJobStore()
	addJob(s, "j1")

	view, ok := s.get("j1")
	require.True(t, ok)
	assert.Equal(t, types.StatusQueued, view.Status)

	require.True(t, s.markRunning("j1"))
	view, _ = s.get("j1")
	assert.Equal(t, types.StatusRunning, view.Status)

	s.complete("j1", &types.JobResult{JobID: "j1", Status: types.StatusCompleted})
	view, _ = s.get("j1")
	assert.Equal(t, types.StatusCompleted, view.Status)
	require.NotNil(t, view.Result)
}

func TestJobStore_GetUnknown(t *testing.T) {
	s := newJobStore()
	_, ok := s.get("absent")
	assert.False(t, ok)
}

func TestJobStore_RequestCancel(t *testing.T) {
	s := newJobStore()
	ctx := addJob(s, "j1")

	found, cancelled := s.requestCancel("j1")
	assert.True(t, found)
	assert.True(t, cancelled)
	assert.Error(t, ctx.Err(), "cancel must fire the job context")

	// Terminal jobs cannot be cancelled.
	s.complete("j1", &types.JobResult{JobID: "j1", Status: types.StatusCancelled})
	found, cancelled = s.requestCancel("j1")
	assert.True(t, found)
	assert.False(t, cancelled)

	found, _ = s.requestCancel("absent")
	assert.False(t, found)
}

func TestJobStore_MarkRunningAfterTerminal(t *testing.T) {
	s := newJobStore()
	addJob(s, "j1")
	s.complete("j1", &types.JobResult{JobID: "j1", Status: types.StatusFailed})

	assert.False(t, s.markRunning("j1"))
}

func TestJobStore_Remove(t *testing.T) {
	s := newJobStore()
	addJob(s, "j1")
	s.remove("j1")

	_, ok := s.get("j1")
	assert.False(t, ok)
}

func TestJobStore_ListNewestFirst(t *testing.T) {
	s := newJobStore()
	addJob(s, "old")
	time.Sleep(2 * time.Millisecond)
	addJob(s, "new")

	views := s.list()
	require.Len(t, views, 2)
	assert.Equal(t, "new", views[0].JobID)
	assert.Equal(t, "old", views[1].JobID)
}

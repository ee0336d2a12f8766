package stage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/leadscout/internal/types"
)

// fakeDriver scripts per-stage behavior keyed by navigate target or
// instruction text.
type fakeDriver struct {
	navigateErrs []error // popped per Navigate call
	navigateCall int
	observeText  string
	observeErr   error
	extractPosts []types.RawPost
	extractErr   error
	extractCalls int
	blockFor     time.Duration // simulate a slow driver honoring ctx
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	if d.blockFor > 0 {
		select {
		case <-time.After(d.blockFor):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := d.navigateCall
	d.navigateCall++
	if call < len(d.navigateErrs) {
		return d.navigateErrs[call]
	}
	return nil
}

func (d *fakeDriver) Observe(ctx context.Context, instruction string) (string, error) {
	return d.observeText, d.observeErr
}

func (d *fakeDriver) Extract(ctx context.Context, instruction, schema string) ([]types.RawPost, error) {
	d.extractCalls++
	return d.extractPosts, d.extractErr
}

type fakeSink struct {
	ref   string
	err   error
	calls int
}

func (s *fakeSink) Capture(ctx context.Context, jobID, stageName string) (string, error) {
	s.calls++
	return s.ref, s.err
}

func testJob() types.JobConfig {
	return types.JobConfig{
		JobID:        "job-1",
		Keywords:     []string{"automation"},
		Priority:     types.PriorityNormal,
		CaptureMedia: true,
	}
}

func navStage(name string, required bool, maxRetries int) types.Stage {
	return types.Stage{
		Name:       name,
		Action:     types.ActionNavigate,
		Target:     "https://x.com",
		Required:   required,
		MaxRetries: maxRetries,
		TimeoutMs:  1000,
	}
}

func TestRun_OutputMatchesInputOrder(t *testing.T) {
	d := &fakeDriver{observeText: "feed looks loaded", extractPosts: []types.RawPost{{Text: "p", AuthorHandle: "@a"}}}
	r := NewRunner(d, &fakeSink{}, false)

	stages := []types.Stage{
		navStage("authenticate", true, 0),
		{Name: "scan", Action: types.ActionObserve, Instruction: "describe the feed", MaxRetries: 0, TimeoutMs: 1000},
		{Name: "extract", Action: types.ActionExtract, Instruction: "pull posts", Required: true, MaxRetries: 0, TimeoutMs: 1000},
	}

	out := r.Run(context.Background(), testJob(), stages)

	require.Len(t, out.Results, 3)
	assert.Equal(t, "authenticate", out.Results[0].StageName)
	assert.Equal(t, "scan", out.Results[1].StageName)
	assert.Equal(t, "extract", out.Results[2].StageName)
	for _, res := range out.Results {
		assert.Equal(t, types.OutcomeSuccess, res.Outcome)
	}
	assert.Len(t, out.RawPosts, 1)
	assert.False(t, out.Cancelled)
}

func TestRun_RetriesExhaustedProducesFailedResult(t *testing.T) {
	// Scenario: maxRetries=2, all three attempts fail.
	driverErr := errors.New("selector not found")
	d := &fakeDriver{navigateErrs: []error{driverErr, driverErr, driverErr}}
	r := NewRunner(d, &fakeSink{}, false)

	out := r.Run(context.Background(), testJob(), []types.Stage{navStage("authenticate", false, 2)})

	require.Len(t, out.Results, 1)
	res := out.Results[0]
	assert.Equal(t, types.OutcomeFailed, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, d.navigateCall)
	require.NotNil(t, res.Error)
	assert.Equal(t, types.ErrKindDriverFailure, res.Error.Kind)
	assert.ErrorIs(t, res.Error, driverErr)
}

func TestRun_RetrySucceedsAfterFailure(t *testing.T) {
	d := &fakeDriver{navigateErrs: []error{errors.New("flaky"), nil}}
	r := NewRunner(d, &fakeSink{}, false)

	out := r.Run(context.Background(), testJob(), []types.Stage{navStage("search", false, 2)})

	require.Len(t, out.Results, 1)
	assert.Equal(t, types.OutcomeSuccess, out.Results[0].Outcome)
	assert.Equal(t, 2, out.Results[0].Attempts)
	assert.Nil(t, out.Results[0].Error)
}

func TestRun_TimeoutClassifiedAsTimeout(t *testing.T) {
	d := &fakeDriver{blockFor: 500 * time.Millisecond}
	r := NewRunner(d, &fakeSink{}, false)

	st := navStage("authenticate", true, 0)
	st.TimeoutMs = 20

	out := r.Run(context.Background(), testJob(), []types.Stage{st})

	require.Len(t, out.Results, 1)
	res := out.Results[0]
	assert.Equal(t, types.OutcomeFailed, res.Outcome)
	require.NotNil(t, res.Error)
	assert.Equal(t, types.ErrKindTimeout, res.Error.Kind)
}

func TestRun_RequiredFailureSkipsRemainingStages(t *testing.T) {
	d := &fakeDriver{navigateErrs: []error{errors.New("login wall")}}
	r := NewRunner(d, &fakeSink{}, false)

	stages := []types.Stage{
		navStage("authenticate", true, 0),
		{Name: "extract", Action: types.ActionExtract, Instruction: "pull posts", Required: true, MaxRetries: 0, TimeoutMs: 1000},
	}

	out := r.Run(context.Background(), testJob(), stages)

	require.Len(t, out.Results, 2)
	assert.Equal(t, types.OutcomeFailed, out.Results[0].Outcome)
	assert.Equal(t, types.OutcomeSkipped, out.Results[1].Outcome)
	assert.Zero(t, d.extractCalls)
}

func TestRun_AuxiliaryFailureContinues(t *testing.T) {
	d := &fakeDriver{observeErr: errors.New("nothing visible"), extractPosts: []types.RawPost{{Text: "p", AuthorHandle: "@a"}}}
	r := NewRunner(d, &fakeSink{}, false)

	stages := []types.Stage{
		{Name: "scan", Action: types.ActionObserve, Instruction: "scroll", MaxRetries: 0, TimeoutMs: 1000},
		{Name: "extract", Action: types.ActionExtract, Instruction: "pull posts", Required: true, MaxRetries: 0, TimeoutMs: 1000},
	}

	out := r.Run(context.Background(), testJob(), stages)

	require.Len(t, out.Results, 2)
	assert.Equal(t, types.OutcomeFailed, out.Results[0].Outcome)
	assert.Equal(t, types.OutcomeSuccess, out.Results[1].Outcome)
	assert.Len(t, out.RawPosts, 1)
}

func TestRun_CaptureAttachedOnSuccess(t *testing.T) {
	sink := &fakeSink{ref: "media/job-1_authenticate.png"}
	r := NewRunner(&fakeDriver{}, sink, false)

	st := navStage("authenticate", true, 0)
	st.CapturesMedia = true

	out := r.Run(context.Background(), testJob(), []types.Stage{st})

	require.Len(t, out.Results, 1)
	assert.Equal(t, "media/job-1_authenticate.png", out.Results[0].MediaRef)
	assert.Equal(t, 1, sink.calls)
}

func TestRun_CaptureFailureIsNonFatal(t *testing.T) {
	sink := &fakeSink{err: errors.New("disk full")}
	r := NewRunner(&fakeDriver{}, sink, false)

	st := navStage("authenticate", true, 0)
	st.CapturesMedia = true

	out := r.Run(context.Background(), testJob(), []types.Stage{st})

	require.Len(t, out.Results, 1)
	res := out.Results[0]
	assert.Equal(t, types.OutcomeSuccess, res.Outcome)
	assert.Empty(t, res.MediaRef)
	assert.Contains(t, res.Warning, string(types.ErrKindCaptureFailure))
}

func TestRun_NoCaptureWhenJobDisablesMedia(t *testing.T) {
	sink := &fakeSink{ref: "unused"}
	r := NewRunner(&fakeDriver{}, sink, false)

	job := testJob()
	job.CaptureMedia = false
	st := navStage("authenticate", true, 0)
	st.CapturesMedia = true

	out := r.Run(context.Background(), job, []types.Stage{st})

	require.Len(t, out.Results, 1)
	assert.Empty(t, out.Results[0].MediaRef)
	assert.Zero(t, sink.calls)
}

func TestRun_CancelledBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(&fakeDriver{}, &fakeSink{}, false)
	stages := []types.Stage{
		navStage("authenticate", true, 0),
		navStage("search", false, 0),
	}

	out := r.Run(ctx, testJob(), stages)

	assert.True(t, out.Cancelled)
	require.Len(t, out.Results, 2)
	assert.Equal(t, types.OutcomeSkipped, out.Results[0].Outcome)
	assert.Equal(t, types.OutcomeSkipped, out.Results[1].Outcome)
}

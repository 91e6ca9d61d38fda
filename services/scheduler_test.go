package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"agmark-sync/metrics"
	"agmark-sync/models"
)

type recordingRunner struct {
	mu      sync.Mutex
	calls   []string
	fail    map[string]error
	panicOn map[string]bool
}

func (r *recordingRunner) Run(_ context.Context, req models.ScrapeRequest) (*models.RunReport, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req.Commodity)
	r.mu.Unlock()

	if r.panicOn[req.Commodity] {
		panic("nil map write")
	}
	report := &models.RunReport{Request: req, Records: 1, Uploaded: 1}
	if err := r.fail[req.Commodity]; err != nil {
		report.Err, report.Uploaded = err, 0
		return report, err
	}
	return report, nil
}

func (r *recordingRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func testOptions(commodities ...string) SchedulerOptions {
	return SchedulerOptions{
		State:       "Karnataka",
		Market:      "Bangalore",
		Commodities: commodities,
		DateOffset:  7,
		Interval:    time.Hour,
	}
}

func TestSchedulerRunsPassesInOrder(t *testing.T) {
	runner := &recordingRunner{}
	opts := testOptions("Wheat", "Rice", "Onion")
	opts.MaxPasses = 2
	m := metrics.New()

	s := NewScheduler(runner, opts, NewReportService(quietLogger()).WithOutput(io.Discard), quietLogger(), m)
	var slept []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	var passes []int
	s.OnPass = func(_ context.Context, p *models.PassReport) { passes = append(passes, p.Pass) }

	require.NoError(t, s.Run(context.Background()))
	require.Equal(t, []string{"Wheat", "Rice", "Onion", "Wheat", "Rice", "Onion"}, runner.Calls())
	require.Equal(t, []time.Duration{time.Hour}, slept, "one sleep between two passes")
	require.Equal(t, []int{1, 2}, passes)

	st := s.Status()
	require.Equal(t, PhaseStopped, st.Phase)
	require.NotNil(t, st.LastPass)
	require.Equal(t, 3, st.LastPass.Uploaded)
}

func TestSchedulerContinuesAfterFailures(t *testing.T) {
	runner := &recordingRunner{
		fail:    map[string]error{"Wheat": errors.New("navigate: timed out")},
		panicOn: map[string]bool{"Rice": true},
	}
	opts := testOptions("Wheat", "Rice", "Onion")
	opts.MaxPasses = 1

	var pass *models.PassReport
	s := NewScheduler(runner, opts, nil, quietLogger(), nil)
	s.OnPass = func(_ context.Context, p *models.PassReport) { pass = p }

	require.NoError(t, s.Run(context.Background()))
	require.Equal(t, []string{"Wheat", "Rice", "Onion"}, runner.Calls())

	require.NotNil(t, pass)
	require.Len(t, pass.Runs, 3)
	require.True(t, pass.Runs[0].Failed())
	require.True(t, pass.Runs[1].Failed())
	require.Equal(t, "panic", pass.Runs[1].Stage)
	require.ErrorContains(t, pass.Runs[1].Err, "panic")
	require.False(t, pass.Runs[2].Failed())
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	runner := &recordingRunner{}
	s := NewScheduler(runner, testOptions("Wheat", "Rice"), nil, quietLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.OnPass = func(context.Context, *models.PassReport) { cancel() }

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	require.Equal(t, []string{"Wheat", "Rice"}, runner.Calls())
}

func TestSchedulerPauseResume(t *testing.T) {
	runner := &recordingRunner{}
	opts := testOptions("Wheat", "Rice")
	opts.MaxPasses = 1
	s := NewScheduler(runner, opts, nil, quietLogger(), nil)

	s.Pause()
	s.Pause()
	require.True(t, s.Status().Paused)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	require.Eventually(t, func() bool { return s.Status().Phase == PhasePaused },
		time.Second, 5*time.Millisecond)
	require.Empty(t, runner.Calls(), "no run starts while paused")

	s.Resume()
	s.Resume()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not finish after resume")
	}
	require.Equal(t, []string{"Wheat", "Rice"}, runner.Calls())
	require.False(t, s.Status().Paused)
}

func TestSchedulerCancelWhilePaused(t *testing.T) {
	s := NewScheduler(&recordingRunner{}, testOptions("Wheat"), nil, quietLogger(), nil)
	s.Pause()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Run(ctx), context.DeadlineExceeded)
}

func TestSchedulerRequestDate(t *testing.T) {
	var got []models.ScrapeRequest
	runner := runnerFunc(func(_ context.Context, req models.ScrapeRequest) (*models.RunReport, error) {
		got = append(got, req)
		return &models.RunReport{Request: req}, nil
	})
	opts := testOptions("Wheat")
	opts.MaxPasses = 1

	s := NewScheduler(runner, opts, nil, quietLogger(), nil)
	s.now = func() time.Time { return time.Date(2024, time.March, 3, 9, 0, 0, 0, time.UTC) }

	require.NoError(t, s.Run(context.Background()))
	require.Len(t, got, 1)
	require.Equal(t, "25-Feb-2024", got[0].DateText())
	require.Equal(t, "Bangalore", got[0].Market)
}

type runnerFunc func(ctx context.Context, req models.ScrapeRequest) (*models.RunReport, error)

func (f runnerFunc) Run(ctx context.Context, req models.ScrapeRequest) (*models.RunReport, error) {
	return f(ctx, req)
}

func TestSleepCtx(t *testing.T) {
	require.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
	require.ErrorIs(t, sleepCtx(ctx, 0), context.Canceled)
}

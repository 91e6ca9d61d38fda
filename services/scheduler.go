package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"agmark-sync/metrics"
	"agmark-sync/models"
	"agmark-sync/utils"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, req models.ScrapeRequest) (*models.RunReport, error)
}

// Scheduler phases reported by Status.
const (
	PhaseIdle     = "idle"
	PhaseRunning  = "running"
	PhasePaused   = "paused"
	PhaseSleeping = "sleeping"
	PhaseStopped  = "stopped"
)

// SchedulerOptions fixes the target list and cadence.
type SchedulerOptions struct {
	State       string
	Market      string
	Commodities []string
	DateOffset  int
	Interval    time.Duration
	// MaxPasses stops the loop after that many passes; zero runs forever.
	MaxPasses int
}

// Status is a snapshot of the scheduler's position.
type Status struct {
	Phase     string              `json:"phase"`
	Pass      int                 `json:"pass"`
	Index     int                 `json:"index"`
	Commodity string              `json:"commodity,omitempty"`
	Paused    bool                `json:"paused"`
	NextWake  time.Time           `json:"next_wake,omitempty"`
	LastPass  *models.PassSummary `json:"last_pass,omitempty"`
}

// Scheduler runs the pipeline over the commodity list, pass after pass,
// strictly in order and one run at a time.
type Scheduler struct {
	runner   Runner
	opts     SchedulerOptions
	reporter *ReportService
	logger   *utils.Logger
	metrics  *metrics.Metrics

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	// OnPass, when set, is called after every completed pass.
	OnPass func(ctx context.Context, pass *models.PassReport)

	mu       sync.Mutex
	status   Status
	resumeCh chan struct{}
}

// NewScheduler creates a Scheduler. reporter and m may be nil.
func NewScheduler(runner Runner, opts SchedulerOptions, reporter *ReportService, logger *utils.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		runner:   runner,
		opts:     opts,
		reporter: reporter,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
		sleep:    sleepCtx,
		status:   Status{Phase: PhaseIdle},
	}
}

// Run loops until ctx is cancelled or MaxPasses passes have completed.
// Pipeline failures never end the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.setPhase(PhaseStopped)

	for pass := 1; s.opts.MaxPasses == 0 || pass <= s.opts.MaxPasses; pass++ {
		report, err := s.runPass(ctx, pass)
		if report != nil {
			s.finishPass(ctx, report)
		}
		if err != nil {
			return err
		}

		if s.opts.MaxPasses != 0 && pass >= s.opts.MaxPasses {
			break
		}

		wake := s.now().Add(s.opts.Interval)
		s.mu.Lock()
		s.status.Phase = PhaseSleeping
		s.status.NextWake = wake
		s.status.Commodity = ""
		s.mu.Unlock()

		s.logger.Info("[scheduler] Pass %d done, sleeping %v until %s",
			pass, s.opts.Interval, wake.Format("15:04:05"))
		if err := s.sleep(ctx, s.opts.Interval); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) runPass(ctx context.Context, pass int) (*models.PassReport, error) {
	report := &models.PassReport{Pass: pass, StartedAt: s.now()}
	s.logger.Info("[scheduler] Pass %d starting over %d commodities", pass, len(s.opts.Commodities))

	for i, commodity := range s.opts.Commodities {
		if err := s.waitIfPaused(ctx); err != nil {
			report.FinishedAt = s.now()
			return report, err
		}
		if err := ctx.Err(); err != nil {
			report.FinishedAt = s.now()
			return report, err
		}

		s.mu.Lock()
		s.status.Phase = PhaseRunning
		s.status.Pass = pass
		s.status.Index = i
		s.status.Commodity = commodity
		s.status.NextWake = time.Time{}
		s.mu.Unlock()

		req := models.NewScrapeRequest(s.opts.State, commodity, s.opts.Market, s.now(), s.opts.DateOffset)
		run, err := s.runOne(ctx, req)
		if err != nil {
			s.logger.Error("[scheduler] %s failed, moving on: %v", commodity, err)
		}
		report.Runs = append(report.Runs, run)
	}

	report.FinishedAt = s.now()
	return report, nil
}

// runOne is the per-commodity failure boundary: errors and panics from the
// run end here.
func (s *Scheduler) runOne(ctx context.Context, req models.ScrapeRequest) (run *models.RunReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in pipeline run: %v", r)
			run = &models.RunReport{Request: req, StartedAt: s.now(), Stage: "panic", Err: err}
			s.metrics.IncRun(req.Commodity, "failed")
		}
	}()

	run, err = s.runner.Run(ctx, req)
	if run == nil {
		run = &models.RunReport{Request: req, StartedAt: s.now(), Err: err}
	}
	return run, err
}

func (s *Scheduler) finishPass(ctx context.Context, report *models.PassReport) {
	s.metrics.ObservePass(report.FinishedAt.Sub(report.StartedAt))

	var summary *models.PassSummary
	if s.reporter != nil {
		summary = s.reporter.Summarize(report)
		s.reporter.Print(summary)
	}

	s.mu.Lock()
	s.status.LastPass = summary
	s.mu.Unlock()

	if s.OnPass != nil {
		s.OnPass(ctx, report)
	}
}

// Pause holds the loop before the next commodity starts. The run in flight
// finishes normally.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Paused {
		return
	}
	s.status.Paused = true
	s.resumeCh = make(chan struct{})
	s.logger.Info("[scheduler] Paused")
}

// Resume releases a paused loop.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.Paused {
		return
	}
	s.status.Paused = false
	close(s.resumeCh)
	s.resumeCh = nil
	s.logger.Info("[scheduler] Resumed")
}

// Status returns a snapshot of the loop position.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Scheduler) waitIfPaused(ctx context.Context) error {
	s.mu.Lock()
	ch := s.resumeCh
	if ch != nil {
		s.status.Phase = PhasePaused
	}
	s.mu.Unlock()

	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) setPhase(phase string) {
	s.mu.Lock()
	s.status.Phase = phase
	s.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

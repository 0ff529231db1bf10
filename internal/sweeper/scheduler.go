package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/hilthontt/tourchat/internal/infrastructure/logging"
)

// Job is one periodic sweep.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (Report, error)
}

type Intervals struct {
	ExpireMessages time.Duration
	ReinstateKicks time.Duration
	PruneRooms     time.Duration
}

func DefaultIntervals() Intervals {
	return Intervals{
		ExpireMessages: time.Hour,
		ReinstateKicks: 10 * time.Minute,
		PruneRooms:     6 * time.Hour,
	}
}

// Jobs returns the three sweeps with their intervals. Non-positive intervals fall back
// to the defaults.
func (s *Sweeper) Jobs(iv Intervals) []Job {
	def := DefaultIntervals()
	pick := func(d, fallback time.Duration) time.Duration {
		if d <= 0 {
			return fallback
		}
		return d
	}
	return []Job{
		{Name: JobExpireMessages, Interval: pick(iv.ExpireMessages, def.ExpireMessages), Run: s.ExpireMessages},
		{Name: JobReinstateKicks, Interval: pick(iv.ReinstateKicks, def.ReinstateKicks), Run: s.ReinstateKicks},
		{Name: JobPruneRooms, Interval: pick(iv.PruneRooms, def.PruneRooms), Run: s.PruneInactiveRooms},
	}
}

// Scheduler runs every job on its own ticker. Each job runs once at start.
type Scheduler struct {
	jobs   []Job
	logger logging.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

func NewScheduler(logger logging.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs:   jobs,
		logger: logger,
	}
}

// Start launches the jobs and returns immediately. Runs stop when ctx is cancelled or on Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	for _, job := range s.jobs {
		s.wg.Add(1)
		go func(job Job) {
			defer s.wg.Done()
			s.loop(ctx, job)
		}(job)
	}
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.logger.Info(logging.Sweeper, logging.Scheduling, "sweep job started", map[logging.ExtraKey]any{
		"Job":      job.Name,
		"Interval": job.Interval.String(),
	})

	s.run(ctx, job)

	for {
		select {
		case <-ticker.C:
			s.run(ctx, job)
		case <-ctx.Done():
			s.logger.Info(logging.Sweeper, logging.Scheduling, "sweep job stopped", map[logging.ExtraKey]any{"Job": job.Name})
			return
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	if _, err := job.Run(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error(logging.Sweeper, logging.Scheduling, "sweep job failed", map[logging.ExtraKey]any{
			"Job":                job.Name,
			logging.ErrorMessage: err.Error(),
		})
	}
}

// Stop cancels in-flight runs and waits for every job to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

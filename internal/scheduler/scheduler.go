package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a background job driven by an interval trigger
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Status reports the scheduler's observable state
type Status struct {
	Running  bool `json:"running"`
	JobCount int  `json:"job_count"`
}

// Scheduler drives independent periodic jobs. Each job runs at most one
// instance at a time; a trigger fire that lands while the job is running
// is coalesced into a single follow-up run if it is still within the
// misfire grace period, and dropped otherwise. A job error is logged and
// never stops the schedule.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu      sync.Mutex
	started bool
	jobs    []*guardedJob
}

// New creates a scheduler
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// AddIntervalJob registers a job on a fixed interval with the given
// misfire grace period
func (s *Scheduler) AddIntervalJob(interval, grace time.Duration, job Job) {
	g := &guardedJob{
		job:   job,
		grace: grace,
		log:   s.log,
	}

	s.mu.Lock()
	s.jobs = append(s.jobs, g)
	s.mu.Unlock()

	s.cron.Schedule(cron.Every(interval), g)
	s.log.Info().
		Str("job", job.Name()).
		Dur("interval", interval).
		Dur("grace", grace).
		Msg("job registered")
}

// Start starts the interval triggers
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the triggers and waits for any running job to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()

	s.log.Info().Msg("scheduler stopped")
}

// Status returns the scheduler's current state
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{Running: s.started, JobCount: len(s.jobs)}
}

// RunNow executes a job immediately, outside its schedule, subject to the
// same single-instance guard
func (s *Scheduler) RunNow(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.jobs {
		if g.job == job {
			go g.Run()
			return
		}
	}
}

// guardedJob enforces max one running instance per job id and the
// coalescing policy for fires that land mid-run
type guardedJob struct {
	job   Job
	grace time.Duration
	log   zerolog.Logger

	mu       sync.Mutex
	running  bool
	missedAt time.Time
}

// Run implements cron.Job. Each trigger fire lands here; the guard state
// machine is Idle -> Running -> Idle, always returning to Idle whatever
// the job outcome.
func (g *guardedJob) Run() {
	g.mu.Lock()
	if g.running {
		// already running: remember the fire so it can be coalesced
		g.missedAt = time.Now()
		g.mu.Unlock()
		g.log.Debug().Str("job", g.job.Name()).Msg("trigger fired while running, deferring")
		return
	}
	g.running = true
	g.mu.Unlock()

	for {
		g.execute()

		g.mu.Lock()
		missed := g.missedAt
		g.missedAt = time.Time{}
		if !coalesceMissedFire(missed, time.Now(), g.grace) {
			if !missed.IsZero() {
				g.log.Warn().Str("job", g.job.Name()).Msg("missed fire outside grace period, dropped")
			}
			g.running = false
			g.mu.Unlock()
			return
		}
		g.mu.Unlock()
		g.log.Info().Str("job", g.job.Name()).Msg("running coalesced fire")
	}
}

func (g *guardedJob) execute() {
	start := time.Now()
	if err := g.job.Run(context.Background()); err != nil {
		g.log.Error().
			Err(err).
			Str("job", g.job.Name()).
			Dur("elapsed", time.Since(start)).
			Msg("job failed")
		return
	}
	g.log.Info().
		Str("job", g.job.Name()).
		Dur("elapsed", time.Since(start)).
		Msg("job completed")
}

// coalesceMissedFire decides whether a fire that arrived at missedAt,
// while a run was in progress, should still execute once at time now.
// Fires older than the grace period are dropped, and multiple missed
// fires collapse into one because only the latest missedAt is kept.
func coalesceMissedFire(missedAt, now time.Time, grace time.Duration) bool {
	if missedAt.IsZero() {
		return false
	}
	return now.Sub(missedAt) <= grace
}

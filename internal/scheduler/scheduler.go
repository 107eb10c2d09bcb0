// Package scheduler runs recurring jobs one at a time from a single
// blocking loop. Each job has a grace window: an occurrence noticed later
// than that is skipped rather than run late.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ErrDuplicateJob is returned when a job id is registered twice
var ErrDuplicateJob = errors.New("duplicate job id")

// ErrUnknownJob is returned by RunNow for an unregistered id
var ErrUnknownJob = errors.New("unknown job id")

// minGrace applies to jobs registered without a grace window
const minGrace = time.Second

// Handler is the work of a job
type Handler func(ctx context.Context) error

// Job is a recurring task
type Job struct {
	ID   string
	Name string
	// Spec is a standard five-field cron expression
	Spec    string
	Grace   time.Duration
	Handler Handler
}

// Clock abstracts time for the run loop
type Clock interface {
	Now() time.Time
	// Sleep waits for d and returns ctx.Err() if ctx ends first
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type entry struct {
	job      Job
	schedule cron.Schedule
	next     time.Time
	prev     time.Time
}

// Scheduler manages periodic tasks
type Scheduler struct {
	entries    []*entry
	byID       map[string]*entry
	timezone   *time.Location
	clock      Clock
	jobTimeout time.Duration
	log        zerolog.Logger
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock replaces the wall clock
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithJobTimeout bounds each job execution
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.jobTimeout = d }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// New creates a new scheduler with the given timezone
func New(timezone string, opts ...Option) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}

	s := &Scheduler{
		byID:       make(map[string]*entry),
		timezone:   loc,
		clock:      realClock{},
		jobTimeout: 30 * time.Minute,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Add registers a job. Jobs that become due at the same instant run in
// registration order.
func (s *Scheduler) Add(job Job) error {
	if job.ID == "" {
		return errors.New("job id is empty")
	}
	if _, ok := s.byID[job.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.ID)
	}
	if job.Handler == nil {
		return fmt.Errorf("job %s has no handler", job.ID)
	}
	schedule, err := cron.ParseStandard(job.Spec)
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.ID, err)
	}
	if job.Grace <= 0 {
		job.Grace = minGrace
	}

	e := &entry{
		job:      job,
		schedule: schedule,
	}
	e.next = schedule.Next(s.clock.Now().In(s.timezone))
	s.entries = append(s.entries, e)
	s.byID[job.ID] = e

	s.log.Info().
		Str("job", job.ID).
		Str("schedule", job.Spec).
		Dur("grace", job.Grace).
		Time("next", e.next).
		Msg("job added")
	return nil
}

// Run blocks, executing jobs as they come due, until ctx is cancelled.
// Cancellation is observed between jobs; a running job finishes first.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.entries) == 0 {
		return errors.New("no jobs registered")
	}
	s.log.Info().Int("jobs", len(s.entries)).Str("timezone", s.timezone.String()).Msg("scheduler started")

	for {
		e := s.earliest()
		if wait := e.next.Sub(s.clock.Now()); wait > 0 {
			if err := s.clock.Sleep(ctx, wait); err != nil {
				s.log.Info().Msg("scheduler stopped")
				return nil
			}
		}
		if ctx.Err() != nil {
			s.log.Info().Msg("scheduler stopped")
			return nil
		}
		s.dispatch(ctx, e)
	}
}

// earliest returns the entry with the soonest next fire time
func (s *Scheduler) earliest() *entry {
	best := s.entries[0]
	for _, e := range s.entries[1:] {
		if e.next.Before(best.next) {
			best = e
		}
	}
	return best
}

// dispatch runs or skips the due occurrence of e and schedules the next
func (s *Scheduler) dispatch(ctx context.Context, e *entry) {
	now := s.clock.Now()

	// collapse occurrences missed while busy into the most recent one
	due := e.next
	for {
		n := e.schedule.Next(due)
		if n.After(now) {
			break
		}
		due = n
	}

	if late := now.Sub(due); late > e.job.Grace {
		s.log.Info().
			Str("job", e.job.ID).
			Time("scheduled", due).
			Dur("late", late).
			Dur("grace", e.job.Grace).
			Msg("missed run skipped")
	} else {
		s.execute(ctx, e.job)
		e.prev = due
	}

	e.next = e.schedule.Next(s.clock.Now().In(s.timezone))
}

// execute runs a job to completion. The loop's cancellation does not
// reach the job; only the job timeout does.
func (s *Scheduler) execute(ctx context.Context, job Job) (err error) {
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.jobTimeout)
	defer cancel()

	log := s.log.With().Str("job", job.ID).Logger()
	log.Info().Msg("starting job")
	start := s.clock.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
		if err != nil {
			log.Error().Err(err).Msg("job failed")
		} else {
			log.Info().Dur("took", s.clock.Now().Sub(start)).Msg("job completed")
		}
	}()

	return job.Handler(jobCtx)
}

// RunNow immediately executes a job outside its schedule
func (s *Scheduler) RunNow(ctx context.Context, id string) error {
	e, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	return s.execute(ctx, e.job)
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	ID      string
	Name    string
	Spec    string
	Grace   time.Duration
	NextRun time.Time
	LastRun time.Time
}

// Jobs returns info about scheduled jobs in registration order
func (s *Scheduler) Jobs() []JobInfo {
	infos := make([]JobInfo, 0, len(s.entries))
	for _, e := range s.entries {
		infos = append(infos, JobInfo{
			ID:      e.job.ID,
			Name:    e.job.Name,
			Spec:    e.job.Spec,
			Grace:   e.job.Grace,
			NextRun: e.next,
			LastRun: e.prev,
		})
	}
	return infos
}

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/equinor/interface-tools/pkg/logging"
)

// Submitter submits one retraining run for a named pipeline. The platform
// experiment facade satisfies this through a small adapter in callers.
type Submitter interface {
	Submit(ctx context.Context, pipeline string) error
}

// SubmitterFunc adapts a function to the Submitter interface
type SubmitterFunc func(ctx context.Context, pipeline string) error

// Submit calls the function
func (f SubmitterFunc) Submit(ctx context.Context, pipeline string) error {
	return f(ctx, pipeline)
}

// ScheduledJob tracks one scheduled pipeline
type ScheduledJob struct {
	Pipeline string
	CronExpr string
	LastRun  *time.Time
	LastErr  error
}

// Scheduler submits pipeline retraining runs on cron schedules
type Scheduler struct {
	mu        sync.RWMutex
	cron      *cron.Cron
	jobs      map[string]*ScheduledJob
	entries   map[string]cron.EntryID
	submitter Submitter
	running   bool
	log       *logging.Logger
}

// NewScheduler creates a scheduler submitting runs through the submitter
func NewScheduler(submitter Submitter) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		jobs:      make(map[string]*ScheduledJob),
		entries:   make(map[string]cron.EntryID),
		submitter: submitter,
		log:       logging.Default().WithComponent("pipeline/scheduler"),
	}
}

// AddJob schedules retraining for the pipeline definition. The definition
// must be enabled and carry a schedule.
func (s *Scheduler) AddJob(def *Definition) error {
	if !def.Enabled {
		return fmt.Errorf("pipeline %q is disabled", def.Name)
	}
	if def.Schedule == "" {
		return fmt.Errorf("pipeline %q has no schedule", def.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[def.Name]; exists {
		return fmt.Errorf("pipeline %q is already scheduled", def.Name)
	}

	job := &ScheduledJob{Pipeline: def.Name, CronExpr: def.Schedule}
	entryID, err := s.cron.AddFunc(def.Schedule, func() { s.runJob(job) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for pipeline %q: %w", def.Schedule, def.Name, err)
	}
	s.jobs[def.Name] = job
	s.entries[def.Name] = entryID
	s.log.Info("scheduled pipeline", logging.String("pipeline", def.Name), logging.String("schedule", def.Schedule))
	return nil
}

// RemoveJob unschedules the named pipeline
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entryID, exists := s.entries[name]
	if !exists {
		return fmt.Errorf("pipeline %q is not scheduled", name)
	}
	s.cron.Remove(entryID)
	delete(s.entries, name)
	delete(s.jobs, name)
	return nil
}

// Jobs returns a snapshot of the scheduled jobs
func (s *Scheduler) Jobs() []ScheduledJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]ScheduledJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	return jobs
}

// Start begins executing schedules
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.log.Info("scheduler started")
}

// Stop halts schedule execution and waits for running submissions
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) runJob(job *ScheduledJob) {
	err := s.submitter.Submit(context.Background(), job.Pipeline)

	s.mu.Lock()
	now := time.Now().UTC()
	job.LastRun = &now
	job.LastErr = err
	s.mu.Unlock()

	if err != nil {
		s.log.Error("scheduled run failed", err, logging.String("pipeline", job.Pipeline))
		return
	}
	s.log.Info("scheduled run submitted", logging.String("pipeline", job.Pipeline))
}

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

// recordingSubmitter counts submissions per pipeline.
type recordingSubmitter struct {
	mu      sync.Mutex
	submits map[string]int
	err     error
}

func (r *recordingSubmitter) Submit(ctx context.Context, pipeline string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.submits == nil {
		r.submits = make(map[string]int)
	}
	r.submits[pipeline]++
	return r.err
}

func scheduledDefinition(name string) *Definition {
	return &Definition{
		Name:     name,
		Enabled:  true,
		Schedule: "0 3 * * *",
		Stages:   []StageConfig{{Name: "train"}},
	}
}

func TestAddJobValidation(t *testing.T) {
	s := NewScheduler(&recordingSubmitter{})

	disabled := scheduledDefinition("disabled")
	disabled.Enabled = false
	if err := s.AddJob(disabled); err == nil {
		t.Error("expected error for disabled pipeline")
	}

	unscheduled := scheduledDefinition("unscheduled")
	unscheduled.Schedule = ""
	if err := s.AddJob(unscheduled); err == nil {
		t.Error("expected error for missing schedule")
	}

	invalid := scheduledDefinition("invalid")
	invalid.Schedule = "not a cron expression"
	if err := s.AddJob(invalid); err == nil {
		t.Error("expected error for invalid schedule")
	}

	if err := s.AddJob(scheduledDefinition("forecast")); err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}
	if err := s.AddJob(scheduledDefinition("forecast")); err == nil {
		t.Error("expected error for duplicate pipeline")
	}
}

func TestRemoveJob(t *testing.T) {
	s := NewScheduler(&recordingSubmitter{})
	if err := s.AddJob(scheduledDefinition("forecast")); err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}
	if err := s.RemoveJob("forecast"); err != nil {
		t.Fatalf("RemoveJob failed: %v", err)
	}
	if err := s.RemoveJob("forecast"); err == nil {
		t.Error("expected error for unknown pipeline")
	}
	if len(s.Jobs()) != 0 {
		t.Errorf("expected no jobs, got %v", s.Jobs())
	}
}

func TestJobsSnapshot(t *testing.T) {
	s := NewScheduler(&recordingSubmitter{})
	for _, name := range []string{"forecast", "drift"} {
		if err := s.AddJob(scheduledDefinition(name)); err != nil {
			t.Fatalf("AddJob failed: %v", err)
		}
	}
	jobs := s.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	for _, job := range jobs {
		if job.CronExpr != "0 3 * * *" {
			t.Errorf("unexpected schedule: %+v", job)
		}
		if job.LastRun != nil {
			t.Errorf("job should not have run yet: %+v", job)
		}
	}
}

func TestRunJobRecordsOutcome(t *testing.T) {
	sub := &recordingSubmitter{}
	s := NewScheduler(sub)
	if err := s.AddJob(scheduledDefinition("forecast")); err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}

	job := s.jobs["forecast"]
	s.runJob(job)
	if sub.submits["forecast"] != 1 {
		t.Errorf("submit count %d, want 1", sub.submits["forecast"])
	}

	jobs := s.Jobs()
	if jobs[0].LastRun == nil {
		t.Error("LastRun not recorded")
	}
	if jobs[0].LastErr != nil {
		t.Errorf("unexpected LastErr: %v", jobs[0].LastErr)
	}

	sub.err = fmt.Errorf("cluster unavailable")
	s.runJob(job)
	if err := s.Jobs()[0].LastErr; err == nil {
		t.Error("LastErr not recorded")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	s := NewScheduler(&recordingSubmitter{})
	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
}

func TestSubmitterFunc(t *testing.T) {
	called := ""
	f := SubmitterFunc(func(ctx context.Context, pipeline string) error {
		called = pipeline
		return nil
	})
	if err := f.Submit(context.Background(), "forecast"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if called != "forecast" {
		t.Errorf("submitted %q", called)
	}
}

// Package scheduler triggers recurring crawls with gocron
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/phimhub/ingest/internal/util"
)

// Job is one scheduled crawl
type Job func(ctx context.Context) error

type Scheduler struct {
	scheduler gocron.Scheduler
	job       Job
	name      string
	ctx       context.Context
}

// Definition selects when the job fires: a cron expression, or an interval
// when Cron is empty
type Definition struct {
	Cron     string
	Interval time.Duration
}

func (d Definition) gocron() (gocron.JobDefinition, error) {
	switch {
	case d.Cron != "":
		return gocron.CronJob(d.Cron, false), nil
	case d.Interval > 0:
		return gocron.DurationJob(d.Interval), nil
	}
	return nil, fmt.Errorf("%w: schedule needs a cron expression or an interval", util.ErrInvalidConfig)
}

// New creates a scheduler running job on def
func New(name string, def Definition, job Job) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	sch := &Scheduler{scheduler: s, job: job, name: name}

	jd, err := def.gocron()
	if err != nil {
		_ = s.Shutdown()
		return nil, err
	}
	if _, err := s.NewJob(jd, gocron.NewTask(sch.run), gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule)); err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("%w: schedule %q: %v", util.ErrInvalidConfig, def.Cron, err)
	}
	return sch, nil
}

// ctx is captured at Start so scheduled runs stop with the server
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.scheduler.Start()
	util.InfoLog("scheduler started: %s", s.name)
}

// Stop waits for a running job and shuts the scheduler down
func (s *Scheduler) Stop() {
	if err := s.scheduler.Shutdown(); err != nil {
		util.ErrorLog("scheduler shutdown error: %v", err)
	}
}

// NextRun returns when the job fires next
func (s *Scheduler) NextRun() (time.Time, error) {
	jobs := s.scheduler.Jobs()
	if len(jobs) == 0 {
		return time.Time{}, fmt.Errorf("scheduler %s has no job", s.name)
	}
	return jobs[0].NextRun()
}

func (s *Scheduler) run() {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	if err := s.job(ctx); err != nil {
		util.WarnLog("scheduled %s failed after %v: %v", s.name, time.Since(start).Round(time.Millisecond), err)
		return
	}
	util.DebugLog("scheduled %s done in %v", s.name, time.Since(start).Round(time.Millisecond))
}

package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is a unit of background work run on a cron schedule.
type Job interface {
	Name() string
	Run()
}

// Scheduler registers jobs on a cron.Cron and logs each run.
type Scheduler struct {
	cron *cron.Cron
	jobs map[string]cron.EntryID
}

func NewScheduler(opts ...cron.Option) *Scheduler {
	return &Scheduler{
		cron: cron.New(opts...),
		jobs: make(map[string]cron.EntryID),
	}
}

// Register adds job under spec, e.g. "@hourly" or "@every 5m".
func (s *Scheduler) Register(spec string, job Job) error {
	if _, exists := s.jobs[job.Name()]; exists {
		return fmt.Errorf("job %s already registered", job.Name())
	}
	id, err := s.cron.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("job", job.Name()).Errorf("Job panicked: %v", r)
			}
		}()
		job.Run()
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, job.Name(), err)
	}
	s.jobs[job.Name()] = id
	logrus.WithFields(logrus.Fields{
		"job":      job.Name(),
		"schedule": spec,
	}).Info("Job scheduled")
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logrus.Infof("Scheduler started with %d jobs", len(s.jobs))
}

// Stop halts scheduling and returns a context that is done once running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	logrus.Info("Stopping scheduler")
	return s.cron.Stop()
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

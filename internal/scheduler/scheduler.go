// Package scheduler runs the ingestion job on a cron interval, isolated
// from request serving: a failed run is logged and retried on the next
// tick, never escalated.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one schedulable unit of work.
type Job func(ctx context.Context) error

type Scheduler struct {
	cron *cron.Cron
	name string
	job  Job
}

func New(spec, name string, job Job) (*Scheduler, error) {
	c := cron.New()
	s := &Scheduler{cron: c, name: name, job: job}

	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins the cron loop. The first run is delayed a little so it does
// not compete with the server warming up.
func (s *Scheduler) Start() {
	s.cron.Start()
	const startupDelay = 15 * time.Second
	time.AfterFunc(startupDelay, func() {
		go s.runOnce()
	})
}

// Stop halts scheduling; a run already in flight finishes.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunOnce executes the job immediately, for manual triggering.
func (s *Scheduler) RunOnce() {
	s.runOnce()
}

func (s *Scheduler) runOnce() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("%s: job panic recovered: %v", s.name, r)
		}
	}()

	log.Printf("%s: run start", s.name)
	start := time.Now()
	if err := s.job(context.Background()); err != nil {
		log.Printf("%s: run error: %v", s.name, err)
		return
	}
	log.Printf("%s: run done in %s", s.name, time.Since(start).Round(time.Millisecond))
}

// Package scheduler runs the periodic sweeps. Every job gets its own loop
// and never overlaps with itself; different jobs run concurrently.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Func func(ctx context.Context) error

type Job struct {
	Name     string
	Interval time.Duration
	Run      Func
}

type Scheduler struct {
	jobs   []Job
	logger *zap.SugaredLogger
	wg     sync.WaitGroup
}

func New(logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{logger: logger}
}

func (s *Scheduler) Add(name string, interval time.Duration, run Func) {
	s.jobs = append(s.jobs, Job{Name: name, Interval: interval, Run: run})
}

// Start launches every job. The first run happens right away.
func (s *Scheduler) Start(ctx context.Context) {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go func(job Job) {
			defer s.wg.Done()
			s.loop(ctx, job)
		}(job)
	}
}

// Wait blocks until every loop has returned after ctx is done.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	s.logger.Infow("job started", "job", job.Name, "interval", job.Interval)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Infow("job stopped", "job", job.Name)
			return
		case <-timer.C:
			if err := s.runOnce(ctx, job); err != nil {
				s.logger.Errorw("job failed", "job", job.Name, "error", err)
			}
			timer.Reset(job.Interval)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job.Run(ctx)
}

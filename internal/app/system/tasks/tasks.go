// internal/app/system/tasks/tasks.go
//
// Package tasks runs periodic background jobs. Each job is a named
// function with an interval; the runner ticks every job on its own
// goroutine and stops them all on Stop.
package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one periodic unit of background work.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner owns a set of jobs and their goroutines.
type Runner struct {
	jobs   []Job
	log    *zap.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{log: log}
}

// Add registers a job. Must be called before Start.
func (r *Runner) Add(j Job) {
	r.jobs = append(r.jobs, j)
}

// Start launches one goroutine per job. Each job first runs after its
// interval elapses, not immediately, so startup stays fast and a
// crash-looping process does not hammer downstream systems.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	for _, j := range r.jobs {
		r.wg.Add(1)
		go r.loop(ctx, j)
	}
	if len(r.jobs) > 0 {
		r.log.Info("background jobs started", zap.Int("count", len(r.jobs)))
	}
}

func (r *Runner) loop(ctx context.Context, j Job) {
	defer r.wg.Done()
	t := time.NewTicker(j.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := j.Run(ctx); err != nil {
				r.log.Warn("background job failed",
					zap.String("job", j.Name),
					zap.Error(err))
			}
		}
	}
}

// Stop cancels all jobs and waits for in-flight runs to return.
func (r *Runner) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.wg.Wait()
}

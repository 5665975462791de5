// internal/app/system/tasks/runner.go
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one recurring maintenance pass, such as the stale session
// sweep or the daily-record archive.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner drives registered jobs on their intervals, one goroutine per
// job. Every job also runs once at Start, so a freshly deployed
// instance catches up on overdue maintenance right away.
type Runner struct {
	logger *zap.Logger
	jobs   []Job
	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu       sync.Mutex
	inflight map[string]bool
}

// New creates a Runner with no jobs registered.
func New(logger *zap.Logger) *Runner {
	return &Runner{
		logger:   logger,
		inflight: map[string]bool{},
	}
}

// Register adds a job. Call before Start.
func (r *Runner) Register(job Job) {
	r.jobs = append(r.jobs, job)
}

// Start launches every registered job.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	for _, job := range r.jobs {
		r.wg.Add(1)
		go r.loop(ctx, job)
	}

	r.logger.Info("background task runner started",
		zap.Int("job_count", len(r.jobs)))
}

// Stop cancels the job contexts and waits for running jobs to finish,
// up to ctx's deadline. On timeout it returns ctx.Err() and logs which
// jobs were still in flight.
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("background task runner stopped")
		return nil
	case <-ctx.Done():
		r.mu.Lock()
		var stuck []string
		for name := range r.inflight {
			stuck = append(stuck, name)
		}
		r.mu.Unlock()
		r.logger.Warn("background task runner shutdown timed out",
			zap.Strings("jobs_still_running", stuck))
		return ctx.Err()
	}
}

func (r *Runner) loop(ctx context.Context, job Job) {
	defer r.wg.Done()

	r.execute(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("job stopped", zap.String("job", job.Name))
			return
		case <-ticker.C:
			r.execute(ctx, job)
		}
	}
}

func (r *Runner) execute(ctx context.Context, job Job) {
	r.mu.Lock()
	r.inflight[job.Name] = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.inflight, job.Name)
		r.mu.Unlock()
	}()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		// Cancellation during shutdown is not a job failure.
		if ctx.Err() != nil {
			return
		}
		r.logger.Error("job failed",
			zap.String("job", job.Name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return
	}

	r.logger.Debug("job completed",
		zap.String("job", job.Name),
		zap.Duration("duration", time.Since(start)))
}

// RunOnce runs the named job immediately, outside its schedule. The
// admin endpoints use this for manual maintenance triggers.
func (r *Runner) RunOnce(ctx context.Context, name string) error {
	for _, job := range r.jobs {
		if job.Name == name {
			return job.Run(ctx)
		}
	}
	return fmt.Errorf("no job registered as %q", name)
}

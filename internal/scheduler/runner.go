package scheduler

import (
	"context"
	"log"
	"time"
)

// CycleFunc is one cycle body. An error aborts the cycle; the next tick
// retries.
type CycleFunc func(ctx context.Context) error

// Task pairs a job with its interval and body.
type Task struct {
	Job      *Job
	Interval time.Duration
	Run      CycleFunc
}

// Runner drives a set of tasks on independent tickers until the context is
// cancelled. A panicking cycle is logged and the job returned to idle; it
// does not take the process down.
type Runner struct {
	tasks  []Task
	logger *log.Logger
}

// NewRunner creates a Runner. Logger defaults to log.Default.
func NewRunner(tasks []Task, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{tasks: tasks, logger: logger}
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Printf("scheduler starting %d tasks", len(r.tasks))

	done := make(chan struct{})
	for _, t := range r.tasks {
		go r.loop(ctx, t, done)
	}

	<-ctx.Done()
	close(done)
	r.logger.Println("scheduler stopping")
	return ctx.Err()
}

func (r *Runner) loop(ctx context.Context, t Task, done <-chan struct{}) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			// Each tick runs off the loop so a slow cycle never blocks
			// the ticker; the job guard turns overlap into a skip.
			go r.tick(ctx, t)
		}
	}
}

// tick runs one guarded cycle.
func (r *Runner) tick(ctx context.Context, t Task) {
	if !t.Job.TryStart() {
		r.logger.Printf("[%s] previous cycle still running, skipping tick", t.Job.Name())
		return
	}
	defer t.Job.Finish()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Printf("[%s] cycle panicked: %v", t.Job.Name(), rec)
		}
	}()

	started := time.Now()
	if err := t.Run(ctx); err != nil {
		r.logger.Printf("[%s] cycle failed after %v: %v", t.Job.Name(), time.Since(started), err)
		return
	}
	r.logger.Printf("[%s] cycle completed in %v", t.Job.Name(), time.Since(started))
}

// Package scheduler runs the ingestion and position-management cycles on
// independent timers. Each job is a small idle/running state machine: a tick
// arriving while the previous run is still going is skipped, never queued.
package scheduler

import "sync"

// jobState is the lifecycle state of one job.
type jobState int

const (
	stateIdle jobState = iota
	stateRunning
)

// Job guards one recurring cycle against overlapping runs.
type Job struct {
	mu      sync.Mutex
	name    string
	state   jobState
	runs    int64
	skipped int64
}

// NewJob creates an idle job.
func NewJob(name string) *Job {
	return &Job{name: name}
}

// Name returns the job name.
func (j *Job) Name() string { return j.name }

// TryStart transitions idle → running. Returns false when the job is
// already running, in which case the caller must skip this tick.
func (j *Job) TryStart() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.state == stateRunning {
		j.skipped++
		return false
	}
	j.state = stateRunning
	j.runs++
	return true
}

// Finish transitions running → idle. Must be called exactly once per
// successful TryStart, normally via defer.
func (j *Job) Finish() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.state = stateIdle
}

// Running reports whether a run is in flight.
func (j *Job) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.state == stateRunning
}

// Stats returns how many ticks ran and how many were skipped.
func (j *Job) Stats() (runs, skipped int64) {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.runs, j.skipped
}

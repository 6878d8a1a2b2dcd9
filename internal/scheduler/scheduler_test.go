package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestJob_SkipNotQueue(t *testing.T) {
	j := NewJob("ingest")

	if !j.TryStart() {
		t.Fatal("idle job must start")
	}
	if j.TryStart() {
		t.Fatal("running job must skip")
	}
	if !j.Running() {
		t.Fatal("job should report running")
	}

	j.Finish()
	if j.Running() {
		t.Fatal("finished job should be idle")
	}
	if !j.TryStart() {
		t.Fatal("idle job must start again")
	}
	j.Finish()

	runs, skipped := j.Stats()
	if runs != 2 || skipped != 1 {
		t.Errorf("stats = %d runs, %d skipped; want 2, 1", runs, skipped)
	}
}

func TestJob_ConcurrentTicksRunOnce(t *testing.T) {
	j := NewJob("manage")

	var wg sync.WaitGroup
	started := make(chan struct{})
	wins := 0
	var mu sync.Mutex

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-started
			if j.TryStart() {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	close(started)
	wg.Wait()

	if wins != 1 {
		t.Fatalf("%d concurrent ticks won, want exactly 1", wins)
	}
}

func TestRunner_RunsAndRecovers(t *testing.T) {
	var mu sync.Mutex
	runs := 0
	panics := 0

	tasks := []Task{
		{
			Job:      NewJob("ok"),
			Interval: 10 * time.Millisecond,
			Run: func(ctx context.Context) error {
				mu.Lock()
				runs++
				mu.Unlock()
				return nil
			},
		},
		{
			Job:      NewJob("panicky"),
			Interval: 10 * time.Millisecond,
			Run: func(ctx context.Context) error {
				mu.Lock()
				panics++
				mu.Unlock()
				panic("boom")
			},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	err := NewRunner(tasks, nil).Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run err = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if runs < 2 {
		t.Errorf("ok task ran %d times, want at least 2", runs)
	}
	if panics < 2 {
		t.Errorf("panicky task ran %d times, want at least 2 (panic must not kill the loop)", panics)
	}
}

func TestRunner_SlowCycleSkipsTicks(t *testing.T) {
	job := NewJob("slow")
	var mu sync.Mutex
	running := 0
	maxRunning := 0

	tasks := []Task{{
		Job:      job,
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			mu.Lock()
			running++
			if running > maxRunning {
				maxRunning = running
			}
			mu.Unlock()

			time.Sleep(30 * time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
			return nil
		},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = NewRunner(tasks, nil).Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	if maxRunning > 1 {
		t.Fatalf("cycle overlapped itself %d deep", maxRunning)
	}

	_, skipped := job.Stats()
	if skipped == 0 {
		t.Error("slow cycle should have caused skipped ticks")
	}
}

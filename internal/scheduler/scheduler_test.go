package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gamewatcher/odds-collector/internal/odds/pipeline"
)

type fakeRunner struct {
	delay time.Duration
	err   error

	mu    sync.Mutex
	calls int

	concurrent    atomic.Int32
	maxConcurrent atomic.Int32
}

func (f *fakeRunner) RunCycle(ctx context.Context) (pipeline.Result, error) {
	cur := f.concurrent.Add(1)
	defer f.concurrent.Add(-1)
	for {
		max := f.maxConcurrent.Load()
		if cur <= max || f.maxConcurrent.CompareAndSwap(max, cur) {
			break
		}
	}

	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return pipeline.Result{Inserted: 1}, f.err
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestStartRefusesWithoutCredential(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, 10*time.Millisecond, false, zap.NewNop())

	s.Start()
	time.Sleep(50 * time.Millisecond)

	if runner.callCount() != 0 {
		t.Errorf("cycles ran = %d, want 0 without provider credential", runner.callCount())
	}
	if s.Status().Running {
		t.Error("scheduler should not report running after refused start")
	}
}

func TestStartRunsFirstCycleImmediately(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, time.Hour, true, zap.NewNop())
	defer s.Stop()

	s.Start()

	// a primeira execução é síncrona: ao retornar do Start já rodou
	if runner.callCount() != 1 {
		t.Errorf("cycles after start = %d, want 1", runner.callCount())
	}

	st := s.Status()
	if !st.Running {
		t.Error("status should report running")
	}
	if st.Interval != time.Hour.String() {
		t.Errorf("interval = %q, want %q", st.Interval, time.Hour.String())
	}
}

func TestStartIsIdempotent(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, time.Hour, true, zap.NewNop())
	defer s.Stop()

	s.Start()
	s.Start()

	if runner.callCount() != 1 {
		t.Errorf("cycles after double start = %d, want 1", runner.callCount())
	}
}

func TestOverlappingTriggersAreSkipped(t *testing.T) {
	runner := &fakeRunner{delay: 60 * time.Millisecond}
	s := New(runner, 20*time.Millisecond, true, zap.NewNop())

	s.Start()
	time.Sleep(150 * time.Millisecond)
	s.Stop()
	time.Sleep(80 * time.Millisecond) // ciclo em andamento termina sozinho

	if max := runner.maxConcurrent.Load(); max != 1 {
		t.Errorf("max concurrent cycles = %d, want 1", max)
	}
}

func TestCollectNowConflictsWithRunningCycle(t *testing.T) {
	runner := &fakeRunner{delay: 100 * time.Millisecond}
	s := New(runner, time.Hour, true, zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := s.CollectNow(context.Background()); err != nil {
			t.Errorf("first CollectNow failed: %v", err)
		}
	}()
	time.Sleep(20 * time.Millisecond)

	if _, err := s.CollectNow(context.Background()); !errors.Is(err, ErrCycleRunning) {
		t.Errorf("second CollectNow error = %v, want ErrCycleRunning", err)
	}
	<-done

	// trava liberada após o ciclo terminar
	if _, err := s.CollectNow(context.Background()); err != nil {
		t.Errorf("CollectNow after release failed: %v", err)
	}
}

func TestStopHaltsFutureCycles(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, 30*time.Millisecond, true, zap.NewNop())

	s.Start()
	s.Stop()
	before := runner.callCount()

	time.Sleep(120 * time.Millisecond)

	if got := runner.callCount(); got != before {
		t.Errorf("cycles after stop = %d, want %d", got, before)
	}
	if s.Status().Running {
		t.Error("status should not report running after stop")
	}
}

func TestFailedCycleDoesNotStopLoop(t *testing.T) {
	runner := &fakeRunner{err: errors.New("provider unavailable")}
	s := New(runner, 25*time.Millisecond, true, zap.NewNop())

	s.Start()
	time.Sleep(90 * time.Millisecond)
	s.Stop()

	if got := runner.callCount(); got < 2 {
		t.Errorf("cycles = %d, want at least 2 despite failures", got)
	}
}

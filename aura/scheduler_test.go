package aura

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsInOrder(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	// Hold the worker so the rest queue up behind it.
	release := make(chan struct{})
	started := make(chan struct{})
	go s.Submit(context.Background(), func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Submit(context.Background(), func(context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}(i)
		waitFor(t, func() bool { return s.Pending() == i+1 })
	}

	close(release)
	wg.Wait()

	for i, v := range order {
		if v != i {
			t.Fatalf("Jobs ran out of order: %v", order)
		}
	}
}

func TestSchedulerNeverOverlaps(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Submit(context.Background(), func(context.Context) error {
				n := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("Expected at most one job at a time, saw %d", maxActive)
	}
}

func TestSchedulerReturnsJobError(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	boom := errors.New("boom")
	if err := s.Submit(context.Background(), func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("Expected %v, got %v", boom, err)
	}

	err := s.Submit(context.Background(), func(context.Context) error { panic("bad job") })
	if err == nil {
		t.Error("Expected panic to surface as an error")
	}

	// The worker survives a panicking job.
	if err := s.Submit(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Errorf("Unexpected error %v", err)
	}
}

func TestSchedulerDropsCancelledQueuedJob(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	go s.Submit(context.Background(), func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	done := make(chan error, 1)
	go func() {
		done <- s.Submit(ctx, func(context.Context) error {
			ran.Store(true)
			return nil
		})
	}()
	waitFor(t, func() bool { return s.Pending() == 1 })

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if s.Pending() != 0 {
		t.Errorf("Cancelled job should leave the queue, %d pending", s.Pending())
	}

	close(release)
	if err := s.Submit(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if ran.Load() {
		t.Error("Cancelled job should never run")
	}
}

func TestSchedulerClosed(t *testing.T) {
	s := NewScheduler()
	s.Close()
	s.Close()

	if err := s.Submit(context.Background(), func(context.Context) error { return nil }); !errors.Is(err, ErrSchedulerClosed) {
		t.Errorf("Expected ErrSchedulerClosed, got %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(time.Millisecond)
	}
}

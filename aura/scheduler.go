package aura

import (
	"container/list"
	"context"
	"fmt"
	"sync"
)

// Job is a unit of work run on the scheduler goroutine.
type Job func(ctx context.Context) error

type task struct {
	ctx     context.Context
	job     Job
	result  chan error
	elem    *list.Element
	started bool
}

// Scheduler runs submitted jobs one at a time, in submission order, on a
// single worker goroutine. Every use of the inference session from the
// Assistant goes through it.
type Scheduler struct {
	mu      sync.Mutex
	cond    *sync.Cond
	waiting *list.List
	closed  bool
	done    chan struct{}
}

// NewScheduler creates a scheduler and starts its worker.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		waiting: list.New(),
		done:    make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.loop()
	return s
}

// Submit queues job and waits for it to finish. If ctx ends while the job is
// still queued, the job is dropped and ctx.Err() returned; once started, the
// job runs to completion and is expected to observe ctx itself.
func (s *Scheduler) Submit(ctx context.Context, job Job) error {
	t := &task{ctx: ctx, job: job, result: make(chan error, 1)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	t.elem = s.waiting.PushBack(t)
	s.cond.Signal()
	s.mu.Unlock()

	select {
	case err := <-t.result:
		return err
	case <-ctx.Done():
		s.mu.Lock()
		if !t.started {
			s.waiting.Remove(t.elem)
			s.mu.Unlock()
			return ctx.Err()
		}
		s.mu.Unlock()
		return <-t.result
	}
}

// Pending returns the number of queued jobs that have not started.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiting.Len()
}

// Close stops accepting jobs, runs the ones already queued and waits for the
// worker to exit. It is safe to call more than once.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
	<-s.done
}

func (s *Scheduler) loop() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for s.waiting.Len() == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.waiting.Len() == 0 {
			s.mu.Unlock()
			return
		}
		elem := s.waiting.Front()
		t := elem.Value.(*task)
		s.waiting.Remove(elem)
		t.started = true
		s.mu.Unlock()

		t.result <- run(t)
	}
}

func run(t *task) (err error) {
	if err := t.ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduled job panicked: %v", r)
		}
	}()
	return t.job(t.ctx)
}

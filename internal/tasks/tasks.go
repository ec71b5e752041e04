// Package tasks runs work off the caller's goroutine and hands back a
// handle that can be cancelled or awaited.
package tasks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Func is a unit of background work.
type Func func(ctx context.Context) error

// Scheduler accepts tasks. Callers may discard the returned handle.
type Scheduler interface {
	Submit(name string, fn Func) *Handle
}

// Handle tracks one submitted task.
type Handle struct {
	ID   string
	Name string

	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// NewHandle returns an unstarted handle. Scheduler implementations call
// Finish when the task returns.
func NewHandle(name string, cancel context.CancelFunc) *Handle {
	if cancel == nil {
		cancel = func() {}
	}
	return &Handle{
		ID:     uuid.New().String(),
		Name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Cancel requests cancellation of the task context.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed when the task has returned.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the task's result. It is nil until Done is closed.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Finish records err and closes Done. It must be called exactly once.
func (h *Handle) Finish(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
	close(h.done)
}

// GoScheduler runs every task on its own goroutine under a context
// derived from base.
type GoScheduler struct {
	base context.Context
	log  *zerolog.Logger
	wg   sync.WaitGroup
}

func NewGoScheduler(base context.Context, logger *zerolog.Logger) *GoScheduler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &GoScheduler{base: base, log: logger}
}

func (s *GoScheduler) Submit(name string, fn Func) *Handle {
	ctx, cancel := context.WithCancel(s.base)
	h := NewHandle(name, cancel)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		err := fn(ctx)
		if err != nil {
			s.log.Warn().Err(err).Str("task", name).Str("task_id", h.ID).Msg("background task failed")
		} else {
			s.log.Debug().Str("task", name).Str("task_id", h.ID).Msg("background task finished")
		}
		h.Finish(err)
	}()
	return h
}

// Wait blocks until every submitted task has returned.
func (s *GoScheduler) Wait() {
	s.wg.Wait()
}

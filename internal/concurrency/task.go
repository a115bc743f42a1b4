// File: internal/concurrency/task.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"
	"weak"

	"go.uber.org/zap"

	"github.com/momentics/ipcdrop/api"
)

// task is one unit of cooperative work. It doubles as the api.JoinHandle
// returned to the spawner; the body receives a taskContext.
type task struct {
	id     uint64
	name   string
	fn     api.TaskFunc
	ctx    context.Context
	cancel context.CancelFunc
	rt     weak.Pointer[Runtime]
	log    *zap.Logger

	resume chan struct{} // driver -> task: you hold the baton
	parked chan struct{} // task -> driver: baton released
	done   chan struct{}

	// holding is only touched by the task's own goroutine.
	holding  bool
	exited   atomic.Bool
	dropping atomic.Bool

	err        error
	panicValue any
}

func newTask(id uint64, name string, fn api.TaskFunc, ctx context.Context, cancel context.CancelFunc,
	rt weak.Pointer[Runtime], log *zap.Logger) *task {
	return &task{
		id:     id,
		name:   name,
		fn:     fn,
		ctx:    ctx,
		cancel: cancel,
		rt:     rt,
		log:    log.With(zap.String("task", name), zap.Uint64("task_id", id)),
		resume: make(chan struct{}, 1),
		parked: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (t *task) Name() string          { return t.name }
func (t *task) Done() <-chan struct{} { return t.done }

func (t *task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

func (t *task) run() {
	defer t.finish()
	defer t.cancel()

	if err := t.wait(); err != nil {
		// Dropped before it was ever scheduled.
		t.err = err
		return
	}
	t.err = t.fn(&taskContext{t: t})
}

// finish runs as the outermost deferred call of run. Panics raised while the
// task is being dropped are handed to the runtime; others fail the task.
// done is closed before the baton is released so the next task observes it.
func (t *task) finish() {
	rt := t.rt.Value()
	if r := recover(); r != nil {
		if t.dropping.Load() {
			if rt != nil {
				rt.recordDropPanic(&api.DropPanic{Task: t.name, Value: r, Stack: debug.Stack()})
			}
		} else {
			t.panicValue = r
			t.err = fmt.Errorf("%w: %s: %v", api.ErrTaskPanicked, t.name, r)
			t.log.Error("task panicked", zap.Any("panic", r))
		}
	}
	switch {
	case t.err == nil:
		t.log.Debug("task finished")
	case errors.Is(t.err, api.ErrTaskDropped) || t.dropping.Load():
		t.log.Debug("task dropped", zap.Error(t.err))
	default:
		t.log.Warn("task failed", zap.Error(t.err))
	}
	if rt != nil {
		rt.taskExited(t)
	}
	t.exited.Store(true)
	close(t.done)
	if t.holding {
		t.release()
	}
}

// wait blocks until the driver hands over the baton or the task is dropped.
func (t *task) wait() error {
	select {
	case <-t.resume:
		t.holding = true
		return nil
	case <-t.ctx.Done():
		return t.droppedErr()
	}
}

// release gives the baton back to the driver.
func (t *task) release() {
	t.holding = false
	t.parked <- struct{}{}
}

func (t *task) droppedErr() error {
	return fmt.Errorf("%w: %s", api.ErrTaskDropped, t.name)
}

// taskContext is the api.TaskContext handed to a task body.
type taskContext struct {
	t *task
}

var _ api.TaskContext = (*taskContext)(nil)

func (tc *taskContext) Name() string             { return tc.t.name }
func (tc *taskContext) Context() context.Context { return tc.t.ctx }

func (tc *taskContext) Spawn(name string, fn api.TaskFunc) api.JoinHandle {
	rt := tc.t.rt.Value()
	if rt == nil {
		return failedHandle(name, api.ErrRuntimeClosed)
	}
	h, err := rt.spawn(name, fn)
	if err != nil {
		return failedHandle(name, err)
	}
	return h
}

func (tc *taskContext) Yield() error {
	t := tc.t
	if t.ctx.Err() != nil {
		return t.droppedErr()
	}
	rt := t.rt.Value()
	if rt == nil {
		return api.ErrRuntimeClosed
	}
	rt.deferYield(t)
	t.release()
	return t.wait()
}

func (tc *taskContext) Await(op func(ctx context.Context) error) error {
	t := tc.t
	if t.ctx.Err() != nil {
		return t.droppedErr()
	}
	rt := t.rt.Value()
	if rt == nil {
		return api.ErrRuntimeClosed
	}
	rt.inflight.Add(1)
	t.release()
	opErr := op(t.ctx)
	if t.ctx.Err() != nil {
		rt.inflight.Add(-1)
		return t.droppedErr()
	}
	// Requeue before leaving the in-flight count; pollInflight checks both.
	rt.pushReady(t)
	rt.inflight.Add(-1)
	if err := t.wait(); err != nil {
		return err
	}
	return opErr
}

func (tc *taskContext) Sleep(d time.Duration) error {
	return tc.Await(func(ctx context.Context) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func (tc *taskContext) Disposer() api.Disposer {
	rt := tc.t.rt.Value()
	if rt == nil {
		return nil
	}
	return rt.limbo
}

// doneHandle is returned when a spawn is refused.
type doneHandle struct {
	name string
	err  error
	done chan struct{}
}

func failedHandle(name string, err error) api.JoinHandle {
	h := &doneHandle{name: name, err: err, done: make(chan struct{})}
	close(h.done)
	return h
}

func (h *doneHandle) Name() string          { return h.name }
func (h *doneHandle) Done() <-chan struct{} { return h.done }
func (h *doneHandle) Err() error            { return h.err }

// Package api
// Author: momentics
//
// Task contracts for the single-threaded cooperative runtime.

package api

import (
	"context"
	"time"
)

// TaskFunc is the body of a task. The returned error is stored on the
// task's JoinHandle.
type TaskFunc func(tc TaskContext) error

// TaskContext is handed to every task body. Its methods must only be called
// from the task that owns it.
type TaskContext interface {
	// Name returns the task name given at spawn time.
	Name() string

	// Context is cancelled when the task is dropped.
	Context() context.Context

	// Spawn starts a detached task on the same runtime. Its lifetime is not
	// tied to the spawning task.
	Spawn(name string, fn TaskFunc) JoinHandle

	// Yield lets every other ready task run once before the caller resumes.
	Yield() error

	// Await suspends the task while op runs, then waits for its turn to
	// resume. op must honor ctx.
	Await(op func(ctx context.Context) error) error

	// Sleep suspends the task for d.
	Sleep(d time.Duration) error

	// Disposer returns the runtime's cleanup dispatcher.
	Disposer() Disposer
}

// JoinHandle observes a spawned task.
type JoinHandle interface {
	Name() string
	// Done is closed once the task has returned or been dropped.
	Done() <-chan struct{}
	// Err is valid after Done is closed.
	Err() error
}

// Disposer releases resources whose destruction may block, off the
// caller's path.
type Disposer interface {
	// Dispose schedules release. what names the resource for logs.
	Dispose(what string, release func() error)
	// Alive reports whether the dispatcher and its owner are still running.
	Alive() bool
}

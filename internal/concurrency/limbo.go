// File: internal/concurrency/limbo.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Limbo is the runtime's cleanup dispatcher. Destructors of resources whose
// release may block hand the release to a single worker goroutine instead of
// running it on the task that drops the resource.

package concurrency

import (
	"sync"
	"sync/atomic"
	"weak"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/momentics/ipcdrop/api"
	"github.com/momentics/ipcdrop/control"
)

type limboJob struct {
	what    string
	release func() error
}

// Limbo runs queued releases on one worker goroutine. It only keeps a weak
// reference to the runtime that owns it.
type Limbo struct {
	owner   weak.Pointer[Runtime]
	policy  DropPolicy
	log     *zap.Logger
	metrics *control.MetricsRegistry

	mu      sync.Mutex
	jobs    *queue.Queue // limboJob
	notify  chan struct{}
	closeCh chan struct{}
	stopped chan struct{}
	closed  int32
}

var _ api.Disposer = (*Limbo)(nil)

func newLimbo(owner weak.Pointer[Runtime], policy DropPolicy, log *zap.Logger, metrics *control.MetricsRegistry) *Limbo {
	l := &Limbo{
		owner:   owner,
		policy:  policy,
		log:     log.Named("limbo"),
		metrics: metrics,
		jobs:    queue.New(),
		notify:  make(chan struct{}, 1),
		closeCh: make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go l.run()
	return l
}

// Alive reports whether the owning runtime is still reachable and the
// dispatcher accepts work.
func (l *Limbo) Alive() bool {
	return atomic.LoadInt32(&l.closed) == 0 && l.owner.Value() != nil
}

// Submit queues release, returning api.ErrExecutorClosed once Close ran.
func (l *Limbo) Submit(what string, release func() error) error {
	l.mu.Lock()
	if atomic.LoadInt32(&l.closed) == 1 {
		l.mu.Unlock()
		return api.ErrExecutorClosed
	}
	l.jobs.Add(limboJob{what: what, release: release})
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
	l.metrics.Inc("limbo_jobs_dispatched_total")
	return nil
}

// Dispose implements api.Disposer. While the dispatcher is alive the release
// is queued. Afterwards the policy decides: DropPanic panics, the others
// release inline.
func (l *Limbo) Dispose(what string, release func() error) {
	if l.Alive() {
		if err := l.Submit(what, release); err == nil {
			return
		}
	}
	if l.policy == DropPanic {
		panic(api.NewError(api.ErrCodeRuntimeGone, "cleanup dispatcher used after its runtime terminated").
			WithContext("resource", what))
	}
	l.metrics.Inc("limbo_released_inline_total")
	l.log.Debug("cleanup dispatcher gone, releasing inline", zap.String("resource", what))
	l.execute(limboJob{what: what, release: release})
}

// Pending returns the number of queued releases.
func (l *Limbo) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.jobs.Length()
}

// Close stops accepting work, runs everything already queued and waits for
// the worker to exit.
func (l *Limbo) Close() {
	l.mu.Lock()
	if atomic.LoadInt32(&l.closed) == 1 {
		l.mu.Unlock()
		<-l.stopped
		return
	}
	atomic.StoreInt32(&l.closed, 1)
	close(l.closeCh)
	l.mu.Unlock()
	<-l.stopped
}

func (l *Limbo) run() {
	defer close(l.stopped)
	for {
		if job, ok := l.next(); ok {
			l.execute(job)
			continue
		}
		select {
		case <-l.notify:
		case <-l.closeCh:
			for {
				job, ok := l.next()
				if !ok {
					return
				}
				l.execute(job)
			}
		}
	}
}

func (l *Limbo) next() (limboJob, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.jobs.Length() == 0 {
		return limboJob{}, false
	}
	return l.jobs.Remove().(limboJob), true
}

// execute runs one release, recovering from panics to keep the worker alive.
func (l *Limbo) execute(job limboJob) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("release panicked", zap.String("resource", job.what), zap.Any("panic", r))
		}
		l.metrics.Inc("limbo_released_total")
	}()
	if err := job.release(); err != nil {
		l.log.Debug("release failed", zap.String("resource", job.what), zap.Error(err))
	}
}

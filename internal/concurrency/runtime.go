// File: internal/concurrency/runtime.go
// Package concurrency implements a single-threaded cooperative runtime.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Every task runs on its own goroutine, but only the task holding the baton
// executes. The driver loop runs on the goroutine that calls BlockOn and
// hands the baton to ready tasks in FIFO order. A task gives the baton back
// when it yields, awaits an operation, or returns. Yielded tasks resume only
// once the ready queue is empty and in-flight operations had a bounded
// chance to complete.

package concurrency

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/momentics/ipcdrop/api"
	"github.com/momentics/ipcdrop/control"
)

// Options configures a Runtime.
type Options struct {
	// Name identifies the runtime in logs.
	Name string
	// Policy selects shutdown ordering and destructor behavior. Defaults to
	// DropSilent.
	Policy DropPolicy
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// PollGrace bounds how long the driver waits for in-flight Await
	// operations before resuming yielded tasks. Defaults to
	// DefaultPollGrace.
	PollGrace time.Duration
	// Metrics and Probes are optional.
	Metrics *control.MetricsRegistry
	Probes  *control.DebugProbes
}

// DefaultPollGrace is the default Options.PollGrace.
const DefaultPollGrace = 25 * time.Millisecond

// Runtime is a single-threaded cooperative task scheduler.
type Runtime struct {
	name    string
	policy  DropPolicy
	log     *zap.Logger
	metrics *control.MetricsRegistry
	limbo   *Limbo
	grace   time.Duration

	mu         sync.Mutex
	ready      *queue.Queue // *task, FIFO
	yielded    *queue.Queue // *task, resumed after the ready queue drains
	tasks      map[uint64]*task
	nextID     uint64
	dropPanics []*api.DropPanic
	closing    bool

	notify   chan struct{}
	inflight atomic.Int32
	started  int32
	closed   int32
}

var _ api.GracefulShutdown = (*Runtime)(nil)

// NewRuntime creates a runtime and its cleanup dispatcher.
func NewRuntime(opts Options) *Runtime {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Policy == "" {
		opts.Policy = DropSilent
	}
	if opts.Name == "" {
		opts.Name = "runtime"
	}
	if opts.PollGrace <= 0 {
		opts.PollGrace = DefaultPollGrace
	}
	rt := &Runtime{
		name:    opts.Name,
		policy:  opts.Policy,
		log:     opts.Logger.With(zap.String("runtime", opts.Name)),
		metrics: opts.Metrics,
		grace:   opts.PollGrace,
		ready:   queue.New(),
		yielded: queue.New(),
		tasks:   make(map[uint64]*task),
		notify:  make(chan struct{}, 1),
	}
	rt.limbo = newLimbo(weak.Make(rt), rt.policy, rt.log, rt.metrics)

	opts.Probes.RegisterProbe("runtime.live_tasks", func() any { return rt.LiveTasks() })
	opts.Probes.RegisterProbe("runtime.ready_tasks", func() any { return rt.ReadyTasks() })
	opts.Probes.RegisterProbe("runtime.yielded_tasks", func() any { return rt.yieldedTasks() })
	opts.Probes.RegisterProbe("runtime.inflight_ops", func() any { return int(rt.inflight.Load()) })
	opts.Probes.RegisterProbe("runtime.closed", func() any { return rt.Closed() })
	opts.Probes.RegisterProbe("limbo.alive", func() any { return rt.limbo.Alive() })
	opts.Probes.RegisterProbe("limbo.pending", func() any { return rt.limbo.Pending() })
	return rt
}

// Policy returns the configured drop policy.
func (rt *Runtime) Policy() DropPolicy {
	return rt.policy
}

// Limbo returns the runtime's cleanup dispatcher.
func (rt *Runtime) Limbo() *Limbo {
	return rt.limbo
}

// Spawn queues a task. It may be called before BlockOn; the task starts once
// the driver reaches it.
func (rt *Runtime) Spawn(name string, fn api.TaskFunc) (api.JoinHandle, error) {
	t, err := rt.spawn(name, fn)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// BlockOn runs fn as the main task and drives the scheduler until it
// returns, then shuts the runtime down. It returns fn's error. A panic in fn
// is re-raised after shutdown; a panic raised while dropping tasks is
// re-raised as *api.DropPanic.
func (rt *Runtime) BlockOn(fn api.TaskFunc) error {
	if !atomic.CompareAndSwapInt32(&rt.started, 0, 1) {
		return api.ErrRuntimeClosed
	}
	main, err := rt.spawn("main", fn)
	if err != nil {
		return err
	}
	rt.drive(main)
	_ = rt.Shutdown()
	if main.panicValue != nil {
		panic(main.panicValue)
	}
	return main.err
}

// drive hands the baton to ready tasks until main has returned. When the
// ready queue is empty, yielded tasks are requeued behind whatever the
// in-flight operations complete within the poll grace.
func (rt *Runtime) drive(main *task) {
	for {
		t := rt.popReady()
		if t == nil {
			if rt.yieldedTasks() > 0 {
				rt.pollInflight()
				rt.promoteYielded()
				continue
			}
			<-rt.notify
			continue
		}
		t.resume <- struct{}{}
		<-t.parked
		if t == main && main.exited.Load() {
			return
		}
	}
}

// pollInflight waits until an Await operation completes, none is left
// running, or the grace elapses.
func (rt *Runtime) pollInflight() {
	if rt.inflight.Load() == 0 {
		return
	}
	timer := time.NewTimer(rt.grace)
	defer timer.Stop()
	for rt.ReadyTasks() == 0 && rt.inflight.Load() > 0 {
		select {
		case <-rt.notify:
		case <-timer.C:
			return
		}
	}
}

// Shutdown refuses new spawns and drops every live task in spawn order.
// Under DropSilent and DropPanic the cleanup dispatcher is closed first;
// under DropDrain it is closed after the last task was dropped.
func (rt *Runtime) Shutdown() error {
	rt.mu.Lock()
	if rt.closing {
		rt.mu.Unlock()
		return nil
	}
	rt.closing = true
	live := make([]*task, 0, len(rt.tasks))
	for _, t := range rt.tasks {
		live = append(live, t)
	}
	rt.mu.Unlock()
	sort.Slice(live, func(i, j int) bool { return live[i].id < live[j].id })

	rt.log.Debug("runtime shutting down",
		zap.Int("live_tasks", len(live)),
		zap.Stringer("drop_policy", rt.policy))

	if rt.policy != DropDrain {
		rt.limbo.Close()
	}
	for _, t := range live {
		t.dropping.Store(true)
		t.cancel()
		<-t.done
	}
	if rt.policy == DropDrain {
		rt.limbo.Close()
	}
	atomic.StoreInt32(&rt.closed, 1)

	rt.mu.Lock()
	panics := rt.dropPanics
	rt.mu.Unlock()
	for _, p := range panics {
		rt.log.Error("panic while dropping task", zap.String("task", p.Task), zap.Any("panic", p.Value))
	}
	rt.log.Debug("runtime shut down")
	if len(panics) > 0 {
		panic(panics[0])
	}
	return nil
}

// Closed reports whether Shutdown completed.
func (rt *Runtime) Closed() bool {
	return atomic.LoadInt32(&rt.closed) == 1
}

// LiveTasks returns the number of tasks that have not finished.
func (rt *Runtime) LiveTasks() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.tasks)
}

// ReadyTasks returns the length of the ready queue.
func (rt *Runtime) ReadyTasks() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.ready.Length()
}

func (rt *Runtime) spawn(name string, fn api.TaskFunc) (*task, error) {
	ctx, cancel := context.WithCancel(context.Background())
	rt.mu.Lock()
	if rt.closing {
		rt.mu.Unlock()
		cancel()
		return nil, api.ErrRuntimeClosed
	}
	rt.nextID++
	t := newTask(rt.nextID, name, fn, ctx, cancel, weak.Make(rt), rt.log)
	rt.tasks[t.id] = t
	rt.ready.Add(t)
	rt.mu.Unlock()
	rt.wake()

	rt.metrics.Inc("runtime_tasks_spawned_total")
	rt.log.Debug("task spawned", zap.String("task", name), zap.Uint64("task_id", t.id))
	go t.run()
	return t, nil
}

func (rt *Runtime) pushReady(t *task) {
	rt.mu.Lock()
	rt.ready.Add(t)
	rt.mu.Unlock()
	rt.wake()
}

func (rt *Runtime) deferYield(t *task) {
	rt.mu.Lock()
	rt.yielded.Add(t)
	rt.mu.Unlock()
}

func (rt *Runtime) promoteYielded() {
	rt.mu.Lock()
	for rt.yielded.Length() > 0 {
		rt.ready.Add(rt.yielded.Remove())
	}
	rt.mu.Unlock()
}

func (rt *Runtime) yieldedTasks() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.yielded.Length()
}

func (rt *Runtime) popReady() *task {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.ready.Length() == 0 {
		return nil
	}
	return rt.ready.Remove().(*task)
}

func (rt *Runtime) wake() {
	select {
	case rt.notify <- struct{}{}:
	default:
	}
}

func (rt *Runtime) taskExited(t *task) {
	rt.mu.Lock()
	delete(rt.tasks, t.id)
	rt.mu.Unlock()

	switch {
	case t.dropping.Load():
		rt.metrics.Inc("runtime_tasks_dropped_total")
	case t.panicValue != nil:
		rt.metrics.Inc("runtime_task_panics_total")
	default:
		rt.metrics.Inc("runtime_tasks_completed_total")
	}
}

func (rt *Runtime) recordDropPanic(p *api.DropPanic) {
	rt.metrics.Inc("runtime_drop_panics_total")
	rt.mu.Lock()
	rt.dropPanics = append(rt.dropPanics, p)
	rt.mu.Unlock()
}

// File: internal/scenario/scenario.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package scenario drives one run of the listener, sender and client actors
// on a single-threaded runtime and reports how the runtime tore down.

package scenario

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/momentics/ipcdrop/api"
	"github.com/momentics/ipcdrop/internal/concurrency"
	"github.com/momentics/ipcdrop/internal/localsock"
)

// Report describes a finished run.
type Report struct {
	Endpoint   string
	Ordering   Ordering
	DropPolicy concurrency.DropPolicy
	// States lists every state reached, in order.
	States []State
	// Outcome is StateCleanTeardown or StatePanic.
	Outcome State
	// Err is the main task's error, if any.
	Err       error
	Delivered []byte
	PeerPID   int32
	Elapsed   time.Duration
	Metrics   map[string]float64
	Probes    map[string]any
}

// Reached reports whether the run passed through s.
func (r *Report) Reached(s State) bool {
	for _, st := range r.States {
		if st == s {
			return true
		}
	}
	return false
}

// Scenario is a single reproduction run.
type Scenario struct {
	opts Options
	log  *zap.Logger
	tr   *tracker

	started atomic.Bool

	// bound fires once the listener is bound; written once the payload
	// was handed to the transport. Both fail with the first actor error.
	bound   *concurrency.Signal
	written *concurrency.Signal

	mu     sync.Mutex
	report *Report
	pid    int32
	got    []byte
}

// New validates opts.
func New(opts Options) (*Scenario, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	log := opts.Logger.With(zap.String("endpoint", opts.Endpoint.String()))
	return &Scenario{
		opts:    opts,
		log:     log,
		tr:      newTracker(log),
		bound:   concurrency.NewSignal(),
		written: concurrency.NewSignal(),
	}, nil
}

// Run executes the scenario. Drop-time panics under concurrency.DropPanic
// propagate after the report was recorded. A scenario runs at most once;
// later calls return api.ErrRuntimeClosed and keep the first report.
func (s *Scenario) Run() (err error) {
	if !s.started.CompareAndSwap(false, true) {
		return api.ErrRuntimeClosed
	}
	rt := concurrency.NewRuntime(concurrency.Options{
		Name:      "droprepro",
		Policy:    s.opts.DropPolicy,
		Logger:    s.opts.Logger,
		PollGrace: s.opts.PollGrace,
		Metrics:   s.opts.Metrics,
		Probes:    s.opts.Probes,
	})
	start := time.Now()
	s.log.Info("scenario starting",
		zap.String("ordering", string(s.opts.Ordering)),
		zap.Stringer("drop_policy", s.opts.DropPolicy),
		zap.Bool("namespaced", localsock.Namespaced()))

	defer func() {
		r := recover()
		outcome := StateCleanTeardown
		if r != nil {
			outcome = StatePanic
		}
		s.tr.enter(outcome)
		s.finish(outcome, err, time.Since(start))
		if r != nil {
			s.log.Error("runtime teardown panicked", zap.Any("panic", r))
			panic(r)
		}
	}()

	err = rt.BlockOn(s.main)
	return err
}

// Report returns the run's report once Run returned or panicked.
func (s *Scenario) Report() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Run builds and runs a scenario.
func Run(opts Options) (*Report, error) {
	s, err := New(opts)
	if err != nil {
		return nil, err
	}
	err = s.Run()
	return s.Report(), err
}

func (s *Scenario) finish(outcome State, err error, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = &Report{
		Endpoint:   s.opts.Endpoint.String(),
		Ordering:   s.opts.Ordering,
		DropPolicy: s.opts.DropPolicy,
		States:     s.tr.snapshot(),
		Outcome:    outcome,
		Err:        err,
		Delivered:  s.got,
		PeerPID:    s.pid,
		Elapsed:    elapsed,
		Metrics:    s.opts.Metrics.GetSnapshot(),
		Probes:     s.opts.Probes.DumpState(),
	}
	if outcome == StateCleanTeardown {
		s.log.Info("scenario finished", zap.Duration("elapsed", elapsed), zap.Error(err))
	}
}

// main is the entry task: it starts the listener, connects as the client
// and returns, leaving the sender to the runtime's teardown.
func (s *Scenario) main(tc api.TaskContext) error {
	defer s.tr.enter(StateRuntimeShutdown)

	listener := tc.Spawn("listener", s.listen)
	if err := s.before(tc); err != nil {
		return err
	}
	client, err := s.connect(tc, listener)
	if err != nil {
		return err
	}
	defer client.Close()
	s.tr.enter(StateConnected)

	if err := s.after(tc); err != nil {
		return err
	}
	if s.opts.VerifyDelivery {
		if err := s.verify(tc, client); err != nil {
			return err
		}
	}
	if s.opts.Linger > 0 {
		return tc.Sleep(s.opts.Linger)
	}
	return nil
}

func (s *Scenario) before(tc api.TaskContext) error {
	if s.opts.Ordering == OrderingHandshake {
		return s.bound.Wait(tc)
	}
	return yieldN(tc, s.opts.YieldsBeforeConnect)
}

func (s *Scenario) after(tc api.TaskContext) error {
	if s.opts.Ordering == OrderingHandshake {
		return s.written.Wait(tc)
	}
	return yieldN(tc, s.opts.YieldsAfterConnect)
}

func yieldN(tc api.TaskContext, n int) error {
	for i := 0; i < n; i++ {
		if err := tc.Yield(); err != nil {
			return err
		}
	}
	return nil
}

// fail completes both signals with err so waiters never hang.
func (s *Scenario) fail(err error) {
	s.bound.Fail(err)
	s.written.Fail(err)
}

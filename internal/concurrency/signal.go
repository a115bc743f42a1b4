// File: internal/concurrency/signal.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One-shot readiness signal between tasks.

package concurrency

import (
	"context"
	"sync"

	"github.com/momentics/ipcdrop/api"
)

// Signal is fired or failed exactly once. Waiters observe the outcome.
type Signal struct {
	once sync.Once
	ch   chan struct{}
	err  error
}

// NewSignal creates an unfired signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Fire marks the signal successful. Later calls to Fire or Fail are ignored.
func (s *Signal) Fire() {
	s.Fail(nil)
}

// Fail completes the signal with err.
func (s *Signal) Fail(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.ch)
	})
}

// Done is closed once the signal completed.
func (s *Signal) Done() <-chan struct{} {
	return s.ch
}

// Fired reports whether the signal completed.
func (s *Signal) Fired() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Err returns the failure passed to Fail. Only valid after Done is closed.
func (s *Signal) Err() error {
	if !s.Fired() {
		return nil
	}
	return s.err
}

// Wait suspends the calling task until the signal completes and returns the
// failure, if any.
func (s *Signal) Wait(tc api.TaskContext) error {
	err := tc.Await(func(ctx context.Context) error {
		select {
		case <-s.ch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		return err
	}
	return s.err
}

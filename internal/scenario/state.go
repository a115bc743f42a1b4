// File: internal/scenario/state.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package scenario

import (
	"slices"
	"sync"

	"go.uber.org/zap"
)

// State is a step of a reproduction run.
type State int

const (
	StateInit State = iota
	StateListenerBinding
	StateAccepting
	StateConnected
	StateWriteIssued
	StateIdling
	StateRuntimeShutdown
	StateCleanTeardown
	StatePanic
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateListenerBinding:
		return "listener_binding"
	case StateAccepting:
		return "accepting"
	case StateConnected:
		return "connected"
	case StateWriteIssued:
		return "write_issued"
	case StateIdling:
		return "idling"
	case StateRuntimeShutdown:
		return "runtime_shutdown"
	case StateCleanTeardown:
		return "clean_teardown"
	case StatePanic:
		return "panic"
	default:
		return "unknown"
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateCleanTeardown || s == StatePanic
}

// tracker records states in the order they were reached.
type tracker struct {
	mu     sync.Mutex
	states []State
	log    *zap.Logger
}

func newTracker(log *zap.Logger) *tracker {
	return &tracker{states: []State{StateInit}, log: log}
}

func (t *tracker) enter(s State) {
	t.mu.Lock()
	t.states = append(t.states, s)
	t.mu.Unlock()
	t.log.Debug("scenario state", zap.Stringer("state", s))
}

func (t *tracker) snapshot() []State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.states)
}

// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Probe registry for internal inspection of runtime state.

package control

import (
	"sync"

	"github.com/momentics/ipcdrop/api"
)

// DebugProbes holds registered probe functions.
// A nil *DebugProbes is valid and ignores registrations.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

var _ api.Debug = (*DebugProbes)(nil)

// NewDebugProbes creates a probe registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{
		probes: make(map[string]func() any),
	}
}

// RegisterProbe inserts a named debug hook, replacing any previous one.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	if dp == nil {
		return
	}
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// DumpState returns output of all probes.
func (dp *DebugProbes) DumpState() map[string]any {
	out := make(map[string]any)
	if dp == nil {
		return out
	}
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	for k, fn := range dp.probes {
		out[k] = fn()
	}
	return out
}

// File: api/debug.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Live introspection contract.

package api

// Debug exposes named probes evaluated on demand.
type Debug interface {
	// DumpState evaluates every probe.
	DumpState() map[string]any

	// RegisterProbe adds or replaces a probe.
	RegisterProbe(name string, fn func() any)
}

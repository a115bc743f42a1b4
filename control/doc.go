// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection layer.
//
// Provides concurrent-safe state handling primitives including:
//   - Counters and gauges on a private prometheus registry
//   - Snapshot export of metric values
//   - Probe registration and state dumps
//
// Both registries accept nil receivers so components can run without them.
package control

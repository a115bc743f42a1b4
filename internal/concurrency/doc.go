// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Cooperative concurrency primitives for ipcdrop: a single-threaded task
// runtime with explicit yields and awaits, the cleanup dispatcher (Limbo)
// used by resource destructors, drop policies deciding the shutdown order,
// and a one-shot Signal for ordering tasks without relying on yields.
package concurrency

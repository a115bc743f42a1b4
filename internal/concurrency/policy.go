// File: internal/concurrency/policy.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"fmt"
	"strings"

	"github.com/momentics/ipcdrop/api"
)

// DropPolicy decides what a resource destructor does when the cleanup
// dispatcher it relies on has already terminated, and in which order the
// runtime tears the dispatcher and its tasks down.
type DropPolicy string

const (
	// DropSilent closes the dispatcher before dropping tasks; destructors that
	// find it gone release their resource inline.
	DropSilent DropPolicy = "silent"
	// DropDrain drops every task first and closes the dispatcher last, so all
	// queued releases run before shutdown returns.
	DropDrain DropPolicy = "drain"
	// DropPanic closes the dispatcher before dropping tasks and panics in any
	// destructor that tries to use it afterwards.
	DropPanic DropPolicy = "panic"
)

// ParseDropPolicy parses a policy name. The empty string maps to DropSilent.
func ParseDropPolicy(s string) (DropPolicy, error) {
	switch p := DropPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DropSilent, nil
	case DropSilent, DropDrain, DropPanic:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown drop policy %q", api.ErrInvalidArgument, s)
	}
}

func (p DropPolicy) String() string {
	return string(p)
}

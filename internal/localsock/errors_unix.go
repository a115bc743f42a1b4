//go:build !windows

// File: internal/localsock/errors_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package localsock

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

func classifyListen(ep Endpoint, err error) error {
	if errors.Is(err, unix.EADDRINUSE) {
		return addrInUse(ep.Addr(), err)
	}
	return fmt.Errorf("listen on %s: %w", ep, err)
}

func classifyDial(addr string, err error) error {
	switch {
	case errors.Is(err, unix.ECONNREFUSED),
		errors.Is(err, unix.ENOENT),
		errors.Is(err, context.DeadlineExceeded):
		return connectRefused(addr, err)
	}
	return fmt.Errorf("dial %s: %w", addr, err)
}

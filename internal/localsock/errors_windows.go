//go:build windows

// File: internal/localsock/errors_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package localsock

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

// A pipe name held by another server instance shows up as access denied
// when the first instance was created with FILE_FLAG_FIRST_PIPE_INSTANCE.
func classifyListen(ep Endpoint, err error) error {
	if errors.Is(err, windows.ERROR_ACCESS_DENIED) || errors.Is(err, windows.ERROR_PIPE_BUSY) {
		return addrInUse(ep.Addr(), err)
	}
	return fmt.Errorf("listen on %s: %w", ep, err)
}

func classifyDial(addr string, err error) error {
	switch {
	case errors.Is(err, windows.ERROR_FILE_NOT_FOUND),
		errors.Is(err, windows.ERROR_PATH_NOT_FOUND),
		errors.Is(err, context.DeadlineExceeded):
		return connectRefused(addr, err)
	}
	return fmt.Errorf("dial %s: %w", addr, err)
}

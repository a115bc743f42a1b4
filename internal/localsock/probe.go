// File: internal/localsock/probe.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package localsock

import (
	"context"
	"errors"

	"github.com/momentics/ipcdrop/api"
)

// Probe reports whether a live listener is bound at ep. The probing
// connection is closed immediately.
func Probe(ctx context.Context, ep Endpoint) (bool, error) {
	c, err := Dial(ctx, ep.Addr())
	if err == nil {
		_ = c.Close()
		return true, nil
	}
	if errors.Is(err, api.ErrConnectRefused) {
		return false, nil
	}
	return false, err
}

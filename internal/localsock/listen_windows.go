//go:build windows

// File: internal/localsock/listen_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package localsock

import (
	"context"
	"fmt"

	"github.com/Microsoft/go-winio"

	"github.com/momentics/ipcdrop/api"
)

const pipeBufferSize = 4096

// Listen binds ep as a named pipe. A live server on the same pipe name
// yields api.ErrAddrInUse.
func Listen(ep Endpoint) (*Listener, error) {
	if ep.IsZero() {
		return nil, fmt.Errorf("%w: zero endpoint", api.ErrInvalidArgument)
	}
	ln, err := winio.ListenPipe(ep.Addr(), &winio.PipeConfig{
		InputBufferSize:  pipeBufferSize,
		OutputBufferSize: pipeBufferSize,
	})
	if err != nil {
		return nil, classifyListen(ep, err)
	}
	// Pipe listeners have no deadline; closing is the only way to unblock
	// Accept. The interrupt claims closed so a later Close is a no-op.
	l := &Listener{ep: ep, l: ln}
	l.interrupt = func() {
		if l.closed.CompareAndSwap(false, true) {
			_ = ln.Close()
		}
	}
	return l, nil
}

// Dial connects to the pipe at addr.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	c, err := winio.DialPipeContext(ctx, addr)
	if err != nil {
		return nil, classifyDial(addr, err)
	}
	return newConn(c), nil
}

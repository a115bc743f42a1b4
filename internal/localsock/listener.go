// File: internal/localsock/listener.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package localsock

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
)

// Listener accepts connections on one endpoint.
type Listener struct {
	ep        Endpoint
	l         net.Listener
	interrupt func()
	closed    atomic.Bool
}

// Endpoint returns the bound endpoint.
func (l *Listener) Endpoint() Endpoint { return l.ep }

// Addr returns the listener's network address.
func (l *Listener) Addr() net.Addr { return l.l.Addr() }

// Accept waits for one inbound connection or for ctx to end.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, l.interrupt)
	c, err := l.l.Accept()
	stop()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("accept on %s: %w", l.ep, err)
	}
	return newConn(c), nil
}

// Close stops listening. Path-style endpoints have their socket file
// removed. Calling Close more than once is a no-op.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	return l.l.Close()
}

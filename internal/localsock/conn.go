// File: internal/localsock/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package localsock

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/momentics/ipcdrop/api"
)

// Conn is one duplex local socket connection.
type Conn struct {
	c      net.Conn
	pid    int32
	hasPID bool
	split  atomic.Bool
}

func newConn(c net.Conn) *Conn {
	pid, ok := peerPID(c)
	return &Conn{c: c, pid: pid, hasPID: ok}
}

// PeerPID returns the peer's process id where the platform exposes it.
func (c *Conn) PeerPID() (int32, bool) { return c.pid, c.hasPID }

// Read reads from the connection.
func (c *Conn) Read(p []byte) (int, error) { return c.c.Read(p) }

// Write writes to the connection.
func (c *Conn) Write(p []byte) (int, error) {
	n, err := c.c.Write(p)
	if err != nil {
		return n, writeFailed(err)
	}
	return n, nil
}

// SetDeadline sets read and write deadlines.
func (c *Conn) SetDeadline(t time.Time) error { return c.c.SetDeadline(t) }

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr { return c.c.LocalAddr() }

// Close closes an unsplit connection. After Split the halves own the
// descriptor and Close reports ErrHalfClosed.
func (c *Conn) Close() error {
	if c.split.Load() {
		return api.ErrHalfClosed
	}
	return c.c.Close()
}

// Split hands the connection over to two independently owned halves. The
// write half releases itself through d; a nil d releases inline.
func (c *Conn) Split(d api.Disposer) (*ReadHalf, *WriteHalf) {
	if !c.split.CompareAndSwap(false, true) {
		panic("localsock: connection split twice")
	}
	s := &shared{c: c.c}
	s.refs.Store(2)
	return &ReadHalf{s: s}, &WriteHalf{s: s, d: d}
}

// shared closes the descriptor when the last half lets go of it.
type shared struct {
	c    net.Conn
	refs atomic.Int32
}

func (s *shared) release() error {
	if s.refs.Add(-1) == 0 {
		return s.c.Close()
	}
	return nil
}

type readCloser interface{ CloseRead() error }

type writeCloser interface{ CloseWrite() error }

// ReadHalf is the receiving side of a split connection.
type ReadHalf struct {
	s      *shared
	closed atomic.Bool
}

// Read reads from the connection.
func (r *ReadHalf) Read(p []byte) (int, error) {
	if r.closed.Load() {
		return 0, api.ErrHalfClosed
	}
	return r.s.c.Read(p)
}

// SetReadDeadline bounds pending and future reads.
func (r *ReadHalf) SetReadDeadline(t time.Time) error { return r.s.c.SetReadDeadline(t) }

// Close shuts down the receive direction and drops this half's reference.
func (r *ReadHalf) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	if rc, ok := r.s.c.(readCloser); ok {
		_ = rc.CloseRead()
	}
	return r.s.release()
}

// WriteHalf is the sending side of a split connection.
type WriteHalf struct {
	s      *shared
	d      api.Disposer
	closed atomic.Bool
}

// Write writes p; transport failures wrap api.ErrWriteFailed.
func (w *WriteHalf) Write(p []byte) (int, error) {
	if w.closed.Load() {
		return 0, api.ErrHalfClosed
	}
	n, err := w.s.c.Write(p)
	if err != nil {
		return n, writeFailed(err)
	}
	return n, nil
}

// WriteAll writes all of p or fails. Cancelling ctx interrupts a blocked
// write.
func (w *WriteHalf) WriteAll(ctx context.Context, p []byte) error {
	if w.closed.Load() {
		return api.ErrHalfClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = w.s.c.SetWriteDeadline(time.Now())
	})
	defer stop()
	for len(p) > 0 {
		n, err := w.s.c.Write(p)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return writeFailed(err)
		}
		p = p[n:]
	}
	return nil
}

// Close shuts down the send direction and drops this half's reference.
// The release runs on the disposer; Close itself never blocks and is
// idempotent.
func (w *WriteHalf) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	release := func() error {
		if wc, ok := w.s.c.(writeCloser); ok {
			_ = wc.CloseWrite()
		}
		return w.s.release()
	}
	if w.d == nil {
		return release()
	}
	w.d.Dispose(fmt.Sprintf("write half %s", w.s.c.LocalAddr()), release)
	return nil
}

//go:build !windows

// File: internal/localsock/listen_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package localsock

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"time"

	"github.com/momentics/ipcdrop/api"
)

const staleProbeTimeout = 500 * time.Millisecond

// Listen binds ep. A live listener on the same endpoint yields
// api.ErrAddrInUse.
func Listen(ep Endpoint) (*Listener, error) {
	if ep.IsZero() {
		return nil, fmt.Errorf("%w: zero endpoint", api.ErrInvalidArgument)
	}
	addr := ep.Addr()
	if !Namespaced() {
		if err := reclaimStale(addr); err != nil {
			return nil, err
		}
	}
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: addr, Net: "unix"})
	if err != nil {
		return nil, classifyListen(ep, err)
	}
	ln.SetUnlinkOnClose(!Namespaced())
	return &Listener{
		ep: ep,
		l:  ln,
		interrupt: func() {
			_ = ln.SetDeadline(time.Now())
		},
	}, nil
}

// Dial connects to addr.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "unix", addr)
	if err != nil {
		return nil, classifyDial(addr, err)
	}
	return newConn(c), nil
}

// reclaimStale removes a socket file left behind by a dead listener. A file
// that still answers connects belongs to a live listener.
func reclaimStale(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return addrInUse(path, fmt.Errorf("%s exists and is not a socket", path))
	}

	ctx, cancel := context.WithTimeout(context.Background(), staleProbeTimeout)
	defer cancel()
	var d net.Dialer
	if c, err := d.DialContext(ctx, "unix", path); err == nil {
		_ = c.Close()
		return addrInUse(path, nil)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	return nil
}

//go:build linux

// File: internal/localsock/peercred_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package localsock

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

func peerPID(c net.Conn) (int32, bool) {
	sc, ok := c.(syscall.Conn)
	if !ok {
		return 0, false
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, false
	}
	var (
		cred    *unix.Ucred
		credErr error
	)
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil || credErr != nil {
		return 0, false
	}
	return cred.Pid, true
}

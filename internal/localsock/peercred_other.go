//go:build !linux

// File: internal/localsock/peercred_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package localsock

import "net"

func peerPID(net.Conn) (int32, bool) { return 0, false }

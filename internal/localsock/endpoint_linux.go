//go:build linux

// File: internal/localsock/endpoint_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux uses the abstract unix socket namespace.

package localsock

import "os"

const namespaced = true

func addrFor(name string) string { return "@" + name }

func socketDir() string { return os.TempDir() }

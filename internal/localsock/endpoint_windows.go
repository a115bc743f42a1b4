//go:build windows

// File: internal/localsock/endpoint_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows uses the named pipe namespace.

package localsock

import "os"

const namespaced = true

func addrFor(name string) string { return pipePrefix + name }

func socketDir() string { return os.TempDir() }

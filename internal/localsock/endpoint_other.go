//go:build !linux && !windows

// File: internal/localsock/endpoint_other.go
// Author: momentics <momentics@gmail.com>
//
// Platforms without an endpoint namespace use socket files in the temp dir.

package localsock

import (
	"os"
	"path/filepath"
)

const namespaced = false

func addrFor(name string) string { return filepath.Join(socketDir(), name+socketSuffix) }

func socketDir() string { return os.TempDir() }

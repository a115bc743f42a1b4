// File: cmd/droprepro/main.go
// Package main
// droprepro reproduces a detached sender task dropping the write half of a
// local socket while its runtime shuts down.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "droprepro:", err)
		os.Exit(1)
	}
}

// control/platform.go
// Author: momentics <momentics@gmail.com>
//
// Platform debug probe integrations.

package control

import (
	"os"
	"runtime"
)

// RegisterPlatformProbes sets process and platform debug probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.os", func() any {
		return runtime.GOOS
	})
	dp.RegisterProbe("platform.pid", func() any {
		return os.Getpid()
	})
	dp.RegisterProbe("platform.goroutines", func() any {
		return runtime.NumGoroutine()
	})
}

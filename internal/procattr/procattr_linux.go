//go:build linux

// Package procattr configures spawned CLI processes so the bridge can tear
// down the whole subprocess tree on cancel, and so children do not outlive
// a killed bridge.
package procattr

import (
	"os/exec"
	"syscall"
)

// Set puts the child in its own process group and arranges for it to
// receive SIGTERM if the bridge dies first. The group is what lets
// SignalGroup reach grandchildren the CLI forks, not just the CLI itself.
func Set(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}

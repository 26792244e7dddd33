//go:build !linux

// Package procattr configures spawned CLI processes so the bridge can tear
// down the whole subprocess tree on cancel, and so children do not outlive
// a killed bridge.
package procattr

import (
	"os/exec"
	"syscall"
)

// Set puts the child in its own process group so SignalGroup reaches
// grandchildren the CLI forks. Pdeathsig has no portable equivalent off
// Linux, so an orphaned child is only cleaned up via the group signal.
func Set(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

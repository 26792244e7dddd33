package procattr

import (
	"os"
	"syscall"
)

// SignalGroup delivers sig to every process in p's group. Kill on the
// negated pid targets the group created by Set; a nil process is a no-op
// so callers need not guard a run that never started.
func SignalGroup(p *os.Process, sig syscall.Signal) error {
	if p == nil {
		return nil
	}
	return syscall.Kill(-p.Pid, sig)
}

// KillGroup force-kills p's entire process group.
func KillGroup(p *os.Process) error {
	return SignalGroup(p, syscall.SIGKILL)
}

//go:build unix

package server

import (
	"os"
	"os/exec"
	"syscall"
)

// startOwnGroup puts the child in a new process group so that signals reach
// the processes it spawns as well.
func startOwnGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup signals every process in p's process group.
func signalGroup(p *os.Process, sig syscall.Signal) error {
	return syscall.Kill(-p.Pid, sig)
}

//go:build !unix

package server

import (
	"os"
	"os/exec"
	"syscall"
)

func startOwnGroup(cmd *exec.Cmd) {}

func signalGroup(p *os.Process, sig syscall.Signal) error {
	if sig == syscall.SIGKILL {
		return p.Kill()
	}
	return p.Signal(sig)
}

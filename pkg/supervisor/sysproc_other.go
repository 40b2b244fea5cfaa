//go:build !windows

package supervisor

import (
	"os"
	"syscall"
)

func childSysProcAttr() *syscall.SysProcAttr { return nil }

func signalTerminate(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}

//go:build windows

package supervisor

import (
	"os"
	"syscall"
)

// createNoWindow keeps the renderer from opening a console window of its own.
const createNoWindow = 0x08000000

func childSysProcAttr() *syscall.SysProcAttr {
	if os.Getenv("BCU_SHOW_CONSOLE") != "" { // allow debug
		return nil
	}
	return &syscall.SysProcAttr{HideWindow: true, CreationFlags: createNoWindow}
}

// Windows has no SIGTERM for console-less children; go straight to Kill.
func signalTerminate(p *os.Process) error {
	return p.Kill()
}

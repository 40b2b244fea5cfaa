//go:build unix

package ipc

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseAddr lets a restarted renderer rebind while the old socket sits in TIME_WAIT.
func reuseAddr(network, address string, rc syscall.RawConn) error {
	var serr error
	err := rc.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return serr
}

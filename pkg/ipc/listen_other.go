//go:build !unix

package ipc

import "syscall"

// SO_REUSEADDR on Windows allows port hijacking, so the default socket options stay.
func reuseAddr(network, address string, rc syscall.RawConn) error { return nil }

package ipc

import (
	"fmt"
	"net"
	"strconv"

	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// portOwner names the process listening on addr's port, or "" if unknown.
// Used to explain a failed bind.
func portOwner(addr string) string {
	_, ps, err := net.SplitHostPort(addr)
	if err != nil {
		return ""
	}
	port, err := strconv.Atoi(ps)
	if err != nil {
		return ""
	}
	conns, err := gnet.Connections("tcp")
	if err != nil {
		return ""
	}
	for _, c := range conns {
		if c.Status != "LISTEN" || c.Laddr.Port != uint32(port) {
			continue
		}
		name := "?"
		if p, err := process.NewProcess(c.Pid); err == nil {
			if n, err := p.Name(); err == nil {
				name = n
			}
		}
		return fmt.Sprintf("pid %d (%s)", c.Pid, name)
	}
	return ""
}

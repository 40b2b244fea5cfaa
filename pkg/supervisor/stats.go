package supervisor

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// Stats is a resource snapshot of the child.
type Stats struct {
	Pid        int     `json:"pid"`
	Running    bool    `json:"running"`
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
	Threads    int32   `json:"threads"`
}

// Stats samples the child through the OS process table.
func (p *Process) Stats() (Stats, error) {
	st := Stats{Pid: p.Pid()}
	if !p.Alive() {
		return st, nil
	}
	proc, err := process.NewProcess(int32(p.Pid()))
	if err != nil {
		return st, fmt.Errorf("stats pid %d: %w", p.Pid(), err)
	}
	running, err := proc.IsRunning()
	if err != nil {
		return st, fmt.Errorf("stats pid %d: %w", p.Pid(), err)
	}
	st.Running = running
	if !running {
		return st, nil
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		st.CPUPercent = cpu
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		st.RSSBytes = mem.RSS
	}
	if n, err := proc.NumThreads(); err == nil {
		st.Threads = n
	}
	return st, nil
}

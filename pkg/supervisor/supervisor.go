// Package supervisor spawns the renderer as a child process, mirrors its stdio
// into the controller log and terminates it with a grace period.
package supervisor

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultGrace is how long Terminate waits after the graceful signal.
const DefaultGrace = 2 * time.Second

// outputDelay bounds how long the output of an exited child is still mirrored.
// Helpers forked by the renderer can hold its stdout open indefinitely.
const outputDelay = 500 * time.Millisecond

// maxLine caps a buffered output line.
const maxLine = 1024 * 1024

// Process is a running child. Owned by whoever called Spawn.
type Process struct {
	cmd  *exec.Cmd
	argv []string

	done     chan struct{}
	exitErr  error
	stdout   *lineLog
	stderr   *lineLog
	termOnce sync.Once
	termErr  error
}

// Spawn starts argv[0] with argv[1:], mirroring stdout and stderr line by line into
// the log with the given tag ("[overlay:out] ...", "[overlay:err] ...").
func Spawn(argv []string, tag string) (*Process, error) {
	if len(argv) == 0 {
		return nil, errors.New("spawn: empty command")
	}
	out, errw := &lineLog{prefix: "[" + tag + ":out]"}, &lineLog{prefix: "[" + tag + ":err]"}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = childSysProcAttr()
	cmd.Stdout, cmd.Stderr = out, errw
	cmd.WaitDelay = outputDelay
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", argv[0], err)
	}

	p := &Process{cmd: cmd, argv: append([]string(nil), argv...), done: make(chan struct{}), stdout: out, stderr: errw}
	go p.wait()

	log.Printf("[SUPERVISOR] started pid %d", cmd.Process.Pid)
	log.Printf("[SUPERVISOR] args: %s", strings.Join(argv, " "))
	return p, nil
}

// lineLog writes child output to the log one line at a time.
type lineLog struct {
	prefix string
	mu     sync.Mutex
	buf    []byte
}

func (l *lineLog) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = append(l.buf, b...)
	rest := l.buf
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			break
		}
		l.emit(rest[:i])
		rest = rest[i+1:]
	}
	if len(rest) >= maxLine {
		l.emit(rest)
		rest = nil
	}
	l.buf = append(l.buf[:0], rest...)
	return len(b), nil
}

func (l *lineLog) emit(line []byte) {
	log.Printf("%s %s", l.prefix, strings.TrimRight(string(line), "\r"))
}

// flush logs a trailing line that had no newline.
func (l *lineLog) flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.buf) > 0 {
		l.emit(l.buf)
		l.buf = nil
	}
}

// wait reaps the child. Output still held open by a grandchild is cut off
// outputDelay after the child exits.
func (p *Process) wait() {
	err := p.cmd.Wait()
	if errors.Is(err, exec.ErrWaitDelay) {
		log.Printf("[SUPERVISOR] pid %d exited with its output still open elsewhere", p.Pid())
		err = nil
	}
	p.stdout.flush()
	p.stderr.flush()
	p.exitErr = err
	close(p.done)
	code := -1
	if p.cmd.ProcessState != nil {
		code = p.cmd.ProcessState.ExitCode()
	}
	log.Printf("[SUPERVISOR] pid %d exited (code %d)", p.Pid(), code)
}

// Pid returns the OS process id.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Args returns the argument vector used to launch the child.
func (p *Process) Args() []string { return append([]string(nil), p.argv...) }

// Done is closed once the child has exited and its output is flushed to the log.
func (p *Process) Done() <-chan struct{} { return p.done }

// Alive reports whether the child has not exited yet.
func (p *Process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// ExitErr returns the error from Wait once Done is closed.
func (p *Process) ExitErr() error {
	<-p.done
	return p.exitErr
}

// Terminate asks the child to exit, waits up to grace, then kills it. Repeated
// calls return the first result.
func (p *Process) Terminate(grace time.Duration) error {
	p.termOnce.Do(func() { p.termErr = p.terminate(grace) })
	return p.termErr
}

func (p *Process) terminate(grace time.Duration) error {
	if !p.Alive() {
		return nil
	}
	if grace <= 0 {
		grace = DefaultGrace
	}
	if err := signalTerminate(p.cmd.Process); err != nil {
		log.Printf("[SUPERVISOR] graceful stop of pid %d failed: %v", p.Pid(), err)
	} else {
		select {
		case <-p.done:
			return nil
		case <-time.After(grace):
			log.Printf("[SUPERVISOR] pid %d did not exit within %s, killing", p.Pid(), grace)
		}
	}
	if err := p.cmd.Process.Kill(); err != nil && p.Alive() {
		return fmt.Errorf("kill pid %d: %w", p.Pid(), err)
	}
	select {
	case <-p.done:
	case <-time.After(grace):
		return fmt.Errorf("pid %d still running after kill", p.Pid())
	}
	return nil
}

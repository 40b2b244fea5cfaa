package ipc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Uknong/BetterCheeseUtil/pkg/framebuf"
	"github.com/Uknong/BetterCheeseUtil/pkg/logging"
	"github.com/Uknong/BetterCheeseUtil/pkg/proto"
	"github.com/Uknong/BetterCheeseUtil/pkg/supervisor"
)

// State of the controller's connection lifecycle.
type State int32

const (
	StateNotStarted State = iota
	StateStarting
	StateConnecting
	StateConnected
	// StateDisconnected: the connection dropped after Connected. The child may
	// still be running; Reconnect or Stop decide what happens next.
	StateDisconnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateStarting:
		return "starting"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

const (
	DefaultRetryInterval = 500 * time.Millisecond
	DefaultDialTimeout   = 5 * time.Second
	DefaultDebugPort     = 9223
)

// ErrSpawn wraps renderer launch failures returned by Start.
var ErrSpawn = errors.New("ipc: spawn renderer")

// Child is the supervised renderer process.
type Child interface {
	Pid() int
	Alive() bool
	Done() <-chan struct{}
	Terminate(grace time.Duration) error
	Stats() (supervisor.Stats, error)
}

// SpawnFunc launches the renderer with the full argument vector.
type SpawnFunc func(argv []string) (Child, error)

// LaunchArgs are the renderer's command line options.
type LaunchArgs struct {
	URL        string
	Alignment  string
	UI         bool
	DisableGPU bool
	DebugPort  int
}

// Argv renders the options the way the renderer's flag parser expects them.
func (a LaunchArgs) Argv() []string {
	alignment := a.Alignment
	if alignment == "" {
		alignment = "center"
	}
	out := []string{"--url", a.URL, "--alignment", alignment}
	if a.UI {
		out = append(out, "--ui")
	}
	if a.DisableGPU {
		out = append(out, "--disable-gpu")
	}
	port := a.DebugPort
	if port == 0 {
		port = DefaultDebugPort
	}
	return append(out, "--remote-debugging-port="+strconv.Itoa(port))
}

// Listener receives renderer events. Callbacks run on the receive goroutine
// and must not block for long. Nil callbacks are skipped.
type Listener struct {
	OnReady              func()
	OnVideoStarted       func(url string)
	OnResolutionDetected func(kind string)
	OnPositionChanged    func(x, y int)
	// OnClosed fires exactly once per connection: on overlay_closed or when the
	// receive loop ends for any reason.
	OnClosed func()
}

type Options struct {
	Addr string
	// RendererCommand is prepended to LaunchArgs.Argv. Defaults to this
	// executable with --overlay.
	RendererCommand []string
	RetryInterval   time.Duration
	DialTimeout     time.Duration
	TerminateGrace  time.Duration
	FrameName       string
	FrameRetry      time.Duration

	Spawn SpawnFunc
	Dial  func(ctx context.Context, network, addr string) (net.Conn, error)
}

func (o Options) withDefaults() Options {
	if o.Addr == "" {
		o.Addr = DefaultAddr
	}
	if len(o.RendererCommand) == 0 {
		exe, err := os.Executable()
		if err != nil {
			exe = os.Args[0]
		}
		o.RendererCommand = []string{exe, "--overlay"}
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = DefaultRetryInterval
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.TerminateGrace <= 0 {
		o.TerminateGrace = supervisor.DefaultGrace
	}
	if o.FrameName == "" {
		o.FrameName = framebuf.DefaultName
	}
	if o.FrameRetry <= 0 {
		o.FrameRetry = framebuf.DefaultRetry
	}
	if o.Spawn == nil {
		o.Spawn = func(argv []string) (Child, error) {
			p, err := supervisor.Spawn(argv, "overlay")
			if err != nil {
				return nil, err
			}
			return p, nil
		}
	}
	if o.Dial == nil {
		var d net.Dialer
		o.Dial = d.DialContext
	}
	return o
}

// Controller owns the renderer process, the command connection and the frame
// reader. All methods are safe for concurrent use and never block on I/O
// except Stop, which waits for the child to exit.
type Controller struct {
	opts     Options
	listener Listener

	mu       sync.Mutex
	state    State
	child    Child
	conn     *Conn
	frames   *framebuf.Reader
	cancel   context.CancelFunc
	loopDone chan struct{}

	portrait  bool
	alignment string
	posX      int
	posY      int

	attempts atomic.Int64
	lastPong atomic.Int64
}

func NewController(opts Options, l Listener) *Controller {
	return &Controller{opts: opts.withDefaults(), listener: l, alignment: "center"}
}

// Start launches the renderer and begins connecting. It is a no-op unless the
// controller is NotStarted or Closed. A spawn failure leaves it NotStarted.
func (c *Controller) Start(args LaunchArgs) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateNotStarted && c.state != StateClosed {
		logging.Debugf("[IPC] start ignored in state %s", c.state)
		return nil
	}
	c.state = StateStarting
	argv := append(append([]string(nil), c.opts.RendererCommand...), args.Argv()...)
	child, err := c.opts.Spawn(argv)
	if err != nil {
		c.state = StateNotStarted
		log.Printf("[IPC] failed to start overlay: %v", err)
		return fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	c.child = child
	if args.Alignment != "" {
		c.alignment = args.Alignment
	}
	c.frames = framebuf.NewReader(c.opts.FrameName, c.opts.FrameRetry)
	go func() {
		<-child.Done()
		log.Printf("[IPC] overlay process %d exited", child.Pid())
	}()
	c.startLoopLocked()
	return nil
}

// Reconnect restarts the connect loop after a dropped connection. The child is
// not respawned.
func (c *Controller) Reconnect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDisconnected {
		return false
	}
	c.startLoopLocked()
	return true
}

func (c *Controller) startLoopLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel, c.loopDone = cancel, done
	c.state = StateConnecting
	go c.reconnectLoop(ctx, done)
}

// reconnectLoop dials on every tick until one attempt succeeds or ctx ends.
func (c *Controller) reconnectLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(c.opts.RetryInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if c.tryConnect(ctx) {
			return
		}
	}
}

// tryConnect makes one attempt. It returns true when the loop should end.
func (c *Controller) tryConnect(ctx context.Context) bool {
	c.attempts.Add(1)
	dctx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	nc, err := c.opts.Dial(dctx, "tcp", c.opts.Addr)
	cancel()
	if err != nil {
		logging.Debugf("[IPC] connect %s: %v", c.opts.Addr, err)
		return ctx.Err() != nil
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		nc.Close()
		return true
	}
	conn := NewConn(nc)
	c.conn = conn
	c.state = StateConnected
	frames := c.frames
	c.mu.Unlock()

	log.Printf("[IPC] connected to overlay at %s", c.opts.Addr)
	go c.receiveLoop(conn)
	if frames != nil {
		frames.Reattach()
	}
	return true
}

func (c *Controller) receiveLoop(conn *Conn) {
	var once sync.Once
	closed := func() {
		once.Do(func() {
			if c.listener.OnClosed != nil {
				c.listener.OnClosed()
			}
		})
	}
	defer func() {
		conn.Close()
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
			if c.state == StateConnected {
				c.state = StateDisconnected
			}
		}
		c.mu.Unlock()
		log.Printf("[IPC] receive loop ended")
		closed()
	}()

	for {
		m, ok, err := conn.Receive()
		if err != nil {
			if !isExpectedClose(err) {
				log.Printf("[IPC] receive error: %v", err)
			}
			return
		}
		if !ok {
			return
		}
		e, err := proto.DecodeEvent(m)
		if err != nil {
			log.Printf("[IPC] %v", err)
			return
		}
		c.handleEvent(e, closed)
	}
}

func (c *Controller) handleEvent(e proto.Event, closed func()) {
	logging.Debugf("[IPC] -> %s", e.Kind())
	l := c.listener
	switch v := e.(type) {
	case proto.Ready:
		log.Printf("[IPC] overlay ready")
		if l.OnReady != nil {
			l.OnReady()
		}
	case proto.VideoStarted:
		if l.OnVideoStarted != nil {
			l.OnVideoStarted(v.URL)
		}
	case proto.ResolutionDetected:
		if l.OnResolutionDetected != nil {
			l.OnResolutionDetected(v.Type)
		}
	case proto.PositionChanged:
		c.mu.Lock()
		c.posX, c.posY = v.X, v.Y
		c.mu.Unlock()
		if l.OnPositionChanged != nil {
			l.OnPositionChanged(v.X, v.Y)
		}
	case proto.OverlayClosed:
		log.Printf("[IPC] overlay closed")
		closed()
	case proto.Pong:
		c.lastPong.Store(time.Now().UnixNano())
	case proto.Unknown:
		logging.Debugf("[IPC] ignoring unknown event %q", v.Tag)
	default:
		log.Printf("[IPC] unhandled event %T", e)
	}
}

// Send writes cmd if connected. Otherwise the command is dropped and
// ErrNotConnected returned; nothing is queued. Orientation and alignment are
// cached either way.
func (c *Controller) Send(cmd proto.Command) error {
	c.mu.Lock()
	switch v := cmd.(type) {
	case proto.SetOrientation:
		c.portrait = v.IsPortrait
	case proto.SetAlignment:
		c.alignment = v.Alignment
	}
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		logging.Debugf("[IPC] dropping %s: not connected", cmd.Kind())
		return ErrNotConnected
	}
	if err := conn.SendCommand(cmd); err != nil {
		log.Printf("[IPC] send %s: %v", cmd.Kind(), err)
		return err
	}
	return nil
}

func (c *Controller) SetVolume(volume int) error {
	return c.Send(proto.SetVolume{Volume: volume})
}

func (c *Controller) SetOrientation(portrait bool) error {
	return c.Send(proto.SetOrientation{IsPortrait: portrait})
}

// ToggleOrientation flips the cached orientation and sends it.
func (c *Controller) ToggleOrientation() error {
	return c.Send(proto.SetOrientation{IsPortrait: !c.IsPortrait()})
}

func (c *Controller) SetAlignment(alignment string) error {
	return c.Send(proto.SetAlignment{Alignment: alignment})
}

func (c *Controller) SimulateClick(x, y int) error {
	return c.Send(proto.SimulateClick{X: x, Y: y})
}

func (c *Controller) SimulateSkip() error    { return c.Send(proto.SimulateSkip{}) }
func (c *Controller) ForceConnect() error    { return c.Send(proto.ForceConnect{}) }
func (c *Controller) ForceSkip() error       { return c.Send(proto.ForceSkip{}) }
func (c *Controller) SeekToStart() error     { return c.Send(proto.SeekToStart{}) }
func (c *Controller) TogglePlayPause() error { return c.Send(proto.TogglePlayPause{}) }
func (c *Controller) Ping() error            { return c.Send(proto.Ping{}) }

func (c *Controller) SimulateKey(key string) error {
	return c.Send(proto.SimulateKey{Key: key})
}

func (c *Controller) RefreshPage(url string, ui bool) error {
	return c.Send(proto.RefreshPage{URL: url, IsUI: ui})
}

func (c *Controller) MoveWindow(x, y int) error {
	c.mu.Lock()
	c.posX, c.posY = x, y
	c.mu.Unlock()
	return c.Send(proto.MoveWindow{X: x, Y: y})
}

func (c *Controller) SetTaskbarVisible(visible bool) error {
	return c.Send(proto.SetTaskbarVisible{Visible: visible})
}

// RequestPosition asks for the window position; the answer arrives through
// OnPositionChanged.
func (c *Controller) RequestPosition() error { return c.Send(proto.GetPosition{}) }

// SetPortraitSize resizes the portrait frame; height 0 derives it from width.
func (c *Controller) SetPortraitSize(width, height int) error {
	return c.Send(proto.SetPortraitSize{Width: width, Height: height})
}

func (c *Controller) SetDonationTextVisible(visible bool) error {
	return c.Send(proto.SetDonationTextVisible{Visible: visible})
}

func (c *Controller) SetSkipTimerEnabled(enabled bool) error {
	return c.Send(proto.SetSkipTimerEnabled{Enabled: enabled})
}

func (c *Controller) SetIncludeText(include bool) error {
	return c.Send(proto.SetIncludeText{IncludeText: include})
}

// GrabFrame returns a detached copy of the latest frame, if any.
func (c *Controller) GrabFrame() (framebuf.Frame, bool) {
	c.mu.Lock()
	frames := c.frames
	c.mu.Unlock()
	if frames == nil {
		return framebuf.Frame{}, false
	}
	return frames.Grab()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Connected() bool { return c.State() == StateConnected }

// ConnectAttempts counts dial attempts since the controller was created.
func (c *Controller) ConnectAttempts() int64 { return c.attempts.Load() }

// LastPong is when the renderer last answered a ping, zero if never.
func (c *Controller) LastPong() time.Time {
	n := c.lastPong.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Position is the last known window position.
func (c *Controller) Position() (x, y int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.posX, c.posY
}

func (c *Controller) IsPortrait() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.portrait
}

func (c *Controller) Alignment() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alignment
}

// Running reports whether the renderer process is alive.
func (c *Controller) Running() bool {
	c.mu.Lock()
	child := c.child
	c.mu.Unlock()
	return child != nil && child.Alive()
}

// RendererStats samples the renderer process.
func (c *Controller) RendererStats() (supervisor.Stats, error) {
	c.mu.Lock()
	child := c.child
	c.mu.Unlock()
	if child == nil {
		return supervisor.Stats{}, errors.New("ipc: renderer not started")
	}
	return child.Stats()
}

// Stop closes everything down: a close command if connected, the socket, the
// frame reader, the child (with grace, then kill) and the connect loop. Safe
// to call in any state and more than once.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == StateNotStarted || c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	conn, child, frames := c.conn, c.child, c.frames
	cancel, loopDone := c.cancel, c.loopDone
	c.state = StateClosed
	c.conn, c.child, c.frames = nil, nil, nil
	c.cancel, c.loopDone = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-loopDone
	}
	if conn != nil {
		if err := conn.SendCommand(proto.Close{}); err != nil {
			logging.Debugf("[IPC] send close: %v", err)
		}
		conn.Close()
	}
	if frames != nil {
		frames.Close()
	}
	if child != nil {
		if err := child.Terminate(c.opts.TerminateGrace); err != nil {
			log.Printf("[IPC] terminate overlay: %v", err)
		}
	}
	log.Printf("[IPC] controller stopped")
}

package ipc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"github.com/Uknong/BetterCheeseUtil/pkg/logging"
	"github.com/Uknong/BetterCheeseUtil/pkg/proto"
)

// Surface is the renderer state the server drives. Calls arrive in command
// order from a single goroutine; implementations may apply them asynchronously.
type Surface interface {
	SetVolume(volume int)
	SetOrientation(portrait bool)
	SetAlignment(alignment string)
	SimulateClick(x, y int)
	SimulateSkip()
	SimulateKey(key string)
	ForceConnect()
	ForceSkip()
	SeekToStart()
	TogglePlayPause()
	RefreshPage(url string, ui bool)
	MoveWindow(x, y int)
	SetTaskbarVisible(visible bool)
	Position() (x, y int)
	SetPortraitSize(width, height int)
	SetDonationTextVisible(visible bool)
	SetSkipTimerEnabled(enabled bool)
	SetIncludeText(include bool)
}

// Server accepts one controller at a time and dispatches its commands.
type Server struct {
	addr    string
	surface Surface
	onClose func()

	closeAuthorized atomic.Bool

	mu       sync.Mutex
	ln       net.Listener
	client   *Conn
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewServer prepares a server. onClose runs after an authorized close command,
// before the closing event is sent.
func NewServer(addr string, surface Surface, onClose func()) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{addr: addr, surface: surface, onClose: onClose, stopped: make(chan struct{})}
}

// Listen binds the loopback port. Call before Serve.
func (s *Server) Listen() error {
	lc := net.ListenConfig{Control: reuseAddr}
	ln, err := lc.Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		if owner := portOwner(s.addr); owner != "" {
			return fmt.Errorf("listen %s (held by %s): %w", s.addr, owner, err)
		}
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	log.Printf("[IPC] listening on %s", ln.Addr())
	return nil
}

// Addr is the bound address, nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// CloseAuthorized reports whether the controller has asked the renderer to close.
func (s *Server) CloseAuthorized() bool { return s.closeAuthorized.Load() }

// Done is closed once the server has stopped.
func (s *Server) Done() <-chan struct{} { return s.stopped }

// Serve runs the accept loop until ctx ends, Stop is called or a close command
// is handled. It returns nil on those orderly exits.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return errors.New("ipc: Serve before Listen")
	}
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopped:
		}
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stopped:
				return nil
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			log.Printf("[IPC] accept error: %v", err)
			return err
		}
		c := NewConn(nc)
		if !s.attach(c) {
			c.Close()
			return nil
		}
		log.Printf("[IPC] controller connected from %s", nc.RemoteAddr())
		if err := c.SendEvent(proto.Ready{}); err != nil {
			log.Printf("[IPC] send ready: %v", err)
		}
		s.serveClient(c)
		s.detach(c)
		log.Printf("[IPC] controller disconnected")
	}
}

func (s *Server) attach(c *Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.stopped:
		return false
	default:
	}
	s.client = c
	return true
}

func (s *Server) detach(c *Conn) {
	s.mu.Lock()
	if s.client == c {
		s.client = nil
	}
	s.mu.Unlock()
	c.Close()
}

func (s *Server) serveClient(c *Conn) {
	for {
		m, ok, err := c.Receive()
		if err != nil {
			if !isExpectedClose(err) {
				log.Printf("[IPC] receive error: %v", err)
			}
			return
		}
		if !ok {
			return
		}
		cmd, err := proto.DecodeCommand(m)
		if err != nil {
			log.Printf("[IPC] %v", err)
			return
		}
		if done := s.dispatch(c, cmd); done {
			return
		}
	}
}

// dispatch applies one command. It returns true when the connection should end.
func (s *Server) dispatch(c *Conn, cmd proto.Command) bool {
	logging.Debugf("[IPC] <- %s", cmd.Kind())
	switch v := cmd.(type) {
	case proto.SetVolume:
		s.surface.SetVolume(v.Volume)
	case proto.SetOrientation:
		s.surface.SetOrientation(v.IsPortrait)
	case proto.SetAlignment:
		s.surface.SetAlignment(v.Alignment)
	case proto.SimulateClick:
		s.surface.SimulateClick(v.X, v.Y)
	case proto.SimulateSkip:
		s.surface.SimulateSkip()
	case proto.SimulateKey:
		s.surface.SimulateKey(v.Key)
	case proto.ForceConnect:
		s.surface.ForceConnect()
	case proto.ForceSkip:
		s.surface.ForceSkip()
	case proto.SeekToStart:
		s.surface.SeekToStart()
	case proto.TogglePlayPause:
		s.surface.TogglePlayPause()
	case proto.RefreshPage:
		s.surface.RefreshPage(v.URL, v.IsUI)
	case proto.MoveWindow:
		s.surface.MoveWindow(v.X, v.Y)
	case proto.SetTaskbarVisible:
		s.surface.SetTaskbarVisible(v.Visible)
	case proto.GetPosition:
		x, y := s.surface.Position()
		s.reply(c, proto.PositionChanged{X: x, Y: y})
	case proto.SetPortraitSize:
		s.surface.SetPortraitSize(v.Width, v.Height)
	case proto.SetDonationTextVisible:
		s.surface.SetDonationTextVisible(v.Visible)
	case proto.SetSkipTimerEnabled:
		s.surface.SetSkipTimerEnabled(v.Enabled)
	case proto.SetIncludeText:
		s.surface.SetIncludeText(v.IncludeText)
	case proto.Ping:
		s.reply(c, proto.Pong{})
	case proto.Close:
		s.handleClose(c)
		return true
	case proto.Unknown:
		logging.Debugf("[IPC] ignoring unknown command %q", v.Tag)
	default:
		log.Printf("[IPC] unhandled command %T", cmd)
	}
	return false
}

func (s *Server) reply(c *Conn, e proto.Event) {
	if err := c.SendEvent(e); err != nil {
		log.Printf("[IPC] send %s: %v", e.Kind(), err)
	}
}

func (s *Server) handleClose(c *Conn) {
	log.Printf("[IPC] close requested by controller")
	s.closeAuthorized.Store(true)
	if s.onClose != nil {
		s.onClose()
	}
	s.reply(c, proto.OverlayClosed{})
	s.stopListener()
}

// Emit sends an event to the attached controller. With no controller it
// returns ErrNotConnected and the event is dropped.
func (s *Server) Emit(e proto.Event) error {
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()
	if c == nil {
		logging.Debugf("[IPC] dropping %s: no controller", e.Kind())
		return ErrNotConnected
	}
	if err := c.SendEvent(e); err != nil {
		log.Printf("[IPC] send %s: %v", e.Kind(), err)
		return err
	}
	return nil
}

// stopListener stops accepting but leaves the current client alone.
func (s *Server) stopListener() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.stopped)
		if s.ln != nil {
			s.ln.Close()
		}
		s.mu.Unlock()
	})
}

// Stop closes the listener and the attached client. Safe to call repeatedly.
func (s *Server) Stop() {
	s.stopListener()
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()
	if c != nil {
		c.Close()
	}
}

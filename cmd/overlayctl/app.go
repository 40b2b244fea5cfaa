package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/Uknong/BetterCheeseUtil/pkg/config"
	"github.com/Uknong/BetterCheeseUtil/pkg/ipc"
	"github.com/Uknong/BetterCheeseUtil/pkg/proto"
	"github.com/Uknong/BetterCheeseUtil/pkg/remote"
	"github.com/Uknong/BetterCheeseUtil/pkg/supervisor"
)

const defaultKeepAlive = 2 * time.Second

var (
	errNoURL   = errors.New("no overlay url: pass -url or set overlay.url")
	errStopped = errors.New("controller stopped")
)

// app ties the controller to its settings, the volume dock, the config
// watcher and the stdin console.
type app struct {
	path      string
	ctl       *ipc.Controller
	dock      *remote.Server
	keepAlive time.Duration
	// pinned overlay settings came from flags and survive reloads.
	pinned pins

	mu  sync.Mutex
	cfg config.ControllerConfig

	// lifeMu serialises start, restart and shutdown.
	lifeMu  sync.Mutex
	stopped bool
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// newApp builds the controller from cfg. base carries the spawn and dial hooks;
// address, command and timing come from cfg.
func newApp(cfg config.ControllerConfig, path string, base ipc.Options) *app {
	a := &app{path: path, cfg: cfg, keepAlive: defaultKeepAlive}
	base.Addr = cfg.IPCAddr
	if len(cfg.RendererCommand) > 0 {
		base.RendererCommand = cfg.RendererCommand
	}
	base.FrameName = cfg.FrameName
	base.RetryInterval = ms(cfg.RetryIntervalMs)
	base.TerminateGrace = ms(cfg.TerminateGraceMs)
	a.ctl = ipc.NewController(base, ipc.Listener{
		OnReady:              a.onReady,
		OnVideoStarted:       func(url string) { log.Printf("[APP] video started: %s", url) },
		OnResolutionDetected: a.onResolution,
		OnPositionChanged:    func(x, y int) { log.Printf("[APP] overlay at (%d, %d)", x, y) },
		OnClosed:             func() { log.Printf("[APP] overlay connection closed") },
	})
	if cfg.Remote.Enable {
		a.dock = remote.New(remote.Options{
			Addr:     cfg.Remote.Addr,
			Volume:   cfg.Overlay.Volume,
			OnVolume: a.onDockVolume,
			Status:   func() any { return a.status() },
			Frame:    a.ctl.GrabFrame,
		})
	}
	return a
}

func (a *app) settings() config.OverlaySettings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.Overlay
}

// remember folds a command into the settings so a restarted renderer gets
// the same state back.
func (a *app) remember(cmd proto.Command) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := &a.cfg.Overlay
	switch v := cmd.(type) {
	case proto.SetVolume:
		s.Volume = max(0, min(100, v.Volume))
	case proto.SetOrientation:
		s.Portrait = v.IsPortrait
	case proto.SetAlignment:
		s.Alignment = v.Alignment
	case proto.SetPortraitSize:
		s.PortraitWidth, s.PortraitHeight = v.Width, v.Height
		if s.PortraitWidth <= 0 {
			s.PortraitWidth = proto.DefaultPortraitWidth
		}
		if s.PortraitHeight <= 0 {
			s.PortraitHeight = proto.PortraitHeight(s.PortraitWidth)
		}
	case proto.SetIncludeText:
		s.IncludeText = v.IncludeText
	case proto.SetDonationTextVisible:
		s.DonationText = v.Visible
	case proto.SetSkipTimerEnabled:
		s.SkipTimer = v.Enabled
	case proto.SetTaskbarVisible:
		s.TaskbarVisible = v.Visible
	case proto.RefreshPage:
		s.URL, s.UI = v.URL, v.IsUI
	}
}

// apply records cmd and forwards it. Volume goes through the dock when one is
// running so open docks follow.
func (a *app) apply(cmd proto.Command) error {
	if v, ok := cmd.(proto.SetVolume); ok && a.dock != nil {
		a.dock.SetVolume(v.Volume)
		return nil
	}
	a.remember(cmd)
	return a.ctl.Send(cmd)
}

func (a *app) applyAll(cmds []proto.Command) {
	for _, c := range cmds {
		if err := a.apply(c); err != nil {
			log.Printf("[APP] send %s: %v", c.Kind(), err)
			return
		}
	}
}

func (a *app) onDockVolume(v int) {
	a.remember(proto.SetVolume{Volume: v})
	if err := a.ctl.SetVolume(v); err != nil && !errors.Is(err, ipc.ErrNotConnected) {
		log.Printf("[APP] dock volume: %v", err)
	}
}

func (a *app) onReady() {
	s := a.settings()
	log.Printf("[APP] overlay ready, applying settings")
	for _, c := range initialCommands(s) {
		if err := a.ctl.Send(c); err != nil {
			log.Printf("[APP] send %s: %v", c.Kind(), err)
			return
		}
	}
}

func (a *app) onResolution(kind string) {
	log.Printf("[APP] resolution detected: %s", kind)
	portrait, ok := orientationOf(kind)
	if !ok || !a.settings().AutoOrientation {
		return
	}
	if err := a.apply(proto.SetOrientation{IsPortrait: portrait}); err != nil {
		log.Printf("[APP] auto orientation: %v", err)
	}
}

// onConfig applies a reloaded config file. Only the overlay section is live.
func (a *app) onConfig(next config.ControllerConfig) {
	cur := next.Overlay
	a.pinned.apply(&cur)
	a.mu.Lock()
	prev := a.cfg.Overlay
	// A file without a page keeps the one already loaded.
	if cur.URL == "" {
		cur.URL = prev.URL
	}
	a.cfg.Overlay = cur
	a.mu.Unlock()

	cmds, relaunch := settingsCommands(prev, cur)
	log.Printf("[CONFIG] reloaded %s: %d change(s)", a.path, len(cmds))
	a.applyAll(cmds)
	if relaunch {
		log.Printf("[CONFIG] renderer launch options changed")
		if err := a.restart(); err != nil {
			log.Printf("[APP] restart: %v", err)
		}
	}
}

func (a *app) start() error {
	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()
	if a.stopped {
		return errStopped
	}
	return a.ctl.Start(launchArgs(a.settings()))
}

// restart replaces the renderer process with a fresh one.
func (a *app) restart() error {
	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()
	if a.stopped {
		return errStopped
	}
	log.Printf("[APP] restarting overlay")
	a.ctl.Stop()
	return a.ctl.Start(launchArgs(a.settings()))
}

func (a *app) shutdown() {
	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()
	a.stopped = true
	a.ctl.Stop()
}

// supervise brings the overlay back after the connection drops: it reconnects
// when the renderer is still running and relaunches it when it is gone.
func (a *app) supervise(ctx context.Context) {
	t := time.NewTicker(a.keepAlive)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		switch st := a.ctl.State(); {
		case st == ipc.StateDisconnected && a.ctl.Running():
			log.Printf("[APP] connection lost, reconnecting")
			a.ctl.Reconnect()
		case (st == ipc.StateDisconnected || st == ipc.StateConnecting) && !a.ctl.Running():
			log.Printf("[APP] overlay process gone")
			if err := a.restart(); err != nil {
				log.Printf("[APP] restart: %v", err)
			}
		}
	}
}

// run starts the overlay and its helpers and blocks until ctx ends or the
// console quits. The renderer is stopped before it returns.
func (a *app) run(ctx context.Context, console io.Reader) error {
	if a.settings().URL == "" {
		return errNoURL
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := a.start(); err != nil {
		return err
	}
	log.Printf("[APP] overlayctl %s started, ipc %s", version, a.cfg.IPCAddr)

	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	if a.dock != nil {
		spawn(func() {
			if err := a.dock.ListenAndServe(ctx); err != nil {
				log.Printf("[REMOTE] %v", err)
			}
		})
	}
	if a.path != "" {
		spawn(func() {
			if err := config.WatchController(ctx, a.path, config.DefaultDebounce, a.onConfig); err != nil {
				log.Printf("[CONFIG] watch %s: %v", a.path, err)
			}
		})
	}
	spawn(func() { a.supervise(ctx) })
	if console != nil {
		// Not waited for: a blocked stdin read must not hold up shutdown.
		go a.runConsole(ctx, console, os.Stdout, cancel)
	}

	<-ctx.Done()
	wg.Wait()
	a.shutdown()
	return nil
}

type statusReport struct {
	State     string            `json:"state"`
	Attempts  int64             `json:"connect_attempts"`
	LastPong  string            `json:"last_pong,omitempty"`
	Portrait  bool              `json:"portrait"`
	Alignment string            `json:"alignment"`
	X         int               `json:"x"`
	Y         int               `json:"y"`
	Volume    int               `json:"volume"`
	Renderer  *supervisor.Stats `json:"renderer,omitempty"`
}

func (a *app) status() statusReport {
	x, y := a.ctl.Position()
	r := statusReport{
		State:     a.ctl.State().String(),
		Attempts:  a.ctl.ConnectAttempts(),
		Portrait:  a.ctl.IsPortrait(),
		Alignment: a.ctl.Alignment(),
		X:         x,
		Y:         y,
		Volume:    a.settings().Volume,
	}
	if t := a.ctl.LastPong(); !t.IsZero() {
		r.LastPong = t.Format(time.RFC3339)
	}
	if st, err := a.ctl.RendererStats(); err == nil && st.Pid != 0 {
		r.Renderer = &st
	}
	return r
}

func (r statusReport) String() string {
	b, _ := json.Marshal(r)
	return string(b)
}

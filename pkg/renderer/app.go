package renderer

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Uknong/BetterCheeseUtil/pkg/config"
	"github.com/Uknong/BetterCheeseUtil/pkg/framebuf"
	"github.com/Uknong/BetterCheeseUtil/pkg/ipc"
	"github.com/Uknong/BetterCheeseUtil/pkg/logging"
	"github.com/Uknong/BetterCheeseUtil/pkg/proto"
)

// closeWait bounds how long an authorized close waits for the server to
// deliver overlay_closed.
const closeWait = 2 * time.Second

type RunOptions struct {
	Addr            string
	FrameName       string
	CaptureInterval time.Duration
	Overlay         Options
	// Console, when set, is read as page console output.
	Console io.Reader
}

// Run serves one renderer session: shared frame segment, capture loop and IPC
// server. It returns after an authorized close or when ctx ends.
func Run(ctx context.Context, o RunOptions) error {
	if o.FrameName == "" {
		o.FrameName = framebuf.DefaultName
	}
	if o.CaptureInterval <= 0 {
		o.CaptureInterval = 16 * time.Millisecond
	}
	ov := New(o.Overlay)

	var w *framebuf.Writer
	seg, err := framebuf.Create(o.FrameName)
	if err != nil {
		log.Printf("[SHM] shared memory unavailable, frames disabled: %v", err)
	} else {
		defer func() {
			seg.Close()
			if err := seg.Unlink(); err != nil {
				log.Printf("[SHM] unlink: %v", err)
			}
		}()
		if w, err = framebuf.NewWriter(seg.Bytes()); err != nil {
			return err
		}
		log.Printf("[SHM] shared memory created: %s", o.FrameName)
	}

	srv := ipc.NewServer(o.Addr, ov, ov.ForceClose)
	if err := srv.Listen(); err != nil {
		return err
	}
	ov.SetEmitter(srv)

	loopCtx, stopLoops := context.WithCancel(context.Background())
	captureDone := make(chan struct{})
	if w != nil {
		go func() {
			defer close(captureDone)
			framebuf.CaptureLoop(loopCtx, o.CaptureInterval, ov, w)
		}()
	} else {
		close(captureDone)
	}
	if o.Console != nil {
		go func() {
			if err := ov.ReadConsole(o.Console); err != nil {
				log.Printf("[CONSOLE] read: %v", err)
			}
		}()
	}

	ov.Load()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(loopCtx) }()

	var runErr error
	select {
	case <-ov.Closed():
		// The server sends overlay_closed and stops by itself.
		select {
		case runErr = <-serveErr:
		case <-time.After(closeWait):
			srv.Stop()
			runErr = <-serveErr
		}
	case <-ctx.Done():
		log.Printf("[OVERLAY] shutting down")
		ov.ForceClose()
		_ = srv.Emit(proto.OverlayClosed{})
		srv.Stop()
		runErr = <-serveErr
	case runErr = <-serveErr:
	}

	stopLoops()
	<-captureDone
	if w != nil {
		w.Clear()
	}
	log.Printf("[OVERLAY] exited")
	return runErr
}

// Main is the renderer command line. Both the standalone binary and
// `overlayctl --overlay` land here.
func Main(args []string) int {
	cfg, cerr := config.LoadRendererConfig("")

	fs := flag.NewFlagSet("overlay", flag.ContinueOnError)
	url := fs.String("url", "", "overlay page URL (required)")
	ui := fs.Bool("ui", false, "load the page in UI mode")
	alignment := fs.String("alignment", "center", "portrait alignment (left|center|right|...)")
	debugPort := fs.String("remote-debugging-port", "", "page remote debugging port")
	disableGPU := fs.Bool("disable-gpu", false, "software rendering")
	addr := fs.String("addr", cfg.Addr, "IPC listen address (env BCU_IPC_ADDR or config/renderer.json)")
	frameName := fs.String("shm", cfg.FrameName, "shared frame segment name")
	interval := fs.Duration("capture-interval", time.Duration(cfg.CaptureIntervalMs)*time.Millisecond, "frame capture period")
	consoleStdin := fs.Bool("console-stdin", cfg.ConsoleStdin, "read page console lines from stdin")
	known, extra := knownArgs(fs, args)
	if err := fs.Parse(known); err != nil {
		return 2
	}
	if *url == "" {
		fmt.Fprintln(os.Stderr, "overlay: --url is required")
		fs.Usage()
		return 2
	}

	lw := logging.Setup("overlay")
	defer lw.Close()
	if cerr != nil {
		log.Printf("[CONFIG] %v", cerr)
	}
	if len(extra) > 0 {
		log.Printf("[OVERLAY] ignoring unknown arguments: %s", strings.Join(extra, " "))
	}
	log.Printf("[OVERLAY] starting: url=%s ui=%t alignment=%s disable_gpu=%t", *url, *ui, *alignment, *disableGPU)
	if *debugPort != "" {
		log.Printf("[OVERLAY] remote debugging port %s", *debugPort)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := RunOptions{
		Addr:            *addr,
		FrameName:       *frameName,
		CaptureInterval: *interval,
		Overlay:         Options{URL: *url, UI: *ui, Alignment: *alignment},
	}
	if *consoleStdin {
		opts.Console = os.Stdin
	}
	if err := Run(ctx, opts); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[OVERLAY] %v", err)
		return 1
	}
	return 0
}

// knownArgs splits args into the flags fs defines and everything else, so a
// launcher may pass browser switches the renderer has no use for. A value
// following an unknown flag goes with it.
func knownArgs(fs *flag.FlagSet, args []string) (known, extra []string) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			return append(known, args[i:]...), extra
		}
		if len(a) < 2 || a[0] != '-' {
			known = append(known, a)
			continue
		}
		name, _, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if fs.Lookup(name) != nil || name == "h" || name == "help" {
			known = append(known, a)
			continue
		}
		extra = append(extra, a)
		if !hasValue && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			i++
			extra = append(extra, args[i])
		}
	}
	return known, extra
}

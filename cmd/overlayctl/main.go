package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	svc "github.com/kardianos/service"

	"github.com/Uknong/BetterCheeseUtil/pkg/config"
	"github.com/Uknong/BetterCheeseUtil/pkg/ipc"
	"github.com/Uknong/BetterCheeseUtil/pkg/logging"
	"github.com/Uknong/BetterCheeseUtil/pkg/renderer"
)

var version = "0.1.0"

func main() {
	// The controller relaunches this binary as its own renderer.
	if len(os.Args) > 1 && (os.Args[1] == "--overlay" || os.Args[1] == "-overlay") {
		os.Exit(renderer.Main(os.Args[2:]))
	}
	os.Exit(realMain(os.Args[1:]))
}

func realMain(args []string) int {
	fs := flag.NewFlagSet("overlayctl", flag.ContinueOnError)
	cfgPath := fs.String("config", config.DefaultControllerPath, "controller config (JSON, comments allowed)")
	url := fs.String("url", "", "overlay page URL (env BCU_OVERLAY_URL or overlay.url)")
	alignment := fs.String("alignment", "", "portrait alignment: left|center|right")
	ui := fs.Bool("ui", false, "load the page in UI mode")
	disableGPU := fs.Bool("disable-gpu", false, "start the renderer without GPU")
	remoteOn := fs.Bool("remote", false, "serve the OBS volume dock (remote.enable)")
	noConsole := fs.Bool("no-console", false, "do not read commands from stdin")
	svcCmd := fs.String("service", "", "service control: install|uninstall|start|stop|run")
	svcName := fs.String("svcname", "BetterCheeseOverlay", "service name")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Println(version)
		return 0
	}

	lw := logging.Setup("overlayctl")
	defer lw.Close()

	cc, err := config.LoadControllerConfig(*cfgPath)
	if err != nil {
		log.Printf("[CONFIG] %v (using defaults)", err)
	}
	// Flags given on the command line win over the file, also after reloads.
	var pinned pins
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			v := strings.TrimSpace(*url)
			pinned = append(pinned, func(s *config.OverlaySettings) { s.URL = v })
		case "alignment":
			v := strings.ToLower(strings.TrimSpace(*alignment))
			pinned = append(pinned, func(s *config.OverlaySettings) { s.Alignment = v })
		case "ui":
			v := *ui
			pinned = append(pinned, func(s *config.OverlaySettings) { s.UI = v })
		case "disable-gpu":
			v := *disableGPU
			pinned = append(pinned, func(s *config.OverlaySettings) { s.DisableGPU = v })
		case "remote":
			cc.Remote.Enable = *remoteOn
		}
	})
	pinned.apply(&cc.Overlay)
	logging.Debugf("[BOOT] debug on, version=%s config=%s", version, *cfgPath)

	a := newApp(cc, *cfgPath, ipc.Options{})
	a.pinned = pinned

	if *svcCmd != "" {
		abs, _ := filepath.Abs(*cfgPath)
		svcArgs := []string{"-service", "run", "-config", abs}
		if err := handleServiceCmd(*svcCmd, *svcName, &program{a: a}, svcArgs); err != nil {
			log.Printf("[SERVICE] %s failed: %v", *svcCmd, err)
			return 1
		}
		return 0
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	var console io.Reader
	if !*noConsole {
		console = os.Stdin
		fmt.Println(`overlayctl: type "help" for commands`)
	}
	if err := a.run(ctx, console); err != nil {
		log.Printf("[APP] %v", err)
		return 1
	}
	return 0
}

// ---- Service integration ----
type program struct {
	a      *app
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *program) Start(s svc.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel, p.done = cancel, make(chan struct{})
	go func() {
		defer close(p.done)
		if err := p.a.run(ctx, nil); err != nil {
			log.Printf("[SERVICE] %v", err)
		}
	}()
	return nil
}

func (p *program) Stop(s svc.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	<-p.done
	return nil
}

func handleServiceCmd(cmd, name string, p *program, args []string) error {
	cfg := &svc.Config{
		Name:        name,
		DisplayName: name,
		Description: "BetterCheeseUtil overlay controller",
		Arguments:   args,
		Option:      map[string]interface{}{"Restart": "on-failure", "RunAtLoad": true, "StartType": "automatic"},
	}
	s, err := svc.New(p, cfg)
	if err != nil {
		return err
	}
	switch strings.ToLower(cmd) {
	case "install":
		return s.Install()
	case "uninstall":
		return s.Uninstall()
	case "start":
		return s.Start()
	case "stop":
		return s.Stop()
	case "run":
		return s.Run()
	default:
		return fmt.Errorf("unknown service command: %s", cmd)
	}
}

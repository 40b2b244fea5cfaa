package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Uknong/BetterCheeseUtil/pkg/proto"
)

// Console verbs handled by the controller itself.
const (
	verbStatus    = "status"
	verbReconnect = "reconnect"
	verbToggle    = "toggle"
	verbRestart   = "restart"
	verbQuit      = "quit"
	verbHelp      = "help"
)

const consoleHelp = `commands:
  volume <0-100>        portrait on|off      toggle
  align <left|center|right>                  size <width> [height]
  click <x> <y>         skip                 key <home|end|space>
  connect               forceskip            seek            pause
  refresh [url] [ui]    move <x> <y>         pos             ping
  taskbar on|off        donation on|off      timer on|off    text on|off
  status                reconnect            restart         quit`

// consoleInput is one parsed console line: a renderer command or a local verb.
type consoleInput struct {
	cmd  proto.Command
	verb string
}

var errEmptyLine = errors.New("empty line")

func parseOnOff(args []string) (bool, error) {
	if len(args) != 1 {
		return false, errors.New("expected on or off")
	}
	switch strings.ToLower(args[0]) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", args[0])
}

func parseInts(args []string, n int) ([]int, error) {
	if len(args) != n {
		return nil, fmt.Errorf("expected %d number(s)", n)
	}
	out := make([]int, n)
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", a)
		}
		out[i] = v
	}
	return out, nil
}

// parseLine turns one console line into an action. url is the page loaded
// when refresh is given no address.
func parseLine(line, url string) (consoleInput, error) {
	f := strings.Fields(line)
	if len(f) == 0 {
		return consoleInput{}, errEmptyLine
	}
	verb, args := strings.ToLower(f[0]), f[1:]
	var (
		in  consoleInput
		err error
	)
	switch verb {
	case verbStatus, verbReconnect, verbToggle, verbRestart, verbQuit, verbHelp:
		in.verb = verb
	case "exit":
		in.verb = verbQuit
	case "volume", "vol":
		var n []int
		if n, err = parseInts(args, 1); err == nil {
			in.cmd = proto.SetVolume{Volume: n[0]}
		}
	case "portrait":
		var on bool
		if on, err = parseOnOff(args); err == nil {
			in.cmd = proto.SetOrientation{IsPortrait: on}
		}
	case "align":
		if len(args) != 1 {
			err = errors.New("expected an alignment")
			break
		}
		in.cmd = proto.SetAlignment{Alignment: strings.ToLower(args[0])}
	case "size":
		if len(args) == 1 {
			args = append(args, "0")
		}
		var n []int
		if n, err = parseInts(args, 2); err == nil {
			in.cmd = proto.SetPortraitSize{Width: n[0], Height: n[1]}
		}
	case "click":
		var n []int
		if n, err = parseInts(args, 2); err == nil {
			in.cmd = proto.SimulateClick{X: n[0], Y: n[1]}
		}
	case "move":
		var n []int
		if n, err = parseInts(args, 2); err == nil {
			in.cmd = proto.MoveWindow{X: n[0], Y: n[1]}
		}
	case "key":
		if len(args) != 1 {
			err = errors.New("expected a key")
			break
		}
		in.cmd = proto.SimulateKey{Key: strings.ToLower(args[0])}
	case "skip":
		in.cmd = proto.SimulateSkip{}
	case "connect":
		in.cmd = proto.ForceConnect{}
	case "forceskip":
		in.cmd = proto.ForceSkip{}
	case "seek":
		in.cmd = proto.SeekToStart{}
	case "pause", "play":
		in.cmd = proto.TogglePlayPause{}
	case "pos":
		in.cmd = proto.GetPosition{}
	case "ping":
		in.cmd = proto.Ping{}
	case "refresh":
		r := proto.RefreshPage{URL: url}
		if len(args) > 0 {
			r.URL = args[0]
		}
		if len(args) > 1 {
			r.IsUI, err = parseOnOff(args[1:2])
		}
		in.cmd = r
	case "taskbar":
		var on bool
		if on, err = parseOnOff(args); err == nil {
			in.cmd = proto.SetTaskbarVisible{Visible: on}
		}
	case "donation":
		var on bool
		if on, err = parseOnOff(args); err == nil {
			in.cmd = proto.SetDonationTextVisible{Visible: on}
		}
	case "timer":
		var on bool
		if on, err = parseOnOff(args); err == nil {
			in.cmd = proto.SetSkipTimerEnabled{Enabled: on}
		}
	case "text":
		var on bool
		if on, err = parseOnOff(args); err == nil {
			in.cmd = proto.SetIncludeText{IncludeText: on}
		}
	default:
		err = fmt.Errorf("unknown command %q (try help)", verb)
	}
	if err != nil {
		return consoleInput{}, fmt.Errorf("%s: %w", verb, err)
	}
	return in, nil
}

// runConsole reads commands from r until it ends, ctx is done or quit is
// typed. Replies go to out.
func (a *app) runConsole(ctx context.Context, r io.Reader, out io.Writer, quit func()) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		in, err := parseLine(sc.Text(), a.settings().URL)
		if errors.Is(err, errEmptyLine) {
			continue
		}
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		if in.cmd != nil {
			if err := a.apply(in.cmd); err != nil {
				fmt.Fprintf(out, "%s: %v\n", in.cmd.Kind(), err)
			}
			continue
		}
		switch in.verb {
		case verbHelp:
			fmt.Fprintln(out, consoleHelp)
		case verbStatus:
			fmt.Fprintln(out, a.status().String())
		case verbToggle:
			if err := a.apply(proto.SetOrientation{IsPortrait: !a.settings().Portrait}); err != nil {
				fmt.Fprintf(out, "toggle: %v\n", err)
			}
		case verbReconnect:
			if !a.ctl.Reconnect() {
				fmt.Fprintf(out, "reconnect: overlay is %s\n", a.ctl.State())
			}
		case verbRestart:
			if err := a.restart(); err != nil {
				fmt.Fprintf(out, "restart: %v\n", err)
			}
		case verbQuit:
			quit()
			return
		}
	}
}

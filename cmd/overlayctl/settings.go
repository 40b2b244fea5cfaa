package main

import (
	"strings"

	"github.com/Uknong/BetterCheeseUtil/pkg/config"
	"github.com/Uknong/BetterCheeseUtil/pkg/ipc"
	"github.com/Uknong/BetterCheeseUtil/pkg/proto"
)

// pins holds the overlay settings given on the command line. They are laid
// over the file at startup and again on every reload.
type pins []func(s *config.OverlaySettings)

func (p pins) apply(s *config.OverlaySettings) {
	for _, fn := range p {
		fn(s)
	}
}

// launchArgs are the renderer command line options taken from s.
func launchArgs(s config.OverlaySettings) ipc.LaunchArgs {
	return ipc.LaunchArgs{
		URL:        s.URL,
		Alignment:  s.Alignment,
		UI:         s.UI,
		DisableGPU: s.DisableGPU,
		DebugPort:  s.DebugPort,
	}
}

// initialCommands brings a freshly connected renderer in line with s.
func initialCommands(s config.OverlaySettings) []proto.Command {
	return []proto.Command{
		proto.SetVolume{Volume: s.Volume},
		proto.SetAlignment{Alignment: s.Alignment},
		proto.SetOrientation{IsPortrait: s.Portrait},
		proto.SetPortraitSize{Width: s.PortraitWidth, Height: s.PortraitHeight},
		proto.SetIncludeText{IncludeText: s.IncludeText},
		proto.SetDonationTextVisible{Visible: s.DonationText},
		proto.SetSkipTimerEnabled{Enabled: s.SkipTimer},
		proto.SetTaskbarVisible{Visible: s.TaskbarVisible},
	}
}

// settingsCommands returns the commands that move a running renderer from old
// to cur. relaunch reports changes that only take effect on a new process.
func settingsCommands(old, cur config.OverlaySettings) (cmds []proto.Command, relaunch bool) {
	if old.URL != cur.URL || old.UI != cur.UI {
		cmds = append(cmds, proto.RefreshPage{URL: cur.URL, IsUI: cur.UI})
	}
	if old.Volume != cur.Volume {
		cmds = append(cmds, proto.SetVolume{Volume: cur.Volume})
	}
	if old.Alignment != cur.Alignment {
		cmds = append(cmds, proto.SetAlignment{Alignment: cur.Alignment})
	}
	if old.Portrait != cur.Portrait {
		cmds = append(cmds, proto.SetOrientation{IsPortrait: cur.Portrait})
	}
	if old.PortraitWidth != cur.PortraitWidth || old.PortraitHeight != cur.PortraitHeight {
		cmds = append(cmds, proto.SetPortraitSize{Width: cur.PortraitWidth, Height: cur.PortraitHeight})
	}
	if old.IncludeText != cur.IncludeText {
		cmds = append(cmds, proto.SetIncludeText{IncludeText: cur.IncludeText})
	}
	if old.DonationText != cur.DonationText {
		cmds = append(cmds, proto.SetDonationTextVisible{Visible: cur.DonationText})
	}
	if old.SkipTimer != cur.SkipTimer {
		cmds = append(cmds, proto.SetSkipTimerEnabled{Enabled: cur.SkipTimer})
	}
	if old.TaskbarVisible != cur.TaskbarVisible {
		cmds = append(cmds, proto.SetTaskbarVisible{Visible: cur.TaskbarVisible})
	}
	relaunch = old.DisableGPU != cur.DisableGPU || old.DebugPort != cur.DebugPort
	return cmds, relaunch
}

// orientationOf maps a detected resolution label to portrait or landscape.
// Labels it does not know report ok=false.
func orientationOf(kind string) (portrait, ok bool) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "portrait", "vertical", "세로":
		return true, true
	case "landscape", "horizontal", "가로":
		return false, true
	}
	return false, false
}

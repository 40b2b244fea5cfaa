package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Uknong/BetterCheeseUtil/pkg/config"
	"github.com/Uknong/BetterCheeseUtil/pkg/proto"
)

func TestLaunchArgsFromSettings(t *testing.T) {
	s := config.DefaultControllerConfig().Overlay
	s.URL, s.Alignment, s.DisableGPU = "http://o.test", "left", true
	assert.Equal(t, []string{
		"--url", "http://o.test", "--alignment", "left", "--disable-gpu", "--remote-debugging-port=9223",
	}, launchArgs(s).Argv())
}

func TestInitialCommandsCoverEverySetting(t *testing.T) {
	s := config.DefaultControllerConfig().Overlay
	s.Volume, s.Portrait, s.Alignment = 35, true, "right"
	cmds := initialCommands(s)
	assert.Contains(t, cmds, proto.Command(proto.SetVolume{Volume: 35}))
	assert.Contains(t, cmds, proto.Command(proto.SetOrientation{IsPortrait: true}))
	assert.Contains(t, cmds, proto.Command(proto.SetAlignment{Alignment: "right"}))
	assert.Contains(t, cmds, proto.Command(proto.SetPortraitSize{Width: 576, Height: 1024}))
	assert.Contains(t, cmds, proto.Command(proto.SetTaskbarVisible{Visible: true}))
	assert.Len(t, cmds, 8)
}

func TestSettingsCommands(t *testing.T) {
	old := config.DefaultControllerConfig().Overlay
	old.URL = "http://a.test"

	cmds, relaunch := settingsCommands(old, old)
	assert.Empty(t, cmds)
	assert.False(t, relaunch)

	cur := old
	cur.URL = "http://b.test"
	cur.Volume = 80
	cur.SkipTimer = false
	cur.PortraitWidth, cur.PortraitHeight = 432, 768
	cmds, relaunch = settingsCommands(old, cur)
	assert.False(t, relaunch)
	assert.Equal(t, []proto.Command{
		proto.RefreshPage{URL: "http://b.test"},
		proto.SetVolume{Volume: 80},
		proto.SetPortraitSize{Width: 432, Height: 768},
		proto.SetSkipTimerEnabled{Enabled: false},
	}, cmds)

	cur = old
	cur.DebugPort = 9333
	cmds, relaunch = settingsCommands(old, cur)
	assert.Empty(t, cmds)
	assert.True(t, relaunch)
}

func TestOrientationOf(t *testing.T) {
	for kind, want := range map[string]bool{"portrait": true, " Vertical ": true, "세로": true, "landscape": false, "가로": false} {
		p, ok := orientationOf(kind)
		assert.True(t, ok, kind)
		assert.Equal(t, want, p, kind)
	}
	_, ok := orientationOf("square")
	assert.False(t, ok)
}

func TestParseLine(t *testing.T) {
	cases := map[string]proto.Command{
		"volume 40":             proto.SetVolume{Volume: 40},
		"portrait on":           proto.SetOrientation{IsPortrait: true},
		"align RIGHT":           proto.SetAlignment{Alignment: "right"},
		"size 432":              proto.SetPortraitSize{Width: 432},
		"size 432 700":          proto.SetPortraitSize{Width: 432, Height: 700},
		"click 10 20":           proto.SimulateClick{X: 10, Y: 20},
		"move -5 7":             proto.MoveWindow{X: -5, Y: 7},
		"key Space":             proto.SimulateKey{Key: "space"},
		"skip":                  proto.SimulateSkip{},
		"connect":               proto.ForceConnect{},
		"forceskip":             proto.ForceSkip{},
		"seek":                  proto.SeekToStart{},
		"pause":                 proto.TogglePlayPause{},
		"pos":                   proto.GetPosition{},
		"ping":                  proto.Ping{},
		"refresh":               proto.RefreshPage{URL: "http://cur.test"},
		"refresh http://n.t on": proto.RefreshPage{URL: "http://n.t", IsUI: true},
		"taskbar off":           proto.SetTaskbarVisible{Visible: false},
		"donation on":           proto.SetDonationTextVisible{Visible: true},
		"timer off":             proto.SetSkipTimerEnabled{Enabled: false},
		"text on":               proto.SetIncludeText{IncludeText: true},
	}
	for line, want := range cases {
		in, err := parseLine(line, "http://cur.test")
		require.NoError(t, err, line)
		assert.Equal(t, want, in.cmd, line)
	}

	in, err := parseLine("  EXIT ", "")
	require.NoError(t, err)
	assert.Equal(t, verbQuit, in.verb)

	_, err = parseLine("   ", "")
	assert.ErrorIs(t, err, errEmptyLine)

	for _, bad := range []string{"volume", "volume loud", "portrait maybe", "click 1", "align", "warp 9"} {
		_, err := parseLine(bad, "")
		assert.Error(t, err, bad)
	}
}

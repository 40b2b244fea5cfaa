package renderer

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Uknong/BetterCheeseUtil/pkg/framebuf"
	"github.com/Uknong/BetterCheeseUtil/pkg/ipc"
	"github.com/Uknong/BetterCheeseUtil/pkg/proto"
)

var _ ipc.Surface = (*Overlay)(nil)

type fakePage struct {
	mu      sync.Mutex
	ops     []string
	loadErr error
}

func (p *fakePage) add(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ops = append(p.ops, s)
}

func (p *fakePage) Ops() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ops...)
}

func (p *fakePage) reset() {
	p.mu.Lock()
	p.ops = nil
	p.mu.Unlock()
}

func (p *fakePage) Load(url string) error {
	p.add("load " + url)
	return p.loadErr
}

func (p *fakePage) Eval(script string) { p.add(script) }
func (p *fakePage) Click(x, y int)     { p.add(fmt.Sprintf("click %d,%d", x, y)) }
func (p *fakePage) Key(key string)     { p.add("key " + key) }

type sink struct {
	mu     sync.Mutex
	events []proto.Event
}

func (s *sink) Emit(e proto.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func newOverlay(t *testing.T) (*Overlay, *fakePage) {
	t.Helper()
	p := &fakePage{}
	return New(Options{URL: "http://overlay", Page: p}), p
}

func TestWindowSize(t *testing.T) {
	w, h := WindowSize(1024)
	assert.Equal(t, 1280, w)
	assert.Equal(t, 1186, h)

	_, h = WindowSize(400)
	assert.Equal(t, 882, h, "never shorter than the landscape layout")

	_, h = WindowSize(5000)
	assert.Equal(t, framebuf.MaxHeight, h)
}

func TestPageURL(t *testing.T) {
	assert.Equal(t, "http://o?cookie=true&w=1280&h=720", PageURL("http://o", false))
	assert.Equal(t, "http://o?cookie=true&w=1280&h=720&ui=true", PageURL("http://o", true))
}

func TestLoadReappliesLayout(t *testing.T) {
	ov, page := newOverlay(t)
	ov.SetAlignment("left")
	page.reset()

	ov.Load()
	assert.Equal(t, []string{
		"load http://overlay?cookie=true&w=1280&h=720",
		"setAlignment('left');",
		"setPortraitSize(576, 1024);",
		"setIncludeText(true);",
		"setPortraitSize(576, 1024);",
	}, page.Ops())
	assert.Equal(t, 1, ov.Snapshot().Loads)

	page.loadErr = errors.New("offline")
	page.reset()
	ov.RefreshPage("http://other", true)
	assert.Equal(t, []string{"load http://other?cookie=true&w=1280&h=720&ui=true"}, page.Ops())
	assert.Equal(t, 1, ov.Snapshot().Loads)
	assert.True(t, ov.Snapshot().UI)
}

func TestSetPortraitSizeResizesWindow(t *testing.T) {
	ov, page := newOverlay(t)
	ov.SetPortraitSize(720, 0)

	st := ov.Snapshot()
	assert.Equal(t, 720, st.PortraitWidth)
	assert.Equal(t, 1280, st.PortraitHeight)
	assert.Equal(t, 1280, st.Width)
	assert.Equal(t, framebuf.MaxHeight, st.Height)
	assert.Contains(t, page.Ops(), "setPortraitSize(720, 1280);")
}

func TestVolumeAndOrientationScripts(t *testing.T) {
	ov, page := newOverlay(t)
	ov.SetVolume(250)
	ov.SetAlignment("it's")
	page.reset()
	ov.SetOrientation(true)

	assert.Equal(t, 100, ov.Snapshot().Volume)
	assert.Equal(t, []string{"toggleOrientation(true);", `setAlignment('it\'s');`}, page.Ops())
}

func TestSimulateSkipUsesLayout(t *testing.T) {
	cases := []struct {
		portrait  bool
		alignment string
		click     string
	}{
		{false, "center", "click 1247,646"},
		{true, "left", "click 542,950"},
		{true, "right", "click 1246,950"},
		{true, "center", "click 895,950"},
	}
	for _, tc := range cases {
		ov, page := newOverlay(t)
		ov.SetAlignment(tc.alignment)
		ov.SetOrientation(tc.portrait)
		page.reset()

		ov.SimulateSkip()
		assert.Equal(t, []string{tc.click, tc.click, "window.bcuForceVideoEnd && window.bcuForceVideoEnd();"}, page.Ops(),
			"portrait=%t alignment=%s", tc.portrait, tc.alignment)
	}
}

func TestSimulateKey(t *testing.T) {
	ov, page := newOverlay(t)
	ov.SimulateKey("SPACE")
	assert.Equal(t, []string{"click 640,360", "key Space"}, page.Ops())

	ov.SetAlignment("right")
	ov.SetOrientation(true)
	page.reset()
	ov.SimulateKey("F13")
	assert.Equal(t, []string{"click 992,512"}, page.Ops(), "unknown keys only focus")
}

func TestMoveAndPosition(t *testing.T) {
	ov, _ := newOverlay(t)
	ov.MoveWindow(-40, 12)
	x, y := ov.Position()
	assert.Equal(t, -40, x)
	assert.Equal(t, 12, y)
}

func TestLocalCloseNeedsAuthorization(t *testing.T) {
	ov, _ := newOverlay(t)
	assert.False(t, ov.RequestClose())
	select {
	case <-ov.Closed():
		t.Fatal("closed without authorization")
	default:
	}

	ov.ForceClose()
	<-ov.Closed()
	assert.True(t, ov.RequestClose())
	_, ok := ov.Capture()
	assert.False(t, ok)
}

func TestConsoleMarkersRaiseEvents(t *testing.T) {
	ov, _ := newOverlay(t)
	s := &sink{}
	ov.SetEmitter(s)

	ov.HandleConsole("유튜브 영상 재생 시작됨. 영상 주소: https://youtu.be/abc?autoplay=1")
	ov.HandleConsole("[ChzzkResolution] portrait (1080x1920)")
	ov.HandleConsole("unrelated log line")
	ov.HandleConsole("[ChzzkResolution]   ")

	assert.Equal(t, []proto.Event{
		proto.VideoStarted{URL: "https://youtu.be/abc"},
		proto.ResolutionDetected{Type: "portrait"},
	}, s.events)
}

func TestCapturePaintsLayout(t *testing.T) {
	ov, _ := newOverlay(t)
	f, ok := ov.Capture()
	require.True(t, ok)
	assert.Equal(t, 1280, f.Width)
	assert.Equal(t, 1186, f.Height)
	require.Len(t, f.Pix, f.Width*f.Height*framebuf.Channels)

	px := func(f framebuf.Frame, x, y int) []byte {
		i := (y*f.Width + x) * framebuf.Channels
		return f.Pix[i : i+4]
	}
	// Landscape video, then the text band, then transparent.
	assert.Equal(t, videoColor[:], px(f, 1270, 10))
	assert.Equal(t, textColor[:], px(f, 10, 800))
	assert.Equal(t, []byte{0, 0, 0, 0}, px(f, 10, 1000))
	// Volume 50 fills the left half of the bar.
	assert.Equal(t, volumeColor[:], px(f, 100, 717))
	assert.Equal(t, videoColor[:], px(f, 1000, 717))

	ov.SetAlignment("right")
	ov.SetOrientation(true)
	ov.SetIncludeText(false)
	f, ok = ov.Capture()
	require.True(t, ok)
	assert.Equal(t, []byte{0, 0, 0, 0}, px(f, 10, 10), "left of a right-aligned portrait video")
	assert.Equal(t, videoColor[:], px(f, 1270, 10))
	assert.Equal(t, []byte{0, 0, 0, 0}, px(f, 1270, 1100), "no text band")
}

func TestCaptureWritesThroughFrameWriter(t *testing.T) {
	ov, _ := newOverlay(t)
	buf := make([]byte, framebuf.Capacity)
	w, err := framebuf.NewWriter(buf)
	require.NoError(t, err)

	f, ok := ov.Capture()
	require.True(t, ok)
	require.NoError(t, w.Write(f))
}

// Package renderer is the headless overlay process. It keeps the window and
// page state the controller drives, turns control calls into page script, and
// paints the frames the capture loop publishes to shared memory.
package renderer

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Uknong/BetterCheeseUtil/pkg/framebuf"
	"github.com/Uknong/BetterCheeseUtil/pkg/proto"
)

// Window geometry of the overlay page.
const (
	FrameWidth      = 1280
	LandscapeHeight = 720
	TextHeight      = 162
)

// Page drives the hosted web page. Load reports whether the page finished loading.
type Page interface {
	Load(url string) error
	Eval(script string)
	Click(x, y int)
	Key(key string)
}

// Emitter delivers renderer events to the controller.
type Emitter interface {
	Emit(e proto.Event) error
}

// State is a snapshot of everything the controller can change.
type State struct {
	URL            string `json:"url"`
	UI             bool   `json:"ui"`
	Volume         int    `json:"volume"`
	Portrait       bool   `json:"portrait"`
	Alignment      string `json:"alignment"`
	PortraitWidth  int    `json:"portrait_width"`
	PortraitHeight int    `json:"portrait_height"`
	IncludeText    bool   `json:"include_text"`
	DonationText   bool   `json:"donation_text"`
	SkipTimer      bool   `json:"skip_timer"`
	TaskbarVisible bool   `json:"taskbar_visible"`
	X              int    `json:"x"`
	Y              int    `json:"y"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Loads          int    `json:"loads"`
}

type Options struct {
	URL       string
	UI        bool
	Alignment string
	X, Y      int
	Page      Page
}

// Overlay implements the control surface the IPC server dispatches onto.
type Overlay struct {
	page Page

	mu      sync.Mutex
	st      State
	emitter Emitter
	dirty   bool
	pix     []byte

	allowClose atomic.Bool
	closed     chan struct{}
	closeOnce  sync.Once
}

func New(o Options) *Overlay {
	if o.Alignment == "" {
		o.Alignment = "center"
	}
	if o.Page == nil {
		o.Page = logPage{}
	}
	ov := &Overlay{
		page:   o.Page,
		closed: make(chan struct{}),
		dirty:  true,
		st: State{
			URL:            o.URL,
			UI:             o.UI,
			Volume:         50,
			Alignment:      o.Alignment,
			PortraitWidth:  proto.DefaultPortraitWidth,
			PortraitHeight: proto.DefaultPortraitHeight,
			IncludeText:    true,
			DonationText:   true,
			SkipTimer:      true,
			TaskbarVisible: true,
			X:              o.X,
			Y:              o.Y,
		},
	}
	ov.st.Width, ov.st.Height = WindowSize(ov.st.PortraitHeight)
	return ov
}

// WindowSize is the fixed-width window that fits both layouts plus the text band,
// bounded by the shared frame capacity.
func WindowSize(portraitHeight int) (w, h int) {
	h = max(LandscapeHeight+TextHeight, portraitHeight+TextHeight)
	return FrameWidth, min(h, framebuf.MaxHeight)
}

// PageURL is the address the page is loaded from.
func PageURL(url string, ui bool) string {
	u := url + "?cookie=true&w=1280&h=720"
	if ui {
		u += "&ui=true"
	}
	return u
}

// SetEmitter wires event delivery; nil disables it.
func (o *Overlay) SetEmitter(e Emitter) {
	o.mu.Lock()
	o.emitter = e
	o.mu.Unlock()
}

func (o *Overlay) emit(e proto.Event) {
	o.mu.Lock()
	em := o.emitter
	o.mu.Unlock()
	if em == nil {
		return
	}
	_ = em.Emit(e)
}

// Snapshot returns the current state.
func (o *Overlay) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.st
}

// update applies fn under the lock and marks the frame for repaint.
func (o *Overlay) update(fn func(st *State)) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.st)
	o.dirty = true
	return o.st
}

// Load (re)loads the page and, once loaded, re-applies the layout settings.
func (o *Overlay) Load() {
	st := o.Snapshot()
	if err := o.page.Load(PageURL(st.URL, st.UI)); err != nil {
		log.Printf("[OVERLAY] page load failed: %v", err)
		return
	}
	st = o.update(func(st *State) { st.Loads++ })
	log.Printf("[OVERLAY] page loaded (%d)", st.Loads)
	o.SetAlignment(st.Alignment)
	o.SetPortraitSize(st.PortraitWidth, st.PortraitHeight)
	o.SetIncludeText(st.IncludeText)
}

func (o *Overlay) SetVolume(volume int) {
	volume = max(0, min(100, volume))
	o.update(func(st *State) { st.Volume = volume })
	o.page.Eval(fmt.Sprintf("window.BcuTargetVolume = %.2f; window.BcuTargetVolumeInt = %d; window.bcuApplyVolume && window.bcuApplyVolume();",
		float64(volume)/100, volume))
}

func (o *Overlay) SetOrientation(portrait bool) {
	st := o.update(func(st *State) { st.Portrait = portrait })
	log.Printf("[OVERLAY] orientation portrait=%t align=%s", portrait, st.Alignment)
	o.page.Eval(fmt.Sprintf("toggleOrientation(%t);", portrait))
	o.page.Eval(fmt.Sprintf("setAlignment('%s');", jsEscape(st.Alignment)))
}

func (o *Overlay) SetAlignment(alignment string) {
	o.update(func(st *State) { st.Alignment = alignment })
	o.page.Eval(fmt.Sprintf("setAlignment('%s');", jsEscape(alignment)))
}

// SetPortraitSize resizes the portrait frame and the window; height 0 keeps the
// default aspect.
func (o *Overlay) SetPortraitSize(width, height int) {
	if width <= 0 {
		width = proto.DefaultPortraitWidth
	}
	if height <= 0 {
		height = proto.PortraitHeight(width)
	}
	st := o.update(func(st *State) {
		st.PortraitWidth, st.PortraitHeight = width, height
		st.Width, st.Height = WindowSize(height)
	})
	o.page.Eval(fmt.Sprintf("setPortraitSize(%d, %d);", width, height))
	log.Printf("[OVERLAY] portrait size %dx%d, window %dx%d", width, height, st.Width, st.Height)
}

func (o *Overlay) SetIncludeText(include bool) {
	st := o.update(func(st *State) { st.IncludeText = include })
	o.page.Eval(fmt.Sprintf("setIncludeText(%t);", include))
	o.SetPortraitSize(st.PortraitWidth, st.PortraitHeight)
}

func (o *Overlay) SetSkipTimerEnabled(enabled bool) {
	o.update(func(st *State) { st.SkipTimer = enabled })
	o.page.Eval(fmt.Sprintf("setSkipTimerEnabled(%t);", enabled))
}

func (o *Overlay) SetDonationTextVisible(visible bool) {
	o.update(func(st *State) { st.DonationText = visible })
	o.page.Eval(fmt.Sprintf("setDonationTextVisible && setDonationTextVisible(%t);", visible))
}

func (o *Overlay) RefreshPage(url string, ui bool) {
	o.update(func(st *State) { st.URL, st.UI = url, ui })
	o.Load()
}

func (o *Overlay) SimulateClick(x, y int) {
	o.page.Click(x, y)
	log.Printf("[OVERLAY] click at (%d, %d)", x, y)
}

// skipPoint is where the page's skip button sits for the current layout.
func skipPoint(st State) (x, y int) {
	if !st.Portrait {
		return 1247, 646
	}
	switch st.Alignment {
	case "left":
		return 542, 950
	case "right":
		return 1246, 950
	}
	return 895, 950
}

// focusPoint is the middle of the visible video for the current layout.
func focusPoint(st State) (x, y int) {
	if !st.Portrait {
		return 640, 360
	}
	switch st.Alignment {
	case "left":
		return 288, 512
	case "right":
		return 992, 512
	}
	return 640, 512
}

// SimulateSkip double-clicks the skip button and forces the video to end.
func (o *Overlay) SimulateSkip() {
	x, y := skipPoint(o.Snapshot())
	o.SimulateClick(x, y)
	o.SimulateClick(x, y)
	o.page.Eval("window.bcuForceVideoEnd && window.bcuForceVideoEnd();")
}

var pageKeys = map[string]string{"home": "Home", "end": "End", "space": "Space"}

// SimulateKey focuses the video and sends one of the supported keys.
func (o *Overlay) SimulateKey(key string) {
	x, y := focusPoint(o.Snapshot())
	o.SimulateClick(x, y)
	k, ok := pageKeys[strings.ToLower(key)]
	if !ok {
		log.Printf("[OVERLAY] unknown key %q", key)
		return
	}
	o.page.Key(k)
}

func (o *Overlay) ForceConnect() {
	log.Printf("[OVERLAY] force connect")
	o.page.Eval("window.bcuForceConnect && window.bcuForceConnect();")
}

func (o *Overlay) ForceSkip() {
	log.Printf("[OVERLAY] force skip")
	o.page.Eval("window.bcuForceSkip && window.bcuForceSkip();")
}

func (o *Overlay) SeekToStart() {
	o.page.Eval("window.bcuSeekToStart && window.bcuSeekToStart();")
}

func (o *Overlay) TogglePlayPause() {
	o.page.Eval("window.bcuTogglePlayPause && window.bcuTogglePlayPause();")
}

func (o *Overlay) MoveWindow(x, y int) {
	o.update(func(st *State) { st.X, st.Y = x, y })
	log.Printf("[OVERLAY] moved to (%d, %d)", x, y)
}

func (o *Overlay) SetTaskbarVisible(visible bool) {
	o.update(func(st *State) { st.TaskbarVisible = visible })
	log.Printf("[OVERLAY] taskbar visible: %t", visible)
}

func (o *Overlay) Position() (x, y int) {
	st := o.Snapshot()
	return st.X, st.Y
}

// RequestClose is a local close (window manager, user). It only proceeds after
// the controller has authorized closing.
func (o *Overlay) RequestClose() bool {
	if !o.allowClose.Load() {
		log.Printf("[OVERLAY] close ignored (use the close command)")
		return false
	}
	o.closeOnce.Do(func() { close(o.closed) })
	return true
}

// ForceClose authorizes and performs the close.
func (o *Overlay) ForceClose() {
	o.allowClose.Store(true)
	o.RequestClose()
}

// Closed is closed once the overlay has been closed.
func (o *Overlay) Closed() <-chan struct{} { return o.closed }

func (o *Overlay) isClosed() bool {
	select {
	case <-o.closed:
		return true
	default:
		return false
	}
}

func jsEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`).Replace(s)
}

// logPage stands in for a browser: it records what would run in the log.
type logPage struct{}

func (logPage) Load(url string) error {
	log.Printf("[PAGE] load %s", url)
	return nil
}

func (logPage) Eval(script string) {
	if len(script) > 120 {
		script = script[:120] + "..."
	}
	log.Printf("[PAGE] eval %s", script)
}

func (logPage) Click(x, y int) { log.Printf("[PAGE] click %d,%d", x, y) }
func (logPage) Key(key string) { log.Printf("[PAGE] key %s", key) }

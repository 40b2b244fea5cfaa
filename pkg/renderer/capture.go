package renderer

import (
	"github.com/Uknong/BetterCheeseUtil/pkg/framebuf"
)

var (
	videoColor  = [4]byte{24, 24, 24, 255}
	textColor   = [4]byte{255, 255, 255, 160}
	volumeColor = [4]byte{0, 200, 120, 255}
)

const volumeBarHeight = 6

// Capture paints the current window into an RGBA frame. The pixels are reused
// by the next call, so only one goroutine may capture. A closed overlay has
// nothing to show.
func (o *Overlay) Capture() (framebuf.Frame, bool) {
	if o.isClosed() {
		return framebuf.Frame{}, false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.st
	n := st.Width * st.Height * framebuf.Channels
	if o.dirty || len(o.pix) != n {
		if cap(o.pix) < n {
			o.pix = make([]byte, n)
		} else {
			o.pix = o.pix[:n]
			clear(o.pix)
		}
		paint(o.pix, st)
		o.dirty = false
	}
	return framebuf.Frame{Width: st.Width, Height: st.Height, Pix: o.pix}, true
}

// videoRect is the area the video occupies for the current layout.
func videoRect(st State) (x, y, w, h int) {
	if !st.Portrait {
		return 0, 0, FrameWidth, LandscapeHeight
	}
	w, h = min(st.PortraitWidth, st.Width), st.PortraitHeight
	switch st.Alignment {
	case "left", "top-left", "bottom-left":
		x = 0
	case "right", "top-right", "bottom-right":
		x = st.Width - w
	default:
		x = (st.Width - w) / 2
	}
	return x, 0, w, h
}

func paint(pix []byte, st State) {
	x, y, w, h := videoRect(st)
	fillRect(pix, st.Width, st.Height, x, y, w, h, videoColor)
	if st.IncludeText {
		fillRect(pix, st.Width, st.Height, x, y+h, w, TextHeight, textColor)
	}
	fillRect(pix, st.Width, st.Height, x, y+h-volumeBarHeight, w*st.Volume/100, volumeBarHeight, volumeColor)
}

// fillRect fills the rectangle clipped to the width x height image.
func fillRect(pix []byte, width, height, x, y, w, h int, c [4]byte) {
	x0, y0 := max(x, 0), max(y, 0)
	x1, y1 := min(x+w, width), min(y+h, height)
	if x0 >= x1 || y0 >= y1 {
		return
	}
	stride := width * framebuf.Channels
	row := pix[y0*stride+x0*framebuf.Channels : y0*stride+x1*framebuf.Channels]
	for i := 0; i < len(row); i += framebuf.Channels {
		copy(row[i:], c[:])
	}
	for yy := y0 + 1; yy < y1; yy++ {
		copy(pix[yy*stride+x0*framebuf.Channels:], row)
	}
}

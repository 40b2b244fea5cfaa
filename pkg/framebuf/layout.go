// Package framebuf is a single-slot, overwrite-in-place video frame channel living
// in a named shared memory segment. The renderer is the only writer; the controller
// maps the segment read-only and copies frames out on demand.
//
// Segment layout:
//
//	offset 0  uint16 BE  width
//	offset 2  uint16 BE  height
//	offset 4  uint32     sequence (native order, odd while a write is in progress)
//	offset 8  width*height*4 bytes RGBA8, row-major
//
// There is no lock between writer and reader. A reader may observe a torn frame;
// the sequence word lets it detect that case and drop the snapshot.
package framebuf

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

const (
	DefaultName = "BCU_OverlayFrame"

	MaxWidth   = 1280
	MaxHeight  = 1254
	Channels   = 4
	HeaderSize = 8

	// Capacity is the fixed size of the segment in bytes.
	Capacity = HeaderSize + MaxWidth*MaxHeight*Channels
)

// Frame is one RGBA8 snapshot. Pix is owned by the holder, never a view into the segment.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
	Seq    uint32
}

// Empty reports whether the frame has no pixels.
func (f Frame) Empty() bool { return f.Width == 0 || f.Height == 0 }

// Stride is the number of bytes per row.
func (f Frame) Stride() int { return f.Width * Channels }

func seqWord(buf []byte) *uint32 {
	return (*uint32)(unsafe.Pointer(&buf[4]))
}

func loadSeq(buf []byte) uint32 { return atomic.LoadUint32(seqWord(buf)) }

func storeSeq(buf []byte, v uint32) { atomic.StoreUint32(seqWord(buf), v) }

// afterCopy runs between the pixel copy and the sequence re-check. Tests use it to
// simulate a writer racing the reader.
var afterCopy = func() {}

// readFrame copies the current frame out of buf. torn is true when the writer was
// active during the copy; the snapshot is then discarded.
func readFrame(buf []byte) (f Frame, ok, torn bool) {
	if len(buf) < HeaderSize {
		return Frame{}, false, false
	}
	before := loadSeq(buf)
	if before&1 == 1 {
		return Frame{}, false, true
	}
	w := int(binary.BigEndian.Uint16(buf[0:2]))
	h := int(binary.BigEndian.Uint16(buf[2:4]))
	if w == 0 || h == 0 {
		return Frame{}, false, false
	}
	n := w * h * Channels
	if HeaderSize+n > len(buf) {
		return Frame{}, false, false
	}
	pix := make([]byte, n)
	copy(pix, buf[HeaderSize:HeaderSize+n])
	afterCopy()
	if loadSeq(buf) != before {
		return Frame{}, false, true
	}
	return Frame{Width: w, Height: h, Pix: pix, Seq: before}, true, false
}

package framebuf

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"time"
)

var (
	// ErrFrameTooLarge means the frame does not fit the fixed segment. This is a
	// configuration problem (window larger than MaxWidth x MaxHeight).
	ErrFrameTooLarge = errors.New("frame exceeds segment capacity")
	ErrInvalidFrame  = errors.New("invalid frame")
)

// Writer publishes frames into a writable buffer, normally a Segment created by the renderer.
type Writer struct {
	buf []byte
	seq uint32
}

// NewWriter wraps buf, which must be at least HeaderSize bytes.
func NewWriter(buf []byte) (*Writer, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("%w: buffer of %d bytes", ErrInvalidFrame, len(buf))
	}
	seq := loadSeq(buf)
	// An odd value left by a crashed writer would block every reader.
	if seq&1 == 1 {
		seq++
		storeSeq(buf, seq)
	}
	return &Writer{buf: buf, seq: seq}, nil
}

// Write overwrites the slot with f. Nothing is written when f does not fit.
func (w *Writer) Write(f Frame) error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidFrame, f.Width, f.Height)
	}
	if f.Width > MaxWidth || f.Height > MaxHeight {
		return fmt.Errorf("%w: %dx%d > %dx%d", ErrFrameTooLarge, f.Width, f.Height, MaxWidth, MaxHeight)
	}
	n := f.Width * f.Height * Channels
	if len(f.Pix) < n {
		return fmt.Errorf("%w: %d pixel bytes for %dx%d", ErrInvalidFrame, len(f.Pix), f.Width, f.Height)
	}
	if HeaderSize+n > len(w.buf) {
		return fmt.Errorf("%w: %d bytes > %d", ErrFrameTooLarge, HeaderSize+n, len(w.buf))
	}

	storeSeq(w.buf, w.seq+1)
	binary.BigEndian.PutUint16(w.buf[0:2], uint16(f.Width))
	binary.BigEndian.PutUint16(w.buf[2:4], uint16(f.Height))
	copy(w.buf[HeaderSize:HeaderSize+n], f.Pix[:n])
	w.seq += 2
	storeSeq(w.buf, w.seq)
	return nil
}

// Clear marks the slot empty.
func (w *Writer) Clear() {
	storeSeq(w.buf, w.seq+1)
	binary.BigEndian.PutUint32(w.buf[0:4], 0)
	w.seq += 2
	storeSeq(w.buf, w.seq)
}

// Capturer produces the current visible surface. ok is false when nothing is
// visible; the tick is skipped.
type Capturer interface {
	Capture() (f Frame, ok bool)
}

// CaptureLoop writes one frame per tick until ctx is done. A failing write is
// logged once per distinct error, not once per frame.
func CaptureLoop(ctx context.Context, interval time.Duration, src Capturer, w *Writer) {
	t := time.NewTicker(interval)
	defer t.Stop()
	lastErr := ""
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		f, ok := src.Capture()
		if !ok {
			continue
		}
		if err := w.Write(f); err != nil {
			if msg := err.Error(); msg != lastErr {
				log.Printf("[SHM] frame capture error: %v", err)
				lastErr = msg
			}
			continue
		}
		lastErr = ""
	}
}

package framebuf

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRetry is how long the reader waits before trying to attach again.
const DefaultRetry = 500 * time.Millisecond

// Reader is the controller side of the channel. It attaches to the segment lazily
// and keeps retrying on a timer while the renderer has not created it.
type Reader struct {
	name  string
	retry time.Duration
	open  func(name string) (*Segment, error)

	mu     sync.RWMutex
	seg    *Segment
	timer  *time.Timer
	closed bool

	torn atomic.Uint64
}

// NewReader returns a detached reader for the named segment.
func NewReader(name string, retry time.Duration) *Reader {
	if retry <= 0 {
		retry = DefaultRetry
	}
	return &Reader{name: name, retry: retry, open: Open}
}

// Attach tries to map the segment now. On failure it arms a one-shot retry timer
// (if none is pending) and returns false.
func (r *Reader) Attach() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attachLocked()
}

func (r *Reader) attachLocked() bool {
	if r.closed {
		return false
	}
	if r.seg != nil {
		return true
	}
	seg, err := r.open(r.name)
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			log.Printf("[SHM] attach %s failed: %v", r.name, err)
		}
		if r.timer == nil {
			r.timer = time.AfterFunc(r.retry, r.retryAttach)
		}
		return false
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.seg = seg
	log.Printf("[SHM] attached to %s", r.name)
	return true
}

func (r *Reader) retryAttach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timer = nil
	r.attachLocked()
}

// Reattach drops the current mapping and attaches again. A renderer that restarted
// recreates the segment, which leaves an old mapping pointing at a dead file.
func (r *Reader) Reattach() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detachLocked()
	return r.attachLocked()
}

// Attached reports whether a segment is mapped.
func (r *Reader) Attached() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seg != nil
}

// Grab returns a detached copy of the current frame. ok is false when the segment
// is not attached, holds no frame yet, or the copy was torn by a concurrent write.
func (r *Reader) Grab() (Frame, bool) {
	r.mu.RLock()
	seg := r.seg
	if seg == nil {
		r.mu.RUnlock()
		if !r.Attach() {
			return Frame{}, false
		}
		r.mu.RLock()
		seg = r.seg
		if seg == nil {
			r.mu.RUnlock()
			return Frame{}, false
		}
	}
	defer r.mu.RUnlock()

	f, ok, torn := readFrame(seg.Bytes())
	if torn {
		r.torn.Add(1)
	}
	return f, ok
}

// TornFrames counts snapshots discarded because a write overlapped the copy.
func (r *Reader) TornFrames() uint64 { return r.torn.Load() }

// Close unmaps the segment and cancels any pending retry. Safe to call twice.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return r.detachLocked()
}

func (r *Reader) detachLocked() error {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.seg == nil {
		return nil
	}
	err := r.seg.Close()
	r.seg = nil
	return err
}

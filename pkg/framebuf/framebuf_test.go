package framebuf

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFrameZeroHeaderIsEmpty(t *testing.T) {
	buf := make([]byte, HeaderSize+64)
	// Arbitrary padding after a zero-size header.
	for i := HeaderSize; i < len(buf); i++ {
		buf[i] = 0xAB
	}
	_, ok, torn := readFrame(buf)
	assert.False(t, ok)
	assert.False(t, torn)
}

func TestReadFrameTwoByOne(t *testing.T) {
	pix := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	buf := append([]byte{0x00, 0x02, 0x00, 0x01, 0, 0, 0, 0}, pix...)

	f, ok, torn := readFrame(buf)
	require.True(t, ok)
	assert.False(t, torn)
	assert.Equal(t, 2, f.Width)
	assert.Equal(t, 1, f.Height)
	assert.Equal(t, pix, f.Pix)
	assert.Equal(t, 8, f.Stride())

	// The snapshot is a copy, not a view.
	buf[HeaderSize] = 99
	assert.Equal(t, byte(1), f.Pix[0])
}

func TestReadFrameHeaderLargerThanBuffer(t *testing.T) {
	buf := []byte{0x00, 0x10, 0x00, 0x10, 0, 0, 0, 0, 1, 2, 3}
	_, ok, _ := readFrame(buf)
	assert.False(t, ok)
}

func TestWriterThenRead(t *testing.T) {
	buf := make([]byte, HeaderSize+3*2*Channels)
	w, err := NewWriter(buf)
	require.NoError(t, err)

	pix := bytes.Repeat([]byte{9, 8, 7, 255}, 6)
	require.NoError(t, w.Write(Frame{Width: 3, Height: 2, Pix: pix}))

	f, ok, _ := readFrame(buf)
	require.True(t, ok)
	assert.Equal(t, 3, f.Width)
	assert.Equal(t, 2, f.Height)
	assert.Equal(t, pix, f.Pix)
	assert.Equal(t, uint32(2), f.Seq)

	require.NoError(t, w.Write(Frame{Width: 1, Height: 1, Pix: []byte{1, 1, 1, 1}}))
	f, ok, _ = readFrame(buf)
	require.True(t, ok)
	assert.Equal(t, uint32(4), f.Seq)
	assert.Equal(t, []byte{1, 1, 1, 1}, f.Pix)

	w.Clear()
	_, ok, _ = readFrame(buf)
	assert.False(t, ok)
}

func TestWriterRejectsOversizeFrames(t *testing.T) {
	buf := make([]byte, HeaderSize+4*Channels)
	w, err := NewWriter(buf)
	require.NoError(t, err)

	err = w.Write(Frame{Width: MaxWidth + 1, Height: 1, Pix: make([]byte, (MaxWidth+1)*Channels)})
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	// Fits the limits but not this small buffer.
	err = w.Write(Frame{Width: 4, Height: 2, Pix: make([]byte, 32)})
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	err = w.Write(Frame{Width: 2, Height: 2, Pix: make([]byte, 3)})
	assert.ErrorIs(t, err, ErrInvalidFrame)

	// Nothing was published.
	_, ok, _ := readFrame(buf)
	assert.False(t, ok)
}

func TestNewWriterRepairsOddSequence(t *testing.T) {
	buf := make([]byte, HeaderSize+Channels)
	storeSeq(buf, 7)
	_, err := NewWriter(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), loadSeq(buf))
}

func TestTornFrameDetected(t *testing.T) {
	buf := make([]byte, HeaderSize+Channels)
	w, err := NewWriter(buf)
	require.NoError(t, err)
	require.NoError(t, w.Write(Frame{Width: 1, Height: 1, Pix: []byte{1, 2, 3, 4}}))

	// Writer in progress.
	storeSeq(buf, loadSeq(buf)+1)
	_, ok, torn := readFrame(buf)
	assert.False(t, ok)
	assert.True(t, torn)
	storeSeq(buf, loadSeq(buf)+1)

	// Writer completes a frame while the reader is copying.
	afterCopy = func() {
		require.NoError(t, w.Write(Frame{Width: 1, Height: 1, Pix: []byte{5, 6, 7, 8}}))
	}
	defer func() { afterCopy = func() {} }()
	_, ok, torn = readFrame(buf)
	assert.False(t, ok)
	assert.True(t, torn)

	// The next read is fresh.
	afterCopy = func() {}
	f, ok, _ := readFrame(buf)
	require.True(t, ok)
	assert.Equal(t, []byte{5, 6, 7, 8}, f.Pix)
}

type patternSource struct {
	calls atomic.Int32
}

func (p *patternSource) Capture() (Frame, bool) {
	n := p.calls.Add(1)
	if n == 1 {
		return Frame{}, false
	}
	return Frame{Width: 2, Height: 2, Pix: bytes.Repeat([]byte{byte(n)}, 16)}, true
}

func TestCaptureLoopWritesUntilCancelled(t *testing.T) {
	buf := make([]byte, HeaderSize+16)
	w, err := NewWriter(buf)
	require.NoError(t, err)
	src := &patternSource{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		CaptureLoop(ctx, time.Millisecond, src, w)
		close(done)
	}()

	require.Eventually(t, func() bool { return src.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("capture loop did not stop")
	}

	f, ok, _ := readFrame(buf)
	require.True(t, ok)
	assert.Equal(t, 2, f.Width)
}

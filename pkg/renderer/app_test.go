//go:build unix

package renderer

import (
	"context"
	"flag"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Uknong/BetterCheeseUtil/pkg/framebuf"
	"github.com/Uknong/BetterCheeseUtil/pkg/ipc"
	"github.com/Uknong/BetterCheeseUtil/pkg/proto"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func useFrameDir(t *testing.T) {
	t.Helper()
	old := framebuf.Dir
	framebuf.Dir = t.TempDir()
	t.Cleanup(func() { framebuf.Dir = old })
}

func startRun(t *testing.T, ctx context.Context, opts RunOptions) chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- Run(ctx, opts) }()
	return done
}

func dial(t *testing.T, addr string) *ipc.Conn {
	t.Helper()
	var nc net.Conn
	require.Eventually(t, func() bool {
		var err error
		nc, err = net.DialTimeout("tcp", addr, 100*time.Millisecond)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	c := ipc.NewConn(nc)
	t.Cleanup(func() { c.Close() })
	return c
}

func next(t *testing.T, c *ipc.Conn) proto.Event {
	t.Helper()
	m, ok, err := c.Receive()
	require.NoError(t, err)
	require.True(t, ok)
	e, err := proto.DecodeEvent(m)
	require.NoError(t, err)
	return e
}

func TestRunServesUntilAuthorizedClose(t *testing.T) {
	useFrameDir(t)
	addr := freeAddr(t)
	console, feed := io.Pipe()
	defer feed.Close()
	done := startRun(t, context.Background(), RunOptions{
		Addr:            addr,
		FrameName:       "frames",
		CaptureInterval: 2 * time.Millisecond,
		Overlay:         Options{URL: "http://overlay", Page: &fakePage{}},
		Console:         console,
	})

	c := dial(t, addr)
	assert.Equal(t, proto.Ready{}, next(t, c))

	// Frames appear in the shared segment.
	r := framebuf.NewReader("frames", 5*time.Millisecond)
	defer r.Close()
	require.Eventually(t, func() bool {
		f, ok := r.Grab()
		return ok && f.Width == 1280
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.SendCommand(proto.MoveWindow{X: 5, Y: 6}))
	require.NoError(t, c.SendCommand(proto.GetPosition{}))
	assert.Equal(t, proto.PositionChanged{X: 5, Y: 6}, next(t, c))

	_, err := io.WriteString(feed, "[ChzzkResolution] landscape (1920x1080)\n")
	require.NoError(t, err)
	assert.Equal(t, proto.ResolutionDetected{Type: "landscape"}, next(t, c))

	require.NoError(t, c.SendCommand(proto.Close{}))
	assert.Equal(t, proto.OverlayClosed{}, next(t, c))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}
	_, err = os.Stat(filepath.Join(framebuf.Dir, "frames"))
	assert.True(t, os.IsNotExist(err), "segment unlinked on exit")
}

func TestRunStopsOnContextWithClosedEvent(t *testing.T) {
	useFrameDir(t)
	addr := freeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := startRun(t, ctx, RunOptions{Addr: addr, FrameName: "frames", Overlay: Options{URL: "u", Page: &fakePage{}}})

	c := dial(t, addr)
	assert.Equal(t, proto.Ready{}, next(t, c))
	cancel()
	assert.Equal(t, proto.OverlayClosed{}, next(t, c))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestRunFailsWhenPortTaken(t *testing.T) {
	useFrameDir(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	err = Run(context.Background(), RunOptions{Addr: ln.Addr().String(), FrameName: "frames", Overlay: Options{URL: "u", Page: &fakePage{}}})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "listen"))
}

func TestMainRequiresURL(t *testing.T) {
	assert.Equal(t, 2, Main([]string{"--alignment", "left"}))
	assert.Equal(t, 2, Main([]string{"--bogus"}))
}

func TestKnownArgsSkipsForeignSwitches(t *testing.T) {
	fs := flag.NewFlagSet("overlay", flag.ContinueOnError)
	url := fs.String("url", "", "")
	ui := fs.Bool("ui", false, "")
	alignment := fs.String("alignment", "center", "")
	fs.String("remote-debugging-port", "", "")

	args := []string{
		"--enable-logging", "--v", "1", "--url", "http://o.test",
		"--autoplay-policy=no-user-gesture-required", "--ui",
		"--remote-debugging-port=9223", "--lang", "ko", "--alignment", "right",
	}
	known, extra := knownArgs(fs, args)
	assert.Equal(t, []string{
		"--enable-logging", "--v", "1", "--autoplay-policy=no-user-gesture-required", "--lang", "ko",
	}, extra)
	require.NoError(t, fs.Parse(known))
	assert.Equal(t, "http://o.test", *url)
	assert.True(t, *ui)
	assert.Equal(t, "right", *alignment)
	assert.Empty(t, fs.Args())
}

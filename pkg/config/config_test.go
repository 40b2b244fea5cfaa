package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestControllerDefaultsWhenMissing(t *testing.T) {
	cfg, err := LoadControllerConfig(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultControllerConfig(), cfg)
	assert.Equal(t, "127.0.0.1:19847", cfg.IPCAddr)
	assert.Equal(t, 1024, cfg.Overlay.PortraitHeight)
}

func TestControllerFileAndNormalisation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.json")
	writeFile(t, path, `{
		"renderer_command": [" ./overlay-renderer ", ""],
		"overlay": {"url": " http://x/overlay ", "alignment": "Right", "volume": 140,
		            "portrait_width": 720, "portrait_height": 0, "include_text": false}
	}`)

	cfg, err := LoadControllerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"./overlay-renderer"}, cfg.RendererCommand)
	assert.Equal(t, "http://x/overlay", cfg.Overlay.URL)
	assert.Equal(t, "right", cfg.Overlay.Alignment)
	assert.Equal(t, 100, cfg.Overlay.Volume)
	assert.Equal(t, 1280, cfg.Overlay.PortraitHeight)
	assert.False(t, cfg.Overlay.IncludeText)
	// Untouched nested fields keep their defaults.
	assert.True(t, cfg.Overlay.SkipTimer)
	assert.Equal(t, 9223, cfg.Overlay.DebugPort)
}

func TestControllerAcceptsComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.json")
	writeFile(t, path, `{
		// dock for OBS
		"remote": {"enable": true, "addr": "127.0.0.1:5100",},
		/* launch */
		"overlay": {"ui": true,},
	}`)
	cfg, err := LoadControllerConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.Remote.Enable)
	assert.Equal(t, "127.0.0.1:5100", cfg.Remote.Addr)
	assert.True(t, cfg.Overlay.UI)
}

func TestControllerEnvOverrides(t *testing.T) {
	t.Setenv("BCU_IPC_ADDR", "127.0.0.1:2000")
	t.Setenv("BCU_RENDERER_CMD", "python overlay.py")
	t.Setenv("BCU_OVERLAY_UI", "yes")
	t.Setenv("BCU_VOLUME", "-3")
	t.Setenv("BCU_REMOTE_ENABLE", "1")

	cfg, err := LoadControllerConfig(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:2000", cfg.IPCAddr)
	assert.Equal(t, []string{"python", "overlay.py"}, cfg.RendererCommand)
	assert.True(t, cfg.Overlay.UI)
	assert.Equal(t, 0, cfg.Overlay.Volume)
	assert.True(t, cfg.Remote.Enable)
}

func TestControllerMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.json")
	writeFile(t, path, `{"overlay": `)
	cfg, err := LoadControllerConfig(path)
	assert.Error(t, err)
	assert.Equal(t, DefaultControllerConfig(), cfg)
}

func TestRendererConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "renderer.json")
	writeFile(t, path, `{"capture_interval_ms": 33, "frame_name": " "}`)
	t.Setenv("BCU_IPC_ADDR", "127.0.0.1:3000")

	cfg, err := LoadRendererConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:3000", cfg.Addr)
	assert.Equal(t, 33, cfg.CaptureIntervalMs)
	assert.Equal(t, "BCU_OverlayFrame", cfg.FrameName)
}

func TestWatchControllerReloadsOncePerBurst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.json")
	writeFile(t, path, `{"overlay": {"volume": 10}}`)

	got := make(chan ControllerConfig, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- WatchController(ctx, path, 50*time.Millisecond, func(c ControllerConfig) { got <- c }) }()
	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	writeFile(t, path, `{"overlay": {"volume": 20}}`)
	writeFile(t, path, `{"overlay": {"volume": 30}}`)
	writeFile(t, filepath.Join(dir, "other.json"), `{}`)

	select {
	case c := <-got:
		assert.Equal(t, 30, c.Overlay.Volume)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload")
	}
	select {
	case c := <-got:
		t.Fatalf("unexpected second reload: %+v", c.Overlay)
	case <-time.After(200 * time.Millisecond):
	}

	// A broken edit is skipped.
	writeFile(t, path, `{"overlay": `)
	select {
	case c := <-got:
		t.Fatalf("reload of malformed file: %+v", c.Overlay)
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

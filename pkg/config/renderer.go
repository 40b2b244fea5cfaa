package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
)

type RendererConfig struct {
	Addr              string `json:"addr"`
	FrameName         string `json:"frame_name"`
	CaptureIntervalMs int    `json:"capture_interval_ms"`
	// ConsoleStdin treats stdin lines as page console output.
	ConsoleStdin bool `json:"console_stdin"`
}

var DefaultRendererPath = filepath.Join("config", "renderer.json")

func DefaultRendererConfig() RendererConfig {
	return RendererConfig{
		Addr:              "127.0.0.1:19847",
		FrameName:         "BCU_OverlayFrame",
		CaptureIntervalMs: 16,
	}
}

// LoadRendererConfig reads JSON from path (default config/renderer.json) and applies env overrides.
func LoadRendererConfig(path string) (RendererConfig, error) {
	if path == "" {
		path = DefaultRendererPath
	}
	cfg := DefaultRendererConfig()
	if b, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(jsonc.ToJSON(b), &cfg); err != nil {
			return DefaultRendererConfig(), fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if v := os.Getenv("BCU_IPC_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("BCU_FRAME_NAME"); v != "" {
		cfg.FrameName = v
	}
	if v := os.Getenv("BCU_CAPTURE_INTERVAL_MS"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			cfg.CaptureIntervalMs = n
		}
	}
	if v := os.Getenv("BCU_CONSOLE_STDIN"); v != "" {
		cfg.ConsoleStdin = parseBool(v)
	}
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	if cfg.Addr == "" {
		cfg.Addr = DefaultRendererConfig().Addr
	}
	if cfg.FrameName = strings.TrimSpace(cfg.FrameName); cfg.FrameName == "" {
		cfg.FrameName = DefaultRendererConfig().FrameName
	}
	if cfg.CaptureIntervalMs <= 0 {
		cfg.CaptureIntervalMs = DefaultRendererConfig().CaptureIntervalMs
	}
	return cfg, nil
}

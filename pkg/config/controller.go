package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/Uknong/BetterCheeseUtil/pkg/proto"
)

// OverlaySettings are the renderer options the controller owns. Launch fields
// only take effect on the next start; the rest are pushed as commands.
type OverlaySettings struct {
	URL        string `json:"url"`
	UI         bool   `json:"ui"`
	Alignment  string `json:"alignment"`
	DisableGPU bool   `json:"disable_gpu"`
	DebugPort  int    `json:"debug_port"`

	Volume         int  `json:"volume"`
	Portrait       bool `json:"portrait"`
	PortraitWidth  int  `json:"portrait_width"`
	PortraitHeight int  `json:"portrait_height"`
	IncludeText    bool `json:"include_text"`
	DonationText   bool `json:"donation_text"`
	SkipTimer      bool `json:"skip_timer"`
	TaskbarVisible bool `json:"taskbar_visible"`

	// AutoOrientation follows the orientation the page reports for each video.
	AutoOrientation bool `json:"auto_orientation"`
}

// RemoteConfig is the local volume dock.
type RemoteConfig struct {
	Enable bool   `json:"enable"`
	Addr   string `json:"addr"`
}

type ControllerConfig struct {
	IPCAddr          string          `json:"ipc_addr"`
	RendererCommand  []string        `json:"renderer_command"`
	FrameName        string          `json:"frame_name"`
	RetryIntervalMs  int             `json:"retry_interval_ms"`
	TerminateGraceMs int             `json:"terminate_grace_ms"`
	Overlay          OverlaySettings `json:"overlay"`
	Remote           RemoteConfig    `json:"remote"`
}

// DefaultControllerPath is where the controller looks when no path is given.
var DefaultControllerPath = filepath.Join("config", "overlay.json")

func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		IPCAddr:          "127.0.0.1:19847",
		FrameName:        "BCU_OverlayFrame",
		RetryIntervalMs:  500,
		TerminateGraceMs: 2000,
		Overlay: OverlaySettings{
			Alignment:       "center",
			DebugPort:       9223,
			Volume:          50,
			PortraitWidth:   proto.DefaultPortraitWidth,
			PortraitHeight:  proto.DefaultPortraitHeight,
			IncludeText:     true,
			DonationText:    true,
			SkipTimer:       true,
			TaskbarVisible:  true,
			AutoOrientation: true,
		},
		Remote: RemoteConfig{Addr: "127.0.0.1:5000"},
	}
}

// LoadControllerConfig reads JSON (comments and trailing commas allowed) from path (default config/overlay.json) and
// applies env overrides. A missing file yields the defaults; a malformed one
// is reported together with the defaults.
func LoadControllerConfig(path string) (ControllerConfig, error) {
	if path == "" {
		path = DefaultControllerPath
	}
	cfg := DefaultControllerConfig()
	var perr error
	if b, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(jsonc.ToJSON(b), &cfg); err != nil {
			perr = fmt.Errorf("parse %s: %w", path, err)
			cfg = DefaultControllerConfig()
		}
	}

	if v := os.Getenv("BCU_IPC_ADDR"); v != "" {
		cfg.IPCAddr = v
	}
	if v := os.Getenv("BCU_RENDERER_CMD"); v != "" {
		cfg.RendererCommand = strings.Fields(v)
	}
	if v := os.Getenv("BCU_FRAME_NAME"); v != "" {
		cfg.FrameName = v
	}
	if v := os.Getenv("BCU_OVERLAY_URL"); v != "" {
		cfg.Overlay.URL = v
	}
	if v := os.Getenv("BCU_OVERLAY_UI"); v != "" {
		cfg.Overlay.UI = parseBool(v)
	}
	if v := os.Getenv("BCU_OVERLAY_ALIGNMENT"); v != "" {
		cfg.Overlay.Alignment = v
	}
	if v := os.Getenv("BCU_DISABLE_GPU"); v != "" {
		cfg.Overlay.DisableGPU = parseBool(v)
	}
	if v := os.Getenv("BCU_VOLUME"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Overlay.Volume = n
		}
	}
	if v := os.Getenv("BCU_REMOTE_ENABLE"); v != "" {
		cfg.Remote.Enable = parseBool(v)
	}
	if v := os.Getenv("BCU_REMOTE_ADDR"); v != "" {
		cfg.Remote.Addr = v
	}

	cfg.normalize()
	return cfg, perr
}

func (c *ControllerConfig) normalize() {
	d := DefaultControllerConfig()
	c.IPCAddr = strings.TrimSpace(c.IPCAddr)
	if c.IPCAddr == "" {
		c.IPCAddr = d.IPCAddr
	}
	c.FrameName = strings.TrimSpace(c.FrameName)
	if c.FrameName == "" {
		c.FrameName = d.FrameName
	}
	c.RendererCommand = trimAll(c.RendererCommand)
	if c.RetryIntervalMs <= 0 {
		c.RetryIntervalMs = d.RetryIntervalMs
	}
	if c.TerminateGraceMs <= 0 {
		c.TerminateGraceMs = d.TerminateGraceMs
	}

	o := &c.Overlay
	o.URL = strings.TrimSpace(o.URL)
	o.Alignment = strings.ToLower(strings.TrimSpace(o.Alignment))
	if o.Alignment == "" {
		o.Alignment = d.Overlay.Alignment
	}
	if o.DebugPort <= 0 {
		o.DebugPort = d.Overlay.DebugPort
	}
	o.Volume = max(0, min(100, o.Volume))
	if o.PortraitWidth <= 0 {
		o.PortraitWidth = d.Overlay.PortraitWidth
	}
	if o.PortraitHeight <= 0 {
		o.PortraitHeight = proto.PortraitHeight(o.PortraitWidth)
	}
	c.Remote.Addr = strings.TrimSpace(c.Remote.Addr)
	if c.Remote.Addr == "" {
		c.Remote.Addr = d.Remote.Addr
	}
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "1" || v == "true" || v == "yes"
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

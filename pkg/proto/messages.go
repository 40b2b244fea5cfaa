package proto

import "encoding/json"

// Wire protocol (length-prefixed JSON over loopback TCP)

type Kind string

// Commands: controller -> renderer
const (
	CmdSetVolume              Kind = "set_volume"
	CmdSetOrientation         Kind = "set_orientation"
	CmdSetAlignment           Kind = "set_alignment"
	CmdSimulateClick          Kind = "simulate_click"
	CmdSimulateSkip           Kind = "simulate_skip"
	CmdSimulateKey            Kind = "simulate_key"
	CmdForceConnect           Kind = "force_connect"
	CmdForceSkip              Kind = "force_skip"
	CmdSeekToStart            Kind = "seek_to_start"
	CmdTogglePlayPause        Kind = "toggle_play_pause"
	CmdRefreshPage            Kind = "refresh_page"
	CmdMoveWindow             Kind = "move_window"
	CmdSetTaskbarVisible      Kind = "set_taskbar_visible"
	CmdGetPosition            Kind = "get_position"
	CmdClose                  Kind = "close"
	CmdPing                   Kind = "ping"
	CmdSetPortraitSize        Kind = "set_portrait_size"
	CmdSetDonationTextVisible Kind = "set_donation_text_visible"
	CmdSetSkipTimerEnabled    Kind = "set_skip_timer_enabled"
	CmdSetIncludeText         Kind = "set_include_text"
)

// Events: renderer -> controller
const (
	EvtVideoStarted       Kind = "video_started"
	EvtResolutionDetected Kind = "resolution_detected"
	EvtOverlayClosed      Kind = "overlay_closed"
	EvtPositionChanged    Kind = "position_changed"
	EvtReady              Kind = "ready"
	EvtPong               Kind = "pong"
)

// Message is the only unit sent on the control socket.
// Data is nil for kinds without payload; nil and "{}" are different messages.
type Message struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// hasData reports whether the message carries a payload. A JSON null counts as absent.
func (m Message) hasData() bool {
	return len(m.Data) > 0 && string(m.Data) != "null"
}

var commandKinds = map[Kind]struct{}{
	CmdSetVolume: {}, CmdSetOrientation: {}, CmdSetAlignment: {}, CmdSimulateClick: {},
	CmdSimulateSkip: {}, CmdSimulateKey: {}, CmdForceConnect: {}, CmdForceSkip: {},
	CmdSeekToStart: {}, CmdTogglePlayPause: {}, CmdRefreshPage: {}, CmdMoveWindow: {},
	CmdSetTaskbarVisible: {}, CmdGetPosition: {}, CmdClose: {}, CmdPing: {},
	CmdSetPortraitSize: {}, CmdSetDonationTextVisible: {}, CmdSetSkipTimerEnabled: {},
	CmdSetIncludeText: {},
}

var eventKinds = map[Kind]struct{}{
	EvtVideoStarted: {}, EvtResolutionDetected: {}, EvtOverlayClosed: {},
	EvtPositionChanged: {}, EvtReady: {}, EvtPong: {},
}

// IsCommand reports whether k is a known command tag.
func (k Kind) IsCommand() bool {
	_, ok := commandKinds[k]
	return ok
}

// IsEvent reports whether k is a known event tag.
func (k Kind) IsEvent() bool {
	_, ok := eventKinds[k]
	return ok
}

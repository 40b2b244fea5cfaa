package proto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRoundTrip(t *testing.T) {
	cmds := []Command{
		SetVolume{Volume: 70},
		SetOrientation{IsPortrait: true},
		SetAlignment{Alignment: "top-left"},
		SimulateClick{X: 5, Y: 9},
		SimulateSkip{},
		SimulateKey{Key: "space"},
		ForceConnect{},
		ForceSkip{},
		SeekToStart{},
		TogglePlayPause{},
		RefreshPage{URL: "https://example.com", IsUI: true},
		MoveWindow{X: -100, Y: 40},
		SetTaskbarVisible{Visible: false},
		GetPosition{},
		Close{},
		Ping{},
		SetPortraitSize{Width: 600, Height: 900},
		SetDonationTextVisible{Visible: false},
		SetSkipTimerEnabled{Enabled: false},
		SetIncludeText{IncludeText: false},
	}
	for _, c := range cmds {
		t.Run(string(c.Kind()), func(t *testing.T) {
			assert.True(t, c.Kind().IsCommand())
			m, err := EncodeCommand(c)
			require.NoError(t, err)
			body, err := Encode(m)
			require.NoError(t, err)
			back, err := Decode(body)
			require.NoError(t, err)
			got, err := DecodeCommand(back)
			require.NoError(t, err)
			assert.Equal(t, c, got)
		})
	}
}

func TestPayloadlessCommandsHaveNoData(t *testing.T) {
	for _, c := range []Command{SimulateSkip{}, Ping{}, Close{}, GetPosition{}} {
		m, err := EncodeCommand(c)
		require.NoError(t, err)
		assert.Nil(t, m.Data, c.Kind())
	}
}

func TestSetPortraitSizeDefaultHeight(t *testing.T) {
	withDefault, err := EncodeCommand(SetPortraitSize{Width: 576})
	require.NoError(t, err)
	explicit, err := EncodeCommand(SetPortraitSize{Width: 576, Height: 1024})
	require.NoError(t, err)

	a, err := Encode(withDefault)
	require.NoError(t, err)
	b, err := Encode(explicit)
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))

	// A peer that omits the height gets the same default on decode.
	got, err := DecodeCommand(Message{Kind: CmdSetPortraitSize, Data: json.RawMessage(`{"width":576}`)})
	require.NoError(t, err)
	assert.Equal(t, SetPortraitSize{Width: 576, Height: 1024}, got)
}

func TestPortraitHeightRounds(t *testing.T) {
	assert.Equal(t, 1024, PortraitHeight(576))
	assert.Equal(t, 889, PortraitHeight(500)) // 888.88...
	assert.Equal(t, 0, PortraitHeight(0))
}

func TestSetVolumeClamped(t *testing.T) {
	m, err := EncodeCommand(SetVolume{Volume: 250})
	require.NoError(t, err)
	assert.JSONEq(t, `{"volume":100}`, string(m.Data))

	c, err := DecodeCommand(Message{Kind: CmdSetVolume, Data: json.RawMessage(`{"volume":-3}`)})
	require.NoError(t, err)
	assert.Equal(t, SetVolume{Volume: 0}, c)
}

func TestDecodeCommandDefaults(t *testing.T) {
	cases := map[Kind]Command{
		CmdSetVolume:              SetVolume{Volume: 50},
		CmdSetAlignment:           SetAlignment{Alignment: "center"},
		CmdSetTaskbarVisible:      SetTaskbarVisible{Visible: true},
		CmdSetPortraitSize:        SetPortraitSize{Width: 576, Height: 1024},
		CmdSetDonationTextVisible: SetDonationTextVisible{Visible: true},
		CmdSetSkipTimerEnabled:    SetSkipTimerEnabled{Enabled: true},
		CmdSetIncludeText:         SetIncludeText{IncludeText: true},
		CmdSimulateClick:          SimulateClick{},
	}
	for kind, want := range cases {
		got, err := DecodeCommand(Message{Kind: kind})
		require.NoError(t, err, kind)
		assert.Equal(t, want, got, kind)
	}
}

func TestDecodeCommandUnknownIsIgnorable(t *testing.T) {
	c, err := DecodeCommand(Message{Kind: "teleport", Data: json.RawMessage(`{"to":"mars"}`)})
	require.NoError(t, err)
	u, ok := c.(Unknown)
	require.True(t, ok)
	assert.Equal(t, Kind("teleport"), u.Kind())
	assert.False(t, u.Kind().IsCommand())
}

func TestDecodeCommandMalformedPayload(t *testing.T) {
	_, err := DecodeCommand(Message{Kind: CmdSetVolume, Data: json.RawMessage(`{"volume":"loud"}`)})
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestEventRoundTrip(t *testing.T) {
	evts := []Event{
		VideoStarted{URL: "https://example.com/v.mp4"},
		ResolutionDetected{Type: "portrait"},
		OverlayClosed{},
		PositionChanged{X: 1920, Y: 0},
		Ready{},
		Pong{},
	}
	for _, e := range evts {
		t.Run(string(e.Kind()), func(t *testing.T) {
			assert.True(t, e.Kind().IsEvent())
			m, err := EncodeEvent(e)
			require.NoError(t, err)
			got, err := DecodeEvent(m)
			require.NoError(t, err)
			assert.Equal(t, e, got)
		})
	}
}

func TestPongWireBytes(t *testing.T) {
	m, err := EncodeEvent(Pong{})
	require.NoError(t, err)
	body, err := Encode(m)
	require.NoError(t, err)
	assert.Equal(t, `{"kind":"pong"}`, string(body))
}

func TestDecodeEventDefaults(t *testing.T) {
	e, err := DecodeEvent(Message{Kind: EvtResolutionDetected})
	require.NoError(t, err)
	assert.Equal(t, ResolutionDetected{Type: "landscape"}, e)

	e, err = DecodeEvent(Message{Kind: "heartbeat"})
	require.NoError(t, err)
	assert.IsType(t, Unknown{}, e)
}

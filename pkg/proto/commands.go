package proto

import (
	"encoding/json"
	"fmt"
	"math"
)

// Command is a controller -> renderer instruction. The set is closed: only the
// types in this file (and Unknown) implement it.
type Command interface {
	Kind() Kind
	isCommand()
}

// Default portrait frame used by the overlay page.
const (
	DefaultPortraitWidth  = 576
	DefaultPortraitHeight = 1024
)

// PortraitHeight returns the height that keeps the default 576x1024 aspect for width.
func PortraitHeight(width int) int {
	return int(math.Round(float64(width) * DefaultPortraitHeight / DefaultPortraitWidth))
}

type SetVolume struct {
	Volume int `json:"volume"`
}

type SetOrientation struct {
	IsPortrait bool `json:"is_portrait"`
}

type SetAlignment struct {
	Alignment string `json:"alignment"`
}

type SimulateClick struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type SimulateSkip struct{}

type SimulateKey struct {
	Key string `json:"key"`
}

type ForceConnect struct{}

type ForceSkip struct{}

type SeekToStart struct{}

type TogglePlayPause struct{}

type RefreshPage struct {
	URL  string `json:"url"`
	IsUI bool   `json:"is_ui"`
}

type MoveWindow struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type SetTaskbarVisible struct {
	Visible bool `json:"visible"`
}

type GetPosition struct{}

type Close struct{}

type Ping struct{}

// SetPortraitSize resizes the portrait frame. A zero Height means "derive from Width".
type SetPortraitSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type SetDonationTextVisible struct {
	Visible bool `json:"visible"`
}

type SetSkipTimerEnabled struct {
	Enabled bool `json:"enabled"`
}

type SetIncludeText struct {
	IncludeText bool `json:"include_text"`
}

func (SetVolume) Kind() Kind              { return CmdSetVolume }
func (SetOrientation) Kind() Kind         { return CmdSetOrientation }
func (SetAlignment) Kind() Kind           { return CmdSetAlignment }
func (SimulateClick) Kind() Kind          { return CmdSimulateClick }
func (SimulateSkip) Kind() Kind           { return CmdSimulateSkip }
func (SimulateKey) Kind() Kind            { return CmdSimulateKey }
func (ForceConnect) Kind() Kind           { return CmdForceConnect }
func (ForceSkip) Kind() Kind              { return CmdForceSkip }
func (SeekToStart) Kind() Kind            { return CmdSeekToStart }
func (TogglePlayPause) Kind() Kind        { return CmdTogglePlayPause }
func (RefreshPage) Kind() Kind            { return CmdRefreshPage }
func (MoveWindow) Kind() Kind             { return CmdMoveWindow }
func (SetTaskbarVisible) Kind() Kind      { return CmdSetTaskbarVisible }
func (GetPosition) Kind() Kind            { return CmdGetPosition }
func (Close) Kind() Kind                  { return CmdClose }
func (Ping) Kind() Kind                   { return CmdPing }
func (SetPortraitSize) Kind() Kind        { return CmdSetPortraitSize }
func (SetDonationTextVisible) Kind() Kind { return CmdSetDonationTextVisible }
func (SetSkipTimerEnabled) Kind() Kind    { return CmdSetSkipTimerEnabled }
func (SetIncludeText) Kind() Kind         { return CmdSetIncludeText }

func (SetVolume) isCommand()              {}
func (SetOrientation) isCommand()         {}
func (SetAlignment) isCommand()           {}
func (SimulateClick) isCommand()          {}
func (SimulateSkip) isCommand()           {}
func (SimulateKey) isCommand()            {}
func (ForceConnect) isCommand()           {}
func (ForceSkip) isCommand()              {}
func (SeekToStart) isCommand()            {}
func (TogglePlayPause) isCommand()        {}
func (RefreshPage) isCommand()            {}
func (MoveWindow) isCommand()             {}
func (SetTaskbarVisible) isCommand()      {}
func (GetPosition) isCommand()            {}
func (Close) isCommand()                  {}
func (Ping) isCommand()                   {}
func (SetPortraitSize) isCommand()        {}
func (SetDonationTextVisible) isCommand() {}
func (SetSkipTimerEnabled) isCommand()    {}
func (SetIncludeText) isCommand()         {}

// Unknown carries a message whose kind this build does not know. Receivers ignore it.
type Unknown struct {
	Tag  Kind
	Data json.RawMessage
}

func (u Unknown) Kind() Kind { return u.Tag }
func (Unknown) isCommand()   {}
func (Unknown) isEvent()     {}

// shapeCommand applies the payload rules every command must satisfy on the wire.
func shapeCommand(c Command) Command {
	switch v := c.(type) {
	case SetVolume:
		v.Volume = clamp(v.Volume, 0, 100)
		return v
	case SetPortraitSize:
		if v.Height == 0 {
			v.Height = PortraitHeight(v.Width)
		}
		return v
	}
	return c
}

// EncodeCommand converts c into a Message. Payload-less commands carry no data.
func EncodeCommand(c Command) (Message, error) {
	if c == nil {
		return Message{}, fmt.Errorf("encode command: nil")
	}
	c = shapeCommand(c)
	switch v := c.(type) {
	case Unknown:
		return Message{Kind: v.Tag, Data: v.Data}, nil
	case SimulateSkip, ForceConnect, ForceSkip, SeekToStart, TogglePlayPause,
		GetPosition, Close, Ping:
		return Message{Kind: c.Kind()}, nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s: %w", c.Kind(), err)
	}
	return Message{Kind: c.Kind(), Data: data}, nil
}

// DecodeCommand converts m into its typed command. Fields missing from the payload
// take the renderer defaults. Unknown kinds decode to Unknown without error.
func DecodeCommand(m Message) (Command, error) {
	var c Command
	switch m.Kind {
	case CmdSetVolume:
		v := SetVolume{Volume: 50}
		if err := unmarshalData(m, &v); err != nil {
			return nil, err
		}
		c = v
	case CmdSetOrientation:
		v := SetOrientation{}
		if err := unmarshalData(m, &v); err != nil {
			return nil, err
		}
		c = v
	case CmdSetAlignment:
		v := SetAlignment{Alignment: "center"}
		if err := unmarshalData(m, &v); err != nil {
			return nil, err
		}
		c = v
	case CmdSimulateClick:
		v := SimulateClick{}
		if err := unmarshalData(m, &v); err != nil {
			return nil, err
		}
		c = v
	case CmdSimulateKey:
		v := SimulateKey{}
		if err := unmarshalData(m, &v); err != nil {
			return nil, err
		}
		c = v
	case CmdRefreshPage:
		v := RefreshPage{}
		if err := unmarshalData(m, &v); err != nil {
			return nil, err
		}
		c = v
	case CmdMoveWindow:
		v := MoveWindow{}
		if err := unmarshalData(m, &v); err != nil {
			return nil, err
		}
		c = v
	case CmdSetTaskbarVisible:
		v := SetTaskbarVisible{Visible: true}
		if err := unmarshalData(m, &v); err != nil {
			return nil, err
		}
		c = v
	case CmdSetPortraitSize:
		v := SetPortraitSize{Width: DefaultPortraitWidth}
		if err := unmarshalData(m, &v); err != nil {
			return nil, err
		}
		c = v
	case CmdSetDonationTextVisible:
		v := SetDonationTextVisible{Visible: true}
		if err := unmarshalData(m, &v); err != nil {
			return nil, err
		}
		c = v
	case CmdSetSkipTimerEnabled:
		v := SetSkipTimerEnabled{Enabled: true}
		if err := unmarshalData(m, &v); err != nil {
			return nil, err
		}
		c = v
	case CmdSetIncludeText:
		v := SetIncludeText{IncludeText: true}
		if err := unmarshalData(m, &v); err != nil {
			return nil, err
		}
		c = v
	case CmdSimulateSkip:
		c = SimulateSkip{}
	case CmdForceConnect:
		c = ForceConnect{}
	case CmdForceSkip:
		c = ForceSkip{}
	case CmdSeekToStart:
		c = SeekToStart{}
	case CmdTogglePlayPause:
		c = TogglePlayPause{}
	case CmdGetPosition:
		c = GetPosition{}
	case CmdClose:
		c = Close{}
	case CmdPing:
		c = Ping{}
	default:
		return Unknown{Tag: m.Kind, Data: m.Data}, nil
	}
	return shapeCommand(c), nil
}

func unmarshalData(m Message, v any) error {
	if !m.hasData() {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedPayload, m.Kind, err)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

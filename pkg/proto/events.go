package proto

import (
	"encoding/json"
	"fmt"
)

// Event is a renderer -> controller notification. Closed set, see Command.
type Event interface {
	Kind() Kind
	isEvent()
}

type VideoStarted struct {
	URL string `json:"url"`
}

// ResolutionDetected reports the detected video layout ("portrait" or "landscape").
type ResolutionDetected struct {
	Type string `json:"type"`
}

type OverlayClosed struct{}

type PositionChanged struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Ready struct{}

type Pong struct{}

func (VideoStarted) Kind() Kind       { return EvtVideoStarted }
func (ResolutionDetected) Kind() Kind { return EvtResolutionDetected }
func (OverlayClosed) Kind() Kind      { return EvtOverlayClosed }
func (PositionChanged) Kind() Kind    { return EvtPositionChanged }
func (Ready) Kind() Kind              { return EvtReady }
func (Pong) Kind() Kind               { return EvtPong }

func (VideoStarted) isEvent()       {}
func (ResolutionDetected) isEvent() {}
func (OverlayClosed) isEvent()      {}
func (PositionChanged) isEvent()    {}
func (Ready) isEvent()              {}
func (Pong) isEvent()               {}

// EncodeEvent converts e into a Message.
func EncodeEvent(e Event) (Message, error) {
	if e == nil {
		return Message{}, fmt.Errorf("encode event: nil")
	}
	switch v := e.(type) {
	case Unknown:
		return Message{Kind: v.Tag, Data: v.Data}, nil
	case OverlayClosed, Ready, Pong:
		return Message{Kind: e.Kind()}, nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s: %w", e.Kind(), err)
	}
	return Message{Kind: e.Kind(), Data: data}, nil
}

// DecodeEvent converts m into its typed event. Unknown kinds decode to Unknown.
func DecodeEvent(m Message) (Event, error) {
	switch m.Kind {
	case EvtVideoStarted:
		v := VideoStarted{}
		if err := unmarshalData(m, &v); err != nil {
			return nil, err
		}
		return v, nil
	case EvtResolutionDetected:
		v := ResolutionDetected{Type: "landscape"}
		if err := unmarshalData(m, &v); err != nil {
			return nil, err
		}
		return v, nil
	case EvtPositionChanged:
		v := PositionChanged{}
		if err := unmarshalData(m, &v); err != nil {
			return nil, err
		}
		return v, nil
	case EvtOverlayClosed:
		return OverlayClosed{}, nil
	case EvtReady:
		return Ready{}, nil
	case EvtPong:
		return Pong{}, nil
	default:
		return Unknown{Tag: m.Kind, Data: m.Data}, nil
	}
}

package proto

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// headerLen is the size of the big-endian length prefix in front of every body.
const headerLen = 4

// ErrMalformedPayload is returned when a frame body is not a valid Message.
var ErrMalformedPayload = errors.New("malformed payload")

// Encode serializes m into a frame body (no length prefix).
func Encode(m Message) ([]byte, error) {
	if m.Kind == "" {
		return nil, fmt.Errorf("encode: empty kind")
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind, err)
	}
	return b, nil
}

// Decode parses a frame body.
func Decode(body []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if m.Kind == "" {
		return Message{}, fmt.Errorf("%w: missing kind", ErrMalformedPayload)
	}
	if !m.hasData() {
		m.Data = nil
	}
	return m, nil
}

// Frame returns the full wire frame for m: LENGTH(4, BE) || BODY.
func Frame(m Message) ([]byte, error) {
	body, err := Encode(m)
	if err != nil {
		return nil, err
	}
	out := make([]byte, headerLen+len(body))
	binary.BigEndian.PutUint32(out, uint32(len(body)))
	copy(out[headerLen:], body)
	return out, nil
}

// WriteMessage writes one framed message with a single Write call so concurrent
// writers serialized by the caller never interleave partial frames.
func WriteMessage(w io.Writer, m Message) error {
	frame, err := Frame(m)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// ReadMessage reads exactly one framed message from r, accumulating the prefix and
// the body across as many partial reads as the stream delivers.
//
// ok is false with a nil error when the peer closed the stream, including a close in
// the middle of a frame. A body that does not decode returns ErrMalformedPayload.
func ReadMessage(r io.Reader) (m Message, ok bool, err error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if isShortRead(err) {
			return Message{}, false, nil
		}
		return Message{}, false, err
	}
	n := int64(binary.BigEndian.Uint32(hdr[:]))

	// Grow with the data actually received instead of trusting the prefix up front.
	var body bytes.Buffer
	if _, err := io.CopyN(&body, r, n); err != nil {
		if isShortRead(err) {
			return Message{}, false, nil
		}
		return Message{}, false, err
	}
	m, err = Decode(body.Bytes())
	if err != nil {
		return Message{}, false, err
	}
	return m, true, nil
}

func isShortRead(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

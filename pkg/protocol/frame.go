package protocol

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/vango-dev/urlobserver/internal/errors"
)

// Limits.
const (
	// MaxFrameSize is the largest accepted frame, envelope included.
	MaxFrameSize = 64 << 10

	// HandshakeTimeout bounds the wait for the hello frame.
	HandshakeTimeout = 5 * time.Second
)

// FrameType identifies the type of frame.
type FrameType string

const (
	FrameHello      FrameType = "hello"      // Client → Server
	FrameClick      FrameType = "click"      // Client → Server
	FramePopState   FrameType = "popstate"   // Client → Server
	FrameHashChange FrameType = "hashchange" // Client → Server
	FramePush       FrameType = "push"       // Server → Client
	FrameReplace    FrameType = "replace"    // Server → Client
	FrameNative     FrameType = "native"     // Server → Client
	FrameEvent      FrameType = "event"      // Server → Client
	FrameError      FrameType = "error"      // Server → Client
)

// String returns the wire name of the frame type.
func (ft FrameType) String() string {
	return string(ft)
}

// FromClient reports whether clients may send frames of this type.
func (ft FrameType) FromClient() bool {
	switch ft {
	case FrameHello, FrameClick, FramePopState, FrameHashChange:
		return true
	}
	return false
}

// FromServer reports whether servers may send frames of this type.
func (ft FrameType) FromServer() bool {
	switch ft {
	case FramePush, FrameReplace, FrameNative, FrameEvent, FrameError:
		return true
	}
	return false
}

// Frame is a decoded envelope. Data stays raw until the receiver knows
// which payload to expect.
type Frame struct {
	Type FrameType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode wraps payload in an envelope of type ft.
func Encode(ft FrameType, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(Frame{Type: ft, Data: data})
	if err != nil {
		return nil, err
	}
	if len(out) > MaxFrameSize {
		return nil, errors.New("E301").WithDetail("%s frame is %d bytes", ft, len(out))
	}
	return out, nil
}

// Decode parses an envelope. It rejects oversize input (E301), malformed
// JSON and unknown frame types (E300).
func Decode(msg []byte) (Frame, error) {
	if len(msg) > MaxFrameSize {
		return Frame{}, errors.New("E301").WithDetail("%d bytes", len(msg))
	}
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return Frame{}, errors.New("E300").Wrap(err)
	}
	if !f.Type.FromClient() && !f.Type.FromServer() {
		return Frame{}, errors.New("E300").WithDetail("unknown frame type %q", f.Type)
	}
	return f, nil
}

// Into unmarshals the frame data into v. Unknown fields are rejected.
func (f Frame) Into(v any) error {
	if len(f.Data) == 0 {
		return errors.New("E300").WithDetail("%s frame has no data", f.Type)
	}
	dec := json.NewDecoder(bytes.NewReader(f.Data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("E300").WithDetail("%s frame", f.Type).Wrap(err)
	}
	return nil
}

// ErrorFrame builds the error payload for err. Errors without a code are
// reported as E300.
func ErrorFrame(err error, fatal bool) ErrorMessage {
	e := errors.FromError(err, "E300")
	return ErrorMessage{Code: e.Code, Message: e.Error(), Fatal: fatal}
}

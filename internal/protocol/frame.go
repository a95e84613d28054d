// Package protocol implements the length-prefixed binary envelope used on
// the ingress socket and the JSON payload schema it carries.
package protocol

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// FrameType is the one-byte tag at the start of every frame.
type FrameType byte

const (
	// FrameTypeInvalid is never valid on the wire; it is the zero value.
	// ReadFrame reports an unrecognized tag as *ErrInvalidFrameType
	// carrying the raw byte.
	FrameTypeInvalid FrameType = 0
	// FrameTypeJSON marks a frame body as UTF-8 JSON text.
	FrameTypeJSON FrameType = 1
)

// MaxFrameLength bounds the untrusted length prefix so a misbehaving or
// malicious producer cannot force an unbounded allocation.
const MaxFrameLength = 1 << 20 // 1 MiB

// ErrInvalidFrameType is returned when a frame's type tag is not recognized.
type ErrInvalidFrameType struct {
	Type byte
}

func (e *ErrInvalidFrameType) Error() string {
	return fmt.Sprintf("invalid frame type: %d", e.Type)
}

// ErrFrameTooLarge is returned when a frame's length prefix exceeds MaxFrameLength.
var ErrFrameTooLarge = errors.New("protocol: frame length exceeds maximum")

// Frame is the transport envelope: a one-byte type tag, a big-endian u32
// length, and exactly that many bytes of body.
type Frame struct {
	Type FrameType
	Body []byte
}

// ReadFrame reads one frame from r. It never reads past the declared
// length, and it zero-initializes the body buffer before filling it so a
// short read never exposes stale heap memory.
func ReadFrame(r io.Reader) (Frame, error) {
	var typByte [1]byte
	if _, err := io.ReadFull(r, typByte[:]); err != nil {
		return Frame{}, fmt.Errorf("protocol: read frame type: %w", err)
	}

	typ := FrameType(typByte[0])
	if typ != FrameTypeJSON {
		return Frame{}, &ErrInvalidFrameType{Type: typByte[0]}
	}

	var lenBytes [4]byte
	if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
		return Frame{}, fmt.Errorf("protocol: read frame length: %w", err)
	}
	length := binary.BigEndian.Uint32(lenBytes[:])
	if length > MaxFrameLength {
		return Frame{}, ErrFrameTooLarge
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, fmt.Errorf("protocol: read frame body: %w", err)
	}

	return Frame{Type: typ, Body: body}, nil
}

// WriteFrame writes a frame to w: tag, big-endian length, body. If w is a
// *bufio.Writer, it is flushed before returning so the caller observes the
// write immediately; other writers are not flushed.
func WriteFrame(w io.Writer, f Frame) error {
	if f.Type != FrameTypeJSON {
		return &ErrInvalidFrameType{Type: byte(f.Type)}
	}

	header := make([]byte, 5)
	header[0] = byte(f.Type)
	binary.BigEndian.PutUint32(header[1:], uint32(len(f.Body)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("protocol: write frame header: %w", err)
	}
	if _, err := w.Write(f.Body); err != nil {
		return fmt.Errorf("protocol: write frame body: %w", err)
	}

	if bw, ok := w.(*bufio.Writer); ok {
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("protocol: flush frame: %w", err)
		}
	}
	return nil
}

// FrameFromJSON marshals v and wraps it in a Json frame.
func FrameFromJSON(v any) (Frame, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Frame{}, fmt.Errorf("protocol: marshal frame: %w", err)
	}
	return Frame{Type: FrameTypeJSON, Body: data}, nil
}

// DecodeFrame parses a frame's body as JSON into T. It fails with
// ErrInvalidFrameType if f is not a Json frame.
func DecodeFrame[T any](f Frame) (T, error) {
	var out T
	if f.Type != FrameTypeJSON {
		return out, &ErrInvalidFrameType{Type: byte(f.Type)}
	}
	if err := json.Unmarshal(f.Body, &out); err != nil {
		return out, fmt.Errorf("protocol: decode frame json: %w", err)
	}
	return out, nil
}

package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	f, err := FrameFromJSON(map[string]any{"ready": true})
	if err != nil {
		t.Fatalf("FrameFromJSON: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteFrame(&buf, f); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Type != FrameTypeJSON {
		t.Fatalf("Type = %v, want FrameTypeJSON", got.Type)
	}
	if !bytes.Equal(got.Body, f.Body) {
		t.Fatalf("Body = %q, want %q", got.Body, f.Body)
	}
}

func TestReadFrameUnknownType(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x02, 0x00, 0x00, 0x00, 0x00})
	_, err := ReadFrame(buf)
	var typErr *ErrInvalidFrameType
	if !errors.As(err, &typErr) {
		t.Fatalf("err = %v, want *ErrInvalidFrameType", err)
	}
	if typErr.Type != 0x02 {
		t.Fatalf("Type = %d, want 2", typErr.Type)
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x01, 0xFF, 0xFF, 0xFF, 0xFF})
	_, err := ReadFrame(buf)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("err = %v, want ErrFrameTooLarge", err)
	}
}

func TestReadFrameShortBody(t *testing.T) {
	// Header declares 10 bytes but only 3 are present.
	buf := bytes.NewBuffer([]byte{0x01, 0x00, 0x00, 0x00, 0x0A, 'a', 'b', 'c'})
	_, err := ReadFrame(buf)
	if err == nil {
		t.Fatal("expected error on truncated body")
	}
}

func TestWriteFrameRejectsInvalidType(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, Frame{Type: FrameTypeInvalid, Body: []byte("x")})
	var typErr *ErrInvalidFrameType
	if !errors.As(err, &typErr) {
		t.Fatalf("err = %v, want *ErrInvalidFrameType", err)
	}
}

func TestDecodeFrame(t *testing.T) {
	f, err := FrameFromJSON(FilterAck{Kind: FilterAckKind, Success: true})
	if err != nil {
		t.Fatalf("FrameFromJSON: %v", err)
	}
	ack, err := DecodeFrame[FilterAck](f)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if ack.Kind != FilterAckKind || !ack.Success {
		t.Fatalf("ack = %+v", ack)
	}
}

func TestDecodeFrameWrongType(t *testing.T) {
	f := Frame{Type: FrameTypeInvalid, Body: []byte("{}")}
	_, err := DecodeFrame[FilterAck](f)
	var typErr *ErrInvalidFrameType
	if !errors.As(err, &typErr) {
		t.Fatalf("err = %v, want *ErrInvalidFrameType", err)
	}
}

package ingest

import (
	"net"
	"testing"

	"github.com/oriys/metricsrelay/internal/protocol"
)

func dialUnix(path string) (net.Conn, error) {
	return net.Dial("unix", path)
}

func sendInit(t *testing.T, conn net.Conn, source string) {
	t.Helper()
	frame, err := protocol.InitFrame(source)
	if err != nil {
		t.Fatalf("InitFrame: %v", err)
	}
	if err := protocol.WriteFrame(conn, frame); err != nil {
		t.Fatalf("WriteFrame init: %v", err)
	}
}

func expectReady(t *testing.T, conn net.Conn) {
	t.Helper()
	frame, err := protocol.ReadFrame(conn)
	if err != nil {
		t.Fatalf("ReadFrame ready: %v", err)
	}
	ready, err := protocol.DecodeFrame[struct {
		Ready bool `json:"ready"`
	}](frame)
	if err != nil {
		t.Fatalf("DecodeFrame ready: %v", err)
	}
	if !ready.Ready {
		t.Fatal("ready.Ready = false")
	}
}

func sendBatch(t *testing.T, conn net.Conn, messages []protocol.ClientMessage) {
	t.Helper()
	frame, err := protocol.FrameFromJSON(messages)
	if err != nil {
		t.Fatalf("FrameFromJSON: %v", err)
	}
	if err := protocol.WriteFrame(conn, frame); err != nil {
		t.Fatalf("WriteFrame batch: %v", err)
	}
}

func expectSuccess(t *testing.T, conn net.Conn, wantSeqNumber uint64) {
	t.Helper()
	frame, err := protocol.ReadFrame(conn)
	if err != nil {
		t.Fatalf("ReadFrame success: %v", err)
	}
	ack, err := protocol.DecodeFrame[map[string]any](frame)
	if err != nil {
		t.Fatalf("DecodeFrame success: %v", err)
	}
	if ack["success"] != true {
		t.Fatalf("ack = %v, want success=true", ack)
	}
	if got := uint64(ack["seq_number"].(float64)); got != wantSeqNumber {
		t.Fatalf("ack[seq_number] = %v, want %d", ack["seq_number"], wantSeqNumber)
	}
}

package ingest

import (
	"net"
	"sync"

	"github.com/oriys/metricsrelay/internal/protocol"
)

// connWriter serializes frame writes to a connection. The per-connection
// read loop and the per-connection filter-forwarding goroutine both hold
// a reference to the same connWriter; the mutex is only ever held around
// a write, never across a blocking read.
type connWriter struct {
	mu   sync.Mutex
	conn net.Conn
}

func newConnWriter(conn net.Conn) *connWriter {
	return &connWriter{conn: conn}
}

func (w *connWriter) writeFrame(f protocol.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return protocol.WriteFrame(w.conn, f)
}

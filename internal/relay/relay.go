// Package relay maintains the daemon's single outbound TCP connection:
// it reconnects with exponential backoff, announces readiness to the
// queue manager once connected, and optionally reads filter updates
// pushed back from the far end.
package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/oriys/metricsrelay/internal/broker"
	"github.com/oriys/metricsrelay/internal/logging"
	"github.com/oriys/metricsrelay/internal/metrics"
	"github.com/oriys/metricsrelay/internal/observability"
	"github.com/oriys/metricsrelay/internal/queue"
)

// Config parameterizes a Relay.
type Config struct {
	// Addr is the host:port the relay dials.
	Addr string
	// ListenForFilter enables parsing filter updates read back from the
	// relay connection. When false, inbound lines are still read (to
	// detect a dead connection) but discarded.
	ListenForFilter bool
}

// maxBackoff is the ceiling the reconnect delay saturates at, in seconds.
const maxBackoff = 10

// Relay owns the outbound TCP connection to the collection endpoint.
type Relay struct {
	cfg     Config
	broker  *broker.Broker
	filter  *FilterCell
	metrics *metrics.Metrics
}

// New constructs a Relay. filter may be nil if filter forwarding is unused.
func New(cfg Config, b *broker.Broker, filter *FilterCell, m *metrics.Metrics) *Relay {
	return &Relay{cfg: cfg, broker: b, filter: filter, metrics: m}
}

// Run dials the relay endpoint, reconnecting with exponential backoff
// (1,2,4,8,10,10,... seconds) whenever the connection is lost, until ctx
// is canceled.
func (r *Relay) Run(ctx context.Context) {
	for ctx.Err() == nil {
		conn, err := r.connectWithBackoff(ctx)
		if err != nil {
			return // ctx canceled while waiting to dial
		}

		r.metrics.RelayReconnects.Inc()
		r.metrics.RelayConnected.Set(1)
		logging.Op().Info("relay connected", "addr", r.cfg.Addr)

		r.serve(ctx, conn)

		r.metrics.RelayConnected.Set(0)
		conn.Close()
		logging.Op().Warn("relay connection lost, reconnecting", "addr", r.cfg.Addr)
	}
}

// connectWithBackoff dials r.cfg.Addr, retrying with exponential backoff
// until it succeeds or ctx is canceled.
func (r *Relay) connectWithBackoff(ctx context.Context) (net.Conn, error) {
	delay := 1
	for {
		conn, err := net.Dial("tcp", r.cfg.Addr)
		if err == nil {
			return conn, nil
		}
		logging.Op().Warn("relay dial failed", "addr", r.cfg.Addr, "error", err, "retry_seconds", delay)

		select {
		case <-time.After(time.Duration(delay) * time.Second):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		delay *= 2
		if delay > maxBackoff {
			delay = maxBackoff
		}
	}
}

// serve registers conn as the active relay sender and blocks until the
// connection is lost or ctx is canceled.
func (r *Relay) serve(ctx context.Context, conn net.Conn) {
	ctx, span := observability.StartSpan(ctx, "relay.connection",
		observability.AttrRelayAddr.String(r.cfg.Addr))
	defer span.End()

	sender := &connSender{conn: conn, w: bufio.NewWriter(conn), metrics: r.metrics}

	if err := r.broker.SendMessage(queue.Name, broker.Message{Kind: broker.KindRelayReady, Payload: queue.Sender(sender)}); err != nil {
		logging.Op().Warn("failed to announce relay readiness", "error", err)
		observability.SetSpanError(span, err)
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.readInbound(conn)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		conn.Close()
		<-done
	}
}

// readInbound consumes newline- or CR-terminated JSON lines written back
// by the relay endpoint. When ListenForFilter is enabled, well-formed
// FilterFrame lines update the shared filter cell and are broadcast as
// NewFilter messages to every broker mailbox; malformed lines are
// logged and skipped without closing the connection. Reading continues
// regardless of ListenForFilter so a dropped connection is always
// detected promptly.
func (r *Relay) readInbound(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Split(scanLines)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !r.cfg.ListenForFilter || r.filter == nil {
			continue
		}

		var f FilterUpdate
		if err := json.Unmarshal(line, &f); err != nil {
			logging.Op().Warn("discarding malformed filter update", "error", err)
			continue
		}
		r.filter.Set(f.FilterFrame)
		r.broker.BroadcastMessage(broker.Message{Kind: broker.KindNewFilter, Payload: f.FilterFrame})
	}
}

// scanLines is a bufio.SplitFunc that terminates tokens at '\n' or '\r',
// matching the relay endpoint's line-oriented filter protocol.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// connSender writes JSON-encoded values to the relay connection,
// delimited by "\n " to match the wire format the collection endpoint
// expects. Writes are serialized by mu so concurrent senders (buffered
// drain plus live passthrough) never interleave.
type connSender struct {
	mu      sync.Mutex
	conn    net.Conn
	w       *bufio.Writer
	metrics *metrics.Metrics
}

// Send implements queue.Sender.
func (s *connSender) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("relay: marshal message: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.w.Write(data)
	if err != nil {
		return fmt.Errorf("relay: write message: %w", err)
	}
	if _, err := s.w.WriteString("\n "); err != nil {
		return fmt.Errorf("relay: write delimiter: %w", err)
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("relay: flush: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RelayBytesSent.Add(float64(n + 2))
	}
	return nil
}

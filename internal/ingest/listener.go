// Package ingest implements the per-connection state machine that
// accepts sources on the configured transport, validates and forwards
// their telemetry, and relays filter updates back to them.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/oriys/metricsrelay/internal/broker"
	"github.com/oriys/metricsrelay/internal/logging"
	"github.com/oriys/metricsrelay/internal/metrics"
	"github.com/oriys/metricsrelay/internal/observability"
	"github.com/oriys/metricsrelay/internal/protocol"
	"github.com/oriys/metricsrelay/internal/queue"
	"github.com/oriys/metricsrelay/internal/relay"
	"github.com/oriys/metricsrelay/internal/transport"
)

// connState names where a connection sits in its Handshake -> Ready ->
// Closed lifecycle, used only for logging.
type connState string

const (
	stateHandshake connState = "handshake"
	stateReady     connState = "ready"
	stateClosed    connState = "closed"
)

// Listener accepts source connections and drives each through the
// handshake/validate/publish lifecycle.
type Listener struct {
	binder  transport.Binder
	broker  *broker.Broker
	filter  *relay.FilterCell
	metrics *metrics.Metrics

	sources  *sourceRegistry
	connSeq  atomic.Int64
}

// New constructs a Listener. Every accepted connection registers a
// filter-forwarding actor; the listener does not read filter, so a nil
// filter does not disable forwarding.
func New(binder transport.Binder, b *broker.Broker, filter *relay.FilterCell, m *metrics.Metrics) *Listener {
	return &Listener{
		binder:  binder,
		broker:  b,
		filter:  filter,
		metrics: m,
		sources: newSourceRegistry(),
	}
}

// Sources returns the names of currently connected sources.
func (l *Listener) Sources() []string {
	return l.sources.list()
}

// Run binds the listener's transport and accepts connections until ctx
// is canceled.
func (l *Listener) Run(ctx context.Context) error {
	ln, err := l.binder.Bind()
	if err != nil {
		return fmt.Errorf("ingest: bind: %w", err)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	logging.Op().Info("ingest listener started")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.Op().Warn("accept failed", "error", err)
			continue
		}

		l.metrics.ConnectionsTotal.Inc()
		l.metrics.ConnectionsActive.Inc()
		go l.handleConn(ctx, conn)
	}
}

// handleConn drives one accepted connection through its full lifecycle.
func (l *Listener) handleConn(ctx context.Context, conn net.Conn) {
	connID := uuid.NewString()
	log := logging.Op().With("conn_id", connID)

	ctx, span := observability.StartServerSpan(ctx, "ingest.connection",
		observability.AttrConnID.String(connID))
	defer span.End()

	defer func() {
		conn.Close()
		l.metrics.ConnectionsActive.Dec()
		log.Info("connection closed", "state", stateClosed)
	}()

	source, err := l.handshake(conn)
	if err != nil {
		log.Warn("handshake failed", "error", err)
		l.metrics.HandshakeRejections.WithLabelValues("handshake_error").Inc()
		observability.SetSpanError(span, err)
		return
	}
	span.SetAttributes(observability.AttrSource.String(source))

	if !l.sources.claim(source) {
		log.Warn("duplicate source rejected", "source", source)
		l.metrics.HandshakeRejections.WithLabelValues("duplicate_source").Inc()
		observability.SetSpanError(span, errors.New("duplicate source"))
		return
	}
	defer l.sources.release(source)

	writer := newConnWriter(conn)
	ready, err := protocol.ReadyFrame()
	if err != nil {
		log.Warn("failed to build ready frame", "error", err)
		return
	}
	if err := writer.writeFrame(ready); err != nil {
		log.Warn("failed to send ready frame", "error", err)
		return
	}

	log = log.With("source", source)
	log.Info("source ready", "state", stateReady)

	actorName := fmt.Sprintf("client-%s-%d", source, l.connSeq.Add(1))
	filterCh := make(chan broker.Message, 8)
	if err := l.broker.AddActor(actorName, filterCh); err != nil {
		log.Warn("failed to register filter actor", "error", err)
		return
	}
	defer l.broker.RemoveActor(actorName)

	forwardDone := make(chan struct{})
	go func() {
		defer close(forwardDone)
		l.forwardFilters(log, writer, filterCh)
	}()
	defer func() {
		close(filterCh)
		<-forwardDone
	}()

	l.readLoop(ctx, log, conn, writer, source)
}

// handshake reads the initial frame a source must send and returns its
// declared name.
func (l *Listener) handshake(conn net.Conn) (string, error) {
	frame, err := protocol.ReadFrame(conn)
	if err != nil {
		return "", fmt.Errorf("read init frame: %w", err)
	}
	source, err := protocol.DecodeInitFrame(frame)
	if err != nil {
		return "", fmt.Errorf("decode init frame: %w", err)
	}
	if source == "" {
		return "", errors.New("init frame has empty source")
	}
	return source, nil
}

// forwardFilters writes a filter frame to the connection for every
// NewFilter message that arrives on ch (the relay broadcasts one each time
// it updates the shared filter). It never touches the read side of conn.
func (l *Listener) forwardFilters(log *slog.Logger, writer *connWriter, ch <-chan broker.Message) {
	for msg := range ch {
		if msg.Kind != broker.KindNewFilter {
			continue
		}
		filter, ok := msg.Payload.(protocol.FilterFrame)
		if !ok {
			continue
		}
		frame, err := protocol.FrameFromJSON(filter)
		if err != nil {
			log.Warn("failed to encode filter frame", "error", err)
			continue
		}
		if err := writer.writeFrame(frame); err != nil {
			log.Warn("failed to forward filter", "error", err)
			return
		}
	}
}

// readLoop is the connection's main loop: it reads frames, decodes them
// as either a FilterAck or a batch of ClientMessages, and publishes
// valid content to the queue.
func (l *Listener) readLoop(ctx context.Context, log *slog.Logger, conn net.Conn, writer *connWriter, source string) {
	var lastSeq uint64

	for {
		frame, err := protocol.ReadFrame(conn)
		if err != nil {
			if ctx.Err() == nil {
				log.Info("connection read ended", "error", err)
			}
			return
		}

		if ack, ok := tryDecodeFilterAck(frame); ok {
			if err := l.broker.SendMessage(queue.Name, broker.Message{Kind: broker.KindFilterAck, Payload: &ack}); err != nil {
				log.Warn("failed to publish filter ack", "error", err)
			}
			continue
		}

		messages, err := protocol.DecodeFrame[[]protocol.ClientMessage](frame)
		if err != nil {
			log.Warn("failed to decode message batch, closing connection", "error", err)
			return
		}

		for _, cm := range messages {
			_, frameSpan := observability.StartSpan(ctx, "ingest.frame",
				observability.AttrSource.String(source),
				observability.AttrSeqNumber.Int64(int64(cm.SeqNumber)))

			if cm.SeqNumber <= lastSeq && cm.SeqNumber != 1 {
				log.Warn("sequence number regression, closing connection",
					"seq", cm.SeqNumber, "last_seq", lastSeq)
				observability.SetSpanError(frameSpan, errors.New("sequence number regression"))
				frameSpan.End()
				return
			}
			lastSeq = cm.SeqNumber

			validated, verr := cm.Payload.Validate()
			if verr != nil {
				if reply, ferr := protocol.ErrorFrame(cm.SeqNumber, verr.Error()); ferr == nil {
					if err := writer.writeFrame(reply); err != nil {
						log.Warn("failed to send error frame", "error", err)
					}
				}
				l.metrics.MessagesRejected.WithLabelValues(verr.Error()).Inc()
				observability.SetSpanError(frameSpan, verr)
				frameSpan.End()
				continue
			}
			if err := l.broker.SendMessage(queue.Name, broker.Message{Kind: broker.KindNewClientMessage, Payload: &validated}); err != nil {
				log.Warn("failed to publish message", "error", err)
				observability.SetSpanError(frameSpan, err)
				frameSpan.End()
				continue
			}

			if reply, ferr := protocol.SuccessFrame(cm.SeqNumber); ferr == nil {
				if err := writer.writeFrame(reply); err != nil {
					log.Warn("failed to send success frame", "error", err)
				}
			}
			l.metrics.MessagesValidated.WithLabelValues(source).Inc()
			observability.SetSpanOK(frameSpan)
			frameSpan.End()
		}
	}
}

// tryDecodeFilterAck reports whether frame decodes as a well-formed
// FilterAck (discriminated by its "kind" field).
func tryDecodeFilterAck(frame protocol.Frame) (protocol.FilterAck, bool) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(frame.Body, &probe); err != nil || probe.Kind != protocol.FilterAckKind {
		return protocol.FilterAck{}, false
	}
	ack, err := protocol.DecodeFrame[protocol.FilterAck](frame)
	if err != nil {
		return protocol.FilterAck{}, false
	}
	return ack, true
}

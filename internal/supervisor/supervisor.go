// Package supervisor wires the daemon's components together and owns
// their startup and graceful shutdown sequencing.
package supervisor

import (
	"context"
	"fmt"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/oriys/metricsrelay/internal/adminhttp"
	"github.com/oriys/metricsrelay/internal/broker"
	"github.com/oriys/metricsrelay/internal/config"
	"github.com/oriys/metricsrelay/internal/ingest"
	"github.com/oriys/metricsrelay/internal/logging"
	"github.com/oriys/metricsrelay/internal/metrics"
	"github.com/oriys/metricsrelay/internal/queue"
	"github.com/oriys/metricsrelay/internal/relay"
	"github.com/oriys/metricsrelay/internal/transport"
)

// Supervisor owns the broker, queue, relay, listener, and admin surface
// for one daemon instance.
type Supervisor struct {
	cfg     *config.Config
	broker  *broker.Broker
	metrics *metrics.Metrics
	filter  *relay.FilterCell

	queueMgr *queue.Manager
	relayMgr *relay.Relay
	listener *ingest.Listener
	admin    *adminhttp.Server
}

// New builds a Supervisor from cfg. It wires every component but does
// not start any goroutines; call Run to start.
func New(cfg *config.Config) (*Supervisor, error) {
	b := broker.New()
	m := metrics.New(cfg.Observability.Metrics.Namespace)
	filter := relay.NewFilterCell()

	queueMgr, err := queue.New(b, cfg.Queue.BufferSize, m)
	if err != nil {
		return nil, fmt.Errorf("supervisor: build queue manager: %w", err)
	}

	relayMgr := relay.New(relay.Config{
		Addr:            cfg.Relay.Addr,
		ListenForFilter: cfg.Relay.ListenForFilter,
	}, b, filter, m)

	binder, err := transport.NewBinder(transport.Config{
		Kind:       cfg.Transport.Kind,
		UnixPath:   cfg.Transport.SocketPath,
		UnixMode:   cfg.Transport.SocketMode,
		VsockPort:  cfg.Transport.VsockPort,
	})
	if err != nil {
		return nil, fmt.Errorf("supervisor: build transport binder: %w", err)
	}
	listener := ingest.New(binder, b, filter, m)

	s := &Supervisor{
		cfg:      cfg,
		broker:   b,
		metrics:  m,
		filter:   filter,
		queueMgr: queueMgr,
		relayMgr: relayMgr,
		listener: listener,
	}

	if cfg.Admin.Enabled {
		s.admin = adminhttp.NewServer(cfg.Admin.Addr, m, s)
	}

	return s, nil
}

// Run starts every component and blocks until ctx is canceled, then
// shuts everything down in reverse order, waiting up to the config's
// shutdown grace period.
func (s *Supervisor) Run(ctx context.Context) error {
	if s.cfg.MqttHost != "" {
		logging.Op().Info("mqtt_host configured but unused by this daemon", "mqtt_host", s.cfg.MqttHost)
	}

	go s.queueMgr.Run(ctx)
	go s.relayMgr.Run(ctx)

	if s.admin != nil {
		if err := s.admin.Start(); err != nil {
			return fmt.Errorf("supervisor: start admin server: %w", err)
		}
	}

	listenerErr := make(chan error, 1)
	go func() { listenerErr <- s.listener.Run(ctx) }()

	select {
	case <-ctx.Done():
	case err := <-listenerErr:
		if err != nil {
			logging.Op().Error("listener exited unexpectedly", "error", err)
		}
	}

	s.broker.BroadcastMessage(broker.Message{Kind: broker.KindShutdown})

	grace := time.Duration(s.cfg.ShutdownGraceMS) * time.Millisecond
	if grace <= 0 {
		grace = time.Second
	}

	if s.admin != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if err := s.admin.Stop(stopCtx); err != nil {
			logging.Op().Warn("admin server shutdown error", "error", err)
		}
	}

	time.Sleep(grace)
	s.broker.Close()
	return nil
}

// Snapshot implements adminhttp.StateProvider.
func (s *Supervisor) Snapshot() adminhttp.StateSnapshot {
	return adminhttp.StateSnapshot{
		Sources:        s.listener.Sources(),
		QueueDepth:     int(gaugeValue(s.metrics.QueueDepth)),
		RelayConnected: gaugeValue(s.metrics.RelayConnected) == 1,
		Filter:         s.filter.Get(),
	}
}

// gaugeValue reads a prometheus.Gauge's current value without going
// through the registry's scrape path.
func gaugeValue(g interface{ Write(*dto.Metric) error }) float64 {
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

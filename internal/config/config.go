// Package config loads and validates the daemon's JSON configuration
// file, with environment variable overrides applied on top.
package config

import (
	"encoding/json"
	"os"
	"strconv"
)

// TransportConfig selects the socket the listener accepts source
// connections on.
type TransportConfig struct {
	Kind       string `json:"kind"` // "unix" (default) or "vsock"
	SocketPath string `json:"socket_path"`
	SocketMode uint32 `json:"socket_mode"` // default 0660
	VsockPort  uint32 `json:"vsock_port"`
}

// QueueConfig bounds the in-process buffer held while no relay is connected.
type QueueConfig struct {
	BufferSize int `json:"buffer_size"` // default 1024
}

// RelayConfig points at the outbound collection endpoint.
type RelayConfig struct {
	Addr            string `json:"relay_addr"`
	ListenForFilter bool   `json:"listen_for_filter"`
}

// DaemonConfig holds process-level settings.
type DaemonConfig struct {
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"` // text, json
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `json:"enabled"`
	Exporter    string  `json:"exporter"` // otlp-http, stdout
	Endpoint    string  `json:"endpoint"`
	ServiceName string  `json:"service_name"`
	SampleRate  float64 `json:"sample_rate"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Namespace string `json:"namespace"`
}

// AdminConfig holds the read-only HTTP admin surface settings.
type AdminConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// ObservabilityConfig groups the ambient logging/tracing/metrics settings.
type ObservabilityConfig struct {
	Tracing TracingConfig `json:"tracing"`
	Metrics MetricsConfig `json:"metrics"`
}

// Config is the daemon's full configuration, loaded from JSON and then
// overlaid with environment variable overrides.
type Config struct {
	// SocketPath/MqttHost/BufferSize/RelayPort are kept at top level,
	// mirroring the original collector's flat config schema; Transport,
	// Queue, and Relay below are the structured equivalents the rest of
	// the daemon actually reads from.
	SocketPath string `json:"socket_path"`
	MqttHost   string `json:"mqtt_host"`
	BufferSize int    `json:"buffer_size"`
	RelayPort  int    `json:"relay_port"`
	Verbose    bool   `json:"verbose"`

	Transport TransportConfig `json:"transport"`
	Queue     QueueConfig     `json:"queue"`
	Relay     RelayConfig     `json:"relay"`

	Daemon        DaemonConfig        `json:"daemon"`
	Observability ObservabilityConfig `json:"observability"`
	Admin         AdminConfig         `json:"admin"`

	// ShutdownGraceMS bounds how long the supervisor waits for
	// in-flight work to drain after a shutdown signal.
	ShutdownGraceMS int `json:"shutdown_grace_ms"`
}

// DefaultConfig returns the configuration used when a field is absent
// from the loaded file.
func DefaultConfig() *Config {
	return &Config{
		SocketPath: "/run/metricsrelay/ingest.sock",
		MqttHost:   "",
		BufferSize: 1024,
		RelayPort:  9000,
		Verbose:    false,

		Transport: TransportConfig{
			Kind:       "unix",
			SocketPath: "/run/metricsrelay/ingest.sock",
			SocketMode: 0o660,
			VsockPort:  9000,
		},
		Queue: QueueConfig{
			BufferSize: 1024,
		},
		Relay: RelayConfig{
			Addr:            "127.0.0.1:9000",
			ListenForFilter: false,
		},
		Daemon: DaemonConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Enabled:     false,
				Exporter:    "otlp-http",
				Endpoint:    "localhost:4318",
				ServiceName: "metricsrelay",
				SampleRate:  1.0,
			},
			Metrics: MetricsConfig{
				Namespace: "metricsrelay",
			},
		},
		Admin: AdminConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9100",
		},
		ShutdownGraceMS: 1000,
	}
}

// LoadFromFile loads configuration from a JSON file, applying it on top
// of DefaultConfig so any field the file omits keeps its default.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	// Clear the structured fields that have flat equivalents so reconcile
	// can tell whether the file set them.
	cfg.Transport.SocketPath = ""
	cfg.Queue.BufferSize = 0
	cfg.Relay.Addr = ""
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.reconcile()
	return cfg, nil
}

// reconcile propagates the original flat fields into the structured
// sections when the structured section was left at its zero value, so a
// config file written against the distilled schema (socket_path,
// relay_port, buffer_size) still drives the daemon correctly.
func (cfg *Config) reconcile() {
	if cfg.Transport.SocketPath == "" {
		cfg.Transport.SocketPath = cfg.SocketPath
	}
	if cfg.Queue.BufferSize == 0 {
		cfg.Queue.BufferSize = cfg.BufferSize
	}
	if cfg.Relay.Addr == "" && cfg.RelayPort != 0 {
		cfg.Relay.Addr = "127.0.0.1:" + strconv.Itoa(cfg.RelayPort)
	}
	if cfg.Verbose && cfg.Daemon.LogLevel == "info" {
		cfg.Daemon.LogLevel = "debug"
	}
}

// LoadFromEnv applies METRICSRELAY_* environment variable overrides to cfg.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("METRICSRELAY_SOCKET_PATH"); v != "" {
		cfg.Transport.SocketPath = v
		cfg.SocketPath = v
	}
	if v := os.Getenv("METRICSRELAY_MQTT_HOST"); v != "" {
		cfg.MqttHost = v
	}
	if v := os.Getenv("METRICSRELAY_BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queue.BufferSize = n
			cfg.BufferSize = n
		}
	}
	if v := os.Getenv("METRICSRELAY_RELAY_ADDR"); v != "" {
		cfg.Relay.Addr = v
	}
	if v := os.Getenv("METRICSRELAY_RELAY_LISTEN_FOR_FILTER"); v != "" {
		cfg.Relay.ListenForFilter = v == "true" || v == "1"
	}
	if v := os.Getenv("METRICSRELAY_TRANSPORT_KIND"); v != "" {
		cfg.Transport.Kind = v
	}
	if v := os.Getenv("METRICSRELAY_VSOCK_PORT"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Transport.VsockPort = uint32(n)
		}
	}
	if v := os.Getenv("METRICSRELAY_LOG_LEVEL"); v != "" {
		cfg.Daemon.LogLevel = v
	}
	if v := os.Getenv("METRICSRELAY_LOG_FORMAT"); v != "" {
		cfg.Daemon.LogFormat = v
	}
	if v := os.Getenv("METRICSRELAY_TRACING_ENABLED"); v != "" {
		cfg.Observability.Tracing.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("METRICSRELAY_TRACING_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Endpoint = v
	}
	if v := os.Getenv("METRICSRELAY_TRACING_EXPORTER"); v != "" {
		cfg.Observability.Tracing.Exporter = v
	}
	if v := os.Getenv("METRICSRELAY_METRICS_NAMESPACE"); v != "" {
		cfg.Observability.Metrics.Namespace = v
	}
	if v := os.Getenv("METRICSRELAY_ADMIN_ENABLED"); v != "" {
		cfg.Admin.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("METRICSRELAY_ADMIN_ADDR"); v != "" {
		cfg.Admin.Addr = v
	}
}

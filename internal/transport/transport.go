package transport

import "fmt"

// Config selects and parameterizes a Binder.
type Config struct {
	// Kind is "unix" (default) or "vsock".
	Kind string
	// UnixPath is the socket path used when Kind is "unix".
	UnixPath string
	// UnixMode is the exact permission mode applied to UnixPath.
	UnixMode uint32
	// VsockPort is the port bound when Kind is "vsock".
	VsockPort uint32
}

// NewBinder resolves cfg to a concrete Binder.
func NewBinder(cfg Config) (Binder, error) {
	switch cfg.Kind {
	case "", "unix":
		return UnixBinder{Path: cfg.UnixPath, Mode: cfg.UnixMode}, nil
	case "vsock":
		return VsockBinder{Port: cfg.VsockPort}, nil
	default:
		return nil, fmt.Errorf("transport: unknown binder kind %q", cfg.Kind)
	}
}

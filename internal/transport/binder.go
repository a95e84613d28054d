// Package transport abstracts the ingress socket the listener accepts
// connections on: a Unix domain socket by default, or an AF_VSOCK
// listener when the daemon runs as a guest-side collector.
package transport

import "net"

// Binder produces the net.Listener the ingest listener accepts on.
type Binder interface {
	Bind() (net.Listener, error)
}

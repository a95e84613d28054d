package transport

import (
	"fmt"
	"net"

	"github.com/mdlayher/vsock"
)

// VsockBinder binds an AF_VSOCK listener on Port, accepting connections
// from any context ID. It is used when the daemon runs inside a guest VM
// and sources connect to it over vsock instead of a shared filesystem
// socket.
type VsockBinder struct {
	Port uint32
}

// Bind implements Binder.
func (b VsockBinder) Bind() (net.Listener, error) {
	ln, err := vsock.Listen(b.Port, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: vsock listen on port %d: %w", b.Port, err)
	}
	return ln, nil
}

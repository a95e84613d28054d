package transport

import (
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// UnixBinder binds a Unix domain socket at Path with exact permission
// mode Mode (typically 0660), removing a stale socket file left behind
// by a previous, uncleanly terminated run.
type UnixBinder struct {
	Path string
	Mode uint32
}

// Bind implements Binder.
func (b UnixBinder) Bind() (net.Listener, error) {
	if b.Path == "" {
		return nil, errors.New("transport: unix socket path is empty")
	}

	if err := os.Remove(b.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("transport: remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", b.Path)
	if err != nil {
		return nil, fmt.Errorf("transport: listen on %s: %w", b.Path, err)
	}

	mode := b.Mode
	if mode == 0 {
		mode = 0o660
	}
	// unix.Chmod sets the exact mode regardless of the process umask,
	// matching the original collector's libc::chmod call.
	if err := unix.Chmod(b.Path, mode); err != nil {
		ln.Close()
		return nil, fmt.Errorf("transport: chmod %s: %w", b.Path, err)
	}

	return ln, nil
}

package transport

import (
	"os"
	"path/filepath"
	"testing"
)

func TestUnixBinderBindsAndSetsMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ingest.sock")

	b := UnixBinder{Path: path, Mode: 0o660}
	ln, err := b.Bind()
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer ln.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o660 {
		t.Fatalf("mode = %o, want 0660", info.Mode().Perm())
	}
}

func TestUnixBinderRemovesStaleSocket(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ingest.sock")

	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	b := UnixBinder{Path: path, Mode: 0o660}
	ln, err := b.Bind()
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer ln.Close()
}

func TestUnixBinderRejectsEmptyPath(t *testing.T) {
	b := UnixBinder{}
	if _, err := b.Bind(); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestNewBinderDefaultsToUnix(t *testing.T) {
	binder, err := NewBinder(Config{UnixPath: "/tmp/does-not-matter.sock"})
	if err != nil {
		t.Fatalf("NewBinder: %v", err)
	}
	if _, ok := binder.(UnixBinder); !ok {
		t.Fatalf("binder = %T, want UnixBinder", binder)
	}
}

func TestNewBinderVsock(t *testing.T) {
	binder, err := NewBinder(Config{Kind: "vsock", VsockPort: 9000})
	if err != nil {
		t.Fatalf("NewBinder: %v", err)
	}
	vb, ok := binder.(VsockBinder)
	if !ok {
		t.Fatalf("binder = %T, want VsockBinder", binder)
	}
	if vb.Port != 9000 {
		t.Fatalf("Port = %d, want 9000", vb.Port)
	}
}

func TestNewBinderRejectsUnknownKind(t *testing.T) {
	if _, err := NewBinder(Config{Kind: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

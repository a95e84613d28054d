package ingest

import "sync"

// sourceRegistry tracks which source names currently have a live
// connection, so a second connection claiming a source already in use
// is rejected rather than silently taking over.
type sourceRegistry struct {
	mu      sync.Mutex
	sources map[string]bool
}

func newSourceRegistry() *sourceRegistry {
	return &sourceRegistry{sources: make(map[string]bool)}
}

// claim registers name if it is not already in use, reporting whether
// the claim succeeded.
func (r *sourceRegistry) claim(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sources[name] {
		return false
	}
	r.sources[name] = true
	return true
}

// release frees name so a future connection may claim it again.
func (r *sourceRegistry) release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sources, name)
}

// list returns the currently claimed source names.
func (r *sourceRegistry) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	return names
}

package relay

import (
	"sync"

	"github.com/oriys/metricsrelay/internal/protocol"
)

// FilterCell holds the most recently received filter, shared between the
// relay (which may receive filter updates from the far end) and the
// listener (which forwards the current filter to each connected source).
type FilterCell struct {
	mu     sync.RWMutex
	filter protocol.FilterFrame
}

// NewFilterCell returns a cell initialized to the wide-open default filter.
func NewFilterCell() *FilterCell {
	return &FilterCell{filter: protocol.NewFilterFrame()}
}

// FilterUpdate is the line-oriented message the relay endpoint may send
// back to push a new filter.
type FilterUpdate struct {
	protocol.FilterFrame
}

// Get returns the current filter.
func (c *FilterCell) Get() protocol.FilterFrame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter
}

// Set replaces the current filter.
func (c *FilterCell) Set(f protocol.FilterFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = f
}

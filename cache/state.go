package cache

import (
	"sync"

	"github.com/gen1nya/WinMediaSessionProvider/model"
)

// StateCache holds the single last-known media state shared between the
// coalescer (writer) and the broadcast hub (reader, for new-joiner
// replay). One explicit instance is injected where needed; there is no
// package-level state.
type StateCache struct {
	mu    sync.RWMutex
	state *model.MediaState
}

// NewStateCache creates an empty cache.
func NewStateCache() *StateCache {
	return &StateCache{}
}

// Get returns a copy of the last known state, or nil if nothing has been
// broadcast yet.
func (c *StateCache) Get() *model.MediaState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == nil {
		return nil
	}
	s := *c.state
	return &s
}

// Set stores the latest broadcast state.
func (c *StateCache) Set(state model.MediaState) {
	c.mu.Lock()
	c.state = &state
	c.mu.Unlock()
}

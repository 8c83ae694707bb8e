package surface

import (
	"fmt"
	"slices"
	"sync"

	"github.com/GriffinCanCode/offscreen/internal/shared/types"
)

// Entry is a registered backend
type Entry struct {
	Platform types.PlatformID
	Kind     Kind
	Factory  Factory
}

// Catalog maps platforms to backend factories
type Catalog struct {
	mu      sync.RWMutex
	entries map[types.PlatformID]Entry
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[types.PlatformID]Entry)}
}

// Register adds a factory for a platform
func (c *Catalog) Register(platform types.PlatformID, kind Kind, factory Factory) error {
	if platform == "" || platform == types.PlatformUnknown {
		return fmt.Errorf("cannot register backend for platform %q", platform)
	}
	if factory == nil {
		return fmt.Errorf("nil factory for platform %s", platform)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[platform]; exists {
		return fmt.Errorf("backend already registered for platform %s", platform)
	}
	c.entries[platform] = Entry{Platform: platform, Kind: kind, Factory: factory}
	return nil
}

// Lookup returns the entry for a platform
func (c *Catalog) Lookup(platform types.PlatformID) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[platform]
	return e, ok
}

// Has reports whether a backend is registered for a platform
func (c *Catalog) Has(platform types.PlatformID) bool {
	_, ok := c.Lookup(platform)
	return ok
}

// Platforms lists the registered platforms in sorted order
func (c *Catalog) Platforms() []types.PlatformID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.PlatformID, 0, len(c.entries))
	for p := range c.entries {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

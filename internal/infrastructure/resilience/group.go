package resilience

import (
	"sort"
	"sync"
)

// Group lazily creates one breaker per key, so a failing origin trips only
// its own breaker.
type Group struct {
	prefix   string
	settings Settings

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewGroup creates a group whose breakers share settings
func NewGroup(prefix string, settings Settings) *Group {
	return &Group{
		prefix:   prefix,
		settings: settings,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for key, creating it on first use
func (g *Group) Get(key string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.breakers[key]
	if !ok {
		b = New(g.prefix+":"+key, g.settings)
		g.breakers[key] = b
	}
	return b
}

// States returns the current state of every breaker by key
func (g *Group) States() map[string]State {
	g.mu.Lock()
	keys := make([]string, 0, len(g.breakers))
	for k := range g.breakers {
		keys = append(keys, k)
	}
	g.mu.Unlock()

	sort.Strings(keys)
	out := make(map[string]State, len(keys))
	for _, k := range keys {
		out[k] = g.Get(k).State()
	}
	return out
}

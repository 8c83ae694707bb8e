package document

import (
	"context"
	"errors"
	"sync"

	"github.com/GriffinCanCode/offscreen/internal/providers/http/client"
	"github.com/GriffinCanCode/offscreen/internal/shared/types"
)

// DefaultCacheEntries bounds a ResponseCache
const DefaultCacheEntries = 256

// errNotCached is returned in cache-only mode when nothing is stored
var errNotCached = errors.New("resource not in cache")

// ResponseCache is the response cache shared by every surface of a factory.
// Only successful responses are stored; the oldest entry is evicted first.
type ResponseCache struct {
	mu      sync.Mutex
	max     int
	entries map[string]*client.Response
	order   []string
}

// NewResponseCache creates a cache holding at most maxEntries responses
func NewResponseCache(maxEntries int) *ResponseCache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	return &ResponseCache{max: maxEntries, entries: make(map[string]*client.Response)}
}

// Fetch resolves key according to mode, calling network on a miss or when
// the mode requires it.
func (c *ResponseCache) Fetch(ctx context.Context, mode types.CacheMode, key string, network func(context.Context) (*client.Response, error)) (*client.Response, error) {
	switch mode {
	case types.CacheOnly:
		if resp, ok := c.get(key); ok {
			return resp, nil
		}
		return nil, errNotCached
	case types.CacheElseNetwork:
		if resp, ok := c.get(key); ok {
			return resp, nil
		}
	}

	resp, err := network(ctx)
	if err != nil {
		return nil, err
	}
	if mode != types.CacheNoCache {
		c.put(key, resp)
	}
	return resp, nil
}

// Len returns the number of stored responses
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every stored response
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*client.Response)
	c.order = nil
}

func (c *ResponseCache) get(key string) (*client.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, ok := c.entries[key]
	return resp, ok
}

func (c *ResponseCache) put(key string, resp *client.Response) {
	if resp.Status < 200 || resp.Status >= 300 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
	}
	c.entries[key] = resp

	for len(c.order) > c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

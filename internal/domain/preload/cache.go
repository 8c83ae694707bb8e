// Package preload remembers which content source was recently warmed so a
// newly created instance can skip the warm-up grace period.
//
// The record is three scalar entries written together in one commit:
//
//	webview_preloaded     "true"
//	webview_preload_time  unix milliseconds
//	webview_preload_uri   content key of the warmed source
//
// The cache is advisory: an unreadable or corrupt record is reported as cold
// and never surfaces as an error from CheckWarm.
package preload

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Persisted keys
const (
	KeyPreloaded   = "webview_preloaded"
	KeyPreloadTime = "webview_preload_time"
	KeyPreloadURI  = "webview_preload_uri"
)

// DefaultWindow is how long a record is trusted as warm
const DefaultWindow = time.Hour

// Store is the minimal key/value contract the cache needs.
// SetMany must apply all entries or none.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetMany(ctx context.Context, entries map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

// Record is the decoded persisted state
type Record struct {
	Preloaded bool      `json:"preloaded"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// Option configures a Cache
type Option func(*Cache)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithWindow overrides the validity window
func WithWindow(window time.Duration) Option {
	return func(c *Cache) {
		if window > 0 {
			c.window = window
		}
	}
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// Cache guards the preload record
type Cache struct {
	mu     sync.Mutex
	store  Store
	now    func() time.Time
	window time.Duration
	log    *zap.Logger
}

// New creates a cache over store
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		now:    time.Now,
		window: DefaultWindow,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Window returns the validity window
func (c *Cache) Window() time.Duration {
	return c.window
}

// CheckWarm reports whether source was committed within the validity window
func (c *Cache) CheckWarm(ctx context.Context, source string) bool {
	if source == "" {
		return false
	}
	rec, ok := c.Record(ctx)
	if !ok || !rec.Preloaded || rec.Source != source {
		return false
	}
	age := c.now().Sub(rec.Timestamp)
	if age < 0 {
		// Clock moved backwards
		return false
	}
	return age < c.window
}

// Commit writes a fresh record for source
func (c *Cache) Commit(ctx context.Context, source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.store.SetMany(ctx, map[string]string{
		KeyPreloaded:   "true",
		KeyPreloadTime: strconv.FormatInt(c.now().UnixMilli(), 10),
		KeyPreloadURI:  source,
	})
	if err != nil {
		c.log.Warn("Failed to commit preload record", zap.String("source", source), zap.Error(err))
		return err
	}
	c.log.Debug("Preload record committed", zap.String("source", source))
	return nil
}

// Invalidate clears the record
func (c *Cache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clear(ctx)
}

// Forget clears the record only if it belongs to source
func (c *Cache) Forget(ctx context.Context, source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	uri, ok, err := c.store.Get(ctx, KeyPreloadURI)
	if err != nil || !ok || uri != source {
		return err
	}
	return c.clear(ctx)
}

func (c *Cache) clear(ctx context.Context) error {
	if err := c.store.Delete(ctx, KeyPreloaded, KeyPreloadTime, KeyPreloadURI); err != nil {
		c.log.Warn("Failed to clear preload record", zap.Error(err))
		return err
	}
	return nil
}

// Record reads and decodes the persisted record. Missing or corrupt
// entries report ok=false.
func (c *Cache) Record(ctx context.Context) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	flag, ok, err := c.store.Get(ctx, KeyPreloaded)
	if err != nil {
		c.log.Warn("Preload store unreadable", zap.Error(err))
		return Record{}, false
	}
	if !ok {
		return Record{}, false
	}
	preloaded, err := strconv.ParseBool(flag)
	if err != nil {
		c.log.Warn("Corrupt preload flag", zap.String("value", flag))
		return Record{}, false
	}

	ts, ok, err := c.store.Get(ctx, KeyPreloadTime)
	if err != nil {
		c.log.Warn("Preload store unreadable", zap.Error(err))
		return Record{}, false
	}
	if !ok {
		return Record{}, false
	}
	millis, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		c.log.Warn("Corrupt preload timestamp", zap.String("value", ts))
		return Record{}, false
	}

	uri, ok, err := c.store.Get(ctx, KeyPreloadURI)
	if err != nil {
		c.log.Warn("Preload store unreadable", zap.Error(err))
		return Record{}, false
	}
	if !ok {
		return Record{}, false
	}

	return Record{
		Preloaded: preloaded,
		Timestamp: time.UnixMilli(millis),
		Source:    uri,
	}, true
}

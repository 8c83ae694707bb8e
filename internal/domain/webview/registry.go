package webview

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/GriffinCanCode/offscreen/internal/domain/platform"
	"github.com/GriffinCanCode/offscreen/internal/domain/preload"
	"github.com/GriffinCanCode/offscreen/internal/domain/surface"
	"github.com/GriffinCanCode/offscreen/internal/infrastructure/logging"
	"github.com/GriffinCanCode/offscreen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/offscreen/internal/providers/storage"
	"github.com/GriffinCanCode/offscreen/internal/shared/id"
	"github.com/GriffinCanCode/offscreen/internal/shared/types"
	"github.com/GriffinCanCode/offscreen/internal/shared/utils"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Version is reported by the creation API
const Version = "1.0.0"

// Registry owns the live instances
type Registry struct {
	mu        sync.RWMutex
	instances map[string]*Instance // Protected by mu
	destroyed map[string]struct{}  // Protected by mu

	resolver *platform.Resolver
	catalog  *surface.Catalog
	cache    *preload.Cache
	ids      *id.Generator
	log      *zap.Logger
	metrics  *monitoring.Metrics
	now      func() time.Time

	warmupDelay time.Duration
	loadTimeout time.Duration
	eventBuffer int
	userAgent   string
	observers   []TransitionObserver
}

// NewRegistry creates a registry. A nil cache falls back to an in-memory one.
func NewRegistry(resolver *platform.Resolver, catalog *surface.Catalog, cache *preload.Cache, opts ...Option) *Registry {
	r := &Registry{
		instances:   make(map[string]*Instance),
		destroyed:   make(map[string]struct{}),
		resolver:    resolver,
		catalog:     catalog,
		cache:       cache,
		ids:         id.Default(),
		log:         zap.NewNop(),
		now:         time.Now,
		warmupDelay: DefaultWarmupDelay,
		loadTimeout: DefaultLoadTimeout,
		eventBuffer: DefaultEventBuffer,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = preload.New(storage.NewMemory(), preload.WithClock(r.now), preload.WithLogger(r.log))
	}
	return r
}

// IsSupported reports whether a backend is registered for the host
func (r *Registry) IsSupported() bool {
	return r.resolver.IsSupported()
}

// Platform returns the detected host platform
func (r *Registry) Platform() types.PlatformID {
	return r.resolver.Detect()
}

// Backends lists the platforms a backend is registered for
func (r *Registry) Backends() []types.PlatformID {
	return r.catalog.Platforms()
}

// Version returns the library version
func (r *Registry) Version() string {
	return Version
}

// Preload returns the preload cache shared by all instances
func (r *Registry) Preload() *preload.Cache {
	return r.cache
}

// CreateInstance validates cfg, builds a backend for the host platform and
// registers the new instance.
func (r *Registry) CreateInstance(ctx context.Context, cfg types.InstanceConfig) (*Instance, error) {
	platformID := r.resolver.Detect()
	entry, ok := r.catalog.Lookup(platformID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedPlatform, platformID)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	cfg = cfg.Clone()
	if cfg.UserAgent == "" {
		cfg.UserAgent = r.userAgent
	}

	instID := r.ids.NewInstanceID().String()
	log := logging.ForInstance(r.log, instID, string(platformID), cfg.Debug)

	key := utils.ContentKey(cfg.Source)
	warm := r.cache.CheckWarm(ctx, key)
	r.metrics.RecordPreloadCheck(warm)

	inst := newInstance(instanceParams{
		id:          instID,
		platform:    platformID,
		kind:        entry.Kind,
		cfg:         cfg,
		warmStart:   warm,
		cache:       r.cache,
		log:         log,
		metrics:     r.metrics,
		now:         r.now,
		loadTimeout: r.loadTimeout,
		eventBuffer: r.eventBuffer,
		observers:   r.observers,
		onDestroy:   r.remove,
	})

	adapter, err := entry.Factory(surface.Params{ID: instID, Config: cfg, Emit: inst.emit, Log: log})
	if err != nil {
		inst.cancel()
		return nil, fmt.Errorf("create %s surface: %w", entry.Kind, err)
	}
	inst.adapter = adapter

	r.mu.Lock()
	r.instances[instID] = inst
	r.mu.Unlock()
	r.metrics.InstanceCreated(string(platformID))

	delay := r.warmupDelay
	if cfg.WarmupDelay != nil {
		delay = *cfg.WarmupDelay
	}
	immediate := cfg.Preload || warm || delay == 0
	inst.start(immediate, delay)

	log.Info("Instance created",
		zap.String("kind", string(entry.Kind)),
		zap.Bool("preload", cfg.Preload),
		zap.Bool("warm", warm),
		zap.Bool("immediate", immediate))

	return inst, nil
}

func validateConfig(cfg types.InstanceConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Source.IsHTML() {
		if err := utils.ValidateMarkup(cfg.Source.HTML); err != nil {
			return fmt.Errorf("%w: %w", types.ErrInvalidConfig, err)
		}
		return nil
	}
	if _, err := utils.ValidateURL(cfg.Source.URL, cfg.Capabilities.AllowFileAccess); err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidConfig, err)
	}
	return nil
}

// Get returns the live instance with id. An id that was destroyed fails
// with types.ErrInstanceDestroyed, one never issued with types.ErrInstanceNotFound.
func (r *Registry) Get(instID string) (*Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if inst, ok := r.instances[instID]; ok {
		return inst, nil
	}
	if _, gone := r.destroyed[instID]; gone {
		return nil, fmt.Errorf("%w: %s", types.ErrInstanceDestroyed, instID)
	}
	return nil, fmt.Errorf("%w: %s", types.ErrInstanceNotFound, instID)
}

// List returns the live instances ordered by creation
func (r *Registry) List() []*Instance {
	r.mu.RLock()
	out := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Instance) int {
		if c := a.createdAt.Compare(b.createdAt); c != 0 {
			return c
		}
		if a.id < b.id {
			return -1
		}
		if a.id > b.id {
			return 1
		}
		return 0
	})
	return out
}

// InstanceCount returns the number of live instances
func (r *Registry) InstanceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// DestroyInstance removes and destroys the instance with id. Destroying an
// already destroyed id returns nil.
func (r *Registry) DestroyInstance(ctx context.Context, instID string) error {
	inst, err := r.Get(instID)
	if errors.Is(err, types.ErrInstanceDestroyed) {
		return nil
	}
	if err != nil {
		return err
	}
	return inst.Destroy(ctx)
}

// DestroyAllInstances destroys every live instance concurrently and clears
// the registry. Every instance is attempted; failures are aggregated.
func (r *Registry) DestroyAllInstances(ctx context.Context) error {
	r.mu.Lock()
	all := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		all = append(all, inst)
	}
	for instID := range r.instances {
		r.destroyed[instID] = struct{}{}
	}
	r.instances = make(map[string]*Instance)
	r.mu.Unlock()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for _, inst := range all {
		wg.Add(1)
		go func(inst *Instance) {
			defer wg.Done()
			if err := inst.Destroy(ctx); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("destroy %s: %w", inst.ID(), err))
				mu.Unlock()
			}
		}(inst)
	}
	wg.Wait()

	if len(all) > 0 {
		r.log.Info("Destroyed all instances",
			zap.Int("count", len(all)),
			zap.Int("failures", len(multierr.Errors(errs))))
	}
	return errs
}

// Stats returns counts by lifecycle state
func (r *Registry) Stats() types.Stats {
	stats := types.Stats{
		Platform:  r.Platform(),
		Supported: r.IsSupported(),
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	stats.Total = len(r.instances)
	for _, inst := range r.instances {
		stats.EventsDropped += inst.bridge.Dropped()
		switch inst.State() {
		case types.StateUninitialized, types.StatePreloading:
			stats.Loading++
		case types.StateLoaded:
			stats.Loaded++
		case types.StateVisible:
			stats.Visible++
		case types.StateHidden:
			stats.Hidden++
		}
	}
	return stats
}

func (r *Registry) remove(inst *Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.instances[inst.id]; ok && current == inst {
		delete(r.instances, inst.id)
	}
	r.destroyed[inst.id] = struct{}{}
}

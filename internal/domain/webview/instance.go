package webview

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/GriffinCanCode/offscreen/internal/domain/lifecycle"
	"github.com/GriffinCanCode/offscreen/internal/domain/preload"
	"github.com/GriffinCanCode/offscreen/internal/domain/surface"
	"github.com/GriffinCanCode/offscreen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/offscreen/internal/shared/types"
	"github.com/GriffinCanCode/offscreen/internal/shared/utils"
	"go.uber.org/zap"
)

// opQueueSize bounds operations waiting for the instance goroutine
const opQueueSize = 64

type result struct {
	val any
	err error
}

type operation struct {
	name string
	ctx  context.Context
	fn   func(ctx context.Context) (any, error)
	res  chan result
}

// Instance is the application-facing handle to one surface
type Instance struct {
	id        string
	platform  types.PlatformID
	kind      surface.Kind
	cfg       types.InstanceConfig
	createdAt time.Time
	warmStart bool

	adapter surface.Adapter
	machine *lifecycle.Machine
	bridge  *Bridge
	cache   *preload.Cache
	log     *zap.Logger
	metrics *monitoring.Metrics
	now     func() time.Time

	loadTimeout time.Duration

	ops     chan operation
	inbox   *mailbox
	life    context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	stopped chan struct{}

	destroyOnce sync.Once
	onDestroy   func(*Instance)

	// Owned by the instance goroutine
	contentKey   string
	preloadStart time.Time

	timerMu  sync.Mutex
	warmup   *time.Timer
	watchdog *time.Timer

	mu    sync.RWMutex
	url   string
	title string
}

type instanceParams struct {
	id          string
	platform    types.PlatformID
	kind        surface.Kind
	cfg         types.InstanceConfig
	warmStart   bool
	cache       *preload.Cache
	log         *zap.Logger
	metrics     *monitoring.Metrics
	now         func() time.Time
	loadTimeout time.Duration
	eventBuffer int
	observers   []TransitionObserver
	onDestroy   func(*Instance)
}

func newInstance(p instanceParams) *Instance {
	life, cancel := context.WithCancel(context.Background())
	inst := &Instance{
		id:          p.id,
		platform:    p.platform,
		kind:        p.kind,
		cfg:         p.cfg,
		createdAt:   p.now(),
		warmStart:   p.warmStart,
		cache:       p.cache,
		log:         p.log,
		metrics:     p.metrics,
		now:         p.now,
		loadTimeout: p.loadTimeout,
		ops:         make(chan operation, opQueueSize),
		inbox:       newMailbox(),
		life:        life,
		cancel:      cancel,
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
		onDestroy:   p.onDestroy,
		contentKey:  utils.ContentKey(p.cfg.Source),
	}

	observe := func(from, to types.State) {
		inst.metrics.RecordTransition(string(from), string(to))
		inst.log.Debug("State transition", zap.String("from", string(from)), zap.String("to", string(to)))
		for _, obs := range p.observers {
			obs(inst.id, from, to)
		}
	}
	inst.machine = lifecycle.New(p.cfg.Visible, observe)
	inst.bridge = NewBridge(p.eventBuffer, inst.metrics.RecordEventDropped)
	return inst
}

// emit is handed to the adapter. It marshals backend signals onto the instance goroutine.
func (i *Instance) emit(ev types.Event) {
	i.inbox.push(func() { i.handleEvent(ev) })
}

// start begins the warm-up cycle and the instance goroutine
func (i *Instance) start(immediate bool, delay time.Duration) {
	if immediate {
		if err := i.machine.BeginPreload(); err != nil {
			i.log.Error("Failed to begin preload", zap.Error(err))
		}
		i.preloadStart = i.now()
		i.armWatchdog()
		go i.run(true)
		return
	}

	i.timerMu.Lock()
	i.warmup = time.AfterFunc(delay, func() {
		i.inbox.push(i.deferredPreload)
	})
	i.timerMu.Unlock()
	go i.run(false)
}

func (i *Instance) run(dispatch bool) {
	defer close(i.stopped)

	if dispatch {
		i.dispatchInitial()
	}

	for {
		select {
		case <-i.done:
			return
		case o := <-i.ops:
			i.exec(o)
		case <-i.inbox.signal:
			for _, fn := range i.inbox.drain() {
				if i.life.Err() != nil {
					return
				}
				fn()
			}
		}
	}
}

func (i *Instance) exec(o operation) {
	if i.life.Err() != nil {
		o.res <- result{err: i.destroyedErr()}
		return
	}
	if err := o.ctx.Err(); err != nil {
		o.res <- result{err: err}
		return
	}

	ctx, cancel := context.WithCancel(o.ctx)
	stop := context.AfterFunc(i.life, cancel)
	defer func() {
		stop()
		cancel()
	}()

	timer := monitoring.NewTimer(i.metrics, o.name)
	val, err := i.safely(o.name, func() (any, error) { return o.fn(ctx) })
	if err != nil && i.life.Err() != nil {
		err = i.destroyedErr()
	}
	timer.StopErr(err)
	o.res <- result{val: val, err: err}
}

func (i *Instance) safely(name string, fn func() (any, error)) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			i.log.Error("Backend panicked", zap.String("operation", name), zap.Any("panic", r))
			err = fmt.Errorf("%s: backend panic: %v", name, r)
		}
	}()
	return fn()
}

// submit queues fn behind every earlier operation on this instance and waits for it
func (i *Instance) submit(ctx context.Context, name string, fn func(ctx context.Context) (any, error)) (any, error) {
	if err := i.alive(); err != nil {
		return nil, err
	}

	res := make(chan result, 1)
	select {
	case i.ops <- operation{name: name, ctx: ctx, fn: fn, res: res}:
	case <-i.done:
		return nil, i.destroyedErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-res:
		return r.val, r.err
	case <-i.done:
		select {
		case r := <-res:
			return r.val, r.err
		default:
			return nil, i.destroyedErr()
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (i *Instance) alive() error {
	if i.machine.State() == types.StateDestroyed {
		return i.destroyedErr()
	}
	return nil
}

func (i *Instance) destroyedErr() error {
	return fmt.Errorf("%w: %s", types.ErrInstanceDestroyed, i.id)
}

func (i *Instance) deferredPreload() {
	if i.machine.State() != types.StateUninitialized {
		return
	}
	if err := i.machine.BeginPreload(); err != nil {
		i.log.Error("Failed to begin preload", zap.Error(err))
		return
	}
	i.preloadStart = i.now()
	i.armWatchdog()
	i.dispatchInitial()
}

func (i *Instance) dispatchInitial() {
	i.log.Debug("Starting preload", zap.String("source", i.contentKey), zap.Bool("warm", i.warmStart))
	if err := i.navigate(i.life, i.cfg.Source, nil); err != nil {
		i.completeLoad(err)
	}
}

// takeOverPreload turns an explicit navigation issued before warm-up into the preload itself
func (i *Instance) takeOverPreload(ctx context.Context, src types.Source, headers map[string]string) error {
	i.cancelWarmup()
	if err := i.machine.BeginPreload(); err != nil {
		return err
	}
	i.contentKey = utils.ContentKey(src)
	i.preloadStart = i.now()
	i.armWatchdog()

	err := i.navigate(ctx, src, headers)
	if err != nil {
		i.completeLoad(err)
	}
	return err
}

func (i *Instance) navigate(ctx context.Context, src types.Source, headers map[string]string) error {
	if src.IsHTML() {
		return i.adapter.LoadHTML(ctx, src.HTML, src.BaseURL)
	}
	merged := maps.Clone(i.cfg.Headers)
	if merged == nil {
		merged = make(map[string]string, len(headers))
	}
	maps.Copy(merged, headers)
	return i.adapter.LoadURL(ctx, src.URL, merged)
}

func (i *Instance) handleEvent(ev types.Event) {
	ev.InstanceID = i.id
	if ev.Time.IsZero() {
		ev.Time = i.now()
	}

	switch ev.Type {
	case types.EventLoadStart:
		i.setLocation(ev.URL, "")
	case types.EventLoadEnd:
		i.setLocation(ev.URL, ev.Title)
		i.completeLoad(nil)
	case types.EventError:
		i.completeLoad(fmt.Errorf("%w: %s", types.ErrNavigation, ev.Error))
	case types.EventTitleChange:
		i.setLocation("", ev.Title)
	case types.EventMessage:
		if i.cfg.Debug {
			i.log.Debug("Surface message", zap.Any("data", ev.Data))
		}
	}

	i.publish(ev)
}

func (i *Instance) publish(ev types.Event) {
	i.bridge.Publish(ev)
	i.metrics.RecordEvent(string(ev.Type))
}

// completeLoad settles the initial load. Later loads only update url and title.
func (i *Instance) completeLoad(loadErr error) {
	if i.machine.State() != types.StatePreloading {
		return
	}
	i.stopWatchdog()

	if err := i.machine.CompleteLoad(loadErr); err != nil {
		i.log.Debug("Load completion ignored", zap.Error(err))
		return
	}

	elapsed := i.now().Sub(i.preloadStart)
	if loadErr != nil {
		i.log.Warn("Initial load failed", zap.Error(loadErr), zap.Duration("elapsed", elapsed))
		i.metrics.RecordLoad("error", elapsed)
		if i.cache != nil {
			_ = i.cache.Forget(i.life, i.contentKey)
		}
	} else {
		i.log.Info("Initial load complete", zap.Duration("elapsed", elapsed))
		i.metrics.RecordLoad("success", elapsed)
		if i.cache != nil {
			i.metrics.RecordPreloadCommit(i.cache.Commit(i.life, i.contentKey))
		}
	}

	switch i.machine.State() {
	case types.StateVisible:
		i.applyVisibility(true)
	case types.StateHidden:
		i.applyVisibility(false)
	}
}

func (i *Instance) applyVisibility(visible bool) {
	if err := i.adapter.SetVisible(i.life, visible); err != nil {
		i.log.Warn("Failed to apply visibility", zap.Bool("visible", visible), zap.Error(err))
	}
}

func (i *Instance) armWatchdog() {
	if i.loadTimeout <= 0 {
		return
	}
	i.timerMu.Lock()
	defer i.timerMu.Unlock()
	i.watchdog = time.AfterFunc(i.loadTimeout, func() {
		i.inbox.push(i.loadTimedOut)
	})
}

func (i *Instance) loadTimedOut() {
	if i.machine.State() != types.StatePreloading {
		return
	}
	i.completeLoad(types.ErrLoadTimeout)
	i.publish(types.Event{
		Type:       types.EventError,
		InstanceID: i.id,
		URL:        i.currentURL(),
		Error:      types.ErrLoadTimeout.Error(),
		Time:       i.now(),
	})
}

func (i *Instance) stopWatchdog() {
	i.timerMu.Lock()
	defer i.timerMu.Unlock()
	if i.watchdog != nil {
		i.watchdog.Stop()
		i.watchdog = nil
	}
}

func (i *Instance) cancelWarmup() {
	i.timerMu.Lock()
	defer i.timerMu.Unlock()
	if i.warmup != nil {
		i.warmup.Stop()
		i.warmup = nil
	}
}

func (i *Instance) setLocation(url, title string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if url != "" {
		i.url = url
	}
	if title != "" {
		i.title = title
	}
}

func (i *Instance) currentURL() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.url
}

// ID returns the instance identifier
func (i *Instance) ID() string { return i.id }

// Platform returns the platform the instance was created for
func (i *Instance) Platform() types.PlatformID { return i.platform }

// Kind returns the backend family serving the instance
func (i *Instance) Kind() surface.Kind { return i.kind }

// Config returns a copy of the creation parameters
func (i *Instance) Config() types.InstanceConfig { return i.cfg.Clone() }

// WarmStart reports whether creation found a warm preload record
func (i *Instance) WarmStart() bool { return i.warmStart }

// State returns the lifecycle state
func (i *Instance) State() types.State { return i.machine.State() }

// IsLoaded reports whether the initial load has completed
func (i *Instance) IsLoaded() bool { return i.machine.IsLoaded() }

// IsVisible reports the visibility, or the intended visibility before load
func (i *Instance) IsVisible() bool { return i.machine.IsVisible() }

// LoadError returns the recorded initial load failure, if any
func (i *Instance) LoadError() error { return i.machine.LoadErr() }

// WaitLoaded blocks until the initial load settles and returns its failure, if any
func (i *Instance) WaitLoaded(ctx context.Context) error {
	select {
	case <-i.machine.Loaded():
	case <-ctx.Done():
		return ctx.Err()
	}
	if i.machine.State() == types.StateDestroyed {
		return i.destroyedErr()
	}
	return i.machine.LoadErr()
}

// Subscribe returns a subscription to this instance's events
func (i *Instance) Subscribe() (*Subscription, error) {
	sub, err := i.bridge.Subscribe()
	if err != nil {
		return nil, i.destroyedErr()
	}
	return sub, nil
}

// Snapshot returns a point-in-time view of the instance
func (i *Instance) Snapshot() types.Snapshot {
	i.mu.RLock()
	url, title := i.url, i.title
	i.mu.RUnlock()

	snap := types.Snapshot{
		ID:          i.id,
		Platform:    i.platform,
		State:       i.machine.State(),
		URL:         url,
		Title:       title,
		Visible:     i.machine.IsVisible(),
		Loaded:      i.machine.IsLoaded(),
		WarmStart:   i.warmStart,
		Subscribers: i.bridge.Subscribers(),
		CreatedAt:   i.createdAt,
	}
	if err := i.machine.LoadErr(); err != nil {
		snap.LoadError = err.Error()
	}
	return snap
}

// LoadURL navigates to url. Headers are merged over the configured headers.
func (i *Instance) LoadURL(ctx context.Context, url string, headers map[string]string) error {
	if err := i.alive(); err != nil {
		return err
	}
	if _, err := utils.ValidateURL(url, i.cfg.Capabilities.AllowFileAccess); err != nil {
		return err
	}
	src := types.Source{URL: url}
	_, err := i.submit(ctx, "load_url", func(ctx context.Context) (any, error) {
		if i.machine.State() == types.StateUninitialized {
			return nil, i.takeOverPreload(ctx, src, headers)
		}
		return nil, i.navigate(ctx, src, headers)
	})
	return err
}

// LoadHTML navigates to inline markup resolved against baseURL
func (i *Instance) LoadHTML(ctx context.Context, markup, baseURL string) error {
	if err := i.alive(); err != nil {
		return err
	}
	if err := utils.ValidateMarkup(markup); err != nil {
		return err
	}
	if baseURL != "" {
		if _, err := utils.ValidateURL(baseURL, true); err != nil {
			return err
		}
	}
	src := types.Source{HTML: markup, BaseURL: baseURL}
	_, err := i.submit(ctx, "load_html", func(ctx context.Context) (any, error) {
		if i.machine.State() == types.StateUninitialized {
			return nil, i.takeOverPreload(ctx, src, nil)
		}
		return nil, i.navigate(ctx, src, nil)
	})
	return err
}

// ExecuteJavaScript evaluates script in the current document and returns its value
func (i *Instance) ExecuteJavaScript(ctx context.Context, script string) (any, error) {
	if err := i.alive(); err != nil {
		return nil, err
	}
	if !i.cfg.Capabilities.JavaScriptEnabled {
		return nil, fmt.Errorf("%w: javascript is disabled for this instance", types.ErrScript)
	}
	if err := utils.ValidateScript(script); err != nil {
		return nil, err
	}
	return i.submit(ctx, "execute_javascript", func(ctx context.Context) (any, error) {
		return i.adapter.ExecuteJavaScript(ctx, script)
	})
}

// PageContent returns the serialized current document
func (i *Instance) PageContent(ctx context.Context) (string, error) {
	return i.readString(ctx, "page_content", i.adapter.PageContent)
}

// PageTitle returns the current document title
func (i *Instance) PageTitle(ctx context.Context) (string, error) {
	return i.readString(ctx, "page_title", i.adapter.PageTitle)
}

// CurrentURL returns the address of the current document
func (i *Instance) CurrentURL(ctx context.Context) (string, error) {
	return i.readString(ctx, "current_url", i.adapter.CurrentURL)
}

func (i *Instance) readString(ctx context.Context, name string, read func(context.Context) (string, error)) (string, error) {
	v, err := i.submit(ctx, name, func(ctx context.Context) (any, error) {
		return read(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// GoBack navigates back and reports whether history allowed it
func (i *Instance) GoBack(ctx context.Context) (bool, error) {
	return i.history(ctx, "go_back", i.adapter.GoBack)
}

// GoForward navigates forward and reports whether history allowed it
func (i *Instance) GoForward(ctx context.Context) (bool, error) {
	return i.history(ctx, "go_forward", i.adapter.GoForward)
}

func (i *Instance) history(ctx context.Context, name string, move func(context.Context) (bool, error)) (bool, error) {
	v, err := i.submit(ctx, name, func(ctx context.Context) (any, error) {
		return move(ctx)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Reload reloads the current document
func (i *Instance) Reload(ctx context.Context) error {
	_, err := i.submit(ctx, "reload", func(ctx context.Context) (any, error) {
		return nil, i.adapter.Reload(ctx)
	})
	return err
}

// StopLoading aborts an in-flight navigation
func (i *Instance) StopLoading(ctx context.Context) error {
	_, err := i.submit(ctx, "stop_loading", func(ctx context.Context) (any, error) {
		return nil, i.adapter.StopLoading(ctx)
	})
	return err
}

// CaptureScreenshot returns the surface rendered as a base64 PNG
func (i *Instance) CaptureScreenshot(ctx context.Context) (string, error) {
	return i.readString(ctx, "capture_screenshot", i.adapter.CaptureScreenshot)
}

// Show makes the surface visible, or records the intent before load
func (i *Instance) Show(ctx context.Context) error {
	return i.setVisible(ctx, "show", true)
}

// Hide hides the surface, or records the intent before load
func (i *Instance) Hide(ctx context.Context) error {
	return i.setVisible(ctx, "hide", false)
}

func (i *Instance) setVisible(ctx context.Context, name string, visible bool) error {
	_, err := i.submit(ctx, name, func(ctx context.Context) (any, error) {
		var err error
		if visible {
			err = i.machine.Show()
		} else {
			err = i.machine.Hide()
		}
		if err != nil || !i.machine.IsLoaded() {
			return nil, err
		}
		return nil, i.adapter.SetVisible(ctx, visible)
	})
	return err
}

// Destroy releases the surface. Pending and later operations fail with
// types.ErrInstanceDestroyed. Calling Destroy again returns nil.
func (i *Instance) Destroy(ctx context.Context) error {
	var err error
	i.destroyOnce.Do(func() {
		i.machine.Destroy()
		i.cancelWarmup()
		i.stopWatchdog()
		i.cancel()
		close(i.done)

		if i.onDestroy != nil {
			i.onDestroy(i)
		}

		err = i.adapter.Destroy(ctx)

		select {
		case <-i.stopped:
		case <-ctx.Done():
			i.log.Warn("Instance goroutine still busy after destroy", zap.Error(ctx.Err()))
		}
		i.bridge.Close()
		i.metrics.InstanceDestroyed()

		if err != nil {
			i.log.Warn("Backend destroy failed", zap.Error(err))
			return
		}
		i.log.Info("Instance destroyed")
	})
	return err
}

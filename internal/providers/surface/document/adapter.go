package document

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/GriffinCanCode/offscreen/internal/domain/surface"
	"github.com/GriffinCanCode/offscreen/internal/infrastructure/logging"
	"github.com/GriffinCanCode/offscreen/internal/providers/http/client"
	"github.com/GriffinCanCode/offscreen/internal/shared/types"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// Fetcher retrieves remote documents
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string) (*client.Response, error)
}

// Option configures a Factory
type Option func(*factory)

type factory struct {
	fetcher       Fetcher
	cache         *ResponseCache
	log           *zap.Logger
	scriptTimeout time.Duration
}

// WithLogger sets the parent logger for every surface
func WithLogger(log *zap.Logger) Option {
	return func(f *factory) {
		if log != nil {
			f.log = log
		}
	}
}

// WithCache shares an existing response cache
func WithCache(cache *ResponseCache) Option {
	return func(f *factory) {
		if cache != nil {
			f.cache = cache
		}
	}
}

// WithScriptTimeout bounds each evaluation; 0 disables the bound
func WithScriptTimeout(d time.Duration) Option {
	return func(f *factory) { f.scriptTimeout = d }
}

// NewFactory returns a surface.Factory producing document surfaces that
// share one response cache
func NewFactory(fetcher Fetcher, opts ...Option) surface.Factory {
	f := &factory{
		fetcher:       fetcher,
		cache:         NewResponseCache(DefaultCacheEntries),
		log:           zap.NewNop(),
		scriptTimeout: DefaultScriptTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return func(p surface.Params) (surface.Adapter, error) {
		return newAdapter(p, f)
	}
}

// entry is one history item
type entry struct {
	url     string
	markup  string
	inline  bool
	headers map[string]string
}

// Adapter is an embedded-document surface
type Adapter struct {
	id      string
	cfg     types.InstanceConfig
	emit    surface.Emitter
	fetcher Fetcher
	cache   *ResponseCache
	log     *zap.Logger
	rt      *runtime

	life   context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	destroyed bool
	page      *page
	history   []entry
	pos       int
	gen       uint64
	navCancel context.CancelFunc
	settled   chan struct{}
	visible   bool
}

func newAdapter(p surface.Params, f *factory) (*Adapter, error) {
	settled := make(chan struct{})
	close(settled)

	cfg := p.Config
	log := p.Log
	if log == nil {
		log = logging.ForInstance(f.log, p.ID, "", cfg.Debug)
	}
	a := &Adapter{
		id:      p.ID,
		cfg:     cfg,
		emit:    p.Emit,
		fetcher: f.fetcher,
		cache:   f.cache,
		log:     log.Named("document"),
		pos:     -1,
		settled: settled,
		visible: cfg.Visible,
	}
	a.life, a.cancel = context.WithCancel(context.Background())

	if cfg.Capabilities.JavaScriptEnabled {
		rt, err := newRuntime(f.scriptTimeout, a.install)
		if err != nil {
			a.cancel()
			return nil, err
		}
		a.rt = rt
	}
	return a, nil
}

// LoadURL dispatches a navigation and returns before it completes
func (a *Adapter) LoadURL(_ context.Context, raw string, headers map[string]string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrNavigation, err)
	}
	switch u.Scheme {
	case "http", "https", "about":
	case "file":
		if !a.cfg.Capabilities.AllowFileAccess {
			return fmt.Errorf("%w: file access is disabled", types.ErrNavigation)
		}
	default:
		return fmt.Errorf("%w: unsupported scheme %q", types.ErrNavigation, u.Scheme)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return types.ErrInstanceDestroyed
	}
	a.pushLocked(entry{url: raw, headers: a.requestHeaders(headers)})
	return nil
}

// LoadHTML dispatches inline markup
func (a *Adapter) LoadHTML(_ context.Context, markup, baseURL string) error {
	if baseURL == "" {
		baseURL = "about:blank"
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return types.ErrInstanceDestroyed
	}
	a.pushLocked(entry{url: baseURL, markup: markup, inline: true})
	return nil
}

// ExecuteJavaScript evaluates script once any in-flight navigation settles
func (a *Adapter) ExecuteJavaScript(ctx context.Context, script string) (any, error) {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return nil, types.ErrInstanceDestroyed
	}
	settled := a.settled
	a.mu.Unlock()

	if a.rt == nil {
		return nil, fmt.Errorf("%w: javascript is disabled", types.ErrScript)
	}

	select {
	case <-settled:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.life.Done():
		return nil, types.ErrInstanceDestroyed
	}
	return a.rt.eval(ctx, script)
}

// PageContent serializes the current document
func (a *Adapter) PageContent(context.Context) (string, error) {
	p, err := a.loadedPage()
	if err != nil {
		return "", err
	}
	return p.HTML()
}

// PageTitle returns the current document title
func (a *Adapter) PageTitle(context.Context) (string, error) {
	p, err := a.loadedPage()
	if err != nil {
		return "", err
	}
	return p.Title(), nil
}

// CurrentURL returns the current document address
func (a *Adapter) CurrentURL(context.Context) (string, error) {
	p, err := a.loadedPage()
	if err != nil {
		return "", err
	}
	return p.URL(), nil
}

// GoBack navigates to the previous history entry
func (a *Adapter) GoBack(context.Context) (bool, error) {
	return a.step(-1)
}

// GoForward navigates to the next history entry
func (a *Adapter) GoForward(context.Context) (bool, error) {
	return a.step(1)
}

func (a *Adapter) step(delta int) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return false, types.ErrInstanceDestroyed
	}
	next := a.pos + delta
	if a.pos < 0 || next < 0 || next >= len(a.history) {
		return false, nil
	}
	a.pos = next
	a.startLocked(a.history[next], false)
	return true, nil
}

// Reload refetches the current entry from the network
func (a *Adapter) Reload(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return types.ErrInstanceDestroyed
	}
	if a.pos < 0 {
		return fmt.Errorf("%w: nothing to reload", types.ErrStateUnavailable)
	}
	a.startLocked(a.history[a.pos], true)
	return nil
}

// StopLoading aborts the in-flight navigation, which then reports an error
func (a *Adapter) StopLoading(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return types.ErrInstanceDestroyed
	}
	if a.navCancel != nil {
		a.navCancel()
	}
	return nil
}

// CaptureScreenshot always fails; documents are never rasterized
func (a *Adapter) CaptureScreenshot(context.Context) (string, error) {
	if _, err := a.loadedPage(); errors.Is(err, types.ErrInstanceDestroyed) {
		return "", err
	}
	return "", fmt.Errorf("%w: embedded document surface has no raster", types.ErrCapture)
}

// SetVisible records visibility; an offscreen document has nothing to show
func (a *Adapter) SetVisible(_ context.Context, visible bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return types.ErrInstanceDestroyed
	}
	a.visible = visible
	return nil
}

// Visible reports the last visibility applied
func (a *Adapter) Visible() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.visible
}

// Destroy releases the runtime and aborts navigation. Later calls are no-ops.
func (a *Adapter) Destroy(context.Context) error {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return nil
	}
	a.destroyed = true
	a.page = nil
	a.gen++
	a.mu.Unlock()

	a.cancel()
	if a.rt != nil {
		a.rt.close()
	}
	a.log.Debug("Document surface destroyed")
	return nil
}

func (a *Adapter) loadedPage() (*page, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return nil, types.ErrInstanceDestroyed
	}
	if a.page == nil {
		return nil, fmt.Errorf("%w: no document loaded", types.ErrStateUnavailable)
	}
	return a.page, nil
}

func (a *Adapter) currentPage() *page {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.page
}

func (a *Adapter) requestHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	if a.cfg.UserAgent != "" {
		out["User-Agent"] = a.cfg.UserAgent
	}
	for k, v := range headers {
		out[k] = v
	}
	return out
}

// pushLocked truncates forward history and navigates to e
func (a *Adapter) pushLocked(e entry) {
	a.history = append(a.history[:a.pos+1], e)
	a.pos = len(a.history) - 1
	a.startLocked(e, false)
}

// startLocked supersedes any in-flight navigation
func (a *Adapter) startLocked(e entry, reload bool) {
	if a.navCancel != nil {
		a.navCancel()
	}
	a.gen++
	ctx, cancel := context.WithCancel(a.life)
	a.navCancel = cancel
	done := make(chan struct{})
	a.settled = done
	go a.navigate(ctx, a.gen, a.pos, e, reload, done)
}

// current reports whether gen is still the latest navigation
func (a *Adapter) current(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.destroyed && a.gen == gen
}

func (a *Adapter) emitIf(gen uint64, ev types.Event) {
	if a.current(gen) {
		a.emit(ev)
	}
}

func (a *Adapter) navigate(ctx context.Context, gen uint64, pos int, e entry, reload bool, done chan struct{}) {
	defer close(done)
	start := time.Now()

	a.emitIf(gen, types.Event{Type: types.EventLoadStart, URL: e.url})
	a.emitIf(gen, types.Event{Type: types.EventProgress, URL: e.url, Progress: 10})

	markup, final, status, err := a.resolve(ctx, e, reload)
	if err != nil {
		a.fail(ctx, gen, e.url, err)
		return
	}
	a.emitIf(gen, types.Event{Type: types.EventProgress, URL: final, Progress: 50})

	p, err := newPage(final, markup)
	if err != nil {
		a.fail(ctx, gen, final, err)
		return
	}

	a.mu.Lock()
	if a.destroyed || a.gen != gen {
		a.mu.Unlock()
		return
	}
	a.page = p
	if pos >= 0 && pos < len(a.history) {
		a.history[pos].url = final
	}
	a.mu.Unlock()

	a.emitIf(gen, types.Event{Type: types.EventProgress, URL: final, Progress: 80})
	if title := p.Title(); title != "" {
		a.emitIf(gen, types.Event{Type: types.EventTitleChange, URL: final, Title: title})
	}

	if a.rt != nil {
		a.runPageScripts(ctx, p)
	}
	if ctx.Err() != nil {
		a.fail(ctx, gen, final, ctx.Err())
		return
	}

	a.emitIf(gen, types.Event{Type: types.EventProgress, URL: final, Progress: 100})
	if status >= 400 {
		a.emitIf(gen, types.Event{Type: types.EventError, URL: final, Error: fmt.Sprintf("http status %d", status)})
		return
	}
	a.emitIf(gen, types.Event{Type: types.EventLoadEnd, URL: final, Title: p.Title()})
	a.log.Debug("Document loaded",
		zap.String("url", final),
		zap.Int("status", status),
		zap.Duration("duration", time.Since(start)))
}

func (a *Adapter) fail(ctx context.Context, gen uint64, address string, err error) {
	msg := err.Error()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		msg = "navigation aborted"
	}
	a.log.Debug("Navigation failed", zap.String("url", address), zap.Error(err))
	a.emitIf(gen, types.Event{Type: types.EventError, URL: address, Error: msg})
}

// runPageScripts runs the injected script, then classic inline scripts.
// Script failures never fail the load.
func (a *Adapter) runPageScripts(ctx context.Context, p *page) {
	scripts := p.InlineScripts()
	if a.cfg.InjectedScript != "" {
		scripts = append([]string{a.cfg.InjectedScript}, scripts...)
	}
	for _, script := range scripts {
		if ctx.Err() != nil {
			return
		}
		if _, err := a.rt.eval(ctx, script); err != nil {
			a.log.Warn("Page script failed", zap.String("url", p.URL()), zap.Error(err))
		}
	}
}

// resolve produces markup for e, returning the final address and status
func (a *Adapter) resolve(ctx context.Context, e entry, reload bool) (string, string, int, error) {
	if e.inline {
		return e.markup, e.url, 200, nil
	}

	u, err := url.Parse(e.url)
	if err != nil {
		return "", "", 0, err
	}

	switch u.Scheme {
	case "about":
		return blankDocument, e.url, 200, nil
	case "file":
		body, err := os.ReadFile(u.Path)
		if err != nil {
			return "", "", 0, err
		}
		markup, err := decode(body, mimetype.Detect(body).String(), e.url)
		return markup, e.url, 200, err
	}

	if a.fetcher == nil {
		return "", "", 0, errors.New("no fetcher configured")
	}
	resp, err := a.cache.Fetch(ctx, a.cacheMode(reload), e.url, func(ctx context.Context) (*client.Response, error) {
		return a.fetcher.Fetch(ctx, e.url, e.headers)
	})
	if err != nil {
		return "", "", 0, err
	}
	markup, err := decode(resp.Body, resp.ContentType, resp.URL)
	if err != nil {
		return "", "", 0, err
	}
	return markup, resp.URL, resp.Status, nil
}

func (a *Adapter) cacheMode(reload bool) types.CacheMode {
	caps := a.cfg.Capabilities
	switch {
	case !caps.CacheEnabled:
		return types.CacheNoCache
	case caps.CacheMode == "":
		return types.CacheDefault
	case reload && caps.CacheMode == types.CacheElseNetwork:
		return types.CacheDefault
	}
	return caps.CacheMode
}

var _ surface.Adapter = (*Adapter)(nil)

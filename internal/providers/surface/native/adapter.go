package native

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/offscreen/internal/domain/surface"
	"github.com/GriffinCanCode/offscreen/internal/infrastructure/logging"
	"github.com/GriffinCanCode/offscreen/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const contentScript = "document.documentElement.outerHTML"

// Option configures a Factory
type Option func(*factory)

type factory struct {
	provider      ViewProvider
	log           *zap.Logger
	scriptTimeout time.Duration
}

// WithLogger sets the parent logger
func WithLogger(log *zap.Logger) Option {
	return func(f *factory) {
		if log != nil {
			f.log = log
		}
	}
}

// WithScriptTimeout bounds evaluations; 0 leaves only the caller's context
func WithScriptTimeout(d time.Duration) Option {
	return func(f *factory) { f.scriptTimeout = d }
}

// NewFactory returns a surface.Factory backed by provider
func NewFactory(provider ViewProvider, opts ...Option) surface.Factory {
	f := &factory{provider: provider, log: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return func(p surface.Params) (surface.Adapter, error) {
		return newAdapter(p, f)
	}
}

// Adapter drives a native View
type Adapter struct {
	view          View
	emit          surface.Emitter
	log           *zap.Logger
	scriptTimeout time.Duration

	mu        sync.RWMutex
	destroyed bool
}

func newAdapter(p surface.Params, f *factory) (*Adapter, error) {
	if f.provider == nil {
		return nil, fmt.Errorf("%w: no native view provider", types.ErrUnsupportedPlatform)
	}
	id, cfg := p.ID, p.Config
	log := p.Log
	if log == nil {
		log = logging.ForInstance(f.log, id, "", cfg.Debug)
	}
	a := &Adapter{
		emit:          p.Emit,
		log:           log.Named("native"),
		scriptTimeout: f.scriptTimeout,
	}
	view, err := f.provider.CreateView(ViewSpec{
		InstanceID:     id,
		Width:          cfg.Width,
		Height:         cfg.Height,
		Capabilities:   cfg.Capabilities,
		UserAgent:      cfg.UserAgent,
		InjectedScript: cfg.InjectedScript,
		Debug:          cfg.Debug,
	}, &listener{a: a, debug: cfg.Debug})
	if err != nil {
		return nil, fmt.Errorf("create native view: %w", err)
	}
	view.SetHidden(!cfg.Visible)
	a.view = view
	return a, nil
}

func (a *Adapter) alive() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.destroyed {
		return types.ErrInstanceDestroyed
	}
	return nil
}

// LoadURL dispatches a navigation
func (a *Adapter) LoadURL(_ context.Context, url string, headers map[string]string) error {
	if err := a.alive(); err != nil {
		return err
	}
	if err := a.view.LoadURL(url, headers); err != nil {
		return fmt.Errorf("%w: %v", types.ErrNavigation, err)
	}
	return nil
}

// LoadHTML dispatches inline markup
func (a *Adapter) LoadHTML(_ context.Context, markup, baseURL string) error {
	if err := a.alive(); err != nil {
		return err
	}
	if err := a.view.LoadHTML(markup, baseURL); err != nil {
		return fmt.Errorf("%w: %v", types.ErrNavigation, err)
	}
	return nil
}

// ExecuteJavaScript evaluates script and decodes its JSON result
func (a *Adapter) ExecuteJavaScript(ctx context.Context, script string) (any, error) {
	if err := a.alive(); err != nil {
		return nil, err
	}
	raw, err := a.evaluate(ctx, script)
	if err != nil {
		return nil, err
	}
	return decodeResult(raw)
}

func (a *Adapter) evaluate(ctx context.Context, script string) (string, error) {
	if a.scriptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.scriptTimeout)
		defer cancel()
	}
	raw, err := a.view.Evaluate(ctx, script)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", types.ErrScript, ctx.Err())
		}
		return "", fmt.Errorf("%w: %v", types.ErrScript, err)
	}
	return raw, nil
}

func decodeResult(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" || raw == "undefined" {
		return nil, nil
	}
	var v any
	if err := sonic.UnmarshalString(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: undecodable result: %v", types.ErrScript, err)
	}
	return v, nil
}

// PageContent serializes the live DOM
func (a *Adapter) PageContent(ctx context.Context) (string, error) {
	if err := a.requireDocument(); err != nil {
		return "", err
	}
	raw, err := a.evaluate(ctx, contentScript)
	if err != nil {
		return "", err
	}
	v, err := decodeResult(raw)
	if err != nil {
		return "", err
	}
	html, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: document has no root element", types.ErrStateUnavailable)
	}
	return html, nil
}

// PageTitle returns the view's title
func (a *Adapter) PageTitle(context.Context) (string, error) {
	if err := a.requireDocument(); err != nil {
		return "", err
	}
	return a.view.Title(), nil
}

// CurrentURL returns the view's address
func (a *Adapter) CurrentURL(context.Context) (string, error) {
	if err := a.requireDocument(); err != nil {
		return "", err
	}
	return a.view.URL(), nil
}

func (a *Adapter) requireDocument() error {
	if err := a.alive(); err != nil {
		return err
	}
	if a.view.URL() == "" {
		return fmt.Errorf("%w: no document loaded", types.ErrStateUnavailable)
	}
	return nil
}

// GoBack navigates back when history allows
func (a *Adapter) GoBack(context.Context) (bool, error) {
	if err := a.alive(); err != nil {
		return false, err
	}
	if !a.view.CanGoBack() {
		return false, nil
	}
	a.view.GoBack()
	return true, nil
}

// GoForward navigates forward when history allows
func (a *Adapter) GoForward(context.Context) (bool, error) {
	if err := a.alive(); err != nil {
		return false, err
	}
	if !a.view.CanGoForward() {
		return false, nil
	}
	a.view.GoForward()
	return true, nil
}

// Reload reloads the current document
func (a *Adapter) Reload(context.Context) error {
	if err := a.alive(); err != nil {
		return err
	}
	a.view.Reload()
	return nil
}

// StopLoading stops the current load
func (a *Adapter) StopLoading(context.Context) error {
	if err := a.alive(); err != nil {
		return err
	}
	a.view.StopLoading()
	return nil
}

// CaptureScreenshot returns the view as a base64 PNG
func (a *Adapter) CaptureScreenshot(ctx context.Context) (string, error) {
	if err := a.alive(); err != nil {
		return "", err
	}
	img, err := a.view.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrCapture, err)
	}
	if len(img) == 0 {
		return "", fmt.Errorf("%w: empty snapshot", types.ErrCapture)
	}
	if mt := mimetype.Detect(img); !mt.Is("image/png") {
		return "", fmt.Errorf("%w: snapshot is %s, not png", types.ErrCapture, mt.String())
	}
	return base64.StdEncoding.EncodeToString(img), nil
}

// SetVisible shows or hides the view
func (a *Adapter) SetVisible(_ context.Context, visible bool) error {
	if err := a.alive(); err != nil {
		return err
	}
	a.view.SetHidden(!visible)
	return nil
}

// Destroy releases the view. Later calls are no-ops.
func (a *Adapter) Destroy(context.Context) error {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return nil
	}
	a.destroyed = true
	a.mu.Unlock()

	if err := a.view.Release(); err != nil {
		return fmt.Errorf("release native view: %w", err)
	}
	return nil
}

func (a *Adapter) forward(ev types.Event) {
	if a.alive() != nil {
		return
	}
	a.emit(ev)
}

var _ surface.Adapter = (*Adapter)(nil)

// listener turns view callbacks into bridge events
type listener struct {
	a     *Adapter
	debug bool
}

func (l *listener) OnPageStarted(url string) {
	l.a.forward(types.Event{Type: types.EventLoadStart, URL: url})
}

func (l *listener) OnPageFinished(url, title string) {
	l.a.forward(types.Event{Type: types.EventLoadEnd, URL: url, Title: title})
}

func (l *listener) OnReceivedError(url, description string) {
	l.a.log.Debug("Native load error", zap.String("url", url), zap.String("description", description))
	l.a.forward(types.Event{Type: types.EventError, URL: url, Error: description})
}

func (l *listener) OnTitleChanged(title string) {
	l.a.forward(types.Event{Type: types.EventTitleChange, Title: title})
}

func (l *listener) OnProgressChanged(progress int) {
	l.a.forward(types.Event{Type: types.EventProgress, Progress: min(max(progress, 0), 100)})
}

func (l *listener) OnMessage(data string) {
	if l.debug {
		l.a.log.Info("Page message", zap.String("data", data))
	}
	var payload any = data
	var decoded any
	if err := sonic.UnmarshalString(data, &decoded); err == nil {
		payload = decoded
	}
	l.a.forward(types.Event{Type: types.EventMessage, Data: payload})
}

package webview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/offscreen/internal/domain/platform"
	"github.com/GriffinCanCode/offscreen/internal/domain/preload"
	"github.com/GriffinCanCode/offscreen/internal/domain/surface"
	"github.com/GriffinCanCode/offscreen/internal/providers/storage"
	"github.com/GriffinCanCode/offscreen/internal/shared/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeAdapter is a scriptable backend
type fakeAdapter struct {
	mu         sync.Mutex
	id         string
	emit       surface.Emitter
	log        *zap.Logger
	autoLoad   bool
	failLoad   bool
	blockJS    bool
	destroyErr error

	calls     []string
	history   []string
	pos       int
	visible   []bool
	destroyed bool
}

func (f *fakeAdapter) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.destroyed {
		return types.ErrInstanceDestroyed
	}
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeAdapter) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAdapter) Visible() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.visible...)
}

func (f *fakeAdapter) failDestroy(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyErr = err
}

func (f *fakeAdapter) setBlockJS(block bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockJS = block
}

func (f *fakeAdapter) Destroyed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed
}

func (f *fakeAdapter) commit(url string) {
	f.mu.Lock()
	f.history = append(f.history[:f.pos], url)
	f.pos = len(f.history)
	auto, fail := f.autoLoad, f.failLoad
	f.mu.Unlock()

	f.emit(types.Event{Type: types.EventLoadStart, URL: url})
	switch {
	case fail:
		f.emit(types.Event{Type: types.EventError, URL: url, Error: "connection refused"})
	case auto:
		f.emit(types.Event{Type: types.EventLoadEnd, URL: url, Title: "Title of " + url})
	}
}

// finishLoad simulates the backend signalling load completion
func (f *fakeAdapter) finishLoad(url string) {
	f.emit(types.Event{Type: types.EventLoadEnd, URL: url, Title: "done"})
}

func (f *fakeAdapter) LoadURL(_ context.Context, url string, _ map[string]string) error {
	if err := f.record("load_url " + url); err != nil {
		return err
	}
	f.commit(url)
	return nil
}

func (f *fakeAdapter) LoadHTML(_ context.Context, _, baseURL string) error {
	if err := f.record("load_html"); err != nil {
		return err
	}
	if baseURL == "" {
		baseURL = "about:blank"
	}
	f.commit(baseURL)
	return nil
}

func (f *fakeAdapter) ExecuteJavaScript(ctx context.Context, script string) (any, error) {
	if err := f.record("js " + script); err != nil {
		return nil, err
	}
	f.mu.Lock()
	block := f.blockJS
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return int64(2), nil
}

func (f *fakeAdapter) PageContent(context.Context) (string, error) {
	if err := f.record("content"); err != nil {
		return "", err
	}
	return "<html></html>", nil
}

func (f *fakeAdapter) PageTitle(context.Context) (string, error) {
	if err := f.record("title"); err != nil {
		return "", err
	}
	return "done", nil
}

func (f *fakeAdapter) CurrentURL(context.Context) (string, error) {
	if err := f.record("url"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pos == 0 {
		return "", types.ErrStateUnavailable
	}
	return f.history[f.pos-1], nil
}

func (f *fakeAdapter) GoBack(context.Context) (bool, error) {
	if err := f.record("back"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pos <= 1 {
		return false, nil
	}
	f.pos--
	return true, nil
}

func (f *fakeAdapter) GoForward(context.Context) (bool, error) {
	if err := f.record("forward"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pos >= len(f.history) {
		return false, nil
	}
	f.pos++
	return true, nil
}

func (f *fakeAdapter) Reload(context.Context) error      { return f.record("reload") }
func (f *fakeAdapter) StopLoading(context.Context) error { return f.record("stop") }

func (f *fakeAdapter) CaptureScreenshot(context.Context) (string, error) {
	if err := f.record("capture"); err != nil {
		return "", err
	}
	return "iVBORw0KGgo=", nil
}

func (f *fakeAdapter) SetVisible(_ context.Context, visible bool) error {
	if err := f.record("visible"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = append(f.visible, visible)
	return nil
}

func (f *fakeAdapter) Destroy(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = true
	return f.destroyErr
}

// fakeBackend builds fakeAdapters and remembers them by instance id
type fakeBackend struct {
	mu       sync.Mutex
	adapters map[string]*fakeAdapter
	autoLoad bool
	failLoad bool
	fail     error
}

func (b *fakeBackend) factory(p surface.Params) (surface.Adapter, error) {
	if b.fail != nil {
		return nil, b.fail
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	a := &fakeAdapter{id: p.ID, emit: p.Emit, log: p.Log, autoLoad: b.autoLoad, failLoad: b.failLoad}
	b.adapters[p.ID] = a
	return a, nil
}

func (b *fakeBackend) adapter(instID string) *fakeAdapter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.adapters[instID]
}

type harness struct {
	reg     *Registry
	backend *fakeBackend
	cache   *preload.Cache
	store   *storage.Memory
}

func newHarness(t *testing.T, autoLoad bool, opts ...Option) *harness {
	t.Helper()

	backend := &fakeBackend{adapters: make(map[string]*fakeAdapter), autoLoad: autoLoad}
	catalog := surface.NewCatalog()
	require.NoError(t, catalog.Register(types.PlatformWeb, surface.KindEmbeddedDocument, backend.factory))

	store := storage.NewMemory()
	cache := preload.New(store)
	resolver := platform.NewResolver(platform.StaticProbe("web", ""), catalog)

	reg := NewRegistry(resolver, catalog, cache, append([]Option{WithLoadTimeout(0)}, opts...)...)
	t.Cleanup(func() {
		_ = reg.DestroyAllInstances(context.Background())
	})
	return &harness{reg: reg, backend: backend, cache: cache, store: store}
}

func urlConfig(url string) types.InstanceConfig {
	return types.InstanceConfig{
		Width:        390,
		Height:       844,
		Source:       types.Source{URL: url},
		Preload:      true,
		Capabilities: types.DefaultCapabilities(),
	}
}

func waitLoaded(t *testing.T, inst *Instance) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := inst.WaitLoaded(ctx)
	require.False(t, errors.Is(err, context.DeadlineExceeded), "instance never finished loading")
	return err
}

package native

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/offscreen/internal/domain/surface"
	"github.com/GriffinCanCode/offscreen/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// fakeView plays back platform callbacks synchronously
type fakeView struct {
	mu       sync.Mutex
	listener Listener
	history  []string
	pos      int
	title    string
	hidden   bool
	released bool
	results  map[string]string
	snapshot []byte
	evalErr  error
}

func (v *fakeView) LoadURL(url string, _ map[string]string) error {
	if url == "bad://" {
		return errors.New("unsupported")
	}
	v.commit(url, "Title of "+url)
	return nil
}

func (v *fakeView) LoadHTML(_, baseURL string) error {
	if baseURL == "" {
		baseURL = "about:blank"
	}
	v.commit(baseURL, "Inline")
	return nil
}

func (v *fakeView) commit(url, title string) {
	v.mu.Lock()
	v.history = append(v.history[:v.pos], url)
	v.pos = len(v.history)
	v.title = title
	v.mu.Unlock()

	v.listener.OnPageStarted(url)
	v.listener.OnProgressChanged(100)
	v.listener.OnTitleChanged(title)
	v.listener.OnPageFinished(url, title)
}

func (v *fakeView) Evaluate(ctx context.Context, script string) (string, error) {
	v.mu.Lock()
	err := v.evalErr
	raw, ok := v.results[script]
	v.mu.Unlock()
	if err != nil {
		return "", err
	}
	if script == "hang" {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if !ok {
		return "null", nil
	}
	return raw, nil
}

func (v *fakeView) URL() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pos == 0 {
		return ""
	}
	return v.history[v.pos-1]
}

func (v *fakeView) Title() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.title
}

func (v *fakeView) CanGoBack() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pos > 1
}

func (v *fakeView) CanGoForward() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pos < len(v.history)
}

func (v *fakeView) GoBack() {
	v.mu.Lock()
	v.pos--
	v.mu.Unlock()
}

func (v *fakeView) GoForward() {
	v.mu.Lock()
	v.pos++
	v.mu.Unlock()
}

func (v *fakeView) Reload()      {}
func (v *fakeView) StopLoading() {}

func (v *fakeView) Snapshot(context.Context) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshot, nil
}

func (v *fakeView) SetHidden(hidden bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.hidden = hidden
}

func (v *fakeView) Hidden() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.hidden
}

func (v *fakeView) Release() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.released = true
	return nil
}

type fakeProvider struct {
	views []*fakeView
	spec  ViewSpec
	fail  error
}

func (p *fakeProvider) CreateView(spec ViewSpec, l Listener) (View, error) {
	if p.fail != nil {
		return nil, p.fail
	}
	v := &fakeView{listener: l, results: map[string]string{
		contentScript:        `"<html><body>native</body></html>"`,
		"1 + 1":              "2",
		"({a: [1, 'x']})":    `{"a":[1,"x"]}`,
		"document.body.nope": "undefined",
	}, snapshot: pngHeader}
	p.spec = spec
	p.views = append(p.views, v)
	return v, nil
}

type events struct {
	mu  sync.Mutex
	all []types.Event
}

func (e *events) emit(ev types.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, ev)
}

func (e *events) kinds() []types.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.EventType, 0, len(e.all))
	for _, ev := range e.all {
		out = append(out, ev.Type)
	}
	return out
}

func newNative(t *testing.T, opts ...Option) (*Adapter, *fakeView, *events, *fakeProvider) {
	t.Helper()
	p := &fakeProvider{}
	ev := &events{}
	cfg := types.InstanceConfig{Width: 390, Height: 844, UserAgent: "UA/1", Capabilities: types.DefaultCapabilities()}
	s, err := NewFactory(p, opts...)(surface.Params{ID: "inst-1", Config: cfg, Emit: ev.emit})
	require.NoError(t, err)
	return s.(*Adapter), p.views[0], ev, p
}

func TestNativeCreate(t *testing.T) {
	_, view, _, p := newNative(t)
	assert.Equal(t, "inst-1", p.spec.InstanceID)
	assert.Equal(t, 390, p.spec.Width)
	assert.Equal(t, "UA/1", p.spec.UserAgent)
	assert.True(t, view.Hidden(), "views start hidden unless configured visible")

	_, err := NewFactory(nil)(surface.Params{ID: "x", Emit: func(types.Event) {}})
	assert.ErrorIs(t, err, types.ErrUnsupportedPlatform)

	_, err = NewFactory(&fakeProvider{fail: errors.New("no activity")})(surface.Params{ID: "x", Emit: func(types.Event) {}})
	assert.ErrorContains(t, err, "no activity")
}

func TestNativeNavigationEvents(t *testing.T) {
	a, _, ev, _ := newNative(t)
	ctx := context.Background()

	_, err := a.CurrentURL(ctx)
	assert.ErrorIs(t, err, types.ErrStateUnavailable)

	require.NoError(t, a.LoadURL(ctx, "https://a.test", nil))
	assert.Equal(t, []types.EventType{
		types.EventLoadStart, types.EventProgress, types.EventTitleChange, types.EventLoadEnd,
	}, ev.kinds())

	url, err := a.CurrentURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://a.test", url)

	title, err := a.PageTitle(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Title of https://a.test", title)

	content, err := a.PageContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "<html><body>native</body></html>", content)

	assert.ErrorIs(t, a.LoadURL(ctx, "bad://", nil), types.ErrNavigation)
}

func TestNativeHistory(t *testing.T) {
	a, _, _, _ := newNative(t)
	ctx := context.Background()

	back, err := a.GoBack(ctx)
	require.NoError(t, err)
	assert.False(t, back)

	require.NoError(t, a.LoadURL(ctx, "https://a.test", nil))
	require.NoError(t, a.LoadHTML(ctx, "<p>x</p>", "https://b.test"))

	back, err = a.GoBack(ctx)
	require.NoError(t, err)
	assert.True(t, back)
	url, _ := a.CurrentURL(ctx)
	assert.Equal(t, "https://a.test", url)

	forward, err := a.GoForward(ctx)
	require.NoError(t, err)
	assert.True(t, forward)

	forward, err = a.GoForward(ctx)
	require.NoError(t, err)
	assert.False(t, forward)
}

func TestNativeExecuteJavaScript(t *testing.T) {
	a, view, _, _ := newNative(t, WithScriptTimeout(50*time.Millisecond))
	ctx := context.Background()

	tests := []struct {
		script string
		want   any
	}{
		{script: "1 + 1", want: float64(2)},
		{script: "({a: [1, 'x']})", want: map[string]any{"a": []any{float64(1), "x"}}},
		{script: "document.body.nope", want: nil},
		{script: "unknown()", want: nil},
	}
	for _, tt := range tests {
		got, err := a.ExecuteJavaScript(ctx, tt.script)
		require.NoError(t, err, tt.script)
		assert.Equal(t, tt.want, got, tt.script)
	}

	_, err := a.ExecuteJavaScript(ctx, "hang")
	assert.ErrorIs(t, err, types.ErrScript)

	view.mu.Lock()
	view.results["broken"] = "{not json"
	view.mu.Unlock()
	_, err = a.ExecuteJavaScript(ctx, "broken")
	assert.ErrorIs(t, err, types.ErrScript)

	view.mu.Lock()
	view.evalErr = errors.New("ReferenceError: x is not defined")
	view.mu.Unlock()
	_, err = a.ExecuteJavaScript(ctx, "x")
	assert.ErrorIs(t, err, types.ErrScript)
	assert.ErrorContains(t, err, "ReferenceError")
}

func TestNativeCaptureScreenshot(t *testing.T) {
	a, view, _, _ := newNative(t)
	ctx := context.Background()

	b64, err := a.CaptureScreenshot(ctx)
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, raw)

	view.mu.Lock()
	view.snapshot = nil
	view.mu.Unlock()
	_, err = a.CaptureScreenshot(ctx)
	assert.ErrorIs(t, err, types.ErrCapture)

	view.mu.Lock()
	view.snapshot = []byte("GIF89a......")
	view.mu.Unlock()
	_, err = a.CaptureScreenshot(ctx)
	assert.ErrorIs(t, err, types.ErrCapture)
}

func TestNativeMessages(t *testing.T) {
	a, view, ev, _ := newNative(t)
	_ = a

	view.listener.OnMessage(`{"kind":"ready"}`)
	view.listener.OnMessage("plain text")
	view.listener.OnProgressChanged(140)

	ev.mu.Lock()
	defer ev.mu.Unlock()
	require.Len(t, ev.all, 3)
	assert.Equal(t, map[string]any{"kind": "ready"}, ev.all[0].Data)
	assert.Equal(t, "plain text", ev.all[1].Data)
	assert.Equal(t, 100, ev.all[2].Progress)
}

func TestNativeDestroy(t *testing.T) {
	a, view, ev, _ := newNative(t)
	ctx := context.Background()

	require.NoError(t, a.SetVisible(ctx, true))
	assert.False(t, view.Hidden())

	require.NoError(t, a.Destroy(ctx))
	require.NoError(t, a.Destroy(ctx))
	assert.True(t, view.released)

	assert.ErrorIs(t, a.LoadURL(ctx, "https://a.test", nil), types.ErrInstanceDestroyed)
	_, err := a.ExecuteJavaScript(ctx, "1 + 1")
	assert.ErrorIs(t, err, types.ErrInstanceDestroyed)
	_, err = a.CaptureScreenshot(ctx)
	assert.ErrorIs(t, err, types.ErrInstanceDestroyed)
	assert.ErrorIs(t, a.SetVisible(ctx, false), types.ErrInstanceDestroyed)

	view.listener.OnPageStarted("https://late.test")
	assert.Empty(t, ev.kinds(), "callbacks after destroy are dropped")
}

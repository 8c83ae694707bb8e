package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/offscreen/internal/domain/platform"
	"github.com/GriffinCanCode/offscreen/internal/domain/preload"
	"github.com/GriffinCanCode/offscreen/internal/domain/surface"
	"github.com/GriffinCanCode/offscreen/internal/domain/webview"
	"github.com/GriffinCanCode/offscreen/internal/providers/http/client"
	"github.com/GriffinCanCode/offscreen/internal/providers/storage"
	"github.com/GriffinCanCode/offscreen/internal/providers/surface/document"
	"github.com/GriffinCanCode/offscreen/internal/shared/types"
	"github.com/GriffinCanCode/offscreen/internal/shared/utils"
)

type apiHarness struct {
	router   *gin.Engine
	registry *webview.Registry
}

func newAPI(t *testing.T) *apiHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := client.DefaultConfig()
	cfg.RetryMax = 0
	cfg.Timeout = 2 * time.Second

	catalog := surface.NewCatalog()
	require.NoError(t, catalog.Register(types.PlatformWeb, surface.KindEmbeddedDocument,
		document.NewFactory(client.New(cfg))))

	resolver := platform.NewResolver(platform.StaticProbe("linux", ""), catalog)
	reg := webview.NewRegistry(resolver, catalog, preload.New(storage.NewMemory()),
		webview.WithLoadTimeout(5*time.Second))
	t.Cleanup(func() {
		_ = reg.DestroyAllInstances(context.Background())
	})

	router := gin.New()
	NewHandlers(reg, WithWaitTimeout(3*time.Second)).Register(router.Group("/v1"))
	return &apiHarness{router: router, registry: reg}
}

func (h *apiHarness) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := sonic.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func (h *apiHarness) create(t *testing.T, body any) string {
	t.Helper()
	status, out := h.do(t, http.MethodPost, "/v1/instances", body)
	require.Equal(t, http.StatusCreated, status, out)
	instID, _ := out["id"].(string)
	require.NotEmpty(t, instID)
	return instID
}

func htmlBody(markup string) map[string]any {
	return map[string]any{"source": map[string]any{"html": markup}}
}

func TestPlatform(t *testing.T) {
	h := newAPI(t)
	status, out := h.do(t, http.MethodGet, "/v1/platform", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "web", out["platform"])
	assert.Equal(t, true, out["supported"])
	assert.Equal(t, "1.0.0", out["version"])
	assert.Equal(t, []any{"web"}, out["backends"])
}

func TestInstanceLifecycle(t *testing.T) {
	h := newAPI(t)
	instID := h.create(t, htmlBody("<html><head><title>Hi</title></head><body><p>x</p></body></html>"))
	base := "/v1/instances/" + instID

	status, out := h.do(t, http.MethodPost, base+"/wait", nil)
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, true, out["loaded"])
	assert.Equal(t, "loaded", out["state"])

	status, out = h.do(t, http.MethodGet, base+"/title", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Hi", out["title"])

	status, out = h.do(t, http.MethodGet, base+"/content", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, out["content"], "<p>x</p>")

	status, out = h.do(t, http.MethodPost, base+"/script", ScriptRequest{Script: "1 + 1"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), out["result"])

	status, out = h.do(t, http.MethodPost, base+"/show", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "visible", out["state"])
	assert.Equal(t, true, out["visible"])

	status, out = h.do(t, http.MethodPost, base+"/hide", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hidden", out["state"])

	status, _ = h.do(t, http.MethodGet, "/v1/instances", nil)
	assert.Equal(t, http.StatusOK, status)

	status, out = h.do(t, http.MethodGet, "/v1/stats", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), out["total"])
	assert.Equal(t, float64(1), out["hidden"])

	status, _ = h.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = h.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, status, "destroy is idempotent")

	status, out = h.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusGone, status)
	assert.Contains(t, out["error"], "instance destroyed")
	status, _ = h.do(t, http.MethodPost, base+"/reload", nil)
	assert.Equal(t, http.StatusGone, status)
	status, _ = h.do(t, http.MethodGet, base+"/title", nil)
	assert.Equal(t, http.StatusGone, status)
	assert.Equal(t, 0, h.registry.InstanceCount())

	status, out = h.do(t, http.MethodGet, "/v1/instances/wv_never_issued", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, out["error"], "not found")
}

func TestCreateInstanceErrors(t *testing.T) {
	h := newAPI(t)

	tests := []struct {
		name string
		body any
	}{
		{name: "no source", body: map[string]any{"width": 100}},
		{name: "both sources", body: map[string]any{"source": map[string]any{"url": "https://a.test", "html": "<p/>"}}},
		{name: "bad url", body: map[string]any{"source": map[string]any{"url": "not a url"}}},
		{name: "bad cache mode", body: map[string]any{
			"source":       map[string]any{"html": "<p/>"},
			"capabilities": map[string]any{"cache_mode": "sometimes"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := h.do(t, http.MethodPost, "/v1/instances", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.NotEmpty(t, out["error"])
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/instances", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNavigateAndPreload(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "<html><head><title>%s</title></head><body></body></html>", r.URL.Path)
	}))
	defer site.Close()

	h := newAPI(t)
	source := site.URL + "/first"
	instID := h.create(t, map[string]any{"source": map[string]any{"url": source}})
	base := "/v1/instances/" + instID

	status, out := h.do(t, http.MethodPost, base+"/wait?timeout=2s", nil)
	require.Equal(t, http.StatusOK, status, out)
	assert.Empty(t, out["load_error"])

	query := "/v1/preload?source=" + url.QueryEscape(source)
	_, out = h.do(t, http.MethodGet, query, nil)
	assert.Equal(t, true, out["warm"])
	assert.Equal(t, false, out["inline"])

	status, _ = h.do(t, http.MethodPost, base+"/navigate", NavigateRequest{URL: site.URL + "/second"})
	assert.Equal(t, http.StatusAccepted, status)

	require.Eventually(t, func() bool {
		_, out := h.do(t, http.MethodGet, base+"/title", nil)
		return out["title"] == "/second"
	}, 3*time.Second, 20*time.Millisecond)

	status, out = h.do(t, http.MethodPost, base+"/back", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, out["moved"])

	require.Eventually(t, func() bool {
		_, out := h.do(t, http.MethodGet, base+"/url", nil)
		return out["url"] == source
	}, 3*time.Second, 20*time.Millisecond)

	status, _ = h.do(t, http.MethodDelete, "/v1/preload", nil)
	assert.Equal(t, http.StatusNoContent, status)
	_, out = h.do(t, http.MethodGet, query, nil)
	assert.Equal(t, false, out["warm"])

	status, _ = h.do(t, http.MethodGet, "/v1/preload", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = h.do(t, http.MethodGet, "/v1/preload?source=not-a-url", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	markupKey := utils.ContentKey(types.Source{HTML: "<p>x</p>"})
	status, out = h.do(t, http.MethodGet, "/v1/preload?source="+url.QueryEscape(markupKey), nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, out["inline"])
}

func TestOperationErrors(t *testing.T) {
	h := newAPI(t)
	instID := h.create(t, htmlBody("<p>x</p>"))
	base := "/v1/instances/" + instID

	status, _ := h.do(t, http.MethodPost, base+"/wait", nil)
	require.Equal(t, http.StatusOK, status)

	status, out := h.do(t, http.MethodPost, base+"/screenshot", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, out["error"], "capture")

	status, _ = h.do(t, http.MethodPost, base+"/script", ScriptRequest{Script: "throw new Error('boom')"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = h.do(t, http.MethodPost, base+"/script", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = h.do(t, http.MethodPost, base+"/navigate", NavigateRequest{URL: "ftp://a.test"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = h.do(t, http.MethodPost, base+"/wait?timeout=soon", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = h.do(t, http.MethodGet, "/v1/instances/missing/title", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, out = h.do(t, http.MethodGet, "/v1/instances/bad.id", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, out["error"], "invalid characters")
	status, _ = h.do(t, http.MethodDelete, "/v1/instances/bad.id", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{types.ErrInvalidConfig, http.StatusBadRequest},
		{fmt.Errorf("load: %w", types.ErrNavigation), http.StatusBadRequest},
		{types.ErrInstanceNotFound, http.StatusNotFound},
		{types.ErrInstanceDestroyed, http.StatusGone},
		{types.ErrStateUnavailable, http.StatusConflict},
		{types.ErrScript, http.StatusUnprocessableEntity},
		{types.ErrCapture, http.StatusUnprocessableEntity},
		{types.ErrUnsupportedPlatform, http.StatusNotImplemented},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), "%v", tt.err)
	}
}

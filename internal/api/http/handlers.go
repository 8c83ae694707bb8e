package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/offscreen/internal/domain/webview"
	"github.com/GriffinCanCode/offscreen/internal/shared/types"
	"github.com/GriffinCanCode/offscreen/internal/shared/utils"
)

// DefaultWaitTimeout bounds POST /instances/:id/wait when no timeout is given
const DefaultWaitTimeout = 30 * time.Second

// Handlers contains the control API handlers
type Handlers struct {
	registry    *webview.Registry
	log         *zap.Logger
	waitTimeout time.Duration
}

// Option configures Handlers
type Option func(*Handlers)

// WithLogger sets the handler logger
func WithLogger(log *zap.Logger) Option {
	return func(h *Handlers) {
		if log != nil {
			h.log = log
		}
	}
}

// WithWaitTimeout bounds wait requests without an explicit timeout
func WithWaitTimeout(d time.Duration) Option {
	return func(h *Handlers) {
		if d > 0 {
			h.waitTimeout = d
		}
	}
}

// NewHandlers creates a handler set over registry
func NewHandlers(registry *webview.Registry, opts ...Option) *Handlers {
	h := &Handlers{
		registry:    registry,
		log:         zap.NewNop(),
		waitTimeout: DefaultWaitTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the routes on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/platform", h.Platform)
	r.GET("/stats", h.Stats)

	r.GET("/preload", h.CheckPreload)
	r.DELETE("/preload", h.InvalidatePreload)

	instances := r.Group("/instances")
	instances.POST("", h.CreateInstance)
	instances.GET("", h.ListInstances)

	inst := instances.Group("/:id", h.lookup)
	inst.GET("", h.GetInstance)
	inst.DELETE("", h.DestroyInstance)

	inst.POST("/navigate", h.Navigate)
	inst.POST("/html", h.LoadHTML)
	inst.POST("/script", h.ExecuteScript)
	inst.POST("/show", h.Show)
	inst.POST("/hide", h.Hide)
	inst.POST("/back", h.GoBack)
	inst.POST("/forward", h.GoForward)
	inst.POST("/reload", h.Reload)
	inst.POST("/stop", h.StopLoading)
	inst.POST("/screenshot", h.Screenshot)
	inst.POST("/wait", h.Wait)

	inst.GET("/content", h.Content)
	inst.GET("/title", h.Title)
	inst.GET("/url", h.URL)
}

const instanceKey = "instance"

// lookup resolves :id. Destroyed ids answer 410, except DELETE which
// tolerates destroyed and unknown ids alike.
func (h *Handlers) lookup(c *gin.Context) {
	instID := c.Param("id")
	if err := utils.ValidateID(instID, "instance id"); err != nil {
		badRequest(c, err)
		return
	}
	inst, err := h.registry.Get(instID)
	if err != nil {
		gone := errors.Is(err, types.ErrInstanceNotFound) || errors.Is(err, types.ErrInstanceDestroyed)
		if c.Request.Method == http.MethodDelete && gone {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		abort(c, err)
		return
	}
	c.Set(instanceKey, inst)
	c.Next()
}

func instance(c *gin.Context) *webview.Instance {
	return c.MustGet(instanceKey).(*webview.Instance)
}

// Platform reports the resolved host platform
func (h *Handlers) Platform(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"platform":  h.registry.Platform(),
		"supported": h.registry.IsSupported(),
		"backends":  h.registry.Backends(),
		"version":   h.registry.Version(),
	})
}

// Stats reports instance counts by state
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.Stats())
}

// CreateInstance creates an instance from an InstanceConfig body
func (h *Handlers) CreateInstance(c *gin.Context) {
	cfg := newInstanceConfig()
	if err := c.ShouldBindJSON(&cfg); err != nil {
		badRequest(c, fmt.Errorf("%w: %v", types.ErrInvalidConfig, err))
		return
	}

	inst, err := h.registry.CreateInstance(c.Request.Context(), cfg)
	if err != nil {
		h.log.Warn("Create instance failed", zap.Error(err))
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreateResponse{
		ID:        inst.ID(),
		State:     inst.State(),
		WarmStart: inst.WarmStart(),
	})
}

// ListInstances lists live instances in creation order
func (h *Handlers) ListInstances(c *gin.Context) {
	live := h.registry.List()
	out := make([]InstanceSummary, 0, len(live))
	for _, inst := range live {
		out = append(out, summarize(inst.Snapshot()))
	}
	c.JSON(http.StatusOK, gin.H{"instances": out})
}

// GetInstance returns the instance snapshot
func (h *Handlers) GetInstance(c *gin.Context) {
	c.JSON(http.StatusOK, instance(c).Snapshot())
}

// DestroyInstance destroys the instance
func (h *Handlers) DestroyInstance(c *gin.Context) {
	inst := instance(c)
	if err := inst.Destroy(c.Request.Context()); err != nil {
		h.log.Warn("Destroy failed", zap.String("instance_id", inst.ID()), zap.Error(err))
		abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Navigate loads a URL
func (h *Handlers) Navigate(c *gin.Context) {
	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.accepted(c, instance(c).LoadURL(c.Request.Context(), req.URL, req.Headers))
}

// LoadHTML loads inline markup
func (h *Handlers) LoadHTML(c *gin.Context) {
	var req HTMLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.accepted(c, instance(c).LoadHTML(c.Request.Context(), req.HTML, req.BaseURL))
}

// ExecuteScript evaluates a script and returns its result
func (h *Handlers) ExecuteScript(c *gin.Context) {
	var req ScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := instance(c).ExecuteJavaScript(c.Request.Context(), req.Script)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// Show makes the instance visible
func (h *Handlers) Show(c *gin.Context) {
	h.respondState(c, instance(c).Show(c.Request.Context()))
}

// Hide hides the instance
func (h *Handlers) Hide(c *gin.Context) {
	h.respondState(c, instance(c).Hide(c.Request.Context()))
}

// GoBack moves back in history
func (h *Handlers) GoBack(c *gin.Context) {
	h.respondMove(c, instance(c).GoBack)
}

// GoForward moves forward in history
func (h *Handlers) GoForward(c *gin.Context) {
	h.respondMove(c, instance(c).GoForward)
}

// Reload reloads the current document
func (h *Handlers) Reload(c *gin.Context) {
	h.accepted(c, instance(c).Reload(c.Request.Context()))
}

// StopLoading aborts the navigation in flight
func (h *Handlers) StopLoading(c *gin.Context) {
	h.accepted(c, instance(c).StopLoading(c.Request.Context()))
}

// Screenshot captures the surface as a base64 PNG
func (h *Handlers) Screenshot(c *gin.Context) {
	image, err := instance(c).CaptureScreenshot(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"format": "png", "image": image})
}

// Wait blocks until the initial load settles. ?timeout= takes a Go duration.
func (h *Handlers) Wait(c *gin.Context) {
	timeout := h.waitTimeout
	if raw := c.Query("timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			badRequest(c, fmt.Errorf("invalid timeout %q", raw))
			return
		}
		timeout = d
	}

	inst := instance(c)
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	err := inst.WaitLoaded(ctx)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, types.ErrInstanceDestroyed):
		abort(c, err)
	default:
		// A failed load still settles; the snapshot carries load_error.
		c.JSON(http.StatusOK, inst.Snapshot())
	}
}

// Content returns the serialized document
func (h *Handlers) Content(c *gin.Context) {
	content, err := instance(c).PageContent(c.Request.Context())
	h.respondString(c, "content", content, err)
}

// Title returns the document title
func (h *Handlers) Title(c *gin.Context) {
	title, err := instance(c).PageTitle(c.Request.Context())
	h.respondString(c, "title", title, err)
}

// URL returns the current document URL
func (h *Handlers) URL(c *gin.Context) {
	url, err := instance(c).CurrentURL(c.Request.Context())
	h.respondString(c, "url", url, err)
}

// CheckPreload reports whether ?source= holds a valid preload record
func (h *Handlers) CheckPreload(c *gin.Context) {
	source := c.Query("source")
	if source == "" {
		badRequest(c, errors.New("source is required"))
		return
	}
	inline := utils.IsMarkupKey(source)
	if !inline {
		if _, err := utils.ValidateURL(source, true); err != nil {
			badRequest(c, err)
			return
		}
	}
	warm := h.registry.Preload().CheckWarm(c.Request.Context(), source)
	c.JSON(http.StatusOK, gin.H{"source": source, "inline": inline, "warm": warm})
}

// InvalidatePreload clears the preload record
func (h *Handlers) InvalidatePreload(c *gin.Context) {
	if err := h.registry.Preload().Invalidate(c.Request.Context()); err != nil {
		abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) accepted(c *gin.Context, err error) {
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (h *Handlers) respondState(c *gin.Context, err error) {
	if err != nil {
		abort(c, err)
		return
	}
	inst := instance(c)
	c.JSON(http.StatusOK, gin.H{"state": inst.State(), "visible": inst.IsVisible()})
}

func (h *Handlers) respondMove(c *gin.Context, move func(context.Context) (bool, error)) {
	moved, err := move(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"moved": moved})
}

func (h *Handlers) respondString(c *gin.Context, key, value string, err error) {
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{key: value})
}

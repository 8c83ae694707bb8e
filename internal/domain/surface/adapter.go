// Package surface defines the uniform capability set every rendering backend
// exposes, and the catalog mapping platforms to backend constructors.
package surface

import (
	"context"

	"github.com/GriffinCanCode/offscreen/internal/shared/types"
	"go.uber.org/zap"
)

// Kind names a backend family
type Kind string

const (
	KindMobileNative     Kind = "mobile_native"
	KindEmbeddedDocument Kind = "embedded_document"
)

// Adapter wraps a single rendering surface.
//
// Navigation methods return once the load has been dispatched. Completion is
// reported through the Emitter handed to the Factory. After Destroy every
// other method fails with types.ErrInstanceDestroyed.
type Adapter interface {
	LoadURL(ctx context.Context, url string, headers map[string]string) error
	LoadHTML(ctx context.Context, markup, baseURL string) error
	ExecuteJavaScript(ctx context.Context, script string) (any, error)

	PageContent(ctx context.Context) (string, error)
	PageTitle(ctx context.Context) (string, error)
	CurrentURL(ctx context.Context) (string, error)

	GoBack(ctx context.Context) (bool, error)
	GoForward(ctx context.Context) (bool, error)
	Reload(ctx context.Context) error
	StopLoading(ctx context.Context) error

	// CaptureScreenshot returns a base64 encoded PNG
	CaptureScreenshot(ctx context.Context) (string, error)
	SetVisible(ctx context.Context, visible bool) error
	Destroy(ctx context.Context) error
}

// Emitter receives backend signals. It may be called from any goroutine.
type Emitter func(types.Event)

// Params is what a Factory receives for one instance
type Params struct {
	ID     string
	Config types.InstanceConfig
	Emit   Emitter
	// Log is already tagged with the instance. Nil leaves the factory's own logger.
	Log *zap.Logger
}

// Factory constructs an adapter for one instance
type Factory func(p Params) (Adapter, error)

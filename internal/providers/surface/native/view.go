package native

import (
	"context"

	"github.com/GriffinCanCode/offscreen/internal/shared/types"
)

// View is one platform webview. Implementations marshal calls onto the UI
// thread and must be safe for use from any goroutine.
type View interface {
	LoadURL(url string, headers map[string]string) error
	LoadHTML(markup, baseURL string) error
	// Evaluate returns the script's completion value encoded as JSON
	Evaluate(ctx context.Context, script string) (string, error)

	URL() string
	Title() string
	CanGoBack() bool
	CanGoForward() bool
	GoBack()
	GoForward()
	Reload()
	StopLoading()

	// Snapshot rasterizes the view as PNG
	Snapshot(ctx context.Context) ([]byte, error)
	SetHidden(hidden bool)
	Release() error
}

// Listener receives the view's callbacks
type Listener interface {
	OnPageStarted(url string)
	OnPageFinished(url, title string)
	OnReceivedError(url, description string)
	OnTitleChanged(title string)
	OnProgressChanged(progress int)
	// OnMessage carries a postMessage payload as sent by the page
	OnMessage(data string)
}

// ViewSpec is what a provider needs to build a view
type ViewSpec struct {
	InstanceID     string
	Width          int
	Height         int
	Capabilities   types.Capabilities
	UserAgent      string
	InjectedScript string
	Debug          bool
}

// ViewProvider creates views on the host
type ViewProvider interface {
	CreateView(spec ViewSpec, listener Listener) (View, error)
}

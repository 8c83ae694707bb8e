package types

import "errors"

var (
	// ErrUnsupportedPlatform is returned when no backend adapter is registered for the host.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrInvalidConfig is returned for malformed creation parameters.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrNavigation is returned when a navigation request cannot be dispatched.
	ErrNavigation = errors.New("navigation error")
	// ErrScript is returned when script evaluation fails or times out.
	ErrScript = errors.New("script error")
	// ErrStateUnavailable is returned when reading document state before any document loaded.
	ErrStateUnavailable = errors.New("state unavailable")
	// ErrCapture is returned when the surface has nothing it can rasterize.
	ErrCapture = errors.New("capture error")
	// ErrInstanceDestroyed is returned by every operation issued after destroy.
	ErrInstanceDestroyed = errors.New("instance destroyed")
	// ErrInstanceNotFound is returned when the registry holds no instance for an id.
	ErrInstanceNotFound = errors.New("instance not found")
	// ErrLoadTimeout is recorded when the backend never signals load completion.
	ErrLoadTimeout = errors.New("load timeout")
)

// Package types provides shared data structures for the offscreen surface service.
//
// This package defines the types every layer agrees on, from the backend
// adapters up to the HTTP API, so that no layer has to import another's
// implementation to exchange values.
//
// Core Types:
//   - InstanceConfig: Immutable creation parameters for a surface
//   - Source: Initial content (remote address or inline markup)
//   - PlatformID: Recognized host platforms
//   - State: Lifecycle states of an instance
//   - Event: Normalized backend signal (load, error, title, progress, message)
//   - Stats: Registry statistics
//
// Errors:
//   - ErrUnsupportedPlatform, ErrInvalidConfig: creation failures
//   - ErrNavigation, ErrScript, ErrStateUnavailable, ErrCapture: operation failures
//   - ErrInstanceDestroyed: any operation after destroy
//
// Example Usage:
//
//	cfg := types.InstanceConfig{
//	    Width:   390,
//	    Height:  844,
//	    Source:  types.Source{URL: "https://example.com"},
//	    Preload: true,
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package types

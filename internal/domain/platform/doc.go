// Package platform resolves which backend family serves the current host.
//
// Detection combines a primary host signal (the operating system the
// surface runs on) with a secondary descriptor signal (a user agent or
// device brand string) used only to tell sub-variants of the same primary
// platform apart. When the two disagree the primary signal wins.
//
// Detection is pure: it never panics, never caches, and any host it cannot
// classify resolves to types.PlatformUnknown.
//
// Example Usage:
//
//	resolver := platform.NewResolver(platform.RuntimeProbe, catalog)
//	if !resolver.IsSupported() {
//	    return types.ErrUnsupportedPlatform
//	}
package platform

// Command server runs the offscreen webview service.
//
// Configuration is layered: built-in defaults, then the optional file given by
// -config (or OFFSCREEN_CONFIG), then OFFSCREEN_* environment variables, then
// flags.
//
// Usage:
//
//	server [-config offscreen.toml] [-port 8000] [-host 0.0.0.0]
//	       [-log-level info] [-dev] [-host-os linux] [-store preload.json]
//
// SIGINT and SIGTERM stop the HTTP listener and destroy every live instance
// before the process exits.
package main

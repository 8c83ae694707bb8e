// Package server composes the offscreen service.
//
// This package wires every component:
//   - zap logging and the prometheus metrics registry
//   - the outbound fetch client (retries, rate limit, per-origin breakers)
//   - the backend catalog: the embedded-document adapter for web hosts, and
//     the mobile-native adapter when a native view provider is supplied
//   - the platform resolver, preload cache (file or memory store) and
//     instance registry
//   - the gin router with middleware, the /v1 control API and the event stream
//
// Server Lifecycle:
//  1. Load configuration (defaults, file, environment, flags)
//  2. NewServer builds the object graph
//  3. Run serves HTTP until Shutdown
//  4. Shutdown drains HTTP and destroys every instance
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go srv.Run()
//	defer srv.Shutdown(ctx)
package server

// Package config provides layered configuration for the offscreen service.
//
// Precedence, lowest first: Default(), an optional .toml/.yaml/.yml file,
// environment variables, then CLI flags applied by cmd/server.
//
// Configuration Sections:
//   - Server: listen address and shutdown grace period
//   - Logging: log level and output format
//   - WebView: platform overrides, warm-up, preload window, timeouts, store
//   - HTTP: outbound document fetching (timeouts, retries, rate)
//   - RateLimit: per-IP limiting of the control API
//   - CORS: allowed origins of the control API
//
// Example Usage:
//
//	cfg, err := config.Load("offscreen.toml")
//	if err != nil { ... }
//	fmt.Printf("Listening on %s\n", cfg.Server.Addr())
//
// Environment Variables (each also accepted with the OFFSCREEN_<SECTION>_ prefix):
//   - PORT, HOST, SHUTDOWN_TIMEOUT
//   - LOG_LEVEL, LOG_DEV
//   - HOST_OS, HOST_DESCRIPTOR, WARMUP_DELAY, PRELOAD_VALIDITY, LOAD_TIMEOUT,
//     SCRIPT_TIMEOUT, STORE_PATH, USER_AGENT, EVENT_BUFFER, RESPONSE_CACHE_ENTRIES
//   - FETCH_TIMEOUT, FETCH_RETRY_MAX, FETCH_RETRY_WAIT_MIN, FETCH_RETRY_WAIT_MAX,
//     FETCH_RPS, FETCH_MAX_BODY
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - CORS_ORIGINS
package config

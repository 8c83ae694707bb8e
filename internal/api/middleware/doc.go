// Package middleware provides the HTTP middleware of the control API.
//
// Middleware stack includes:
//   - RequestID: propagates or assigns an X-Request-ID (uuid)
//   - AccessLog: one zap line per request, level by status class
//   - CORS: cross-origin resource sharing with configurable origins
//   - RateLimit: per-IP token bucket rate limiting with idle eviction
//   - GlobalRateLimit: a single bucket shared by every client
//
// Example Usage:
//
//	router.Use(middleware.RequestID(), middleware.AccessLog(log))
//	router.Use(middleware.CORS(middleware.CORSFor(cfg.CORS.AllowOrigins)))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware

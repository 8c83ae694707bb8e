// Package client fetches documents for the embedded-document surface.
//
// Requests go through four layers, outermost first:
//   - a per-origin circuit breaker (resilience.Group keyed by host)
//   - a shared token-bucket limiter (golang.org/x/time/rate)
//   - go-resty/resty for request building and headers
//   - hashicorp/go-retryablehttp as the transport, retrying connection
//     failures and 5xx responses with exponential backoff
//
// Responses with any status are returned to the caller; only transport
// failures and exhausted 5xx retries count against the origin's breaker.
//
// Example Usage:
//
//	c := client.New(client.DefaultConfig(), client.WithLogger(log))
//	resp, err := c.Fetch(ctx, "https://example.com", nil)
package client

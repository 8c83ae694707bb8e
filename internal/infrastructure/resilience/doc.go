/*
Package resilience provides circuit breaker implementation for graceful degradation.

# Overview

This package implements the circuit breaker pattern to prevent cascading failures
and provide graceful degradation when services become unavailable or slow.

# Features

- Three-state circuit breaker (Closed, Open, Half-Open)
- Configurable failure thresholds and timeouts
- Per-key breaker groups (one breaker per remote origin)
- Pluggable success classification and clock
- State change callbacks for monitoring

# Usage

	// Create a circuit breaker
	breaker := resilience.New("service", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to resilience.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	// Execute request through breaker
	body, err := resilience.Do(breaker, func() ([]byte, error) {
		return fetch(ctx, url)
	})

	// One breaker per origin
	origins := resilience.NewGroup("fetch", settings)
	_, err = resilience.Do(origins.Get(host), fetchFn)

# States

- Closed: Normal operation, requests pass through
- Open: Service unavailable, requests fail immediately
- Half-Open: Testing if service recovered, limited requests allowed

# Pattern

The circuit breaker transitions between states based on success/failure rates:

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience

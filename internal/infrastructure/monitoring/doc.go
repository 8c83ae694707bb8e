/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the surface
service, tracking HTTP requests, instance lifecycles, instance operations,
preload cache effectiveness, backend events and outbound document fetches.

Every Metrics value owns its registry, so independent registries and tests
never collide on metric names.

# Features

- HTTP request metrics (latency, throughput, size)
- Instance lifecycle metrics (created, destroyed, transitions, load time)
- Operation metrics (duration, status per operation)
- Preload cache metrics (warm/cold lookups, commits)
- Event bridge metrics (published, dropped)
- WebSocket connection metrics

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Time operations
	timer := monitoring.NewTimer(metrics, "load_url")
	// ... perform operation ...
	timer.StopErr(err)

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring

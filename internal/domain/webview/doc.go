// Package webview orchestrates offscreen surface instances.
//
// A Registry resolves the host platform, picks the registered backend
// factory, assigns each instance a prefixed ULID and owns the live set.
// An Instance wraps one backend adapter behind a lifecycle machine:
//
//   - Operations on one instance run in issue order on a dedicated goroutine.
//     Callers block until their operation completes, their context ends, or
//     the instance is destroyed.
//   - Backend callbacks are queued onto the same goroutine before they touch
//     instance state, then fanned out to subscribers through a Bridge.
//   - Destroy is idempotent. It releases every waiter with
//     types.ErrInstanceDestroyed and closes all subscriptions.
//
// Warm-up: an instance created with Preload (or whose source is still warm
// in the preload cache) navigates immediately. Otherwise navigation starts
// after the warm-up delay, unless an explicit navigation arrives first.
//
// Example Usage:
//
//	reg := webview.NewRegistry(resolver, catalog, cache,
//	    webview.WithLogger(log), webview.WithMetrics(metrics))
//	inst, err := reg.CreateInstance(ctx, types.InstanceConfig{
//	    Source:  types.Source{URL: "https://example.com"},
//	    Preload: true,
//	})
//	if err := inst.WaitLoaded(ctx); err != nil {
//	    log.Warn("Preload failed", zap.Error(err))
//	}
//	_ = inst.Show(ctx)
//	defer inst.Destroy(ctx)
package webview

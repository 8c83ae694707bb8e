// Package ws streams instance events to WebSocket clients.
//
// A connection is bound to one instance and receives every event the
// instance's bridge publishes, as JSON, in publish order. The stream ends
// when the client disconnects or the instance is destroyed.
//
// Message Types (Client → Server):
//   - ping: keep-alive, answered with pong
//   - snapshot: request the current instance snapshot
//
// Message Types (Server → Client):
//   - system: subscription established
//   - load_start, load_end, error, title_change, progress, message: bridge events
//   - pong, snapshot: replies
//   - closed: the instance was destroyed
//   - error: the request was not understood
//
// A slow client never stalls the instance: the bridge drops events for a
// full subscription buffer and counts them.
//
// Example Usage:
//
//	handler := ws.NewHandler(registry, ws.WithMetrics(metrics))
//	router.GET("/v1/instances/:id/events", handler.HandleConnection)
package ws

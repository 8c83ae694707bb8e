// Package lifecycle implements the per-instance state machine.
//
// States:
//
//	uninitialized -> preloading -> loaded <-> {visible, hidden}
//	any state -> destroyed (terminal)
//
// Show and Hide before load only record the intended visibility; the intent
// is applied the moment the load completes. A failed load still completes
// the preloading -> loaded transition and the failure is kept for
// observability.
//
// Reads (State, IsLoaded, IsVisible) are lock-free and never block.
package lifecycle

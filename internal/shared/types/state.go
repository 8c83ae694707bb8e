package types

// State represents instance lifecycle states
type State string

const (
	StateUninitialized State = "uninitialized"
	StatePreloading    State = "preloading"
	StateLoaded        State = "loaded"
	StateVisible       State = "visible"
	StateHidden        State = "hidden"
	StateDestroyed     State = "destroyed"
)

// IsLoaded reports whether the state is at or past load completion.
func (s State) IsLoaded() bool {
	switch s {
	case StateLoaded, StateVisible, StateHidden:
		return true
	default:
		return false
	}
}

// Stats contains registry statistics
type Stats struct {
	Total     int        `json:"total"`
	Loading   int        `json:"loading"`
	Loaded    int        `json:"loaded"`
	Visible   int        `json:"visible"`
	Hidden    int        `json:"hidden"`
	Platform  PlatformID `json:"platform"`
	Supported bool       `json:"supported"`
	// EventsDropped counts deliveries skipped for full subscribers of live instances
	EventsDropped uint64 `json:"events_dropped"`
}

package types

import "time"

// EventType names a normalized backend signal
type EventType string

const (
	EventLoadStart   EventType = "load_start"
	EventLoadEnd     EventType = "load_end"
	EventError       EventType = "error"
	EventTitleChange EventType = "title_change"
	EventProgress    EventType = "progress"
	EventMessage     EventType = "message"
)

// Event is a backend callback normalized for subscribers
type Event struct {
	Type       EventType `json:"type"`
	InstanceID string    `json:"instance_id"`
	URL        string    `json:"url,omitempty"`
	Title      string    `json:"title,omitempty"`
	Progress   int       `json:"progress,omitempty"`
	Error      string    `json:"error,omitempty"`
	Data       any       `json:"data,omitempty"`
	Time       time.Time `json:"time"`
}

// Snapshot is a point-in-time view of an instance
type Snapshot struct {
	ID          string     `json:"id"`
	Platform    PlatformID `json:"platform"`
	State       State      `json:"state"`
	URL         string     `json:"url,omitempty"`
	Title       string     `json:"title,omitempty"`
	Visible     bool       `json:"visible"`
	Loaded      bool       `json:"loaded"`
	WarmStart   bool       `json:"warm_start"`
	LoadError   string     `json:"load_error,omitempty"`
	Subscribers int        `json:"subscribers"`
	CreatedAt   time.Time  `json:"created_at"`
}

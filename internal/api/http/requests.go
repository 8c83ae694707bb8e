package http

import (
	"github.com/GriffinCanCode/offscreen/internal/shared/types"
)

// NavigateRequest is the body of POST /instances/:id/navigate
type NavigateRequest struct {
	URL     string            `json:"url" binding:"required"`
	Headers map[string]string `json:"headers,omitempty"`
}

// HTMLRequest is the body of POST /instances/:id/html
type HTMLRequest struct {
	HTML    string `json:"html" binding:"required"`
	BaseURL string `json:"base_url,omitempty"`
}

// ScriptRequest is the body of POST /instances/:id/script
type ScriptRequest struct {
	Script string `json:"script" binding:"required"`
}

// CreateResponse is returned by POST /instances
type CreateResponse struct {
	ID        string      `json:"id"`
	State     types.State `json:"state"`
	WarmStart bool        `json:"warm_start"`
}

// InstanceSummary is one row of GET /instances
type InstanceSummary struct {
	ID      string      `json:"id"`
	State   types.State `json:"state"`
	URL     string      `json:"url,omitempty"`
	Title   string      `json:"title,omitempty"`
	Visible bool        `json:"visible"`
	Loaded  bool        `json:"loaded"`
}

func summarize(snap types.Snapshot) InstanceSummary {
	return InstanceSummary{
		ID:      snap.ID,
		State:   snap.State,
		URL:     snap.URL,
		Title:   snap.Title,
		Visible: snap.Visible,
		Loaded:  snap.Loaded,
	}
}

// newInstanceConfig returns the defaults a create body is decoded over
func newInstanceConfig() types.InstanceConfig {
	return types.InstanceConfig{
		Preload:      true,
		Capabilities: types.DefaultCapabilities(),
	}
}

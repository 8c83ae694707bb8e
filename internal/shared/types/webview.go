package types

import (
	"fmt"
	"maps"
	"time"
)

// PlatformID identifies a host platform
type PlatformID string

const (
	PlatformAndroid   PlatformID = "android"
	PlatformIOS       PlatformID = "ios"
	PlatformHarmonyOS PlatformID = "harmonyos"
	PlatformWeb       PlatformID = "web"
	PlatformUnknown   PlatformID = "unknown"
)

// KnownPlatforms lists every recognized platform except unknown.
func KnownPlatforms() []PlatformID {
	return []PlatformID{PlatformAndroid, PlatformIOS, PlatformHarmonyOS, PlatformWeb}
}

// CacheMode selects how a surface consults its response cache
type CacheMode string

const (
	CacheDefault     CacheMode = "default"
	CacheElseNetwork CacheMode = "cache_else_network"
	CacheNoCache     CacheMode = "no_cache"
	CacheOnly        CacheMode = "cache_only"
)

// Valid reports whether m is a recognized cache mode. The zero value is valid
// and means CacheDefault.
func (m CacheMode) Valid() bool {
	switch m {
	case "", CacheDefault, CacheElseNetwork, CacheNoCache, CacheOnly:
		return true
	default:
		return false
	}
}

// Source is the initial content of a surface. Exactly one of URL and HTML is set.
type Source struct {
	URL     string `json:"url,omitempty"`
	HTML    string `json:"html,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
}

// IsHTML reports whether the source is inline markup.
func (s Source) IsHTML() bool {
	return s.HTML != ""
}

// Capabilities are the feature switches handed to the backend
type Capabilities struct {
	JavaScriptEnabled                bool      `json:"javascript_enabled"`
	DOMStorageEnabled                bool      `json:"dom_storage_enabled"`
	AllowsInlineMediaPlayback        bool      `json:"allows_inline_media_playback"`
	MediaPlaybackRequiresUserAction  bool      `json:"media_playback_requires_user_action"`
	AllowFileAccess                  bool      `json:"allow_file_access"`
	AllowUniversalAccessFromFileURLs bool      `json:"allow_universal_access_from_file_urls"`
	CacheEnabled                     bool      `json:"cache_enabled"`
	CacheMode                        CacheMode `json:"cache_mode,omitempty"`
}

// DefaultCapabilities mirrors the defaults of the mobile webview hosts.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		JavaScriptEnabled:         true,
		DOMStorageEnabled:         true,
		AllowsInlineMediaPlayback: true,
		CacheEnabled:              true,
		CacheMode:                 CacheDefault,
	}
}

// InstanceConfig is the immutable set of creation parameters for an instance.
type InstanceConfig struct {
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	Source       Source            `json:"source"`
	Visible      bool              `json:"visible"`
	Preload      bool              `json:"preload"`
	Capabilities Capabilities      `json:"capabilities"`
	Headers      map[string]string `json:"headers,omitempty"`
	UserAgent    string            `json:"user_agent,omitempty"`
	// InjectedScript runs in each document before load completion is signalled.
	InjectedScript string `json:"injected_script,omitempty"`
	Debug          bool   `json:"debug"`
	// WarmupDelay overrides the registry's grace period for deferred preloads.
	WarmupDelay *time.Duration `json:"warmup_delay,omitempty"`
}

// Validate checks the creation parameters.
func (c InstanceConfig) Validate() error {
	hasURL := c.Source.URL != ""
	hasHTML := c.Source.HTML != ""
	switch {
	case !hasURL && !hasHTML:
		return fmt.Errorf("%w: a url or html source is required", ErrInvalidConfig)
	case hasURL && hasHTML:
		return fmt.Errorf("%w: url and html sources are mutually exclusive", ErrInvalidConfig)
	}
	if c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("%w: dimensions must not be negative", ErrInvalidConfig)
	}
	if !c.Capabilities.CacheMode.Valid() {
		return fmt.Errorf("%w: unknown cache mode %q", ErrInvalidConfig, c.Capabilities.CacheMode)
	}
	if c.WarmupDelay != nil && *c.WarmupDelay < 0 {
		return fmt.Errorf("%w: warmup delay must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Clone returns a deep copy so the owner can keep the configuration immutable.
func (c InstanceConfig) Clone() InstanceConfig {
	out := c
	out.Headers = maps.Clone(c.Headers)
	if c.WarmupDelay != nil {
		d := *c.WarmupDelay
		out.WarmupDelay = &d
	}
	if out.Capabilities.CacheMode == "" {
		out.Capabilities.CacheMode = CacheDefault
	}
	return out
}

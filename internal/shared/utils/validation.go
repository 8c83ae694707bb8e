package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/GriffinCanCode/offscreen/internal/shared/types"
)

// Size limits (in bytes)
const (
	MaxMarkupSize = 10 * 1024 * 1024 // 10MB - inline markup limit
	MaxScriptSize = 1 * 1024 * 1024  // 1MB - single script limit
	MaxURLLength  = 8 * 1024
	MaxIDLength   = 128
)

// SafeIDPattern allows alphanumeric, hyphens, underscores
var SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// navigableSchemes are the schemes a surface may be pointed at
var navigableSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"about": true,
	"file":  true,
}

// ValidateURL checks that raw is an absolute, navigable address.
func ValidateURL(raw string, allowFileAccess bool) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: url is required", types.ErrNavigation)
	}
	if len(raw) > MaxURLLength {
		return nil, fmt.Errorf("%w: url exceeds %d bytes", types.ErrNavigation, MaxURLLength)
	}
	if strings.ContainsAny(raw, "\x00\r\n") {
		return nil, fmt.Errorf("%w: url contains control characters", types.ErrNavigation)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrNavigation, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if !navigableSchemes[scheme] {
		return nil, fmt.Errorf("%w: unsupported scheme %q", types.ErrNavigation, parsed.Scheme)
	}
	switch scheme {
	case "http", "https":
		if parsed.Host == "" {
			return nil, fmt.Errorf("%w: missing host in %q", types.ErrNavigation, raw)
		}
	case "file":
		if !allowFileAccess {
			return nil, fmt.Errorf("%w: file access is disabled", types.ErrNavigation)
		}
	}
	return parsed, nil
}

// ValidateMarkup checks inline markup before it is handed to a surface.
func ValidateMarkup(markup string) error {
	if markup == "" {
		return fmt.Errorf("%w: html content required", types.ErrNavigation)
	}
	if len(markup) > MaxMarkupSize {
		return fmt.Errorf("%w: html exceeds maximum size of %d bytes", types.ErrNavigation, MaxMarkupSize)
	}
	if !utf8.ValidString(markup) {
		return fmt.Errorf("%w: html is not valid utf-8", types.ErrNavigation)
	}
	return nil
}

// ValidateScript checks a script before evaluation.
func ValidateScript(script string) error {
	if strings.TrimSpace(script) == "" {
		return fmt.Errorf("%w: script is empty", types.ErrScript)
	}
	if len(script) > MaxScriptSize {
		return fmt.Errorf("%w: script exceeds maximum size of %d bytes", types.ErrScript, MaxScriptSize)
	}
	return nil
}

// ValidateID validates an ID field
func ValidateID(id, fieldName string) error {
	if id == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, MaxIDLength)
	}
	if !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric, hyphens, and underscores allowed)", fieldName)
	}
	return nil
}

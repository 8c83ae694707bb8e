package platform

import (
	"runtime"
	"strings"

	"github.com/GriffinCanCode/offscreen/internal/shared/types"
)

// HostInfo carries the raw signals detection works from
type HostInfo struct {
	// OS is the primary signal, e.g. "android", "ios", "web" or a GOOS value.
	OS string
	// Descriptor is the secondary signal, e.g. a user agent or device brand.
	Descriptor string
}

// Probe reports the current host signals
type Probe func() HostInfo

// Registered reports whether a backend exists for a platform
type Registered interface {
	Has(id types.PlatformID) bool
}

// harmonyMarkers identify HarmonyOS devices that report themselves as android
var harmonyMarkers = []string{"harmonyos", "openharmony", "huawei"}

// desktopHosts embed the document backend
var desktopHosts = map[string]bool{
	"linux":     true,
	"darwin":    true,
	"windows":   true,
	"freebsd":   true,
	"netbsd":    true,
	"openbsd":   true,
	"dragonfly": true,
}

// RuntimeProbe reads the primary signal from the Go runtime
func RuntimeProbe() HostInfo {
	return HostInfo{OS: runtime.GOOS}
}

// StaticProbe returns a probe that always reports the given signals
func StaticProbe(os, descriptor string) Probe {
	return func() HostInfo {
		return HostInfo{OS: os, Descriptor: descriptor}
	}
}

// Resolver maps host signals to a platform
type Resolver struct {
	probe      Probe
	registered Registered
}

// NewResolver creates a resolver. A nil probe falls back to RuntimeProbe.
func NewResolver(probe Probe, registered Registered) *Resolver {
	if probe == nil {
		probe = RuntimeProbe
	}
	return &Resolver{probe: probe, registered: registered}
}

// Detect returns the platform of the current host
func (r *Resolver) Detect() (id types.PlatformID) {
	defer func() {
		if recover() != nil {
			id = types.PlatformUnknown
		}
	}()
	return Classify(r.probe())
}

// IsSupported reports whether a backend is registered for the detected platform
func (r *Resolver) IsSupported() bool {
	if r.registered == nil {
		return false
	}
	id := r.Detect()
	return id != types.PlatformUnknown && r.registered.Has(id)
}

// Classify maps raw host signals to a platform
func Classify(info HostInfo) types.PlatformID {
	primary := strings.ToLower(strings.TrimSpace(info.OS))
	descriptor := strings.ToLower(info.Descriptor)

	switch primary {
	case "android":
		if containsAny(descriptor, harmonyMarkers) {
			return types.PlatformHarmonyOS
		}
		return types.PlatformAndroid
	case "harmonyos", "ohos", "openharmony":
		return types.PlatformHarmonyOS
	case "ios", "ipados":
		return types.PlatformIOS
	case "web", "js", "wasip1":
		return types.PlatformWeb
	}

	if desktopHosts[primary] {
		return types.PlatformWeb
	}
	return types.PlatformUnknown
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

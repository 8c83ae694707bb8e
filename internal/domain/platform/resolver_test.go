package platform

import (
	"testing"

	"github.com/GriffinCanCode/offscreen/internal/shared/types"
	"github.com/stretchr/testify/assert"
)

type registeredSet map[types.PlatformID]bool

func (s registeredSet) Has(id types.PlatformID) bool { return s[id] }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		info HostInfo
		want types.PlatformID
	}{
		{name: "android", info: HostInfo{OS: "android"}, want: types.PlatformAndroid},
		{name: "android uppercase", info: HostInfo{OS: " Android "}, want: types.PlatformAndroid},
		{name: "harmony via descriptor", info: HostInfo{OS: "android", Descriptor: "Mozilla/5.0 (Linux; HarmonyOS 4.0)"}, want: types.PlatformHarmonyOS},
		{name: "harmony via brand", info: HostInfo{OS: "android", Descriptor: "HUAWEI"}, want: types.PlatformHarmonyOS},
		{name: "harmony primary", info: HostInfo{OS: "ohos"}, want: types.PlatformHarmonyOS},
		{name: "ios", info: HostInfo{OS: "ios"}, want: types.PlatformIOS},
		{name: "primary wins over descriptor", info: HostInfo{OS: "ios", Descriptor: "Android HUAWEI"}, want: types.PlatformIOS},
		{name: "web", info: HostInfo{OS: "web"}, want: types.PlatformWeb},
		{name: "desktop", info: HostInfo{OS: "linux"}, want: types.PlatformWeb},
		{name: "empty", info: HostInfo{}, want: types.PlatformUnknown},
		{name: "unrecognized", info: HostInfo{OS: "plan9"}, want: types.PlatformUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.info))
		})
	}
}

func TestDetectNeverPanics(t *testing.T) {
	r := NewResolver(func() HostInfo { panic("probe failed") }, registeredSet{})
	assert.Equal(t, types.PlatformUnknown, r.Detect())
	assert.False(t, r.IsSupported())
}

func TestIsSupported(t *testing.T) {
	web := registeredSet{types.PlatformWeb: true}

	assert.True(t, NewResolver(StaticProbe("web", ""), web).IsSupported())
	assert.False(t, NewResolver(StaticProbe("android", ""), web).IsSupported())
	assert.False(t, NewResolver(StaticProbe("plan9", ""), registeredSet{types.PlatformUnknown: true}).IsSupported())
	assert.False(t, NewResolver(StaticProbe("web", ""), nil).IsSupported())
}

func TestDetectIsRederivable(t *testing.T) {
	os := "android"
	r := NewResolver(func() HostInfo { return HostInfo{OS: os} }, nil)
	assert.Equal(t, types.PlatformAndroid, r.Detect())

	os = "ios"
	assert.Equal(t, types.PlatformIOS, r.Detect())
}

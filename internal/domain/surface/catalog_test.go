package surface

import (
	"testing"

	"github.com/GriffinCanCode/offscreen/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nopFactory(Params) (Adapter, error) { return nil, nil }

func TestCatalogRegister(t *testing.T) {
	c := NewCatalog()

	require.NoError(t, c.Register(types.PlatformWeb, KindEmbeddedDocument, nopFactory))
	require.NoError(t, c.Register(types.PlatformAndroid, KindMobileNative, nopFactory))

	assert.Error(t, c.Register(types.PlatformWeb, KindEmbeddedDocument, nopFactory), "duplicate")
	assert.Error(t, c.Register(types.PlatformUnknown, KindMobileNative, nopFactory))
	assert.Error(t, c.Register(types.PlatformIOS, KindMobileNative, nil))

	entry, ok := c.Lookup(types.PlatformAndroid)
	require.True(t, ok)
	assert.Equal(t, KindMobileNative, entry.Kind)

	assert.True(t, c.Has(types.PlatformWeb))
	assert.False(t, c.Has(types.PlatformIOS))
	assert.Equal(t, []types.PlatformID{types.PlatformAndroid, types.PlatformWeb}, c.Platforms())
}

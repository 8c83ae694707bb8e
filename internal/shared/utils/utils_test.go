package utils

import (
	"strings"
	"testing"

	"github.com/GriffinCanCode/offscreen/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentKey(t *testing.T) {
	urlKey := ContentKey(types.Source{URL: "https://a.test"})
	assert.Equal(t, "https://a.test", urlKey)
	assert.False(t, IsMarkupKey(urlKey))

	html := types.Source{HTML: "<p>hi</p>"}
	k1 := ContentKey(html)
	k2 := ContentKey(types.Source{HTML: "<p>hi</p>"})
	k3 := ContentKey(types.Source{HTML: "<p>hi</p>", BaseURL: "https://b.test"})

	assert.True(t, IsMarkupKey(k1))
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		allowFile bool
		wantErr   bool
	}{
		{name: "https", raw: "https://a.test/path?q=1"},
		{name: "http", raw: "http://localhost:8080"},
		{name: "about blank", raw: "about:blank"},
		{name: "empty", raw: "", wantErr: true},
		{name: "relative", raw: "/just/a/path", wantErr: true},
		{name: "missing host", raw: "https://", wantErr: true},
		{name: "javascript scheme", raw: "javascript:alert(1)", wantErr: true},
		{name: "malformed", raw: "http://[::1", wantErr: true},
		{name: "file denied", raw: "file:///etc/hosts", wantErr: true},
		{name: "file allowed", raw: "file:///tmp/page.html", allowFile: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateURL(tt.raw, tt.allowFile)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, types.ErrNavigation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateMarkupAndScript(t *testing.T) {
	assert.ErrorIs(t, ValidateMarkup(""), types.ErrNavigation)
	assert.ErrorIs(t, ValidateMarkup("\xff\xfe"), types.ErrNavigation)
	assert.NoError(t, ValidateMarkup("<html></html>"))

	assert.ErrorIs(t, ValidateScript("   "), types.ErrScript)
	assert.ErrorIs(t, ValidateScript(strings.Repeat("x", MaxScriptSize+1)), types.ErrScript)
	assert.NoError(t, ValidateScript("1 + 1"))
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("wv_01HZY3JQ4W5M7Q9T2B8C6D0E1F", "id"))
	assert.Error(t, ValidateID("", "id"))
	assert.Error(t, ValidateID("../etc", "id"))
}

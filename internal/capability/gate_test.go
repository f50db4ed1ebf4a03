package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGatesOnFallbackTable(t *testing.T) {
	table := fallbackTable()

	cases := []struct {
		provider    string
		model       string
		aspectRatio bool
		resolution  bool
	}{
		{"google", "google/gemini-3-pro-image-preview", true, true},
		{"google", "google/gemini-2.5-flash-image", true, false},
		// google 下不在 model_support 里的模型一律关闭。
		{"google", "unknown-model", false, false},
		// 非 rich provider 无论选什么模型都关闭。
		{"openrouter", "google/gemini-3-pro-image-preview", false, false},
		{"tuzi", "gemini-3-pro-image-preview-4k", false, false},
		{"missing-provider", "any", false, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.aspectRatio, table.AspectRatioEnabled(c.provider, c.model), "%s/%s aspect_ratio", c.provider, c.model)
		assert.Equal(t, c.resolution, table.ResolutionEnabled(c.provider, c.model), "%s/%s resolution", c.provider, c.model)
	}
}

func TestGatesIgnoreEmptyImageOptions(t *testing.T) {
	table := Table{Providers: map[string]ProviderCapability{
		"p": {ID: "p", ImageOptions: &ImageOptions{}},
	}}
	assert.False(t, table.AspectRatioEnabled("p", "m"))
	assert.False(t, table.ResolutionEnabled("p", "m"))
}

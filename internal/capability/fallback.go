package capability

// fallbackTable 是后端配置接口不可达时的内置能力表。
// 内容与后端的配置中心保持一致，后端侧调整后需要同步这里。
func fallbackTable() Table {
	return Table{
		DefaultProvider: "google",
		DefaultTemperature: DefaultTemperature{
			Edit:     0.7,
			Generate: 0.8,
		},
		Providers: map[string]ProviderCapability{
			"google": {
				ID:                "google",
				DisplayName:       "Google Gemini",
				APIKeyLabel:       "Google API Key",
				APIKeyPlaceholder: "输入您的 Google Gemini API Key",
				APIKeyPrefix:      "AIza",
				DefaultModel:      "google/gemini-3-pro-image-preview",
				Models: []ModelOption{
					{Value: "google/gemini-2.5-flash-image", Label: "Gemini 2.5 Flash Image"},
					{Value: "google/gemini-3-pro-image-preview", Label: "Gemini 3 Pro Image Preview"},
				},
				ImageOptions: &ImageOptions{
					AspectRatios: []ModelOption{
						{Value: "1:1", Label: "1:1 (正方形)"},
						{Value: "2:3", Label: "2:3"},
						{Value: "3:2", Label: "3:2"},
						{Value: "3:4", Label: "3:4 (竖版照片)"},
						{Value: "4:3", Label: "4:3 (横版照片)"},
						{Value: "4:5", Label: "4:5"},
						{Value: "5:4", Label: "5:4"},
						{Value: "9:16", Label: "9:16 (竖屏)"},
						{Value: "16:9", Label: "16:9 (宽屏)"},
						{Value: "21:9", Label: "21:9 (超宽)"},
					},
					Resolutions: []ModelOption{
						{Value: "1K", Label: "1K (低分辨率)"},
						{Value: "2K", Label: "2K (中分辨率)"},
						{Value: "4K", Label: "4K (高分辨率)"},
					},
					ModelSupport: map[string]FeatureSupport{
						"google/gemini-3-pro-image-preview": {
							AspectRatio: true,
							Resolution:  true,
						},
						"google/gemini-2.5-flash-image": {
							AspectRatio: true,
							Resolution:  false,
						},
					},
				},
			},
			"openrouter": {
				ID:                "openrouter",
				DisplayName:       "OpenRouter",
				APIKeyLabel:       "OpenRouter API Key",
				APIKeyPlaceholder: "输入您的 OpenRouter API Key",
				APIKeyPrefix:      "sk-or-",
				DefaultModel:      "google/gemini-2.5-flash-image",
				Models: []ModelOption{
					{Value: "google/gemini-2.5-flash-image", Label: "Gemini 2.5 Flash Image"},
					{Value: "google/gemini-3-pro-image-preview", Label: "Gemini 3 Pro Image Preview"},
					{Value: "openai/gpt-5-image-mini", Label: "GPT-5 Image Mini"},
					{Value: "openai/gpt-5-image", Label: "GPT-5 Image"},
					{Value: "black-forest-labs/flux.2-flex", Label: "Flux 2 Flex"},
					{Value: "black-forest-labs/flux.2-pro", Label: "Flux 2 Pro"},
				},
			},
			"tuzi": {
				ID:                "tuzi",
				DisplayName:       "兔子API",
				APIKeyLabel:       "兔子 API Key",
				APIKeyPlaceholder: "输入您的兔子 API Key (sk-开头)",
				APIKeyPrefix:      "sk-",
				DefaultModel:      "gemini-3-pro-image-preview-2k",
				Models: []ModelOption{
					{Value: "gemini-3-pro-image-preview", Label: "兔子 - Gemini 3 Pro Image Preview"},
					{Value: "gemini-3-pro-image-preview-2k", Label: "兔子 - Gemini 3 Pro Image Preview 2k"},
					{Value: "gemini-3-pro-image-preview-4k", Label: "兔子 - Gemini 3 Pro Image Preview 4k"},
					{Value: "gemini-2.5-flash-image-vip", Label: "兔子 - Gemini 2.5 Flash Image VIP"},
					{Value: "gemini-2.5-flash-image", Label: "兔子 - Gemini 2.5 Flash Image"},
				},
			},
		},
	}
}

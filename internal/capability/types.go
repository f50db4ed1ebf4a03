// Package capability 管理 provider/model 能力表：模型列表、API Key 前缀、
// 按模型的图像参数支持（宽高比/分辨率）。表在启动时从后端拉取一次，
// 失败则退回编译期内置表；会话期间只整体替换，从不就地修改。
package capability

import "imgchat/internal/types"

// ModelOption 是下拉选项的 value/text 对。
type ModelOption struct {
	Value string `json:"value"`
	Label string `json:"text"`
}

// FeatureSupport 描述某个模型对图像参数的支持情况。
type FeatureSupport struct {
	AspectRatio bool `json:"aspect_ratio"`
	Resolution  bool `json:"resolution"`
}

// ImageOptions 仅能力完整的 provider（google）携带。
// 内层键沿用后端的 snake_case。
type ImageOptions struct {
	AspectRatios []ModelOption             `json:"aspect_ratios"`
	Resolutions  []ModelOption             `json:"resolutions"`
	ModelSupport map[string]FeatureSupport `json:"model_support"`
}

// ProviderCapability 是单个 provider 的能力描述。
type ProviderCapability struct {
	ID                string        `json:"-"`
	DisplayName       string        `json:"name"`
	APIKeyLabel       string        `json:"apiKeyLabel"`
	APIKeyPlaceholder string        `json:"apiKeyPlaceholder"`
	APIKeyPrefix      string        `json:"apiKeyPrefix"`
	DefaultModel      string        `json:"defaultModel"`
	Models            []ModelOption `json:"models"`
	ImageOptions      *ImageOptions `json:"imageOptions,omitempty"`
}

// HasModel 判断 model 是否在该 provider 的模型列表中。
func (p ProviderCapability) HasModel(model string) bool {
	for _, m := range p.Models {
		if m.Value == model {
			return true
		}
	}
	return false
}

// DefaultTemperature 按模式区分的默认温度。
type DefaultTemperature struct {
	Edit     float64 `json:"edit"`
	Generate float64 `json:"generate"`
}

// Temperature 返回 mode 对应的默认温度。
func (t DefaultTemperature) Temperature(mode types.Mode) float64 {
	if mode == types.ModeGenerate {
		return t.Generate
	}
	return t.Edit
}

// Table 是一次配置拉取的完整结果。
type Table struct {
	DefaultProvider    string                        `json:"defaultProvider"`
	DefaultTemperature DefaultTemperature            `json:"defaultTemperature"`
	Providers          map[string]ProviderCapability `json:"providers"`
}

// configPayload 是 /api/config 的响应外壳。
type configPayload struct {
	Success bool   `json:"success"`
	Config  *Table `json:"config"`
	Error   string `json:"error,omitempty"`
}

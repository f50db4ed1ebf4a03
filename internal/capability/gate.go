package capability

// 能力门控：分辨率/宽高比选项是否可用由 (provider, model) 决定。
// 纯函数，provider 切换、model 切换、偏好恢复、配置加载后各自重算一遍，
// 重复计算结果相同。

// rich 判断 provider 是否携带完整图像参数能力（目前仅 google）。
func (p ProviderCapability) rich() bool {
	return p.ImageOptions != nil && len(p.ImageOptions.ModelSupport) > 0
}

// ResolutionEnabled 当且仅当 provider 携带 imageOptions 且
// model_support[model].resolution 为 true 时返回 true。
func (t Table) ResolutionEnabled(providerID, model string) bool {
	p, ok := t.Providers[providerID]
	if !ok || !p.rich() {
		return false
	}
	return p.ImageOptions.ModelSupport[model].Resolution
}

// AspectRatioEnabled 同 ResolutionEnabled，门控宽高比选项。
func (t Table) AspectRatioEnabled(providerID, model string) bool {
	p, ok := t.Providers[providerID]
	if !ok || !p.rich() {
		return false
	}
	return p.ImageOptions.ModelSupport[model].AspectRatio
}

// Package task 把当前界面状态解析成一次任务调用的参数包，并负责执行。
package task

import (
	"fmt"
	"strings"

	"imgchat/internal/capability"
	"imgchat/internal/state"
	"imgchat/internal/types"
)

// Resolver 从应用状态读出经过校验的 TaskParams。
// 纯读：不修改任何状态。手动执行和 AUTO 模式每轮都走同一条路径，
// 校验完全一致，AUTO 绕不过手动模式会拦下的约束。
type Resolver struct {
	state *state.AppState
	caps  *capability.Store
}

func NewResolver(st *state.AppState, caps *capability.Store) *Resolver {
	return &Resolver{state: st, caps: caps}
}

// Resolve 构造 mode 对应的参数包，校验失败返回 *types.ValidationError。
func (r *Resolver) Resolve(mode types.Mode) (types.TaskParams, error) {
	snap := r.state.Snapshot()
	provider, ok := r.caps.Provider(snap.Provider)
	if !ok {
		return types.TaskParams{}, types.NewValidationError(fmt.Sprintf("未知的服务商: %s", snap.Provider))
	}

	apiKey := strings.TrimSpace(snap.Credential())
	if apiKey == "" {
		return types.TaskParams{}, types.NewValidationError(fmt.Sprintf("请先配置 %s 的 API Key", provider.DisplayName))
	}

	p := types.TaskParams{
		Mode:       mode,
		APIKey:     apiKey,
		Provider:   snap.Provider,
		Model:      snap.Model,
		ImageCount: snap.ImageCount,
	}

	switch mode {
	case types.ModeEdit:
		if len(snap.InputImages) == 0 {
			return types.TaskParams{}, types.NewValidationError("请上传至少一张图片")
		}
		if strings.TrimSpace(snap.Instruction) == "" {
			return types.TaskParams{}, types.NewValidationError("请输入编辑指令")
		}
		p.InputImages = snap.InputImages
		p.Instruction = snap.Instruction
		p.Temperature = snap.TemperatureEdit
	case types.ModeGenerate:
		if strings.TrimSpace(snap.Description) == "" {
			return types.TaskParams{}, types.NewValidationError("请输入图像描述")
		}
		p.Description = snap.Description
		p.Temperature = snap.TemperatureGenerate
	default:
		return types.TaskParams{}, types.NewValidationError(fmt.Sprintf("未知的任务模式: %s", mode))
	}

	// 图像参数只在 provider 支持、门控打开且用户选了值时携带。
	table := r.caps.Table()
	if snap.AspectRatio != "" && table.AspectRatioEnabled(snap.Provider, snap.Model) {
		p.AspectRatio = snap.AspectRatio
	}
	if snap.Resolution != "" && table.ResolutionEnabled(snap.Provider, snap.Model) {
		p.Resolution = snap.Resolution
	}
	return p, nil
}

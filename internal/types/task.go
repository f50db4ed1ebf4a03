package types

import "strings"

// Mode 区分两类图像任务：基于已有图片的编辑与纯文本生成。
type Mode string

const (
	ModeEdit     Mode = "edit"
	ModeGenerate Mode = "generate"
)

// ParseMode 宽松解析 mode 字符串，未知值返回 false。
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeEdit:
		return ModeEdit, true
	case ModeGenerate:
		return ModeGenerate, true
	default:
		return "", false
	}
}

// TaskParams 是单次任务调用的参数包。
// 每次调用（手动或 AUTO 单轮）都重新构造，从不跨调用复用。
type TaskParams struct {
	Mode        Mode
	APIKey      string
	Provider    string
	Model       string
	Temperature float64
	ImageCount  int

	// edit 模式：输入图片的本地路径；generate 模式为空。
	InputImages []string

	Instruction string
	Description string

	// 仅在 provider 支持且对应开关未被能力门控禁用时携带。
	AspectRatio string
	Resolution  string
}

// Prompt 返回当前模式下发送给后端的文本字段。
func (p TaskParams) Prompt() string {
	if p.Mode == ModeGenerate {
		return p.Description
	}
	return p.Instruction
}

// TaskResult 汇总一次任务调用的结果。
type TaskResult struct {
	Success       bool
	Images        []ImageRecord
	TotalReceived int
	Err           string
}

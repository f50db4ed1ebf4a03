// Package rules 维护 AUTO 模式的并发建议表。
// 表是编译期静态数据，按 provider/model 精确匹配，退化到 provider，再退化到全局默认。
package rules

import "time"

// ConcurrencyRule 描述某个 provider/model 组合的批量建议。
// Recommended 是建议并发（每轮请求的图片数），Max 是上限，
// Delay 是该并发下的基础轮间隔。
type ConcurrencyRule struct {
	Recommended int
	Max         int
	Delay       time.Duration
	Hint        string
}

const globalKey = "*"

// 经验值：图像接口普遍按分钟限流，pro 档模型比 flash 档慢且配额更紧。
var table = map[string]ConcurrencyRule{
	"google/google/gemini-3-pro-image-preview": {
		Recommended: 2,
		Max:         4,
		Delay:       2 * time.Second,
		Hint:        "Gemini 3 Pro 配额较紧，建议并发 2",
	},
	"google/google/gemini-2.5-flash-image": {
		Recommended: 4,
		Max:         8,
		Delay:       time.Second,
		Hint:        "Flash 档模型较快，可适当加大并发",
	},
	"google": {
		Recommended: 2,
		Max:         4,
		Delay:       2 * time.Second,
		Hint:        "Google 默认：并发 2，间隔 2s",
	},
	"openrouter": {
		Recommended: 4,
		Max:         8,
		Delay:       time.Second,
		Hint:        "OpenRouter 默认：并发 4，间隔 1s",
	},
	"tuzi": {
		Recommended: 2,
		Max:         4,
		Delay:       3 * time.Second,
		Hint:        "中转接口响应较慢，建议并发 2，间隔 3s",
	},
	globalKey: {
		Recommended: 2,
		Max:         4,
		Delay:       2 * time.Second,
		Hint:        "默认：并发 2，间隔 2s",
	},
}

// Lookup 返回给定组合的并发建议，永不失败。
// 匹配顺序：provider/model 精确键 → provider 键 → 全局默认。
func Lookup(provider, model string) ConcurrencyRule {
	if provider != "" && model != "" {
		if r, ok := table[provider+"/"+model]; ok {
			return r
		}
	}
	if provider != "" {
		if r, ok := table[provider]; ok {
			return r
		}
	}
	return table[globalKey]
}

// AdaptiveDelay 按实际并发 n 缩放基础间隔：超过建议并发时线性加大退避，
// 低于建议并发不缩短（倍率下限为 1）。
func AdaptiveDelay(rule ConcurrencyRule, n int) time.Duration {
	if n <= 0 {
		n = 1
	}
	recommended := rule.Recommended
	if recommended <= 0 {
		recommended = 1
	}
	ratio := float64(n) / float64(recommended)
	if ratio < 1 {
		ratio = 1
	}
	return time.Duration(float64(rule.Delay) * ratio)
}

package prompts

import (
	"strings"

	"github.com/tidwall/gjson"
)

// 历史数据里 tag 的形态不统一：有的是纯字符串，有的是
// {"name": "..."} / {"tag": "..."} / {"label": "..."} 对象。
// 在边界处统一成字符串切片，模糊的联合类型不再往里传。

// NormalizeTags 把 tags 字段的原始 JSON 规范化为去重后的字符串列表，
// 顺序保持首次出现的顺序。非数组或空值返回空切片。
func NormalizeTags(raw gjson.Result) []string {
	out := []string{}
	if !raw.Exists() || !raw.IsArray() {
		return out
	}
	seen := map[string]bool{}
	raw.ForEach(func(_, item gjson.Result) bool {
		tag := tagText(item)
		if tag == "" || seen[tag] {
			return true
		}
		seen[tag] = true
		out = append(out, tag)
		return true
	})
	return out
}

func tagText(item gjson.Result) string {
	switch item.Type {
	case gjson.String:
		return strings.TrimSpace(item.String())
	case gjson.JSON:
		if !item.IsObject() {
			return ""
		}
		for _, key := range []string{"name", "tag", "label"} {
			if v := item.Get(key); v.Type == gjson.String {
				if s := strings.TrimSpace(v.String()); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

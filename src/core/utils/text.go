package utils

import "strings"

// StripCodeFences 去掉模型回复中的markdown代码块标记
// 先移除所有"```json"，再移除剩余的"```"，对不含标记的文本不做任何修改
func StripCodeFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	return strings.ReplaceAll(text, "```", "")
}

package lrc

import "strings"

// Format 将歌词行渲染为 LRC 文本，行间以 \n 分隔，不追加结尾换行
func Format(lines []Line) string {
	rendered := make([]string, len(lines))
	for i, line := range lines {
		rendered[i] = FormatLine(line)
	}
	return strings.Join(rendered, "\n")
}

// FormatLine 渲染单行
func FormatLine(line Line) string {
	if seconds, ok := line.Timestamp.Get(); ok {
		return "[" + Encode(seconds) + "] " + line.Text
	}
	return line.Text
}

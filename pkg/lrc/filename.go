package lrc

import (
	"regexp"
	"strings"
	"time"
)

// Extension 导出文件扩展名
const Extension = ".lrc"

var (
	audioExtRe     = regexp.MustCompile(`\.[^/.]+$`)
	unsafeFileRe   = regexp.MustCompile(`[\\/:*?"<>|]`)
	defaultNameFmt = "2006-01-02-15-04-05"
)

// SuggestFilename 根据音频文件名生成导出文件名（不含扩展名）。
// 没有音频名时使用带时间戳的默认名。
func SuggestFilename(audioName string, now time.Time) string {
	name := strings.TrimSpace(audioExtRe.ReplaceAllString(strings.TrimSpace(audioName), ""))
	if name == "" {
		return "lyrics-" + now.UTC().Format(defaultNameFmt)
	}
	return SanitizeFilename(name)
}

// SanitizeFilename 替换文件系统不允许的字符
func SanitizeFilename(name string) string {
	return unsafeFileRe.ReplaceAllString(name, "-")
}

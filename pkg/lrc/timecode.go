package lrc

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

const (
	// maxMinutes 保证总的百分之一秒数不超过 2^50，此范围内 float64 与整数互转是精确的
	maxMinutes    = (1<<50 - 5999) / 6000
	maxHundredths = maxMinutes*6000 + 5999
	// MaxSeconds 可表示的最大时间，即 maxMinutes:59.99
	MaxSeconds = maxHundredths / 100.0
)

// 分钟至少两位（可以超过 99），秒两位，小数两位
var timecodeRe = regexp.MustCompile(`^(\d{2,}):(\d{2})\.(\d{2})$`)

// FormatError 时间码格式错误
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid timecode %q: %s", e.Input, e.Reason)
}

// Decode 将 MM:SS.ss 转换为秒
func Decode(text string) (float64, error) {
	m := timecodeRe.FindStringSubmatch(text)
	if m == nil {
		return 0, &FormatError{Input: text, Reason: "want MM:SS.ss"}
	}

	minutes, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, &FormatError{Input: text, Reason: "minutes: " + err.Error()}
	}
	if minutes > maxMinutes {
		return 0, &FormatError{Input: text, Reason: "minutes out of range"}
	}
	seconds, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return 0, &FormatError{Input: text, Reason: "seconds: " + err.Error()}
	}
	hundredths, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil {
		return 0, &FormatError{Input: text, Reason: "fraction: " + err.Error()}
	}

	// 按百分之一秒整数累加，保证与 Round 的结果逐位一致
	total := minutes*6000 + seconds*100 + hundredths
	return float64(total) / 100, nil
}

// Encode 将秒转换为 MM:SS.ss，负数和 NaN 按 0，超过 MaxSeconds 按 MaxSeconds
func Encode(seconds float64) string {
	h := toHundredths(seconds)
	return fmt.Sprintf("%02d:%02d.%02d", h/6000, (h%6000)/100, h%100)
}

// Round 取整到两位小数
func Round(seconds float64) float64 {
	return float64(toHundredths(seconds)) / 100
}

func toHundredths(seconds float64) int64 {
	if seconds <= 0 || math.IsNaN(seconds) {
		return 0
	}
	if seconds >= MaxSeconds {
		return maxHundredths
	}
	return int64(math.Round(seconds * 100))
}

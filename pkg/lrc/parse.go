package lrc

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	timedLineRe = regexp.MustCompile(`^\[(\d{2,}:\d{2}\.\d{2})\]\s*(.*)$`)
	metaTagRe   = regexp.MustCompile(`^\[(\w+):(.*)\]$`)
)

// Status 单行解析结果
type Status int

const (
	StatusPlain Status = iota
	StatusTimed
	StatusDegraded
)

func (s Status) String() string {
	switch s {
	case StatusPlain:
		return "plain"
	case StatusTimed:
		return "timed"
	case StatusDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Result 单行解析结果；Degraded 时 Err 为时间码解析错误
type Result struct {
	Line   Line
	Status Status
	Err    error
}

// Parse 解析 LRC/纯文本歌词，跳过空行和元数据行
func Parse(text string) []Line {
	results := ParseLines(text)
	lines := make([]Line, 0, len(results))
	for _, r := range results {
		lines = append(lines, r.Line)
	}
	return lines
}

// ParseLines 与 Parse 相同，但保留每一行的解析状态
func ParseLines(text string) []Result {
	var results []Result
	for _, raw := range strings.Split(text, "\n") {
		r, ok := parseLine(raw)
		if !ok {
			continue
		}
		results = append(results, r)
	}
	return results
}

func parseLine(raw string) (Result, bool) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return Result{}, false
	}

	if m := timedLineRe.FindStringSubmatch(line); m != nil {
		seconds, err := Decode(m[1])
		if err != nil {
			return Result{Line: Plain(line), Status: StatusDegraded, Err: err}, true
		}
		text := strings.TrimSpace(m[2])
		if text == "" {
			return Result{}, false
		}
		return Result{Line: Timed(seconds, text), Status: StatusTimed}, true
	}

	if metaTagRe.MatchString(line) {
		return Result{}, false
	}

	return Result{Line: Plain(line), Status: StatusPlain}, true
}

// Metadata LRC 头部标签
type Metadata struct {
	Artist string
	Title  string
	Album  string
	Author string
	// Offset 单位毫秒
	Offset int
	Extra  map[string]string
}

// IsEmpty 是否没有任何标签
func (m Metadata) IsEmpty() bool {
	return m.Artist == "" && m.Title == "" && m.Album == "" && m.Author == "" && m.Offset == 0 && len(m.Extra) == 0
}

// ParseMetadata 收集被 Parse 忽略的元数据标签
func ParseMetadata(text string) Metadata {
	var meta Metadata
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if timedLineRe.MatchString(line) {
			continue
		}
		m := metaTagRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key, value := strings.ToLower(m[1]), strings.TrimSpace(m[2])
		switch key {
		case "ar":
			meta.Artist = value
		case "ti":
			meta.Title = value
		case "al":
			meta.Album = value
		case "by":
			meta.Author = value
		case "offset":
			if n, err := strconv.Atoi(value); err == nil {
				meta.Offset = n
			}
		default:
			if meta.Extra == nil {
				meta.Extra = make(map[string]string)
			}
			meta.Extra[key] = value
		}
	}
	return meta
}

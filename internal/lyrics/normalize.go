package lyrics

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"lrcsync/pkg/lrc"
)

// 在线歌词常见 [mm:ss]、[mm:ss.x]、[mm:ss.xxx]，一行可以带多个时间标签
var (
	looseTagRe = regexp.MustCompile(`\[(\d{1,3}):(\d{1,2})(?:[.:](\d{1,3}))?\]`)
	headTagsRe = regexp.MustCompile(`^(?:\[\d{1,3}:\d{1,2}(?:[.:]\d{1,3})?\]\s*)+`)
)

type entry struct {
	at   float64
	text string
}

// Normalize 把在线歌词改写成两位小数的时间码，保留元数据标签。
// 多时间标签的行展开成多行后按时间排序，无时间标签的行跟随前一行
func Normalize(text string) string {
	var out []entry
	last := -1.0
	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		head := headTagsRe.FindString(line)
		if head == "" {
			if line != "" {
				out = append(out, entry{at: last, text: line})
			}
			continue
		}

		body := strings.TrimSpace(line[len(head):])
		if body == "" {
			continue
		}
		for _, m := range looseTagRe.FindAllStringSubmatch(head, -1) {
			line := lrc.Timed(looseSeconds(m[1], m[2], m[3]), body)
			last, _ = line.Timestamp.Get()
			out = append(out, entry{at: last, text: lrc.FormatLine(line)})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].at < out[j].at })
	lines := make([]string, len(out))
	for i, e := range out {
		lines[i] = e.text
	}
	return strings.Join(lines, "\n")
}

func looseSeconds(min, sec, frac string) float64 {
	m, _ := strconv.Atoi(min)
	s, _ := strconv.Atoi(sec)
	ms := 0
	if frac != "" {
		ms, _ = strconv.Atoi(frac)
		// 根据小数位数换算成毫秒
		switch len(frac) {
		case 1:
			ms *= 100
		case 2:
			ms *= 10
		}
	}
	return float64(m*60+s) + float64(ms)/1000
}

package lrc

// Timestamp 可选时间戳（秒），区分“未打点”和“0 秒”
type Timestamp struct {
	seconds float64
	set     bool
}

// Some 返回一个已设置的时间戳，数值按 LRC 精度（百分之一秒）取整
func Some(seconds float64) Timestamp {
	if seconds < 0 {
		seconds = 0
	}
	return Timestamp{seconds: Round(seconds), set: true}
}

// None 返回未设置的时间戳
func None() Timestamp {
	return Timestamp{}
}

// Get 返回秒数以及是否已设置
func (t Timestamp) Get() (float64, bool) {
	return t.seconds, t.set
}

// IsSet 是否已设置
func (t Timestamp) IsSet() bool {
	return t.set
}

// String 以 MM:SS.ss 形式输出，未设置时为 "--:--"
func (t Timestamp) String() string {
	if !t.set {
		return "--:--"
	}
	return Encode(t.seconds)
}

// Line 歌词行
type Line struct {
	Text      string
	Timestamp Timestamp
}

// Timed 构造带时间戳的歌词行
func Timed(seconds float64, text string) Line {
	return Line{Text: text, Timestamp: Some(seconds)}
}

// Plain 构造不带时间戳的歌词行
func Plain(text string) Line {
	return Line{Text: text}
}

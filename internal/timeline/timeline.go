package timeline

import (
	"errors"
	"fmt"
	"math"

	"lrcsync/pkg/lrc"
)

// ErrIndexOutOfRange 所有越界错误都满足 errors.Is(err, ErrIndexOutOfRange)
var ErrIndexOutOfRange = errors.New("line index out of range")

// ErrInvalidTime NaN、无穷大或超出 LRC 可表示范围的时间
var ErrInvalidTime = errors.New("invalid time")

// IndexError 对越界行号的修改，时间轴保持不变
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("line index %d out of range [0,%d)", e.Index, e.Len)
}

func (e *IndexError) Is(target error) bool {
	return target == ErrIndexOutOfRange
}

// Policy 时间戳非单调时，多个行同时满足条件的取舍策略
type Policy int

const (
	// PolicyLatest 取最后一个满足条件的行
	PolicyLatest Policy = iota
	// PolicyFirst 取第一个满足条件的行，适用于上游已保证时间戳单调的场景
	PolicyFirst
)

// ParsePolicy 解析配置中的策略名
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "", "latest":
		return PolicyLatest, nil
	case "first":
		return PolicyFirst, nil
	default:
		return PolicyLatest, fmt.Errorf("unknown active line policy: %s", name)
	}
}

func (p Policy) String() string {
	if p == PolicyFirst {
		return "first"
	}
	return "latest"
}

// Option 时间轴选项
type Option func(*Timeline)

// WithPolicy 设置当前行判定策略
func WithPolicy(p Policy) Option {
	return func(t *Timeline) {
		t.policy = p
	}
}

// Timeline 有序歌词行。不对时间戳的顺序做任何约束。
type Timeline struct {
	lines  []lrc.Line
	policy Policy
}

// New 使用给定歌词行创建时间轴，lines 会被复制
func New(lines []lrc.Line, opts ...Option) *Timeline {
	t := &Timeline{lines: make([]lrc.Line, len(lines))}
	copy(t.lines, lines)
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// FromText 解析文本并创建时间轴
func FromText(text string, opts ...Option) *Timeline {
	return New(lrc.Parse(text), opts...)
}

func (t *Timeline) Policy() Policy {
	return t.policy
}

func (t *Timeline) Len() int {
	return len(t.lines)
}

func (t *Timeline) IsEmpty() bool {
	return len(t.lines) == 0
}

// Line 返回指定行
func (t *Timeline) Line(index int) (lrc.Line, error) {
	if err := t.check(index); err != nil {
		return lrc.Line{}, err
	}
	return t.lines[index], nil
}

// Lines 返回所有行的副本
func (t *Timeline) Lines() []lrc.Line {
	out := make([]lrc.Line, len(t.lines))
	copy(out, t.lines)
	return out
}

// TimedCount 已打点的行数
func (t *Timeline) TimedCount() int {
	n := 0
	for _, l := range t.lines {
		if l.Timestamp.IsSet() {
			n++
		}
	}
	return n
}

// String 序列化为 LRC 文本
func (t *Timeline) String() string {
	return lrc.Format(t.lines)
}

// SetTimestamp 设置时间戳（取整到两位小数，负数按 0）
func (t *Timeline) SetTimestamp(index int, seconds float64) error {
	if err := t.check(index); err != nil {
		return err
	}
	if !validTime(seconds) {
		return fmt.Errorf("line %d: %w: %v", index, ErrInvalidTime, seconds)
	}
	t.lines[index].Timestamp = lrc.Some(seconds)
	return nil
}

// ClearTimestamp 清除时间戳
func (t *Timeline) ClearTimestamp(index int) error {
	if err := t.check(index); err != nil {
		return err
	}
	t.lines[index].Timestamp = lrc.None()
	return nil
}

// NudgeTimestamp 微调已有时间戳，结果不小于 0；未打点的行不变。
// delta 非有限值或结果超出范围时返回 ErrInvalidTime，时间轴不变
func (t *Timeline) NudgeTimestamp(index int, delta float64) (lrc.Timestamp, error) {
	if err := t.check(index); err != nil {
		return lrc.None(), err
	}
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return lrc.None(), fmt.Errorf("line %d: %w: delta %v", index, ErrInvalidTime, delta)
	}
	current, ok := t.lines[index].Timestamp.Get()
	if !ok {
		return lrc.None(), nil
	}
	next := math.Max(0, current+delta)
	if !validTime(next) {
		return lrc.None(), fmt.Errorf("line %d: %w: %v", index, ErrInvalidTime, next)
	}
	t.lines[index].Timestamp = lrc.Some(next)
	return t.lines[index].Timestamp, nil
}

// ActiveLineIndex 返回 position 处应高亮的行。
//
// 行 i 满足条件：position >= t_i，且其后下一个有时间戳的行不存在或 t_next > position。
// 没有时间戳的行在扫描中是透明的。时间戳非单调时可能有多行满足条件，
// PolicyLatest 取最后一个，PolicyFirst 取第一个。
func (t *Timeline) ActiveLineIndex(position float64) (int, bool) {
	// 从后往前扫描，next 为当前行之后最近的时间戳
	active := -1
	next, hasNext := 0.0, false
	for i := len(t.lines) - 1; i >= 0; i-- {
		ti, ok := t.lines[i].Timestamp.Get()
		if !ok {
			continue
		}
		if position >= ti && (!hasNext || next > position) {
			active = i
			if t.policy == PolicyLatest {
				break
			}
		}
		next, hasNext = ti, true
	}
	return active, active >= 0
}

// validTime 负数允许（按 0 存储），NaN、无穷和超过 lrc.MaxSeconds 的值不允许
func validTime(seconds float64) bool {
	return !math.IsNaN(seconds) && !math.IsInf(seconds, 0) && seconds <= lrc.MaxSeconds
}

func (t *Timeline) check(index int) error {
	if index < 0 || index >= len(t.lines) {
		return &IndexError{Index: index, Len: len(t.lines)}
	}
	return nil
}

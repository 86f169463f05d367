package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lrcsync/internal/timeline"
	"lrcsync/pkg/lrc"
)

var (
	ErrNothingToExport = errors.New("no lyrics to export")
	ErrCursorAtEnd     = errors.New("sync cursor is past the last line")
	ErrCursorAtStart   = errors.New("sync cursor is at the first line")
	ErrLineUntimed     = errors.New("line has no timestamp")
)

// Seeker 播放器跳转接口，由外部持有其生命周期
type Seeker interface {
	Seek(seconds float64) error
}

type nopSeeker struct{}

func (nopSeeker) Seek(float64) error { return nil }

// Options 会话选项
type Options struct {
	Policy timeline.Policy
	Seeker Seeker
	// Now 用于生成默认文件名，测试时可替换
	Now func() time.Time
}

// Session 单次编辑会话：音频名、播放位置、歌词时间轴和打点游标。
// 不是并发安全的，所有调用需在同一个事件循环中串行执行。
type Session struct {
	ID        string
	CreatedAt time.Time

	audioName string
	position  float64
	playing   bool
	source    string
	meta      lrc.Metadata
	timeline  *timeline.Timeline
	cursor    int
	end       lrc.Timestamp

	policy timeline.Policy
	seeker Seeker
	now    func() time.Time
	logger zerolog.Logger
}

// New 创建会话
func New(opts Options) *Session {
	if opts.Seeker == nil {
		opts.Seeker = nopSeeker{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	id := uuid.NewString()
	s := &Session{
		ID:        id,
		CreatedAt: opts.Now(),
		policy:    opts.Policy,
		seeker:    opts.Seeker,
		now:       opts.Now,
		logger:    log.With().Str("component", "session").Str("session", id).Logger(),
	}
	s.timeline = timeline.New(nil, timeline.WithPolicy(s.policy))
	return s
}

func (s *Session) Timeline() *timeline.Timeline {
	return s.timeline
}

func (s *Session) AudioName() string {
	return s.audioName
}

func (s *Session) Position() float64 {
	return s.position
}

func (s *Session) Playing() bool {
	return s.playing
}

func (s *Session) Cursor() int {
	return s.cursor
}

// Source 最近一次载入的原始文本
func (s *Session) Source() string {
	return s.source
}

func (s *Session) Metadata() lrc.Metadata {
	return s.meta
}

func (s *Session) End() lrc.Timestamp {
	return s.end
}

// LoadText 整体重建时间轴
func (s *Session) LoadText(text string) {
	s.source = text
	s.meta = lrc.ParseMetadata(text)
	s.timeline = timeline.FromText(text, timeline.WithPolicy(s.policy))
	if s.cursor > s.timeline.Len() {
		s.cursor = s.timeline.Len()
	}
	s.logger.Info().
		Int("lines", s.timeline.Len()).
		Int("timed", s.timeline.TimedCount()).
		Msg("Lyrics loaded")
}

// SetAudio 设置当前音频的显示名
func (s *Session) SetAudio(name string) {
	s.audioName = name
	s.logger.Info().Str("audio", name).Msg("Audio selected")
}

// SetPosition 更新播放位置，负数按 0
func (s *Session) SetPosition(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	s.position = seconds
}

func (s *Session) SetPlaying(playing bool) {
	s.playing = playing
}

// Toggle 切换播放状态，返回新的状态
func (s *Session) Toggle() bool {
	s.playing = !s.playing
	return s.playing
}

// Seek 跳转播放器并同步本地位置
func (s *Session) Seek(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	if err := s.seeker.Seek(seconds); err != nil {
		return fmt.Errorf("failed to seek to %.2f: %w", seconds, err)
	}
	s.position = seconds
	return nil
}

// Active 当前播放位置对应的行
func (s *Session) Active() (int, bool) {
	return s.timeline.ActiveLineIndex(s.position)
}

// Set 直接设置某一行的时间戳
func (s *Session) Set(index int, seconds float64) error {
	return s.timeline.SetTimestamp(index, seconds)
}

// Clear 清除某一行的时间戳
func (s *Session) Clear(index int) error {
	return s.timeline.ClearTimestamp(index)
}

// Nudge 微调时间戳，并把播放器跳到新的位置
func (s *Session) Nudge(index int, delta float64) (lrc.Timestamp, error) {
	ts, err := s.timeline.NudgeTimestamp(index, delta)
	if err != nil {
		return ts, err
	}
	if v, ok := ts.Get(); ok {
		if err := s.Seek(v); err != nil {
			return ts, err
		}
	}
	return ts, nil
}

// Advance 用当前播放位置给游标所在行打点，然后游标下移
func (s *Session) Advance() (int, error) {
	if s.cursor >= s.timeline.Len() {
		return s.cursor, ErrCursorAtEnd
	}
	index := s.cursor
	if err := s.timeline.SetTimestamp(index, s.position); err != nil {
		return index, err
	}
	s.cursor++
	return index, nil
}

// Retreat 游标上移一行，并清除该行时间戳
func (s *Session) Retreat() (int, error) {
	if s.cursor <= 0 {
		return 0, ErrCursorAtStart
	}
	index := s.cursor - 1
	if err := s.timeline.ClearTimestamp(index); err != nil {
		return index, err
	}
	s.cursor = index
	return index, nil
}

// Jump 跳转到已打点的行，并把游标移到该行
func (s *Session) Jump(index int) error {
	line, err := s.timeline.Line(index)
	if err != nil {
		return err
	}
	v, ok := line.Timestamp.Get()
	if !ok {
		return fmt.Errorf("jump to line %d: %w", index, ErrLineUntimed)
	}
	if err := s.Seek(v); err != nil {
		return err
	}
	s.cursor = index
	return nil
}

// Rewind 回到开头
func (s *Session) Rewind() error {
	if err := s.Seek(0); err != nil {
		return err
	}
	s.cursor = 0
	return nil
}

// MarkEnd 记录结束位置，只保存在会话中，不写入导出文件
func (s *Session) MarkEnd() lrc.Timestamp {
	s.end = lrc.Some(s.position)
	s.logger.Info().Str("end", s.end.String()).Msg("End mark set")
	return s.end
}

// Filename 建议的导出文件名（不含扩展名）
func (s *Session) Filename() string {
	return lrc.SuggestFilename(s.audioName, s.now())
}

// Export 导出结果
type Export struct {
	Filename string
	Body     string
}

// Export 生成 .lrc 文件内容；时间轴为空时返回 ErrNothingToExport
func (s *Session) Export() (Export, error) {
	if s.timeline.IsEmpty() {
		return Export{}, ErrNothingToExport
	}
	return Export{
		Filename: s.Filename() + lrc.Extension,
		Body:     s.timeline.String(),
	}, nil
}

// Reset 丢弃当前会话内容，开始新的会话
func (s *Session) Reset() {
	s.logger.Info().Msg("Session reset")
	*s = *New(Options{Policy: s.policy, Seeker: s.seeker, Now: s.now})
}

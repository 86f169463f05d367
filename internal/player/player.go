package player

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrNoTrack 没有可用的播放器或曲目
var ErrNoTrack = errors.New("no track loaded")

// Player 播放位置来源。会话只读取位置和请求跳转，不负责播放器的生命周期。
type Player interface {
	Position(ctx context.Context) (float64, error)
	Seek(ctx context.Context, seconds float64) error
	SetPlaying(ctx context.Context, playing bool) error
	Track(ctx context.Context) (string, error)
}

// Playerctl 通过 playerctl 控制 MPRIS 播放器
type Playerctl struct {
	// Name 对应 playerctl --player，为空时使用默认播放器
	Name string
	run  func(ctx context.Context, args ...string) ([]byte, error)
}

func NewPlayerctl(name string) *Playerctl {
	return &Playerctl{Name: name, run: runPlayerctl}
}

func runPlayerctl(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "playerctl", args...).Output()
}

func (p *Playerctl) command(ctx context.Context, args ...string) (string, error) {
	if p.Name != "" {
		args = append([]string{"--player", p.Name}, args...)
	}
	out, err := p.run(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("playerctl %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Track 当前曲目的显示名，优先使用文件名
func (p *Playerctl) Track(ctx context.Context) (string, error) {
	out, err := p.command(ctx, "metadata", "--format", `{{xesam:url}}`)
	if err == nil && out != "" {
		if name := trackNameFromURL(out); name != "" {
			return name, nil
		}
	}
	out, err = p.command(ctx, "metadata", "--format", `{{artist}} - {{title}}`)
	if err != nil {
		return "", err
	}
	if strings.Trim(out, " -") == "" {
		return "", ErrNoTrack
	}
	return out, nil
}

func (p *Playerctl) Position(ctx context.Context) (float64, error) {
	out, err := p.command(ctx, "position")
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid player position %q: %w", out, err)
	}
	return seconds, nil
}

func (p *Playerctl) Seek(ctx context.Context, seconds float64) error {
	_, err := p.command(ctx, "position", strconv.FormatFloat(seconds, 'f', 2, 64))
	return err
}

func (p *Playerctl) SetPlaying(ctx context.Context, playing bool) error {
	action := "pause"
	if playing {
		action = "play"
	}
	_, err := p.command(ctx, action)
	return err
}

func trackNameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "file" || u.Path == "" {
		return ""
	}
	return path.Base(u.Path)
}

// Clock 进程内的播放时钟，播放时随真实时间前进。
// 用于没有外部播放器的场景（纯网页前端上报位置）以及测试。
type Clock struct {
	mu       sync.Mutex
	track    string
	offset   float64
	started  time.Time
	playing  bool
	duration float64
	now      func() time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Load 设置曲目名和时长（秒，0 表示未知）
func (c *Clock) Load(track string, duration float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.track = track
	c.duration = duration
	c.offset = 0
	c.playing = false
}

func (c *Clock) Track(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.track == "" {
		return "", ErrNoTrack
	}
	return c.track, nil
}

func (c *Clock) Position(ctx context.Context) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked(), nil
}

func (c *Clock) positionLocked() float64 {
	pos := c.offset
	if c.playing {
		pos += c.now().Sub(c.started).Seconds()
	}
	if c.duration > 0 && pos > c.duration {
		pos = c.duration
	}
	return pos
}

func (c *Clock) Seek(ctx context.Context, seconds float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	c.offset = seconds
	c.started = c.now()
	return nil
}

func (c *Clock) SetPlaying(ctx context.Context, playing bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if playing == c.playing {
		return nil
	}
	c.offset = c.positionLocked()
	c.started = c.now()
	c.playing = playing
	return nil
}

// New 根据配置名创建播放器："clock" 或 "playerctl[:name]"
func New(kind string) (Player, error) {
	switch {
	case kind == "" || kind == "clock":
		return NewClock(), nil
	case kind == "playerctl":
		return NewPlayerctl(""), nil
	case strings.HasPrefix(kind, "playerctl:"):
		return NewPlayerctl(strings.TrimPrefix(kind, "playerctl:")), nil
	default:
		return nil, fmt.Errorf("unknown player: %s", kind)
	}
}

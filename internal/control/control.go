package control

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lrcsync/internal/ipc"
	"lrcsync/internal/session"
	"lrcsync/pkg/fileutil"
	"lrcsync/pkg/lrc"
)

// logger 每次取全局 logger，使 SetupLogging 之后的输出配置生效
func logger() *zerolog.Logger {
	l := log.With().Str("component", "control").Logger()
	return &l
}

// Transport 播放/暂停控制，nil 时只修改会话状态
type Transport interface {
	SetPlaying(ctx context.Context, playing bool) error
}

// Dispatcher 把 IPC/HTTP 命令应用到会话上，必须在事件循环中调用
type Dispatcher struct {
	Transport Transport
	OutputDir string
	// SmallStep/LargeStep 对应 nudge 的 "+"/"++"
	SmallStep float64
	LargeStep float64
}

func (d *Dispatcher) stepDelta(step int) float64 {
	small, large := d.SmallStep, d.LargeStep
	if small <= 0 {
		small = 0.1
	}
	if large <= 0 {
		large = 0.25
	}
	switch {
	case step >= 2:
		return large
	case step == 1:
		return small
	case step == -1:
		return -small
	case step <= -2:
		return -large
	}
	return 0
}

// Apply 执行一条命令，返回给客户端的简短回复
func (d *Dispatcher) Apply(ctx context.Context, s *session.Session, cmd ipc.Command) (string, error) {
	switch cmd.Name {
	case ipc.CmdNext:
		index, err := s.Advance()
		if err != nil {
			return "", err
		}
		line, _ := s.Timeline().Line(index)
		return fmt.Sprintf("%d %s", index, line.Timestamp), nil

	case ipc.CmdPrev:
		index, err := s.Retreat()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d", index), nil

	case ipc.CmdPlay:
		return "", d.setPlaying(ctx, s, true)
	case ipc.CmdPause:
		return "", d.setPlaying(ctx, s, false)
	case ipc.CmdToggle:
		playing := !s.Playing()
		if err := d.setPlaying(ctx, s, playing); err != nil {
			return "", err
		}
		if playing {
			return "playing", nil
		}
		return "paused", nil

	case ipc.CmdRewind:
		return "", s.Rewind()

	case ipc.CmdEnd:
		return s.MarkEnd().String(), nil

	case ipc.CmdExport:
		return d.export(s)

	case ipc.CmdStatus:
		return Status(s), nil

	case ipc.CmdNudge:
		delta := cmd.Value
		if cmd.Step != 0 {
			delta = d.stepDelta(cmd.Step)
		}
		ts, err := s.Nudge(cmd.Index, delta)
		if err != nil {
			return "", err
		}
		return ts.String(), nil

	case ipc.CmdClear:
		return "", s.Clear(cmd.Index)

	case ipc.CmdSet:
		if err := s.Set(cmd.Index, cmd.Value); err != nil {
			return "", err
		}
		return lrc.Encode(cmd.Value), nil

	case ipc.CmdJump:
		return "", s.Jump(cmd.Index)

	case ipc.CmdSeek:
		if err := s.Seek(cmd.Value); err != nil {
			return "", err
		}
		return lrc.Encode(s.Position()), nil

	default:
		return "", fmt.Errorf("unknown command: %s", cmd.Name)
	}
}

func (d *Dispatcher) setPlaying(ctx context.Context, s *session.Session, playing bool) error {
	if d.Transport != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := d.Transport.SetPlaying(ctx, playing); err != nil {
			return fmt.Errorf("player: %w", err)
		}
	}
	s.SetPlaying(playing)
	return nil
}

func (d *Dispatcher) export(s *session.Session) (string, error) {
	exp, err := s.Export()
	if err != nil {
		return "", err
	}
	path := filepath.Join(d.OutputDir, exp.Filename)
	if err := fileutil.WriteFileAtomic(path, []byte(exp.Body+"\n"), 0644); err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	logger().Info().Str("path", path).Msg("Lyrics exported")
	return path, nil
}

// Status 一行状态摘要，例如 "00:12.34 playing cursor=3/10 timed=2 active=1"
func Status(s *session.Session) string {
	tl := s.Timeline()
	state := "paused"
	if s.Playing() {
		state = "playing"
	}
	active, _ := s.Active()
	parts := []string{
		lrc.Encode(s.Position()),
		state,
		fmt.Sprintf("cursor=%d/%d", s.Cursor(), tl.Len()),
		fmt.Sprintf("timed=%d", tl.TimedCount()),
		fmt.Sprintf("active=%d", active),
	}
	if s.AudioName() != "" {
		parts = append(parts, fmt.Sprintf("audio=%q", s.AudioName()))
	}
	return strings.Join(parts, " ")
}

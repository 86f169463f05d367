package loop

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lrcsync/internal/player"
	"lrcsync/internal/session"
)

// ErrStopped 事件循环已退出
var ErrStopped = errors.New("event loop stopped")

// Listener 会话变化通知，在事件循环所在的 goroutine 中调用，不能保留 s，也不能调用 Loop.Do
type Listener interface {
	SessionChanged(s *session.Session, active int, activeChanged bool)
}

// ListenerFunc 函数形式的 Listener
type ListenerFunc func(s *session.Session, active int, activeChanged bool)

func (f ListenerFunc) SessionChanged(s *session.Session, active int, activeChanged bool) {
	f(s, active, activeChanged)
}

type event struct {
	fn   func(*session.Session) error
	done chan error
}

// Loop 持有会话，所有修改和查询都在同一个 goroutine 中串行执行
type Loop struct {
	sess       *session.Session
	player     player.Player
	interval   time.Duration
	events     chan event
	stopped    chan struct{}
	listeners  []Listener
	lastActive int
	logger     zerolog.Logger
}

// New player 为 nil 时不轮询播放位置（由展示层上报）
func New(sess *session.Session, p player.Player, interval time.Duration, listeners ...Listener) *Loop {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &Loop{
		sess:       sess,
		player:     p,
		interval:   interval,
		events:     make(chan event),
		stopped:    make(chan struct{}),
		listeners:  listeners,
		lastActive: -1,
		logger:     log.With().Str("component", "loop").Logger(),
	}
}

// Run 运行事件循环直到 ctx 结束
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.stopped)

	// 读取播放位置可能要等外部进程，放在单独的 goroutine 里，不占用事件循环
	positions := make(chan float64, 1)
	if l.player != nil {
		go l.poll(ctx, positions)
	}

	l.logger.Info().Dur("interval", l.interval).Msg("Event loop started")
	for {
		select {
		case ev := <-l.events:
			ev.done <- ev.fn(l.sess)
			l.publish(true)

		case pos := <-positions:
			l.follow(pos)

		case <-ctx.Done():
			l.logger.Info().Msg("Event loop stopped")
			return ctx.Err()
		}
	}
}

// Do 在事件循环中执行 fn 并等待结果。不能在 Listener 或 fn 内部调用。
func (l *Loop) Do(ctx context.Context, fn func(*session.Session) error) error {
	ev := event{fn: fn, done: make(chan error, 1)}
	select {
	case l.events <- ev:
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-ev.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// poll 按 interval 读取播放位置，只保留最新的一个值
func (l *Loop) poll(ctx context.Context, positions chan float64) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}

		pctx, cancel := context.WithTimeout(ctx, l.interval*4)
		pos, err := l.player.Position(pctx)
		cancel()
		if err != nil {
			l.logger.Debug().Err(err).Msg("Failed to read player position")
			continue
		}
		if pos < 0 {
			l.logger.Warn().Float64("player_time", pos).Msg("Invalid player time")
			continue
		}

		select {
		case <-positions:
		default:
		}
		positions <- pos
	}
}

func (l *Loop) follow(pos float64) {
	if pos == l.sess.Position() {
		return
	}
	l.sess.SetPosition(pos)
	l.publish(false)
}

// publish force 为 false 时只在当前行变化时通知
func (l *Loop) publish(force bool) {
	active, _ := l.sess.Active()
	changed := active != l.lastActive
	if changed {
		l.logger.Debug().
			Int("index", active).
			Float64("position", l.sess.Position()).
			Msg("Active line changed")
	}
	l.lastActive = active
	if !changed && !force {
		return
	}
	for _, li := range l.listeners {
		li.SessionChanged(l.sess, active, changed)
	}
}

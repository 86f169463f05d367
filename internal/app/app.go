package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"lrcsync/internal/api"
	"lrcsync/internal/config"
	"lrcsync/internal/control"
	"lrcsync/internal/i3block"
	"lrcsync/internal/ipc"
	"lrcsync/internal/loop"
	"lrcsync/internal/lyrics"
	"lrcsync/internal/player"
	"lrcsync/internal/session"
	"lrcsync/internal/timeline"
	"lrcsync/internal/watch"
)

const (
	commandTimeout = 5 * time.Second
	trackInterval  = 2 * time.Second
	// idleText 没有当前行时推送给 IPC 客户端的内容
	idleText = "♪"
)

// App 把事件循环、播放器、IPC、HTTP 和文件监听组装在一起
type App struct {
	cfg        *config.Config
	player     player.Player
	loop       *loop.Loop
	dispatcher *control.Dispatcher
	ipcServer  *ipc.Server
	apiServer  *api.Server
	importer   *lyrics.Provider
	i3         *i3block.Controller
	cleanup    func()

	mu          sync.Mutex
	currentSong string
	lastText    string
}

// playerSeeker 让会话通过播放器跳转
type playerSeeker struct {
	p player.Player
}

func (ps playerSeeker) Seek(seconds float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return ps.p.Seek(ctx, seconds)
}

// New 按配置创建应用；importer 可以为 nil（不启用在线导入）
func New(cfg *config.Config, p player.Player, importer *lyrics.Provider) (*App, error) {
	policy, err := timeline.ParsePolicy(cfg.App.ActivePolicy)
	if err != nil {
		return nil, err
	}
	if p == nil {
		if p, err = player.New(cfg.App.Player); err != nil {
			return nil, err
		}
	}

	a := &App{
		cfg:      cfg,
		player:   p,
		importer: importer,
		cleanup:  func() {},
		dispatcher: &control.Dispatcher{
			Transport: p,
			OutputDir: cfg.App.OutputDir,
			SmallStep: cfg.Sync.SmallStep,
			LargeStep: cfg.Sync.LargeStep,
		},
	}

	sess := session.New(session.Options{Policy: policy, Seeker: playerSeeker{p: p}})
	listeners := []loop.Listener{loop.ListenerFunc(a.onSessionChanged)}

	a.ipcServer = ipc.NewServer(cfg.App.SocketPath, cfg.App.StatusFile, a.handleCommand)

	if cfg.HTTP.Addr != "" {
		var imp api.Importer
		if importer != nil {
			imp = importer
		}
		a.apiServer = api.NewServer(cfg.HTTP.Addr, a, imp)
		listeners = append(listeners, a.apiServer.Hub())
	}

	if cfg.I3Block.Enabled {
		a.i3 = i3block.NewController(cfg.I3Block.Signal)
	}

	a.loop = loop.New(sess, p, cfg.App.PollInterval, listeners...)
	return a, nil
}

// SetCleanup 在 Run 退出时调用
func (a *App) SetCleanup(fn func()) {
	a.cleanup = fn
}

// Do 在事件循环中执行 fn
func (a *App) Do(ctx context.Context, fn func(*session.Session) error) error {
	return a.loop.Do(ctx, fn)
}

// Apply 在事件循环中执行一条同步命令
func (a *App) Apply(ctx context.Context, cmd ipc.Command) (string, error) {
	var reply string
	err := a.loop.Do(ctx, func(s *session.Session) error {
		var err error
		reply, err = a.dispatcher.Apply(ctx, s, cmd)
		return err
	})
	return reply, err
}

func (a *App) handleCommand(cmd ipc.Command) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	log.Debug().Str("command", cmd.String()).Msg("IPC command")
	return a.Apply(ctx, cmd)
}

// onSessionChanged 在事件循环中调用：推送当前歌词行并通知 i3blocks
func (a *App) onSessionChanged(s *session.Session, active int, activeChanged bool) {
	text := idleText
	if active >= 0 {
		if line, err := s.Timeline().Line(active); err == nil {
			text = line.Text
		}
	}

	a.mu.Lock()
	changed := text != a.lastText
	a.lastText = text
	a.mu.Unlock()
	if !changed {
		return
	}

	log.Info().Int("index", active).Float64("position", s.Position()).Str("lyric", text).Msg("Broadcasting lyric")
	a.ipcServer.Broadcast(text)
	if a.i3 != nil {
		if err := a.i3.Notify(); err != nil {
			log.Debug().Err(err).Msg("Failed to notify i3blocks")
		}
	}
}

// Run 启动所有组件，阻塞直到 ctx 结束
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	if a.cfg.App.CacheDir != "" {
		if err := os.MkdirAll(a.cfg.App.CacheDir, 0755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
		log.Info().Str("cache_dir", a.cfg.App.CacheDir).Msg("Lyrics cache directory")
	}

	if err := a.ipcServer.Start(); err != nil {
		return fmt.Errorf("failed to start IPC server: %w", err)
	}
	defer a.ipcServer.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 4)
	spawn := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("component", name).Msg("Component stopped")
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	spawn("loop", a.loop.Run)
	if a.apiServer != nil {
		spawn("http", a.apiServer.Run)
	}
	if a.cfg.App.LyricsFile != "" {
		w := watch.New(a.cfg.App.LyricsFile, 0, a.reloadLyrics)
		spawn("watch", w.Run)
	}
	if a.i3 != nil {
		spawn("i3block", func(ctx context.Context) error {
			a.i3.Run(ctx)
			return nil
		})
	}
	spawn("track", func(ctx context.Context) error {
		a.watchTrack(ctx)
		return nil
	})

	log.Info().Msg("lrcsync started")
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	cancel()
	wg.Wait()
	log.Info().Msg("lrcsync stopped")
	return runErr
}

// reloadLyrics 源文件改变时整体重建时间轴
func (a *App) reloadLyrics(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := a.loop.Do(ctx, func(s *session.Session) error {
		s.LoadText(text)
		return nil
	}); err != nil {
		log.Warn().Err(err).Msg("Failed to reload lyrics")
	}
}

// watchTrack 定期检查播放器的曲目，切歌时更新音频名并按需导入歌词
func (a *App) watchTrack(ctx context.Context) {
	ticker := time.NewTicker(trackInterval)
	defer ticker.Stop()
	for {
		a.checkTrack(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkTrack(ctx context.Context) {
	tctx, cancel := context.WithTimeout(ctx, trackInterval)
	defer cancel()
	name, err := a.player.Track(tctx)
	if err != nil || name == "" {
		return
	}

	a.mu.Lock()
	if name == a.currentSong {
		a.mu.Unlock()
		return
	}
	a.currentSong = name
	a.mu.Unlock()

	log.Info().Str("song", name).Msg("New song detected")

	empty := false
	if err := a.loop.Do(ctx, func(s *session.Session) error {
		s.SetAudio(name)
		empty = s.Timeline().IsEmpty()
		return nil
	}); err != nil {
		return
	}

	if empty && a.cfg.App.AutoImport && a.importer != nil {
		a.importLyrics(ctx, name)
	}
}

// importLyrics 网络请求在事件循环外完成；期间切了歌或已有歌词则丢弃结果
func (a *App) importLyrics(ctx context.Context, name string) {
	ictx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	text, err := a.importer.Import(ictx, name, 0)
	if err != nil {
		log.Error().Err(err).Str("song", name).Msg("Failed to get lyrics")
		return
	}

	a.loop.Do(ctx, func(s *session.Session) error {
		if s.AudioName() != name || !s.Timeline().IsEmpty() {
			log.Info().Str("song", name).Msg("Session changed during import, discarding lyrics")
			return nil
		}
		s.LoadText(text)
		return nil
	})
}

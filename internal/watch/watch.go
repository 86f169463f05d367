package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce 编辑器保存时通常会连续触发多个事件
const DefaultDebounce = 200 * time.Millisecond

// logger 每次取全局 logger，使 SetupLogging 之后的输出配置生效
func logger() *zerolog.Logger {
	l := log.With().Str("component", "watch").Logger()
	return &l
}

// Watcher 监听歌词源文件，内容变化时回调
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(text string)
	last     string
}

// New onChange 在 Run 所在的 goroutine 中调用
func New(path string, debounce time.Duration, onChange func(text string)) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		onChange: onChange,
	}
}

// Run 先加载一次文件，之后阻塞直到 ctx 结束
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// 监听目录而不是文件本身，编辑器的“写临时文件再改名”也能捕获
	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logger().Info().Str("path", w.path).Msg("Watching lyrics file")

	w.reload()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger().Warn().Err(err).Msg("Watcher error")
		case <-timer.C:
			w.reload()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger().Warn().Err(err).Str("path", w.path).Msg("Failed to read lyrics file")
		}
		return
	}
	text := string(data)
	if text == w.last {
		return
	}
	w.last = text
	logger().Info().Str("path", w.path).Int("bytes", len(data)).Msg("Lyrics file changed")
	w.onChange(text)
}

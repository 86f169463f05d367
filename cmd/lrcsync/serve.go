package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"lrcsync/internal/app"
	"lrcsync/internal/player"
)

var (
	serveAudio    string
	serveDuration float64
	serveLyrics   string
	serveHTTP     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动同步服务",
	Long: `启动事件循环、IPC 套接字和 HTTP/WebSocket 接口。
歌词来源可以是 --lyrics 指定的文件（修改后自动重新加载），也可以通过 HTTP 上传或在线导入。`,
	Example: `  lrcsync serve
  lrcsync serve --lyrics song.txt --audio "Artist - Title.mp3" --duration 215
  lrcsync serve --http 127.0.0.1:9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveLyrics != "" {
			cfg.App.LyricsFile = serveLyrics
		}
		if cmd.Flags().Changed("http") {
			cfg.HTTP.Addr = serveHTTP
		}

		closer := app.SetupLogging(cfg.Log)
		defer closer.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, err := player.New(cfg.App.Player)
		if err != nil {
			return err
		}
		if serveAudio != "" {
			if clock, ok := p.(*player.Clock); ok {
				clock.Load(serveAudio, serveDuration)
			} else {
				log.Warn().Str("player", cfg.App.Player).Msg("--audio only applies to the clock player, ignored")
			}
		}

		importer, cleanup, err := app.NewImporter(ctx, cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Online lyrics import disabled")
			importer = nil
		}

		a, err := app.New(cfg, p, importer)
		if err != nil {
			cleanup()
			return err
		}
		a.SetCleanup(cleanup)
		return a.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAudio, "audio", "", "音频名（clock 播放器）")
	serveCmd.Flags().Float64Var(&serveDuration, "duration", 0, "音频时长，秒（clock 播放器，0 表示未知）")
	serveCmd.Flags().StringVar(&serveLyrics, "lyrics", "", "歌词源文件，覆盖配置中的 lyrics_file")
	serveCmd.Flags().StringVar(&serveHTTP, "http", "", "HTTP 监听地址，空字符串关闭 HTTP")
	rootCmd.AddCommand(serveCmd)
}

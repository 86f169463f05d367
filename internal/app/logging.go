package app

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"lrcsync/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SetupLogging 配置全局 zerolog：终端彩色输出，设置了 log.file 时同时写入按大小轮转的文件
func SetupLogging(cfg config.LogConfig) io.Closer {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	var closer io.Closer = nopCloser{}
	if cfg.File == "" {
		log.Logger = log.Output(console)
	} else {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		log.Logger = log.Output(zerolog.MultiLevelWriter(console, file))
		closer = file
	}

	if err != nil && cfg.Level != "" {
		log.Warn().Str("level", cfg.Level).Msg("Unknown log level, using info")
	}
	return closer
}

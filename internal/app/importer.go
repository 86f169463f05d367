package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"lrcsync/internal/config"
	"lrcsync/internal/lyrics"
	"lrcsync/pkg/ai"
	"lrcsync/pkg/ai/gemini"
	"lrcsync/pkg/ai/openai"
	"lrcsync/pkg/music"
	musiccache "lrcsync/pkg/musicCache"
	"lrcsync/pkg/redis"
)

// NewImporter 按配置组装在线歌词导入：AI、redis 和歌曲信息缓存都是可选的。
// 返回的 cleanup 释放 AI 和 redis 连接。
func NewImporter(ctx context.Context, cfg *config.Config) (*lyrics.Provider, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	manager, err := music.CreateManager(cfg.Providers)
	if err != nil {
		return nil, cleanup, fmt.Errorf("failed to create music manager: %w", err)
	}
	opts := lyrics.Options{
		CacheDir: cfg.App.CacheDir,
		Music:    manager,
		RedisTTL: cfg.Redis.TTL,
	}

	if cfg.AI.APIKey != "" {
		aiClient, closeAI, err := newAI(ctx, cfg.AI)
		if err != nil {
			log.Warn().Err(err).Msg("AI song extraction disabled")
		} else {
			opts.AI = aiClient
			cleanups = append(cleanups, closeAI)
		}
	}

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   "lrcsync:",
		})
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, using file cache only")
		} else {
			opts.Redis = client
			cleanups = append(cleanups, func() { client.Close() })
			log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
		}
	}

	if cfg.App.CacheDir != "" {
		songs, err := musiccache.Open(filepath.Join(cfg.App.CacheDir, "songs.cache"))
		if err != nil {
			log.Warn().Err(err).Msg("Song info cache disabled")
		} else {
			opts.Songs = songs
		}
	}

	return lyrics.NewProvider(opts), cleanup, nil
}

func newAI(ctx context.Context, cfg config.AIConfig) (ai.AiInterface, func(), error) {
	if cfg.ModuleName == "gemini" {
		client, err := gemini.NewGemini(ctx, cfg.APIKey, "")
		if err != nil {
			return nil, nil, err
		}
		return client, func() { client.Close() }, nil
	}
	return openai.NewOpenAi(cfg.APIKey, cfg.ModuleName, cfg.BaseURL), func() {}, nil
}

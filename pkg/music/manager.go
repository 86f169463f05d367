package music

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrNoProviders = errors.New("no music providers available")

// logger 每次取全局 logger，使 SetupLogging 之后的输出配置生效
func logger() *zerolog.Logger {
	l := log.With().Str("component", "music-manager").Logger()
	return &l
}

// Manager 音乐API管理器，按顺序回退
type Manager struct {
	providers []MusicAPI
	primary   MusicAPI
}

// NewManager 创建新的音乐API管理器
func NewManager(providers []MusicAPI) *Manager {
	if len(providers) == 0 {
		logger().Warn().Msg("No music providers configured")
		return &Manager{}
	}

	primary := providers[0]
	logger().Info().
		Int("provider_count", len(providers)).
		Str("primary_provider", primary.GetProviderName()).
		Msg("Music API Manager initialized")

	return &Manager{
		providers: providers,
		primary:   primary,
	}
}

// each 依次尝试每个提供商，返回第一个成功结果
func (m *Manager) each(op string, fn func(MusicAPI) (string, error)) (string, error) {
	if len(m.providers) == 0 {
		return "", ErrNoProviders
	}

	var lastErr error
	for i, provider := range m.providers {
		logger().Debug().
			Str("op", op).
			Str("provider", provider.GetProviderName()).
			Int("attempt", i+1).
			Int("total_providers", len(m.providers)).
			Msg("Trying provider")

		result, err := fn(provider)
		if err == nil {
			logger().Info().Str("op", op).Str("provider", provider.GetProviderName()).Msg("Provider succeeded")
			return result, nil
		}

		logger().Warn().Str("op", op).Str("provider", provider.GetProviderName()).Err(err).Msg("Provider failed")
		lastErr = err
	}

	return "", fmt.Errorf("all providers failed, last error: %w", lastErr)
}

// SearchSong 搜索歌曲，支持多提供商回退
func (m *Manager) SearchSong(ctx context.Context, title, artist string) (string, error) {
	return m.each("search", func(p MusicAPI) (string, error) {
		return p.SearchSong(ctx, title, artist)
	})
}

// GetLyrics 获取歌词，支持多提供商回退
func (m *Manager) GetLyrics(ctx context.Context, songID string) (string, error) {
	return m.each("lyrics", func(p MusicAPI) (string, error) {
		return p.GetLyrics(ctx, songID)
	})
}

// GetLyricsByInfo 根据歌曲信息直接获取歌词（封装搜索+获取歌词）
func (m *Manager) GetLyricsByInfo(ctx context.Context, title, artist string, duration float64) (string, error) {
	lyrics, err := m.each("lyrics-by-info", func(p MusicAPI) (string, error) {
		if dm, ok := p.(DurationMatcher); ok && duration > 0 {
			return dm.GetLyricsByInfo(ctx, title, artist, duration)
		}

		songID, err := p.SearchSong(ctx, title, artist)
		if err != nil {
			return "", fmt.Errorf("search: %w", err)
		}
		lyrics, err := p.GetLyrics(ctx, songID)
		if err != nil {
			return "", fmt.Errorf("lyrics for %s: %w", songID, err)
		}
		return lyrics, nil
	})
	if err != nil {
		return "", fmt.Errorf("'%s - %s': %w", artist, title, err)
	}
	return lyrics, nil
}

// GetProviderName 获取管理器名称（实现MusicAPI接口）
func (m *Manager) GetProviderName() string {
	if m.primary != nil {
		return fmt.Sprintf("Manager[Primary: %s]", m.primary.GetProviderName())
	}
	return "Manager[No Providers]"
}

// GetProviderNames 获取所有提供商名称
func (m *Manager) GetProviderNames() []string {
	names := make([]string, len(m.providers))
	for i, provider := range m.providers {
		names[i] = provider.GetProviderName()
	}
	return names
}

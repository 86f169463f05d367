package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lrcsync/pkg/ai"
	"lrcsync/pkg/fileutil"
	"lrcsync/pkg/lrc"
	"lrcsync/pkg/music"
)

// ErrNotASong AI 判断显示名不是歌曲
var ErrNotASong = errors.New("not a song")

// logger 每次取全局 logger，使 SetupLogging 之后的输出配置生效
func logger() *zerolog.Logger {
	l := log.With().Str("component", "lyrics").Logger()
	return &l
}

const redisKeyPrefix = "lyrics:"

// Cache 远程歌词缓存（redis）
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// SongCache 显示名到歌曲信息的缓存
type SongCache interface {
	Get(key string) (string, error)
	Add(key, value string) error
}

// Options NewProvider 参数，除 Music 外都可以为空
type Options struct {
	CacheDir string
	AI       ai.AiInterface
	Redis    Cache
	RedisTTL time.Duration
	Songs    SongCache
	Music    music.MusicManager
}

// Provider 根据音频显示名导入歌词
type Provider struct {
	cacheDir string
	aiClient ai.AiInterface
	redis    Cache
	redisTTL time.Duration
	songs    SongCache
	manager  music.MusicManager
}

func NewProvider(opts Options) *Provider {
	return &Provider{
		cacheDir: opts.CacheDir,
		aiClient: opts.AI,
		redis:    opts.Redis,
		redisTTL: opts.RedisTTL,
		songs:    opts.Songs,
		manager:  opts.Music,
	}
}

func formatQuerySong(title string) string {
	return fmt.Sprintf(`请精确地按照以下JSON格式提取歌曲信息: {"is_song": true, "title": "歌曲标题", "artist": "演唱者"}。  输入是一个媒体标题，如果标题中包含歌曲信息，请返回符合格式的JSON；否则，返回{"is_song": false}。 请注意，"title" 和 "artist" 必须准确，否则将被视为错误，切记不要任何markdown格式。 媒体标题是：%s`, title)
}

// ResolveSong 从显示名中得到标题和歌手：先查缓存，再问 AI，最后按 "Artist - Title" 拆分
func (p *Provider) ResolveSong(ctx context.Context, name string) (music.SongInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return music.SongInfo{}, errors.New("empty audio name")
	}

	if p.songs != nil {
		if raw, err := p.songs.Get(name); err == nil {
			var info music.SongInfo
			if json.Unmarshal([]byte(raw), &info) == nil {
				logger().Debug().Str("name", name).Msg("Song info cache HIT")
				return info, nil
			}
		}
	}

	info := SplitName(name)
	if p.aiClient != nil {
		aiInfo, err := p.askAI(ctx, name)
		switch {
		case err == nil:
			info = aiInfo
		case errors.Is(err, ErrNotASong):
			return music.SongInfo{}, fmt.Errorf("'%s': %w", name, err)
		default:
			logger().Warn().Err(err).Str("ai", p.aiClient.Name()).Msg("AI extraction failed, splitting display name")
		}
	}

	if p.songs != nil {
		if raw, err := json.Marshal(info); err == nil {
			if err := p.songs.Add(name, string(raw)); err != nil {
				logger().Warn().Err(err).Msg("Failed to store song info")
			}
		}
	}
	return info, nil
}

func (p *Provider) askAI(ctx context.Context, name string) (music.SongInfo, error) {
	const maxRetries = 3
	var raw string
	var err error
	for i := range maxRetries {
		raw, err = p.aiClient.HandleText(ctx, formatQuerySong(name))
		if err == nil {
			break
		}
		logger().Warn().Err(err).Int("attempt", i+1).Int("max", maxRetries).Msg("Failed to query AI")
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return music.SongInfo{}, ctx.Err()
		}
	}
	if err != nil {
		return music.SongInfo{}, fmt.Errorf("query %s after %d attempts: %w", p.aiClient.Name(), maxRetries, err)
	}

	var info music.SongInfo
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &info); err != nil {
		return music.SongInfo{}, fmt.Errorf("failed to parse AI response: %w", err)
	}
	if !info.IsSong {
		return music.SongInfo{}, ErrNotASong
	}
	logger().Info().Str("title", info.Title).Str("artist", info.Artist).Msg("AI returned song info")
	return info, nil
}

var extRe = regexp.MustCompile(`\.[^/.]+$`)

// SplitName 按第一个 " - " 拆分为歌手和标题，并去掉扩展名
func SplitName(name string) music.SongInfo {
	base := extRe.ReplaceAllString(filepath.Base(strings.TrimSpace(name)), "")
	if artist, title, ok := strings.Cut(base, " - "); ok {
		return music.SongInfo{Artist: strings.TrimSpace(artist), Title: strings.TrimSpace(title), IsSong: true}
	}
	return music.SongInfo{Title: strings.TrimSpace(base), IsSong: true}
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Import 获取显示名对应的歌词，返回规范化后的 LRC 文本
func (p *Provider) Import(ctx context.Context, name string, duration float64) (string, error) {
	info, err := p.ResolveSong(ctx, name)
	if err != nil {
		return "", err
	}
	info.Duration = duration
	return p.Fetch(ctx, info)
}

// Fetch 依次查 redis、文件缓存和歌词提供商
func (p *Provider) Fetch(ctx context.Context, info music.SongInfo) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	query := info.Query()
	redisKey := redisKeyPrefix + query

	if p.redis != nil {
		if cached, err := p.redis.Get(ctx, redisKey); err == nil && cached != "" {
			logger().Info().Str("song", query).Msg("Redis cache HIT")
			return cached, nil
		} else if err != nil {
			logger().Warn().Err(err).Msg("Redis lookup failed")
		}
	}

	cacheFile := p.cachePath(info)
	if cacheFile != "" {
		if cached, err := os.ReadFile(cacheFile); err == nil {
			logger().Info().Str("path", cacheFile).Msg("Cache HIT")
			return string(cached), nil
		}
	}
	logger().Info().Str("song", query).Float64("duration", info.Duration).Msg("Cache MISS, fetching from providers")

	if p.manager == nil {
		return "", music.ErrNoProviders
	}
	raw, err := p.manager.GetLyricsByInfo(ctx, info.Title, info.Artist, info.Duration)
	if err != nil {
		return "", fmt.Errorf("failed to get lyrics for '%s': %w", query, err)
	}
	text := Normalize(raw)

	if cacheFile != "" {
		if err := fileutil.WriteFileAtomic(cacheFile, []byte(text), 0644); err != nil {
			logger().Error().Err(err).Str("path", cacheFile).Msg("Failed to write cache file")
		}
	}
	if p.redis != nil {
		if err := p.redis.SetWithExpiration(ctx, redisKey, text, p.redisTTL); err != nil {
			logger().Warn().Err(err).Msg("Failed to store lyrics in redis")
		}
	}
	return text, nil
}

func (p *Provider) cachePath(info music.SongInfo) string {
	if p.cacheDir == "" {
		return ""
	}
	return filepath.Join(p.cacheDir, lrc.SanitizeFilename(info.Title+"-"+info.Artist)+lrc.Extension)
}

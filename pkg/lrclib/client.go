package lrclib

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultBaseURL = "https://lrclib.net/api"

// logger 每次取全局 logger，使 SetupLogging 之后的输出配置生效
func logger() *zerolog.Logger {
	l := log.With().Str("component", "lrclib").Logger()
	return &l
}

// Client LRCLib客户端
type Client struct {
	httpClient     *http.Client
	baseURL        string
	requestTimeout time.Duration
	maxRetries     int
	retryBackoff   time.Duration
}

// LRCLibResponse LRCLib API响应结构
type LRCLibResponse struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// LRCLibSearchResponse LRCLib API搜索响应（列表）
type LRCLibSearchResponse []LRCLibResponse

// NewClient 创建新的LRCLib客户端
func NewClient() *Client {
	return NewClientWithURL(DefaultBaseURL)
}

// NewClientWithURL 使用自定义 API 地址（自建镜像或测试）
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		baseURL:        strings.TrimRight(baseURL, "/"),
		requestTimeout: 5 * time.Second,
		maxRetries:     3,
		retryBackoff:   500 * time.Millisecond,
	}
}

// GetProviderName 返回提供商名称
func (c *Client) GetProviderName() string {
	return "LRCLib"
}

// SearchSong LRCLib不需要单独的搜索步骤，直接返回查询参数作为"ID"
func (c *Client) SearchSong(ctx context.Context, title, artist string) (string, error) {
	return fmt.Sprintf("%s|%s", title, artist), nil
}

// GetLyrics 获取歌词，songID 格式为 title|artist
func (c *Client) GetLyrics(ctx context.Context, songID string) (string, error) {
	title, artist, ok := strings.Cut(songID, "|")
	if !ok {
		return "", fmt.Errorf("invalid song ID format: %s", songID)
	}
	return c.GetLyricsByInfo(ctx, title, artist, 0)
}

// GetLyricsByInfo 直接通过歌曲信息获取歌词，duration 为 0 时不按时长筛选
func (c *Client) GetLyricsByInfo(ctx context.Context, title, artist string, duration float64) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.requestTimeout*time.Duration(c.maxRetries+1))
	defer cancel()

	params := url.Values{}
	params.Set("track_name", title)
	if artist != "" {
		params.Set("artist_name", artist)
	}
	searchURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())

	resp, err := c.doRequestWithRetry(timeoutCtx, searchURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var lrcResponses LRCLibSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&lrcResponses); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	logger().Info().Int("results", len(lrcResponses)).Str("title", title).Str("artist", artist).Msg("Search finished")

	if len(lrcResponses) == 0 {
		return "", fmt.Errorf("no lyrics found for '%s - %s'", title, artist)
	}

	bestMatch := c.findBestMatch(lrcResponses, title, artist, int(duration))

	// 优先返回同步歌词，如果没有则返回纯文本歌词
	if bestMatch.SyncedLyrics != "" {
		logger().Info().Str("track", bestMatch.TrackName).Str("artist", bestMatch.ArtistName).Msg("Selected synced lyrics")
		return bestMatch.SyncedLyrics, nil
	}
	if bestMatch.PlainLyrics != "" {
		logger().Info().Str("track", bestMatch.TrackName).Str("artist", bestMatch.ArtistName).Msg("Selected plain lyrics")
		return bestMatch.PlainLyrics, nil
	}

	return "", fmt.Errorf("selected result has no lyrics for '%s - %s'", title, artist)
}

func (c *Client) doRequestWithRetry(ctx context.Context, rawURL string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			logger().Info().Int("attempt", attempt).Int("max_retries", c.maxRetries).Msg("Retrying request")
			select {
			case <-time.After(time.Duration(attempt) * c.retryBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", "lrcsync/1.0")

		resp, err := c.httpClient.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			return resp, nil
		}
		if err != nil {
			lastErr = err
		} else {
			resp.Body.Close()
			lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		logger().Warn().Err(lastErr).Int("attempt", attempt+1).Msg("Request failed")
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// findBestMatch 从搜索结果中找到最佳匹配的歌词
func (c *Client) findBestMatch(responses LRCLibSearchResponse, targetTitle, targetArtist string, targetDuration int) *LRCLibResponse {
	var exactMatches []*LRCLibResponse
	var titleMatches []*LRCLibResponse

	for i := range responses {
		response := &responses[i]
		if containsIgnoreCase(response.TrackName, targetTitle) && containsIgnoreCase(response.ArtistName, targetArtist) {
			exactMatches = append(exactMatches, response)
		} else if containsIgnoreCase(response.TrackName, targetTitle) {
			titleMatches = append(titleMatches, response)
		}
	}

	matchPool := exactMatches
	if len(matchPool) == 0 {
		matchPool = titleMatches
	}
	if len(matchPool) == 0 {
		return &responses[0]
	}

	// 如果有时长要求，在匹配结果中筛选最接近的
	if targetDuration > 0 {
		const maxDurationDiff = 3 // 最大允许3秒误差
		bestMatch := matchPool[0]
		minDiff := abs(int(bestMatch.Duration) - targetDuration)

		for _, m := range matchPool {
			diff := abs(int(m.Duration) - targetDuration)
			if diff <= maxDurationDiff {
				return m
			}
			if diff < minDiff {
				minDiff = diff
				bestMatch = m
			}
		}
		return bestMatch
	}

	return matchPool[0]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// containsIgnoreCase 忽略大小写检查包含关系
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

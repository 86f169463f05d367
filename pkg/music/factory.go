package music

import (
	"fmt"
	"strings"

	"lrcsync/pkg/lrclib"
	"lrcsync/pkg/netease"
)

// Provider 音乐提供商类型
type Provider string

const (
	// ProviderLRCLib LRCLib歌词库
	ProviderLRCLib Provider = "lrclib"
	// ProviderNetEase 网易云音乐
	ProviderNetEase Provider = "netease"
)

// GetProviderByName 根据名称获取提供商
func GetProviderByName(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "lrclib":
		return ProviderLRCLib, nil
	case "netease", "网易云", "163":
		return ProviderNetEase, nil
	default:
		return "", fmt.Errorf("unknown provider name: %s", name)
	}
}

// CreateProvider 创建音乐提供商客户端
func CreateProvider(provider Provider) (MusicAPI, error) {
	switch provider {
	case ProviderLRCLib:
		logger().Debug().Msg("Creating LRCLib client")
		return lrclib.NewClient(), nil
	case ProviderNetEase:
		logger().Debug().Msg("Creating NetEase music client")
		return netease.NewClient(), nil
	default:
		return nil, fmt.Errorf("unknown music provider: %s", provider)
	}
}

// CreateManager 按配置顺序创建管理器，无法识别的名称会被跳过
func CreateManager(names []string) (*Manager, error) {
	var providers []MusicAPI
	for _, name := range names {
		kind, err := GetProviderByName(name)
		if err != nil {
			logger().Warn().Err(err).Msg("Skipping provider")
			continue
		}
		provider, err := CreateProvider(kind)
		if err != nil {
			logger().Warn().Err(err).Str("provider", name).Msg("Failed to create provider")
			continue
		}
		providers = append(providers, provider)
	}

	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	return NewManager(providers), nil
}

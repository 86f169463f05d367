package ai

import "context"

// AiInterface 文本补全接口，用于从音频显示名中提取歌曲信息
type AiInterface interface {
	Name() string
	HandleText(ctx context.Context, msg string) (string, error)
}

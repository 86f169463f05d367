package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lrcsync/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "lrcsync",
	Short: "LRC 歌词打点与同步工具",
	Long: `lrcsync 为一首歌编辑逐行时间戳：加载歌词文本，跟随播放位置打点、微调，
并导出 .lrc 文件。serve 子命令启动常驻服务，其余子命令直接处理文件。`,
	SilenceUsage: true,
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径 (默认 $XDG_CONFIG_HOME/lrcsync/config.toml)")
}

// loadConfig --config 指定时必须能读取，否则按默认路径加载
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Load(), nil
	}
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", configPath, err)
	}
	return cfg, nil
}

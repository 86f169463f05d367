package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSocketPath   = "/tmp/lrcsync.sock"
	DefaultStatusFile   = "/tmp/lyrics"
	DefaultPollInterval = 50 * time.Millisecond
	DefaultHTTPAddr     = "127.0.0.1:8765"
	DefaultSmallStep    = 0.1
	DefaultLargeStep    = 0.25
	DefaultCacheTTL     = 7 * 24 * time.Hour
	DefaultI3Signal     = 55
)

func getDefaultCacheDir() string {
	// 优先使用 XDG_CACHE_HOME 环境变量
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, "lrcsync")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "lrcsync_cache"
	}

	return filepath.Join(homeDir, ".cache", "lrcsync")
}

// TomlConfig TOML配置文件结构
type TomlConfig struct {
	App struct {
		SocketPath   string `toml:"socket_path"`
		StatusFile   string `toml:"status_file"`
		PollInterval string `toml:"poll_interval"`
		CacheDir     string `toml:"cache_dir"`
		OutputDir    string `toml:"output_dir"`
		LyricsFile   string `toml:"lyrics_file"`
		ActivePolicy string `toml:"active_policy"`
		Player       string `toml:"player"`
		AutoImport   bool   `toml:"auto_import"`
	} `toml:"app"`

	HTTP struct {
		Addr string `toml:"addr"`
	} `toml:"http"`

	Sync struct {
		SmallStep float64 `toml:"small_step"`
		LargeStep float64 `toml:"large_step"`
	} `toml:"sync"`

	Log struct {
		Level      string `toml:"level"`
		File       string `toml:"file"`
		MaxSizeMB  int    `toml:"max_size_mb"`
		MaxBackups int    `toml:"max_backups"`
		MaxAgeDays int    `toml:"max_age_days"`
		Compress   bool   `toml:"compress"`
	} `toml:"log"`

	AI struct {
		ModuleName string `toml:"module_name"`
		APIKey     string `toml:"api_key"`
		BaseURL    string `toml:"base_url"` // for OpenAI
	} `toml:"ai"`

	Redis struct {
		Enabled  bool   `toml:"enabled"`
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
		TTL      string `toml:"ttl"`
	} `toml:"redis"`

	Providers []string `toml:"providers"`

	I3Block struct {
		Enabled bool `toml:"enabled"`
		Signal  int  `toml:"signal"`
	} `toml:"i3block"`
}

// AppConfig 应用配置
type AppConfig struct {
	SocketPath   string
	StatusFile   string
	PollInterval time.Duration
	CacheDir     string
	OutputDir    string
	LyricsFile   string
	ActivePolicy string
	Player       string
	// AutoImport 检测到新曲目且没有歌词时自动在线获取
	AutoImport bool
}

// HTTPConfig 展示层 HTTP 接口配置，Addr 为空时不启动
type HTTPConfig struct {
	Addr string
}

// SyncConfig 微调步长（秒）
type SyncConfig struct {
	SmallStep float64
	LargeStep float64
}

// LogConfig 日志配置，File 为空时只输出到终端
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AIConfig AI配置
type AIConfig struct {
	ModuleName string
	APIKey     string
	BaseURL    string
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// I3BlockConfig i3blocks 刷新配置
type I3BlockConfig struct {
	Enabled bool
	Signal  int
}

// Config 主配置结构
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Sync      SyncConfig
	Log       LogConfig
	AI        AIConfig
	Redis     RedisConfig
	Providers []string
	I3Block   I3BlockConfig
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		App: AppConfig{
			SocketPath:   DefaultSocketPath,
			StatusFile:   DefaultStatusFile,
			PollInterval: DefaultPollInterval,
			CacheDir:     getDefaultCacheDir(),
			OutputDir:    ".",
			ActivePolicy: "latest",
			Player:       "clock",
		},
		HTTP: HTTPConfig{
			Addr: DefaultHTTPAddr,
		},
		Sync: SyncConfig{
			SmallStep: DefaultSmallStep,
			LargeStep: DefaultLargeStep,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		AI: AIConfig{
			ModuleName: "gemini",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  DefaultCacheTTL,
		},
		Providers: []string{"lrclib", "netease"},
		I3Block: I3BlockConfig{
			Signal: DefaultI3Signal,
		},
	}
}

// Path 获取配置文件路径
func Path() string {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "lrcsync", "config.toml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Warn().Err(err).Msg("Cannot get user home directory")
		return "config.toml"
	}

	return filepath.Join(homeDir, ".config", "lrcsync", "config.toml")
}

// Load 从默认路径加载配置；配置文件有误时回退到默认值
func Load() *Config {
	// .env 不会覆盖已存在的环境变量
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file loaded, relying on existing environment")
	}

	configPath := Path()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Info().Str("path", configPath).Msg("Config file not found, using defaults")
		return fromToml(&TomlConfig{})
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		log.Error().Err(err).Str("path", configPath).Msg("Failed to load config file, using defaults")
		return fromToml(&TomlConfig{})
	}
	log.Info().Str("path", configPath).Msg("Loaded config")
	return cfg
}

// LoadFile 加载指定的配置文件
func LoadFile(path string) (*Config, error) {
	var tc TomlConfig
	if _, err := toml.DecodeFile(path, &tc); err != nil {
		return nil, err
	}
	return fromToml(&tc), nil
}

func fromToml(tc *TomlConfig) *Config {
	config := Default()

	// App
	if tc.App.SocketPath != "" {
		config.App.SocketPath = tc.App.SocketPath
	}
	if tc.App.StatusFile != "" {
		config.App.StatusFile = tc.App.StatusFile
	}
	if tc.App.PollInterval != "" {
		if d, err := time.ParseDuration(tc.App.PollInterval); err == nil && d > 0 {
			config.App.PollInterval = d
		} else {
			log.Warn().Str("poll_interval", tc.App.PollInterval).Msg("Invalid poll_interval, using default")
		}
	}
	if tc.App.CacheDir != "" {
		config.App.CacheDir = tc.App.CacheDir
	}
	if tc.App.OutputDir != "" {
		config.App.OutputDir = tc.App.OutputDir
	}
	if tc.App.LyricsFile != "" {
		config.App.LyricsFile = tc.App.LyricsFile
	}
	if tc.App.ActivePolicy != "" {
		config.App.ActivePolicy = tc.App.ActivePolicy
	}
	if tc.App.Player != "" {
		config.App.Player = tc.App.Player
	}
	config.App.AutoImport = tc.App.AutoImport

	if tc.HTTP.Addr != "" {
		config.HTTP.Addr = tc.HTTP.Addr
	}

	if tc.Sync.SmallStep > 0 {
		config.Sync.SmallStep = tc.Sync.SmallStep
	}
	if tc.Sync.LargeStep > 0 {
		config.Sync.LargeStep = tc.Sync.LargeStep
	}

	// Log
	if tc.Log.Level != "" {
		config.Log.Level = tc.Log.Level
	}
	if tc.Log.File != "" {
		config.Log.File = tc.Log.File
	}
	if tc.Log.MaxSizeMB > 0 {
		config.Log.MaxSizeMB = tc.Log.MaxSizeMB
	}
	if tc.Log.MaxBackups > 0 {
		config.Log.MaxBackups = tc.Log.MaxBackups
	}
	if tc.Log.MaxAgeDays > 0 {
		config.Log.MaxAgeDays = tc.Log.MaxAgeDays
	}
	config.Log.Compress = tc.Log.Compress

	// AI
	if tc.AI.ModuleName != "" {
		config.AI.ModuleName = tc.AI.ModuleName
	}
	if tc.AI.BaseURL != "" {
		config.AI.BaseURL = tc.AI.BaseURL
	}
	if tc.AI.APIKey != "" {
		config.AI.APIKey = tc.AI.APIKey
	}

	// Redis
	config.Redis.Enabled = tc.Redis.Enabled
	if tc.Redis.Addr != "" {
		config.Redis.Addr = tc.Redis.Addr
	}
	if tc.Redis.Password != "" {
		config.Redis.Password = tc.Redis.Password
	}
	if tc.Redis.DB != 0 {
		config.Redis.DB = tc.Redis.DB
	}
	if tc.Redis.TTL != "" {
		if d, err := time.ParseDuration(tc.Redis.TTL); err == nil {
			config.Redis.TTL = d
		} else {
			log.Warn().Str("ttl", tc.Redis.TTL).Msg("Invalid redis ttl, using default")
		}
	}

	if len(tc.Providers) > 0 {
		config.Providers = tc.Providers
	}

	config.I3Block.Enabled = tc.I3Block.Enabled
	if tc.I3Block.Signal > 0 {
		config.I3Block.Signal = tc.I3Block.Signal
	}

	applyEnv(config)
	return config
}

// applyEnv 环境变量优先于配置文件，用于存放密钥
func applyEnv(config *Config) {
	if v := os.Getenv("LRCSYNC_AI_API_KEY"); v != "" {
		config.AI.APIKey = v
	}
	if v := os.Getenv("LRCSYNC_REDIS_PASSWORD"); v != "" {
		config.Redis.Password = v
	}
	if v, ok := os.LookupEnv("LRCSYNC_HTTP_ADDR"); ok {
		config.HTTP.Addr = v
	}
	if v := os.Getenv("LRCSYNC_LYRICS_FILE"); v != "" {
		config.App.LyricsFile = v
	}
}

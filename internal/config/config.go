// Package config 加载客户端配置。
// YAML 文件 + 环境变量覆盖，解析后补默认值再做校验。
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config 是 imgchat 的主配置载体。
type Config struct {
	App     AppConfig     `yaml:"app"`
	Backend BackendConfig `yaml:"backend"`
	Storage StorageConfig `yaml:"storage"`
	Auto    AutoConfig    `yaml:"auto"`
}

type AppConfig struct {
	LogLevel     string `yaml:"log_level"`
	LogPath      string `yaml:"log_path"`
	HTTPAddr     string `yaml:"http_addr"`
	FrameDump    bool   `yaml:"frame_dump"`
	FrameLogPath string `yaml:"frame_log_path"`
}

type BackendConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type StorageConfig struct {
	PrefsPath    string `yaml:"prefs_path"`
	TaskLogPath  string `yaml:"task_log_path"`
	HistoryLimit int    `yaml:"history_limit"`
}

type AutoConfig struct {
	MaxConcurrency int `yaml:"max_concurrency"`
}

// Load 读取并解析配置文件。
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigFile(abs)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("IMGCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", abs, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

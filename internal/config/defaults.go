package config

import "strings"

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.App.LogLevel) == "" {
		c.App.LogLevel = "info"
	}
	if strings.TrimSpace(c.App.HTTPAddr) == "" {
		c.App.HTTPAddr = ":8090"
	}
	if c.App.FrameDump && strings.TrimSpace(c.App.FrameLogPath) == "" {
		c.App.FrameLogPath = "logs/frames.log"
	}
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		c.Backend.BaseURL = "http://127.0.0.1:5000"
	}
	if c.Backend.TimeoutSeconds <= 0 {
		c.Backend.TimeoutSeconds = 300
	}
	if strings.TrimSpace(c.Storage.PrefsPath) == "" {
		c.Storage.PrefsPath = "data/prefs.db"
	}
	if strings.TrimSpace(c.Storage.TaskLogPath) == "" {
		c.Storage.TaskLogPath = "data/tasklog.db"
	}
	if c.Storage.HistoryLimit <= 0 {
		c.Storage.HistoryLimit = 500
	}
	if c.Auto.MaxConcurrency <= 0 {
		c.Auto.MaxConcurrency = 8
	}
}

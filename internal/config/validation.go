package config

import (
	"fmt"
	"net/url"
	"strings"
)

func validate(c *Config) error {
	switch strings.ToLower(c.App.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("app.log_level 取值非法: %q", c.App.LogLevel)
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url 不是合法地址: %q", c.Backend.BaseURL)
	}
	if c.Auto.MaxConcurrency > 16 {
		return fmt.Errorf("auto.max_concurrency 过大 (%d)，上限 16", c.Auto.MaxConcurrency)
	}
	return nil
}

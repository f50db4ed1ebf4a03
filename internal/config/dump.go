package config

import "gopkg.in/yaml.v3"

// Dump 返回生效配置的 YAML 文本，启动时打进日志方便核对。
func (c *Config) Dump() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return ""
	}
	return string(out)
}

package config

import (
	"fmt"
	"strings"

	"github.com/dep2p/go-veilcore/pkg/lib/log"
)

// LoggingConfig 日志配置
type LoggingConfig struct {
	// Level 日志级别规格，例如 "info" 或 "dht=debug,warn"
	// 默认值: "info"
	Level string `json:"level" yaml:"level"`

	// Format 输出格式: text / json
	// 默认值: "text"
	Format string `json:"format" yaml:"format"`

	// UpdateLevel 作为 LogUpdate 推送给订阅者的最低级别
	// 默认值: "warn"
	UpdateLevel string `json:"update_level" yaml:"update_level"`
}

// DefaultLoggingConfig 返回默认的日志配置
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:       "info",
		Format:      string(log.FormatText),
		UpdateLevel: "warn",
	}
}

// Validate 验证日志配置的有效性
func (c *LoggingConfig) Validate() error {
	for _, part := range strings.Split(c.Level, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i := strings.IndexByte(part, '='); i >= 0 {
			part = part[i+1:]
		}
		if _, ok := log.ParseLevel(part); !ok {
			return fmt.Errorf("logging: invalid level %q", part)
		}
	}
	switch log.Format(strings.ToLower(c.Format)) {
	case log.FormatText, log.FormatJSON, "":
	default:
		return fmt.Errorf("logging: invalid format %q", c.Format)
	}
	if c.UpdateLevel != "" {
		if _, ok := log.ParseLevel(c.UpdateLevel); !ok {
			return fmt.Errorf("logging: invalid update_level %q", c.UpdateLevel)
		}
	}
	return nil
}

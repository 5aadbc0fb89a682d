package log

import (
	"log/slog"
	"os"
	"strings"
)

// 环境变量名
const (
	EnvLogLevel  = "TAGENTACLE_LOG_LEVEL"
	EnvLogFormat = "TAGENTACLE_LOG_FORMAT"
)

// Format 日志输出格式
type Format int

const (
	// FormatText 文本格式（默认）
	FormatText Format = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// Config 日志配置
type Config struct {
	// DefaultLevel 默认日志级别
	DefaultLevel slog.Level

	// ComponentLevels 各组件的日志级别
	ComponentLevels map[string]slog.Level

	// Format 输出格式
	Format Format
}

// LevelFor 获取指定组件的日志级别
//
// 支持前缀匹配："core" 的配置同样作用于 "core/dispatcher"。
func (c *Config) LevelFor(component string) slog.Level {
	if level, ok := c.ComponentLevels[component]; ok {
		return level
	}
	best, found := "", false
	for name := range c.ComponentLevels {
		if strings.HasPrefix(component, name+"/") && len(name) > len(best) {
			best, found = name, true
		}
	}
	if found {
		return c.ComponentLevels[best]
	}
	return c.DefaultLevel
}

// ConfigFromEnv 从环境变量解析日志配置
func ConfigFromEnv() *Config {
	return ParseConfig(os.Getenv(EnvLogLevel), os.Getenv(EnvLogFormat))
}

// ParseConfig 解析级别规格与格式字符串
//
// 级别规格格式: 组件=级别,组件=级别,默认级别；无法识别的条目被忽略。
func ParseConfig(levelSpec, format string) *Config {
	cfg := &Config{
		DefaultLevel:    slog.LevelInfo,
		ComponentLevels: make(map[string]slog.Level),
		Format:          ParseFormat(format),
	}

	for _, part := range strings.Split(levelSpec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if name, lv, ok := strings.Cut(part, "="); ok {
			if level, ok := ParseLevel(lv); ok {
				cfg.ComponentLevels[strings.TrimSpace(name)] = level
			}
			continue
		}
		if level, ok := ParseLevel(part); ok {
			cfg.DefaultLevel = level
		}
	}
	return cfg
}

// ParseLevel 解析日志级别字符串
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// ParseFormat 解析日志格式字符串，未知值回退到文本格式
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

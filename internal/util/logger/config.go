package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// 环境变量名
const (
	// EnvLogLevel 日志级别，格式: 子系统=级别,子系统=级别,默认级别
	EnvLogLevel = "XCHANGEFS_LOG_LEVEL"
	// EnvLogFormat 日志格式: text 或 json
	EnvLogFormat = "XCHANGEFS_LOG_FORMAT"
	// EnvLogAddSource 是否输出源码位置: true 或 false
	EnvLogAddSource = "XCHANGEFS_LOG_ADD_SOURCE"
)

// LogFormat 日志输出格式
type LogFormat int

const (
	// FormatText 文本格式（默认）
	FormatText LogFormat = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// Config 日志配置
type Config struct {
	// DefaultLevel 默认日志级别
	DefaultLevel slog.Level

	// SubsystemLevels 各子系统的日志级别
	SubsystemLevels map[string]slog.Level

	// Format 输出格式
	Format LogFormat

	// AddSource 是否添加源码位置
	AddSource bool
}

// LevelForSubsystem 获取指定子系统的日志级别
func (c *Config) LevelForSubsystem(subsystem string) slog.Level {
	if level, ok := c.SubsystemLevels[subsystem]; ok {
		return level
	}
	return c.DefaultLevel
}

var (
	configCache *Config
	configOnce  sync.Once
)

// ConfigFromEnv 从环境变量解析配置（进程内只解析一次）
func ConfigFromEnv() *Config {
	configOnce.Do(func() {
		configCache = ParseConfig(os.Getenv(EnvLogLevel), os.Getenv(EnvLogFormat), os.Getenv(EnvLogAddSource))
	})
	return configCache
}

// ParseConfig 从字符串解析配置
//
// level 示例: "swarm=debug,lookup=warn,info"
func ParseConfig(level, format, addSource string) *Config {
	cfg := &Config{
		DefaultLevel:    slog.LevelInfo,
		SubsystemLevels: make(map[string]slog.Level),
		Format:          FormatText,
	}

	for _, part := range strings.Split(level, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		subsystem, name, scoped := strings.Cut(part, "=")
		if !scoped {
			if lvl, ok := parseLevel(part); ok {
				cfg.DefaultLevel = lvl
			}
			continue
		}
		if lvl, ok := parseLevel(strings.TrimSpace(name)); ok {
			cfg.SubsystemLevels[strings.TrimSpace(subsystem)] = lvl
		}
	}

	if strings.EqualFold(strings.TrimSpace(format), "json") {
		cfg.Format = FormatJSON
	}

	switch strings.ToLower(strings.TrimSpace(addSource)) {
	case "true", "1", "yes":
		cfg.AddSource = true
	}

	return cfg
}

// parseLevel 解析日志级别名称
func parseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
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

// ResetConfig 重置配置缓存（仅用于测试）
func ResetConfig() {
	configOnce = sync.Once{}
	configCache = nil
}

// Package logger 提供 xchangefs 的统一日志系统
//
// 基于标准库 log/slog，支持：
//   - 按子系统配置日志级别
//   - 环境变量配置（XCHANGEFS_LOG_LEVEL, XCHANGEFS_LOG_FORMAT）
//   - 结构化日志
//
// 使用示例:
//
//	var log = logger.Logger("swarm")
//
//	func foo() {
//	    log.Info("listening", "addr", addr)
//	    log.Debug("event dispatched", "type", ev.Type())
//	}
//
// 环境变量配置:
//
//	# 所有子系统 info，lookup 子系统 debug
//	XCHANGEFS_LOG_LEVEL=lookup=debug,info
//
//	# JSON 输出
//	XCHANGEFS_LOG_FORMAT=json
package logger

import (
	"io"
	"log/slog"
	"sync"
)

var (
	// loggers 缓存各子系统的 Logger
	loggers sync.Map // map[string]*slog.Logger

	// handlers 缓存各子系统的 Handler（用于动态调整级别）
	handlers sync.Map // map[string]*subsystemHandler
)

// Logger 获取指定子系统的 Logger
//
// 同一子系统多次调用返回相同实例。
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	h := newHandler(subsystem, ConfigFromEnv())
	actual, loaded := loggers.LoadOrStore(subsystem, slog.New(h))
	if !loaded {
		handlers.Store(subsystem, h)
	}
	return actual.(*slog.Logger)
}

// SetLevel 动态设置子系统的日志级别
func SetLevel(subsystem string, level slog.Level) {
	if h, ok := handlers.Load(subsystem); ok {
		h.(*subsystemHandler).level.Set(level)
	}
}

// SetGlobalLevel 设置所有已创建子系统的日志级别
func SetGlobalLevel(level slog.Level) {
	handlers.Range(func(_, value any) bool {
		value.(*subsystemHandler).level.Set(level)
		return true
	})
}

// SetOutput 设置全局日志输出目标
//
// 已创建的 Logger 同样会写到新目标。
func SetOutput(w io.Writer) {
	globalOutputMu.Lock()
	globalOutput = w
	globalOutputMu.Unlock()
}

// Discard 返回一个丢弃所有日志的 Logger，主要用于测试
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

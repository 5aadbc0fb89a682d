// Package log 提供 Tagentacle 统一日志接口
//
// 基于 Go 标准库 log/slog 封装。各组件通过 Logger 获取带组件名的懒加载 logger：
//
//	var logger = log.Logger("core/dispatcher")
//	logger.Info("节点已连接", "nodeID", nodeID)
//
// 环境变量:
//   - TAGENTACLE_LOG_LEVEL: debug / info / warn / error，支持按组件配置
//     格式: 组件=级别,组件=级别,默认级别
//     示例: core/dispatcher=debug,warn
//   - TAGENTACLE_LOG_FORMAT: text 或 json
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	output  io.Writer = os.Stderr
	current           = ConfigFromEnv()
	handler slog.Handler
)

// 日志级别常量（从 slog 导出，方便使用）
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

func init() {
	rebuild()
}

// rebuild 根据当前配置重建根 handler，调用方需持有 mu 或处于 init 阶段
func rebuild() {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	if current.Format == FormatJSON {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}
}

// Setup 设置日志输出目标、默认级别和格式
//
// 通常由命令行入口在启动时调用一次；组件级别覆盖（来自环境变量）保留。
func Setup(w io.Writer, level slog.Level, format Format) {
	mu.Lock()
	defer mu.Unlock()

	if w != nil {
		output = w
	}
	cfg := *current
	cfg.DefaultLevel = level
	cfg.Format = format
	current = &cfg
	rebuild()
}

// SetOutput 设置日志输出目标
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	output = w
	rebuild()
}

// SetLevel 设置默认日志级别
func SetLevel(level slog.Level) {
	mu.Lock()
	defer mu.Unlock()

	cfg := *current
	cfg.DefaultLevel = level
	current = &cfg
}

// ============================================================================
//                              LazyLogger
// ============================================================================

// LazyLogger 懒加载 logger
//
// 每次日志调用时读取当前的 handler 与级别配置，
// 支持在运行时切换输出目标（例如 CLI 解析完参数之后）。
type LazyLogger struct {
	component string
}

// Logger 返回带组件名的 LazyLogger
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

func (l *LazyLogger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	mu.RLock()
	h := handler
	threshold := current.LevelFor(l.component)
	mu.RUnlock()

	if level < threshold {
		return
	}
	slog.New(h).With("component", l.component).Log(ctx, level, msg, args...)
}

// Enabled 报告指定级别对该组件是否启用
func (l *LazyLogger) Enabled(level slog.Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return level >= current.LevelFor(l.component)
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) {
	l.log(context.Background(), slog.LevelDebug, msg, args...)
}

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) {
	l.log(context.Background(), slog.LevelInfo, msg, args...)
}

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) {
	l.log(context.Background(), slog.LevelWarn, msg, args...)
}

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) {
	l.log(context.Background(), slog.LevelError, msg, args...)
}

// DebugContext 带 context 的 Debug 日志
func (l *LazyLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args...)
}

// WarnContext 带 context 的 Warn 日志
func (l *LazyLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args...)
}

// ============================================================================
//                              工具函数
// ============================================================================

// TruncateID 安全截取 ID 用于日志显示
func TruncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}

package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey struct{}

// Logger 全局结构化日志
var Logger = slog.Default()

// InitLogger 按级别与格式初始化全局日志。
// level: debug / info / warn / error，其他值按 info 处理
// format: json 或 text，其他值按 text 处理
func InitLogger(level, format string) {
	Logger = New(os.Stdout, level, format)
	slog.SetDefault(Logger)
}

// New 构造写入 w 的日志，测试里用来捕获输出
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID 把请求 id 放进 ctx，之后 FromContext 得到的日志都带上 request_id
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// RequestID 取出 ctx 中的请求 id
func RequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// FromContext 返回带 request_id 的日志；ctx 没有请求 id 时返回全局日志
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return Logger
	}
	if id, ok := RequestID(ctx); ok {
		return Logger.With("request_id", id)
	}
	return Logger
}

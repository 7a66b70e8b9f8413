// Package logging 命令行与服务共用的 slog 配置
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Options 日志参数
type Options struct {
	Level  string // debug, info, warn, error
	JSON   bool   // 输出 JSON, 用于容器内运行
	Pretty bool   // 彩色输出, 用于本地开发
}

// ParseLevel 解析日志级别, 为空时为 info
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("无效的日志级别 %q", s)
	}
	return level, nil
}

// New 按参数创建 Logger
func New(w io.Writer, opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	handlerOpts := slog.HandlerOptions{Level: level}
	switch {
	case opts.Pretty:
		return slog.New(NewPrettyHandler(w, PrettyHandlerOptions{SlogOpts: handlerOpts})), nil
	case opts.JSON:
		return slog.New(slog.NewJSONHandler(w, &handlerOpts)), nil
	default:
		return slog.New(slog.NewTextHandler(w, &handlerOpts)), nil
	}
}

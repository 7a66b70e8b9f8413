package server

import (
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/felixge/httpsnoop"
)

// logRequests 记录每个请求的状态码、耗时与写出字节数
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		level := slog.LevelInfo
		if m.Code >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(r.Context(), level, "http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"duration", m.Duration,
			"size", humanize.Bytes(uint64(m.Written)),
		)
	})
}

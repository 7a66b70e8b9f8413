// Package server Set-of-Mark 演示服务: 标注、视觉问答与高亮
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	som "github.com/getcharzp/go-som"
	"github.com/getcharzp/go-som/api"
	"github.com/getcharzp/go-som/history"
	"github.com/getcharzp/go-som/pipeline"
	"github.com/getcharzp/go-som/visualizer"
)

//go:embed templates/*.html
var templateFS embed.FS

// Segmenter 标注与高亮, 由 pipeline.Registry 实现
type Segmenter interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	Highlight(src image.Image, res *pipeline.Result, indices []int) (*image.RGBA, []visualizer.Mark, error)
	Available() []som.ModelName
}

// Asker 视觉问答, 由 gpt4v.Client 实现
type Asker interface {
	Ask(ctx context.Context, prompt string, img image.Image) (string, error)
}

// Config 服务配置
type Config struct {
	Addr            string
	MaxBodyBytes    int64         // 请求体上限
	FetchTimeout    time.Duration // 下载 image_url 的超时
	ShutdownTimeout time.Duration
	SessionLifetime time.Duration
	Defaults        som.Options // 请求未填写的字段使用的默认值
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Addr:            fmt.Sprintf(":%d", api.DefaultPort),
		MaxBodyBytes:    32 << 20,
		FetchTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		SessionLifetime: 24 * time.Hour,
		Defaults:        som.ChatOptions(),
	}
}

// Deps 服务依赖, Chat 与 Transcript 可以为空
type Deps struct {
	Segmenter  Segmenter
	Chat       Asker
	Runs       *history.Runs
	Transcript *history.Transcript
	Logger     *slog.Logger
}

// Server 演示服务
type Server struct {
	cfg     Config
	deps    Deps
	session *scs.SessionManager
	tmpl    *template.Template
	fetcher *http.Client
	logger  *slog.Logger
}

// New 创建服务
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Segmenter == nil {
		return nil, errors.New("Segmenter 不能为空")
	}
	if deps.Runs == nil {
		deps.Runs = history.NewRuns(0)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("解析模板失败: %w", err)
	}

	session := scs.New()
	session.Lifetime = cfg.SessionLifetime
	session.Cookie.Name = "som_session"
	session.Cookie.SameSite = http.SameSiteLaxMode

	return &Server{
		cfg:     cfg,
		deps:    deps,
		session: session,
		tmpl:    tmpl,
		fetcher: &http.Client{Timeout: cfg.FetchTimeout},
		logger:  logger,
	}, nil
}

// Handler 全部路由, 带会话与访问日志
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET "+api.PathHealth, s.handleHealth)
	mux.HandleFunc("POST "+api.PathInference, s.handleInference)
	mux.HandleFunc("POST "+api.PathChat, s.handleChat)
	mux.HandleFunc("POST "+api.PathHighlight, s.handleHighlight)

	return s.logRequests(s.session.LoadAndSave(mux))
}

// ListenAndServe 启动服务, ctx 取消后优雅退出
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("服务启动", "addr", s.cfg.Addr, "models", s.deps.Segmenter.Available())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("正在关闭服务")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("关闭服务失败: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NisargKadam/mental-wellness-agent/api/handlers"
	"github.com/NisargKadam/mental-wellness-agent/internal/server"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 组合 API 服务器与 Metrics 服务器
type Server struct {
	app    *app
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager
}

// NewServer 创建服务器实例
func NewServer(a *app) *Server {
	return &Server{app: a, logger: a.logger}
}

// skipAuthPaths 无需认证的路径
var skipAuthPaths = []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"}

// =============================================================================
// 🌐 路由与中间件
// =============================================================================

// routes 注册全部 API 路由
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	health := handlers.NewHealthHandler(s.logger)
	if s.app.store != nil {
		health.RegisterCheck(handlers.NewPingCheck("run_history", s.app.store.Ping))
	}
	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /healthz", health.HandleHealth)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /readyz", health.HandleReady)
	mux.HandleFunc("GET /version", health.HandleVersion(Version, BuildTime, GitCommit))

	wellnessHandler := handlers.NewWellnessHandler(s.app.svc, s.logger)
	mux.HandleFunc("POST /v1/respond", wellnessHandler.HandleRespond)
	mux.HandleFunc("POST /v1/respond/stream", wellnessHandler.HandleStream)
	mux.HandleFunc("GET /v1/graph", wellnessHandler.HandleGraph)

	if s.app.store != nil {
		runs := handlers.NewRunsHandler(s.app.store, s.logger)
		mux.HandleFunc("GET /v1/runs", runs.HandleList)
		mux.HandleFunc("GET /v1/runs/{id}", runs.HandleGet)
	} else {
		s.logger.Info("run history disabled, /v1/runs not registered")
	}

	return mux
}

// Handler 构建带中间件链的 HTTP handler。ctx 控制限流器清理协程的生命周期
func (s *Server) Handler(ctx context.Context) http.Handler {
	sc := s.app.cfg.Server

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		RequestLogger(s.logger),
	}
	if s.app.collector != nil {
		middlewares = append(middlewares, MetricsMiddleware(s.app.collector))
	}
	middlewares = append(middlewares, CORS(sc.CORSAllowedOrigins))
	if len(sc.APIKeys) > 0 {
		middlewares = append(middlewares, APIKeyAuth(sc.APIKeys, skipAuthPaths, s.logger))
	}
	if sc.JWT.Enabled() {
		middlewares = append(middlewares, JWTAuth(sc.JWT, skipAuthPaths, s.logger))
	}
	if sc.RateLimitRPS > 0 {
		middlewares = append(middlewares, RateLimiter(ctx, sc.RateLimitRPS, sc.RateLimitBurst, s.logger))
	}

	return Chain(s.routes(), middlewares...)
}

// =============================================================================
// 🚀 启动与关闭
// =============================================================================

// Run 启动 API 与 Metrics 服务器，阻塞直到 ctx 取消或任一服务器失败
func (s *Server) Run(ctx context.Context) error {
	sc := s.app.cfg.Server

	s.httpManager = server.NewManager(s.Handler(ctx), server.ConfigFrom("api", sc, sc.HTTPPort), s.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.httpManager.Run(gctx) })

	if s.app.collector != nil && sc.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		s.metricsManager = server.NewManager(mux, server.ConfigFrom("metrics", sc, sc.MetricsPort), s.logger)
		g.Go(func() error { return s.metricsManager.Run(gctx) })
	}

	s.logger.Info("all servers started",
		zap.Int("http_port", sc.HTTPPort),
		zap.Int("metrics_port", sc.MetricsPort),
		zap.Bool("run_history", s.app.store != nil),
	)

	err := g.Wait()
	s.logger.Info("graceful shutdown completed")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// =============================================================================
// ▶️ serve 命令
// =============================================================================

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting mental wellness agent",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	a, err := newApp(ctx, cfg, logger, appOptions{
		offline:   common.offline,
		metrics:   true,
		telemetry: true,
	})
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	if err := NewServer(a).Run(ctx); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}

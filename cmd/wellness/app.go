package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/NisargKadam/mental-wellness-agent/config"
	"github.com/NisargKadam/mental-wellness-agent/internal/llmclient"
	"github.com/NisargKadam/mental-wellness-agent/internal/metrics"
	"github.com/NisargKadam/mental-wellness-agent/internal/runstore"
	"github.com/NisargKadam/mental-wellness-agent/internal/telemetry"
	"github.com/NisargKadam/mental-wellness-agent/wellness"
	"github.com/NisargKadam/mental-wellness-agent/workflow"
)

// =============================================================================
// 🧩 应用装配
// =============================================================================

// app 持有一次进程生命周期内的全部组件
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	model     wellness.ChatModel
	graph     *workflow.Graph
	svc       *wellness.Service
	store     runstore.Store
	collector *metrics.Collector
	telemetry *telemetry.Telemetry
}

// appOptions 控制装配行为
type appOptions struct {
	// 使用离线模型，忽略 llm 配置
	offline bool
	// 注册 Prometheus 指标（每个进程只能注册一次）
	metrics bool
	// 初始化 OpenTelemetry
	telemetry bool
}

// newApp 按配置装配模型、图、执行器与运行记录存储
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	var recorders workflow.MultiRecorder
	if opts.metrics {
		a.collector = metrics.NewCollector("wellness", logger)
		recorders = append(recorders, a.collector)
	}

	backend := cfg.LLM.Provider
	if opts.offline {
		backend = "offline"
	}
	telemetryCfg := cfg.Telemetry
	if !opts.telemetry {
		telemetryCfg.Enabled = false
	}
	tel, err := telemetry.Init(ctx, telemetryCfg, logger,
		telemetry.WithServiceVersion(Version),
		telemetry.WithGraph(wellness.GraphName),
		telemetry.WithModelBackend(backend),
	)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
		tel, _ = telemetry.Init(ctx, config.TelemetryConfig{}, logger)
	}
	a.telemetry = tel
	recorders = append(recorders, tel.Recorders()...)

	model, err := a.buildModel(opts.offline)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.model = model

	var storeOpts []runstore.Option
	storeOpts = append(storeOpts, runstore.WithLogger(logger))
	if a.collector != nil {
		storeOpts = append(storeOpts, runstore.WithObserver(a.collector))
	}
	store, err := runstore.New(ctx, cfg, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}
	a.store = store

	g, err := wellness.BuildGraph(model, wellness.WithGraphLogger(logger))
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("build wellness graph: %w", err)
	}
	a.graph = g

	execOpts := []workflow.ExecutorOption{
		workflow.WithLogger(logger),
		workflow.WithTracer(tel.Tracer),
		workflow.WithDefaultRunOptions(engineRunOptions(cfg.Engine)...),
	}
	if len(recorders) > 0 {
		execOpts = append(execOpts, workflow.WithRecorder(recorders))
	}
	if store != nil {
		execOpts = append(execOpts, workflow.WithHistoryStore(store))
	}

	a.svc = wellness.NewService(g,
		wellness.WithExecutor(workflow.NewExecutor(execOpts...)),
		wellness.WithServiceLogger(logger),
	)
	return a, nil
}

// buildModel 选择离线模型或 OpenAI 兼容客户端
func (a *app) buildModel(offline bool) (wellness.ChatModel, error) {
	if offline || a.cfg.LLM.Provider == "offline" {
		a.logger.Info("using offline model")
		return wellness.NewOffline(), nil
	}

	clientOpts := []llmclient.Option{
		llmclient.WithLogger(a.logger),
		llmclient.WithJSONMode(true),
	}
	if a.collector != nil {
		clientOpts = append(clientOpts, llmclient.WithObserver(a.collector))
	}
	client, err := llmclient.New(a.cfg.LLM, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	a.logger.Info("using openai-compatible model", zap.String("model", client.Model()))
	return client, nil
}

// engineRunOptions 将执行器配置转换为默认运行选项
func engineRunOptions(ec config.EngineConfig) []workflow.RunOption {
	opts := []workflow.RunOption{workflow.WithDeterministicOrder(ec.DeterministicOrder)}
	if ec.RunTimeout > 0 {
		opts = append(opts, workflow.WithRunTimeout(ec.RunTimeout))
	}
	if ec.NodeTimeout > 0 {
		opts = append(opts, workflow.WithNodeTimeout(ec.NodeTimeout))
	}
	if ec.MaxConcurrency > 0 {
		opts = append(opts, workflow.WithMaxConcurrency(ec.MaxConcurrency))
	}
	return opts
}

// close 释放存储与遥测资源
func (a *app) close(ctx context.Context) {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error while closing app", zap.Error(err))
	}
}

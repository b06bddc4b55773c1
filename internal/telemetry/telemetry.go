package telemetry

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NisargKadam/mental-wellness-agent/config"
	"github.com/NisargKadam/mental-wellness-agent/workflow"
)

// =============================================================================
// 📡 工作流遥测
// =============================================================================

// DefaultServiceName 未配置服务名时使用
const DefaultServiceName = "mental-wellness-agent"

// 资源属性键
const (
	AttrGraph        = attribute.Key("wellness.graph")
	AttrModelBackend = attribute.Key("wellness.model_backend")
)

// Telemetry 持有工作流执行器所需的 Tracer 与 Recorder
//
// 未启用时 Tracer 取自全局（noop）TracerProvider，Recorder 为 nil，
// Shutdown 不做任何事。
type Telemetry struct {
	Tracer   trace.Tracer
	Recorder *Recorder

	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// Option 配置 Init
type Option func(*options)

type options struct {
	version      string
	graph        string
	modelBackend string
	spanExporter sdktrace.SpanExporter
	metricReader sdkmetric.Reader
}

// WithServiceVersion 设置 service.version，默认取自构建信息
func WithServiceVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// WithGraph 在资源上标注运行的工作流图
func WithGraph(name string) Option {
	return func(o *options) { o.graph = name }
}

// WithModelBackend 在资源上标注模型后端（openai / offline）
func WithModelBackend(backend string) Option {
	return func(o *options) { o.modelBackend = backend }
}

// WithSpanExporter 替换 OTLP trace 导出器，span 同步导出
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.spanExporter = exp }
}

// WithMetricReader 替换 OTLP 周期性指标读取器
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) { o.metricReader = r }
}

// Init 初始化 OTel SDK 并返回绑定到工作流执行器的 Tracer 与 Recorder
func Init(ctx context.Context, cfg config.TelemetryConfig, logger *zap.Logger, opts ...Option) (*Telemetry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Info("telemetry disabled, workflow spans and metrics are noop")
		return &Telemetry{Tracer: otel.Tracer(workflow.InstrumentationName)}, nil
	}

	o := options{version: buildVersion()}
	for _, opt := range opts {
		opt(&o)
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	res, err := resource.New(ctx, resource.WithAttributes(resourceAttributes(serviceName, o)...))
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	}
	if o.spanExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithSyncer(o.spanExporter))
	} else {
		exp, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}

	reader := o.metricReader
	if reader == nil {
		exp, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("create metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exp)
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))

	rec, err := NewRecorder(mp)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, fmt.Errorf("create workflow recorder: %w", err)
	}

	// HTTP 中间件通过全局 provider 与 propagator 取用
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("telemetry initialized",
		zap.String("endpoint", cfg.OTLPEndpoint),
		zap.String("service_name", serviceName),
		zap.String("graph", o.graph),
		zap.Float64("sample_rate", cfg.SampleRate),
	)

	return &Telemetry{
		Tracer:   tp.Tracer(workflow.InstrumentationName),
		Recorder: rec,
		tp:       tp,
		mp:       mp,
	}, nil
}

func resourceAttributes(serviceName string, o options) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(o.version),
	}
	if o.graph != "" {
		attrs = append(attrs, AttrGraph.String(o.graph))
	}
	if o.modelBackend != "" {
		attrs = append(attrs, AttrModelBackend.String(o.modelBackend))
	}
	return attrs
}

// Enabled 报告是否创建了 SDK provider
func (t *Telemetry) Enabled() bool {
	return t != nil && t.tp != nil
}

// Recorders 返回可追加到执行器的 Recorder，未启用时为空
func (t *Telemetry) Recorders() workflow.MultiRecorder {
	if t == nil || t.Recorder == nil {
		return nil
	}
	return workflow.MultiRecorder{t.Recorder}
}

// Shutdown 刷新并关闭 provider，nil 或未启用时为空操作
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.tp != nil {
		if err := t.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}
	if t.mp != nil {
		if err := t.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// buildVersion 取模块版本，不可用时为 "dev"
func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}
